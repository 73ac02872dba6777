package entity

import (
	"net/url"
	"strconv"
	"strings"
)

// Form is the editable model behind a create/update dialog.
type Form interface {
	// Bind copies submitted values into the form.
	Bind(values url.Values)
	// Values echoes the current field values back to the template.
	Values() map[string]string
	// Payload builds the JSON body sent to the backend for op.
	Payload(op Operation) any
}

// Fill binds initial values taken from an existing record.
func Fill(form Form, fields map[string]string) {
	values := make(url.Values, len(fields))
	for k, v := range fields {
		values.Set(k, v)
	}
	form.Bind(values)
}

func field(values url.Values, name string) string {
	return strings.TrimSpace(values.Get(name))
}

// SignupRequest is the body of POST /auth/signup.
type SignupRequest struct {
	Username      string        `json:"username"`
	Email         string        `json:"email"`
	Password      string        `json:"password"`
	Role          []string      `json:"role"`
	DepartmentDTO DepartmentRef `json:"departmentDTO"`
	Manager       string        `json:"manager,omitempty"`
}

// PersonUpdate is the body used to update an account in place.
type PersonUpdate struct {
	Username      string        `json:"username"`
	Email         string        `json:"email"`
	Password      string        `json:"password,omitempty"`
	Matricule     string        `json:"matricule,omitempty"`
	FirstName     string        `json:"firstName"`
	LastName      string        `json:"lastName"`
	Phone         string        `json:"phone"`
	Address       string        `json:"address"`
	DepartmentDTO DepartmentRef `json:"departmentDTO"`
	Manager       string        `json:"manager,omitempty"`
	Role          []string      `json:"role,omitempty"`
}

// RoleName is the nested role object the users endpoint expects.
type RoleName struct {
	Name string `json:"name"`
}

// UserSave is the body of POST /users/save.
type UserSave struct {
	PersonUpdate
	Roles []RoleName `json:"roles"`
}

// AccountForm holds the fields shared by admin, manager and user forms.
type AccountForm struct {
	Username       string `form:"username" validate:"required,min=3,max=20"`
	Email          string `form:"email" validate:"required,email,max=50"`
	Password       string `form:"password" validate:"max=120"`
	FirstName      string `form:"firstName" validate:"required,max=50"`
	LastName       string `form:"lastName" validate:"required,max=50"`
	Phone          string `form:"phone" validate:"required,max=20"`
	Address        string `form:"address" validate:"required,max=255"`
	DepartmentCode string `form:"departmentCode" validate:"required,max=20"`
}

func (f *AccountForm) bind(values url.Values) {
	f.Username = field(values, "username")
	f.Email = field(values, "email")
	f.Password = values.Get("password")
	f.FirstName = field(values, "firstName")
	f.LastName = field(values, "lastName")
	f.Phone = field(values, "phone")
	f.Address = field(values, "address")
	f.DepartmentCode = field(values, "departmentCode")
}

func (f *AccountForm) values() map[string]string {
	// Passwords are never echoed back into the page.
	return map[string]string{
		"username":       f.Username,
		"email":          f.Email,
		"firstName":      f.FirstName,
		"lastName":       f.LastName,
		"phone":          f.Phone,
		"address":        f.Address,
		"departmentCode": f.DepartmentCode,
	}
}

func (f *AccountForm) update(roles ...string) PersonUpdate {
	return PersonUpdate{
		Username:      f.Username,
		Email:         f.Email,
		Password:      f.Password,
		FirstName:     f.FirstName,
		LastName:      f.LastName,
		Phone:         f.Phone,
		Address:       f.Address,
		DepartmentDTO: DepartmentRef{Code: f.DepartmentCode},
		Role:          roles,
	}
}

func (f *AccountForm) checkOperation(op Operation, errs ValidationErrors) {
	if op == OpCreate && f.Password == "" {
		errs.add("password", "password is required")
	}
}

// AdminForm creates administrators or managers through signup.
type AdminForm struct {
	AccountForm
	Role string `form:"role" validate:"required,oneof=admin mod"`
}

func (f *AdminForm) Bind(values url.Values) {
	f.bind(values)
	f.Role = field(values, "role")
}

func (f *AdminForm) Values() map[string]string {
	out := f.values()
	out["role"] = f.Role
	return out
}

func (f *AdminForm) Payload(op Operation) any {
	if op == OpCreate {
		return SignupRequest{
			Username:      f.Username,
			Email:         f.Email,
			Password:      f.Password,
			Role:          []string{f.Role},
			DepartmentDTO: DepartmentRef{Code: f.DepartmentCode},
		}
	}
	return f.update(f.Role)
}

// ManagerForm creates managers; the role is always "mod".
type ManagerForm struct {
	AccountForm
}

func (f *ManagerForm) Bind(values url.Values) { f.bind(values) }

func (f *ManagerForm) Values() map[string]string { return f.values() }

func (f *ManagerForm) Payload(op Operation) any {
	if op == OpCreate {
		return SignupRequest{
			Username:      f.Username,
			Email:         f.Email,
			Password:      f.Password,
			Role:          []string{"mod"},
			DepartmentDTO: DepartmentRef{Code: f.DepartmentCode},
		}
	}
	return f.update("mod")
}

// UserForm creates collaborators attached to a manager.
type UserForm struct {
	AccountForm
	Matricule string `form:"matricule" validate:"required,max=20"`
	Manager   string `form:"manager" validate:"required,max=20"`
}

func (f *UserForm) Bind(values url.Values) {
	f.bind(values)
	f.Matricule = field(values, "matricule")
	f.Manager = field(values, "manager")
}

func (f *UserForm) Values() map[string]string {
	out := f.values()
	out["matricule"] = f.Matricule
	out["manager"] = f.Manager
	return out
}

func (f *UserForm) Payload(op Operation) any {
	body := f.update()
	body.Matricule = f.Matricule
	body.Manager = f.Manager
	return UserSave{PersonUpdate: body, Roles: []RoleName{{Name: "user"}}}
}

// DepartmentForm is the department schema.
type DepartmentForm struct {
	Code string `form:"code" json:"code" validate:"required,max=20"`
	Name string `form:"name" json:"name" validate:"required,max=100"`
}

func (f *DepartmentForm) Bind(values url.Values) {
	f.Code = field(values, "code")
	f.Name = field(values, "name")
}

func (f *DepartmentForm) Values() map[string]string {
	return map[string]string{"code": f.Code, "name": f.Name}
}

func (f *DepartmentForm) Payload(Operation) any { return *f }

// PointeuseForm is the time-clock device schema.
type PointeuseForm struct {
	Code         string `form:"code" json:"code" validate:"required,max=20"`
	Name         string `form:"name" json:"name" validate:"required,max=100"`
	Description  string `form:"description" json:"description" validate:"max=255"`
	BadgeuseType string `form:"badgeuseType" json:"badgeuseType" validate:"required,oneof=IN OUT"`
}

func (f *PointeuseForm) Bind(values url.Values) {
	f.Code = field(values, "code")
	f.Name = field(values, "name")
	f.Description = field(values, "description")
	f.BadgeuseType = strings.ToUpper(field(values, "badgeuseType"))
}

func (f *PointeuseForm) Values() map[string]string {
	return map[string]string{
		"code":         f.Code,
		"name":         f.Name,
		"description":  f.Description,
		"badgeuseType": f.BadgeuseType,
	}
}

func (f *PointeuseForm) Payload(Operation) any { return *f }

// PointageForm is the punch schema.
type PointageForm struct {
	Matricule   string `form:"matricule" json:"matricule" validate:"required,max=20"`
	Date        string `form:"date" json:"date" validate:"required,datetime=2006-01-02"`
	Heure       string `form:"heure" json:"heure" validate:"required,datetime=15:04"`
	PointeuseID int64  `form:"pointeuseId" json:"pointeuseId" validate:"min=1"`
	Type        string `form:"type" json:"type" validate:"required,oneof=IN OUT"`
}

func (f *PointageForm) Bind(values url.Values) {
	f.Matricule = field(values, "matricule")
	f.Date = field(values, "date")
	f.Heure = field(values, "heure")
	f.PointeuseID, _ = strconv.ParseInt(field(values, "pointeuseId"), 10, 64)
	f.Type = strings.ToUpper(field(values, "type"))
}

func (f *PointageForm) Values() map[string]string {
	id := ""
	if f.PointeuseID > 0 {
		id = strconv.FormatInt(f.PointeuseID, 10)
	}
	return map[string]string{
		"matricule":   f.Matricule,
		"date":        f.Date,
		"heure":       f.Heure,
		"pointeuseId": id,
		"type":        f.Type,
	}
}

func (f *PointageForm) Payload(Operation) any { return *f }
