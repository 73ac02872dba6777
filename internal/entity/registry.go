package entity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoForm is returned when no descriptor exists for a tag.
var ErrNoForm = errors.New("entity: no form available")

// Endpoints are the backend paths for one entity, relative to the API base.
// Update and Delete contain an {id} placeholder.
type Endpoints struct {
	List          string
	Create        string
	Update        string
	Delete        string
	ProfileSecret bool
}

// UpdatePath expands the update template for id.
func (e Endpoints) UpdatePath(id string) string { return strings.ReplaceAll(e.Update, "{id}", id) }

// DeletePath expands the delete template for id.
func (e Endpoints) DeletePath(id string) string { return strings.ReplaceAll(e.Delete, "{id}", id) }

// Descriptor binds an entity tag to its form, schema and endpoints.
type Descriptor struct {
	Tag         Tag
	DisplayName string
	Title       string
	Columns     []string
	Template    string
	Endpoints   Endpoints

	newForm  func() Form
	decode   func([]byte) ([]Record, error)
	defaults map[string]string
}

// NewForm returns an empty form. Create dialogs get the entity defaults.
func (d Descriptor) NewForm(op Operation) Form {
	form := d.newForm()
	if op == OpCreate && len(d.defaults) > 0 {
		Fill(form, d.defaults)
	}
	return form
}

// DecodeList parses a list endpoint response.
func (d Descriptor) DecodeList(raw []byte) ([]Record, error) {
	rows, err := d.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("entity: decode %s list: %w", d.Tag, err)
	}
	return rows, nil
}

// DeletePrompt is the confirmation text of a delete dialog.
func (d Descriptor) DeletePrompt(id string) string {
	return fmt.Sprintf("All data will be lost. Are you sure you want to delete this %s (#%s)?", d.DisplayName, id)
}

// Registry is the immutable set of descriptors known to the dashboard.
type Registry struct {
	descriptors map[Tag]Descriptor
}

// NewRegistry registers every known tag.
func NewRegistry() *Registry {
	r := &Registry{descriptors: make(map[Tag]Descriptor)}
	for _, tag := range AllTags() {
		if d, ok := describe(tag); ok {
			r.descriptors[tag] = d
		}
	}
	return r
}

// Lookup returns the descriptor for tag.
func (r *Registry) Lookup(tag Tag) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	d, ok := r.descriptors[tag]
	return d, ok
}

// Resolve returns the descriptor serving (tag, op). Unknown tags fail closed with ErrNoForm.
func (r *Registry) Resolve(tag Tag, op Operation) (Descriptor, error) {
	if _, ok := ParseOperation(string(op)); !ok {
		return Descriptor{}, fmt.Errorf("entity: unknown operation %q: %w", op, ErrNoForm)
	}
	d, ok := r.Lookup(tag)
	if !ok {
		return Descriptor{}, fmt.Errorf("entity: %s: %w", tag, ErrNoForm)
	}
	return d, nil
}

// Descriptors returns every descriptor in menu order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.descriptors))
	for _, tag := range AllTags() {
		if d, ok := r.descriptors[tag]; ok {
			out = append(out, d)
		}
	}
	return out
}

// describe is the single table of entity descriptors. Every Tag in AllTags
// must have a case here.
func describe(tag Tag) (Descriptor, bool) {
	personColumns := []string{"Matricule", "Name", "Username", "Email", "Phone", "Department"}
	switch tag {
	case TagAdmin:
		return Descriptor{
			Tag:         tag,
			DisplayName: "administrator",
			Title:       "Administrators",
			Columns:     personColumns,
			Template:    "forms/admin.html",
			Endpoints: Endpoints{
				List:          "/admin/all",
				Create:        "/auth/signup",
				Update:        "/admin/update/{id}",
				Delete:        "/admin/delete/{id}",
				ProfileSecret: true,
			},
			newForm:  func() Form { return &AdminForm{} },
			decode:   decodeList[Person],
			defaults: map[string]string{"role": "admin"},
		}, true
	case TagManager:
		return Descriptor{
			Tag:         tag,
			DisplayName: "manager",
			Title:       "Managers",
			Columns:     personColumns,
			Template:    "forms/manager.html",
			Endpoints: Endpoints{
				List:          "/manager/all",
				Create:        "/auth/signup",
				Update:        "/manager/update/{id}",
				Delete:        "/manager/delete/{id}",
				ProfileSecret: true,
			},
			newForm: func() Form { return &ManagerForm{} },
			decode:  decodeList[Person],
		}, true
	case TagUser:
		return Descriptor{
			Tag:         tag,
			DisplayName: "collaborator",
			Title:       "Collaborators",
			Columns:     personColumns,
			Template:    "forms/user.html",
			Endpoints: Endpoints{
				List:   "/users/all",
				Create: "/users/save",
				Update: "/users/update/{id}",
				Delete: "/users/delete/{id}",
			},
			newForm: func() Form { return &UserForm{} },
			decode:  decodeList[Person],
		}, true
	case TagDepartment:
		return Descriptor{
			Tag:         tag,
			DisplayName: "department",
			Title:       "Departments",
			Columns:     []string{"Code", "Name"},
			Template:    "forms/department.html",
			Endpoints: Endpoints{
				List:          "/departments/all",
				Create:        "/departments/save",
				Update:        "/departments/update/{id}",
				Delete:        "/departments/delete/{id}",
				ProfileSecret: true,
			},
			newForm: func() Form { return &DepartmentForm{} },
			decode:  decodeList[Department],
		}, true
	case TagPointeuse:
		return Descriptor{
			Tag:         tag,
			DisplayName: "pointeuse",
			Title:       "Pointeuses",
			Columns:     []string{"Code", "Name", "Description", "Type"},
			Template:    "forms/pointeuse.html",
			Endpoints: Endpoints{
				List:   "/badgeuse/all",
				Create: "/badgeuse/save",
				Update: "/badgeuse/update/{id}",
				Delete: "/badgeuse/delete/{id}",
			},
			newForm:  func() Form { return &PointeuseForm{} },
			decode:   decodeList[Pointeuse],
			defaults: map[string]string{"badgeuseType": "IN"},
		}, true
	case TagPointage:
		return Descriptor{
			Tag:         tag,
			DisplayName: "pointage",
			Title:       "Pointages",
			Columns:     []string{"Matricule", "Date", "Time", "Pointeuse", "Type"},
			Template:    "forms/pointage.html",
			Endpoints: Endpoints{
				List:   "/pointage/all",
				Create: "/pointage/save",
				Update: "/pointage/update/{id}",
				Delete: "/pointage/delete/{id}",
			},
			newForm:  func() Form { return &PointageForm{} },
			decode:   decodeList[Pointage],
			defaults: map[string]string{"pointeuseId": "1", "type": "IN"},
		}, true
	case TagUnknown:
	}
	return Descriptor{}, false
}
