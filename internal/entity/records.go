package entity

import (
	"encoding/json"
	"strconv"
)

// Record is a row returned by a list endpoint.
type Record interface {
	RecordID() string
	Cells() []string
	// Fields returns the initial form values for an update dialog.
	Fields() map[string]string
}

// DepartmentRef is the nested department carried by person records.
type DepartmentRef struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// Person is an administrator, manager or collaborator account.
type Person struct {
	ID         int64         `json:"id"`
	Username   string        `json:"username"`
	Email      string        `json:"email"`
	Matricule  string        `json:"matricule"`
	FirstName  string        `json:"firstName"`
	LastName   string        `json:"lastName"`
	Phone      string        `json:"phone"`
	Address    string        `json:"address"`
	Department DepartmentRef `json:"department"`
	Manager    string        `json:"manager"`
	Role       string        `json:"role,omitempty"`
}

func (p Person) RecordID() string { return strconv.FormatInt(p.ID, 10) }

func (p Person) Cells() []string {
	return []string{p.Matricule, p.FirstName + " " + p.LastName, p.Username, p.Email, p.Phone, p.Department.Code}
}

func (p Person) Fields() map[string]string {
	return map[string]string{
		"username":       p.Username,
		"email":          p.Email,
		"matricule":      p.Matricule,
		"firstName":      p.FirstName,
		"lastName":       p.LastName,
		"phone":          p.Phone,
		"address":        p.Address,
		"departmentCode": p.Department.Code,
		"manager":        p.Manager,
		"role":           p.Role,
	}
}

// Department is an organisational unit.
type Department struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

func (d Department) RecordID() string { return strconv.FormatInt(d.ID, 10) }

func (d Department) Cells() []string { return []string{d.Code, d.Name} }

func (d Department) Fields() map[string]string {
	return map[string]string{"code": d.Code, "name": d.Name}
}

// Pointeuse is a time-clock device.
type Pointeuse struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	BadgeuseType string `json:"badgeuseType"`
}

func (p Pointeuse) RecordID() string { return strconv.FormatInt(p.ID, 10) }

func (p Pointeuse) Cells() []string {
	return []string{p.Code, p.Name, p.Description, p.BadgeuseType}
}

func (p Pointeuse) Fields() map[string]string {
	return map[string]string{
		"code":         p.Code,
		"name":         p.Name,
		"description":  p.Description,
		"badgeuseType": p.BadgeuseType,
	}
}

// Pointage is a single clock-in or clock-out punch.
type Pointage struct {
	ID          int64  `json:"id"`
	Matricule   string `json:"matricule"`
	Date        string `json:"date"`
	Heure       string `json:"heure"`
	PointeuseID int64  `json:"pointeuseId"`
	Type        string `json:"type"`
}

func (p Pointage) RecordID() string { return strconv.FormatInt(p.ID, 10) }

func (p Pointage) Cells() []string {
	return []string{p.Matricule, p.Date, p.Heure, strconv.FormatInt(p.PointeuseID, 10), p.Type}
}

func (p Pointage) Fields() map[string]string {
	return map[string]string{
		"matricule":   p.Matricule,
		"date":        p.Date,
		"heure":       p.Heure,
		"pointeuseId": strconv.FormatInt(p.PointeuseID, 10),
		"type":        p.Type,
	}
}

// PointageDetail is one day of the weekly attendance breakdown.
type PointageDetail struct {
	Date        string `json:"date"`
	HeureEntree string `json:"heureEntree"`
	HeureSortie string `json:"heureSortie"`
	Duree       string `json:"duree"`
}

func decodeList[T Record](raw []byte) ([]Record, error) {
	var rows []T
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out, nil
}

// FindRecord returns the record whose id matches.
func FindRecord(rows []Record, id string) (Record, bool) {
	for _, row := range rows {
		if row.RecordID() == id {
			return row, true
		}
	}
	return nil, false
}
