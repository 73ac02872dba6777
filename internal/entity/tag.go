package entity

import "strings"

// Tag identifies the record kind a list page or modal operates on.
type Tag int

const (
	// TagUnknown is any tag not known to this build, e.g. a server-driven kind.
	TagUnknown Tag = iota
	TagAdmin
	TagManager
	TagUser
	TagDepartment
	TagPointeuse
	TagPointage
)

// AllTags lists every known tag in menu order.
func AllTags() []Tag {
	return []Tag{TagAdmin, TagManager, TagUser, TagDepartment, TagPointeuse, TagPointage}
}

// String returns the canonical lower-case tag name.
func (t Tag) String() string {
	switch t {
	case TagAdmin:
		return "admin"
	case TagManager:
		return "manager"
	case TagUser:
		return "user"
	case TagDepartment:
		return "department"
	case TagPointeuse:
		return "pointeuse"
	case TagPointage:
		return "pointage"
	}
	return "unknown"
}

// Slug returns the path segment used under /list/.
func (t Tag) Slug() string {
	switch t {
	case TagAdmin:
		return "administrateurs"
	case TagManager:
		return "managers"
	case TagUser:
		return "users"
	case TagDepartment:
		return "departments"
	case TagPointeuse:
		return "pointeuses"
	case TagPointage:
		return "pointage"
	}
	return ""
}

// ParseTag maps a tag name, list slug or legacy alias to a Tag.
// Unrecognised input yields TagUnknown.
func ParseTag(raw string) Tag {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "administrateur", "administrateurs", "administrator":
		return TagAdmin
	case "manager", "managers":
		return TagManager
	case "user", "users", "collaborateur", "collaborateurs":
		return TagUser
	case "department", "departments", "departement":
		return TagDepartment
	case "pointeuse", "pointeuses", "badgeuse", "badgeuses":
		return TagPointeuse
	case "pointage", "pointages":
		return TagPointage
	}
	return TagUnknown
}

// Operation is the kind of change a modal performs.
type Operation string

const (
	OpView   Operation = "view"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ParseOperation validates an operation name.
func ParseOperation(raw string) (Operation, bool) {
	switch op := Operation(strings.ToLower(strings.TrimSpace(raw))); op {
	case OpView, OpCreate, OpUpdate, OpDelete:
		return op, true
	}
	return "", false
}
