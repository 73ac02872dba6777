package rbac

import (
	"sort"
	"strings"
)

// Role is a canonical role tag as issued by the authentication service.
type Role string

const (
	RoleAdmin     Role = "ROLE_ADMIN"
	RoleModerator Role = "ROLE_MODERATOR"
	RoleUser      Role = "ROLE_USER"
)

// ParseRole normalises a role tag. Legacy short forms are accepted; anything
// else is rejected.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ROLE_ADMIN", "ADMIN":
		return RoleAdmin, true
	case "ROLE_MODERATOR", "ROLE_MOD", "MODERATOR", "MOD":
		return RoleModerator, true
	case "ROLE_USER", "USER":
		return RoleUser, true
	}
	return "", false
}

// Set is a normalised, duplicate-free set of roles. The zero value is empty.
type Set struct {
	roles []Role
}

// NewSet builds a set from already canonical roles.
func NewSet(roles ...Role) Set {
	var s Set
	for _, role := range roles {
		s = s.with(role)
	}
	return s
}

// ParseRoles normalises raw role tags, dropping unknown ones.
func ParseRoles(raw ...string) Set {
	var s Set
	for _, value := range raw {
		if role, ok := ParseRole(value); ok {
			s = s.with(role)
		}
	}
	return s
}

func (s Set) with(role Role) Set {
	if s.Has(role) {
		return s
	}
	roles := append(append([]Role(nil), s.roles...), role)
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return Set{roles: roles}
}

// Has reports whether role is in the set.
func (s Set) Has(role Role) bool {
	for _, r := range s.roles {
		if r == role {
			return true
		}
	}
	return false
}

// Empty reports whether the set has no recognised role.
func (s Set) Empty() bool { return len(s.roles) == 0 }

// Roles returns a copy of the roles in the set.
func (s Set) Roles() []Role { return append([]Role(nil), s.roles...) }

// Strings returns the role tags, suitable for storage.
func (s Set) Strings() []string {
	out := make([]string, len(s.roles))
	for i, r := range s.roles {
		out[i] = string(r)
	}
	return out
}

func (s Set) String() string { return strings.Join(s.Strings(), ",") }
