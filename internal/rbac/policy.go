package rbac

import "github.com/pointage-admin/pointage-admin/internal/entity"

// Route identifies a guarded page.
type Route string

const (
	RouteLogin           Route = "/login"
	RouteAdminDashboard  Route = "/admin"
	RouteManagerHome     Route = "/manager"
	RouteUserHome        Route = "/user"
	RouteAdmins          Route = "/list/administrateurs"
	RouteManagers        Route = "/list/managers"
	RouteUsers           Route = "/list/users"
	RouteDepartments     Route = "/list/departments"
	RoutePointeuses      Route = "/list/pointeuses"
	RoutePointages       Route = "/list/pointage"
	RoutePointageDetails Route = "/list/pointage/details"
)

// ListRoute returns the list page of tag.
func ListRoute(tag entity.Tag) Route {
	if slug := tag.Slug(); slug != "" {
		return Route("/list/" + slug)
	}
	return ""
}

type grant struct {
	routes []Route
	ops    map[entity.Tag][]entity.Operation
}

var allOps = []entity.Operation{entity.OpView, entity.OpCreate, entity.OpUpdate, entity.OpDelete}

// policy is the one table consulted by guards, menus and action buttons.
var policy = map[Role]grant{
	RoleAdmin: {
		routes: []Route{
			RouteAdminDashboard, RouteAdmins, RouteManagers, RouteUsers,
			RouteDepartments, RoutePointeuses, RoutePointages, RoutePointageDetails,
		},
		ops: map[entity.Tag][]entity.Operation{
			entity.TagAdmin:      allOps,
			entity.TagManager:    allOps,
			entity.TagUser:       allOps,
			entity.TagDepartment: allOps,
			entity.TagPointeuse:  allOps,
			entity.TagPointage:   allOps,
		},
	},
	RoleModerator: {
		routes: []Route{RouteManagerHome, RouteUsers, RoutePointages, RoutePointageDetails},
		ops: map[entity.Tag][]entity.Operation{
			entity.TagUser:     {entity.OpView, entity.OpDelete},
			entity.TagPointage: allOps,
		},
	},
	RoleUser: {
		routes: []Route{RouteUserHome},
	},
}

// landingOrder is the priority used when a set holds several roles.
var landingOrder = []struct {
	role  Role
	route Route
}{
	{RoleAdmin, RouteAdminDashboard},
	{RoleModerator, RouteManagerHome},
	{RoleUser, RouteUserHome},
}

// CanAccessRoute reports whether any role in the set may open route.
func CanAccessRoute(roles Set, route Route) bool {
	for _, role := range roles.roles {
		for _, allowed := range policy[role].routes {
			if allowed == route {
				return true
			}
		}
	}
	return false
}

// CanPerform reports whether any role in the set may run op on tag.
func CanPerform(roles Set, tag entity.Tag, op entity.Operation) bool {
	for _, role := range roles.roles {
		for _, allowed := range policy[role].ops[tag] {
			if allowed == op {
				return true
			}
		}
	}
	return false
}

// Operations lists the operations the set may run on tag, in canonical order.
func Operations(roles Set, tag entity.Tag) []entity.Operation {
	var out []entity.Operation
	for _, op := range allOps {
		if CanPerform(roles, tag, op) {
			out = append(out, op)
		}
	}
	return out
}

// Landing returns the home route of the set. Empty sets land on the login page.
func Landing(roles Set) Route {
	for _, entry := range landingOrder {
		if roles.Has(entry.role) {
			return entry.route
		}
	}
	return RouteLogin
}
