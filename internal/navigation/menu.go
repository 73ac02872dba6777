// Package navigation composes the sidebar menu and the per-page action
// controls from the role policy.
package navigation

import (
	"strings"

	"github.com/pointage-admin/pointage-admin/internal/entity"
	"github.com/pointage-admin/pointage-admin/internal/rbac"
)

// LogoutPath is the form target of the logout action.
const LogoutPath = "/logout"

// Item is one rendered menu entry. Action items are submitted as a POST form
// instead of followed as links.
type Item struct {
	Icon   string `json:"icon"`
	Label  string `json:"label"`
	Href   string `json:"href"`
	Action bool   `json:"action,omitempty"`
	Active bool   `json:"active,omitempty"`
}

type entry struct {
	icon    string
	label   string
	href    func(rbac.Set) string
	visible func(rbac.Set) bool
	action  bool
}

func fixed(route rbac.Route) func(rbac.Set) string {
	return func(rbac.Set) string { return string(route) }
}

func routeVisible(route rbac.Route) func(rbac.Set) bool {
	return func(roles rbac.Set) bool { return rbac.CanAccessRoute(roles, route) }
}

// items is the declarative menu table. Order is the render order.
var items = []entry{
	{
		icon:    "home",
		label:   "Dashboard",
		href:    func(roles rbac.Set) string { return string(rbac.Landing(roles)) },
		visible: func(roles rbac.Set) bool { return !roles.Empty() },
	},
	{icon: "shield", label: "Administrators", href: fixed(rbac.RouteAdmins), visible: routeVisible(rbac.RouteAdmins)},
	{icon: "briefcase", label: "Managers", href: fixed(rbac.RouteManagers), visible: routeVisible(rbac.RouteManagers)},
	{icon: "users", label: "Collaborators", href: fixed(rbac.RouteUsers), visible: routeVisible(rbac.RouteUsers)},
	{icon: "building", label: "Departments", href: fixed(rbac.RouteDepartments), visible: routeVisible(rbac.RouteDepartments)},
	{icon: "cpu", label: "Pointeuses", href: fixed(rbac.RoutePointeuses), visible: routeVisible(rbac.RoutePointeuses)},
	{icon: "clock", label: "Pointages", href: fixed(rbac.RoutePointages), visible: routeVisible(rbac.RoutePointages)},
	{
		icon:    "log-out",
		label:   "Logout",
		href:    fixed(LogoutPath),
		visible: func(rbac.Set) bool { return true },
		action:  true,
	},
}

// BuildMenu returns the menu visible to roles, in declaration order.
func BuildMenu(roles rbac.Set) []Item {
	out := make([]Item, 0, len(items))
	for _, e := range items {
		if !e.visible(roles) {
			continue
		}
		out = append(out, Item{Icon: e.icon, Label: e.label, Href: e.href(roles), Action: e.action})
	}
	return out
}

// MarkActive flags the link whose href prefixes path. The longest match wins.
func MarkActive(menu []Item, path string) []Item {
	best := -1
	for i, item := range menu {
		if item.Action {
			continue
		}
		if path == item.Href || strings.HasPrefix(path, item.Href+"/") {
			if best < 0 || len(item.Href) > len(menu[best].Href) {
				best = i
			}
		}
	}
	if best >= 0 {
		menu[best].Active = true
	}
	return menu
}

// ActionSet is the visibility of the action controls on a list page.
type ActionSet struct {
	Create  bool
	Update  bool
	Delete  bool
	Details bool
}

// Any reports whether a per-row action column is needed.
func (a ActionSet) Any() bool { return a.Update || a.Delete || a.Details }

// Actions returns which buttons roles may see on the list page of tag.
func Actions(roles rbac.Set, tag entity.Tag) ActionSet {
	return ActionSet{
		Create:  rbac.CanPerform(roles, tag, entity.OpCreate),
		Update:  rbac.CanPerform(roles, tag, entity.OpUpdate),
		Delete:  rbac.CanPerform(roles, tag, entity.OpDelete),
		Details: tag == entity.TagPointage && rbac.CanAccessRoute(roles, rbac.RoutePointageDetails),
	}
}
