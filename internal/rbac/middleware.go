package rbac

import (
	"log/slog"
	"net/http"

	"github.com/pointage-admin/pointage-admin/internal/entity"
	"github.com/pointage-admin/pointage-admin/internal/shared"
)

// RoleSource exposes the authentication state of a session.
type RoleSource interface {
	IsAuthenticated(sess *shared.Session) bool
	Roles(sess *shared.Session) Set
}

// Guard wires role checks in front of HTTP handlers. Checks run on every
// request; nothing is cached between requests.
type Guard struct {
	Source RoleSource
	Logger *slog.Logger
}

// Require lets the request through when the session may open route.
// Anonymous sessions go to the login page, others to their landing page.
func (g Guard) Require(route Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles, ok := g.roles(r)
			if !ok {
				http.Redirect(w, r, string(RouteLogin), http.StatusSeeOther)
				return
			}
			if !CanAccessRoute(roles, route) {
				g.deny(w, r, roles, string(route), Landing(roles))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOperation lets the request through when the session may run op on
// tag. Denied sessions fall back to the list page when they can see it.
func (g Guard) RequireOperation(tag entity.Tag, op entity.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles, ok := g.roles(r)
			if !ok {
				http.Redirect(w, r, string(RouteLogin), http.StatusSeeOther)
				return
			}
			if !CanPerform(roles, tag, op) {
				target := Landing(roles)
				if list := ListRoute(tag); list != "" && CanAccessRoute(roles, list) {
					target = list
				}
				g.deny(w, r, roles, tag.String()+":"+string(op), target)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated only checks that a usable session exists.
func (g Guard) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := g.roles(r); !ok {
			http.Redirect(w, r, string(RouteLogin), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g Guard) roles(r *http.Request) (Set, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || g.Source == nil || !g.Source.IsAuthenticated(sess) {
		return Set{}, false
	}
	return g.Source.Roles(sess), true
}

func (g Guard) deny(w http.ResponseWriter, r *http.Request, roles Set, what string, target Route) {
	if g.Logger != nil {
		g.Logger.Debug("rbac denied", slog.String("target", what), slog.String("roles", roles.String()), slog.String("redirect", string(target)))
	}
	http.Redirect(w, r, string(target), http.StatusSeeOther)
}
