package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pointage-admin/pointage-admin/internal/entity"
	"github.com/pointage-admin/pointage-admin/internal/platform/httpx"
)

// PermissionsHandler reports the effective permissions of the current session.
type PermissionsHandler struct {
	guard Guard
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(guard Guard) *PermissionsHandler {
	return &PermissionsHandler{guard: guard}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAuthenticated).Get("/", h.listPermissions)
}

type permissionsResponse struct {
	Roles    []string            `json:"roles"`
	Landing  string              `json:"landing"`
	Entities map[string][]string `json:"entities"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	roles, _ := h.guard.roles(r)
	resp := permissionsResponse{
		Roles:    roles.Strings(),
		Landing:  string(Landing(roles)),
		Entities: make(map[string][]string),
	}
	for _, tag := range entity.AllTags() {
		ops := Operations(roles, tag)
		if len(ops) == 0 {
			continue
		}
		names := make([]string, len(ops))
		for i, op := range ops {
			names[i] = string(op)
		}
		resp.Entities[tag.String()] = names
	}
	httpx.JSON(w, http.StatusOK, resp)
}
