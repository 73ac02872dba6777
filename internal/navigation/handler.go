package navigation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pointage-admin/pointage-admin/internal/backend"
	"github.com/pointage-admin/pointage-admin/internal/platform/httpx"
	"github.com/pointage-admin/pointage-admin/internal/rbac"
	"github.com/pointage-admin/pointage-admin/internal/shared"
)

// Handler serves the menu of the current session as JSON.
type Handler struct {
	source rbac.RoleSource
}

// NewHandler builds the menu handler.
func NewHandler(source rbac.RoleSource) *Handler {
	return &Handler{source: source}
}

// MountRoutes registers the menu route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.menu)
}

type menuResponse struct {
	Items []Item `json:"items"`
}

// menu answers ?path=/list/users with that entry flagged active.
func (h *Handler) menu(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || h.source == nil || !h.source.IsAuthenticated(sess) {
		httpx.RespondError(w, backend.ErrUnauthorized)
		return
	}
	menu := MarkActive(BuildMenu(h.source.Roles(sess)), r.URL.Query().Get("path"))
	httpx.JSON(w, http.StatusOK, menuResponse{Items: menu})
}
