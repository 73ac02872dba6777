package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pointage-admin/pointage-admin/internal/attendance"
	"github.com/pointage-admin/pointage-admin/internal/auth"
	"github.com/pointage-admin/pointage-admin/internal/dashboard"
	"github.com/pointage-admin/pointage-admin/internal/listing"
	"github.com/pointage-admin/pointage-admin/internal/navigation"
	"github.com/pointage-admin/pointage-admin/internal/observability"
	"github.com/pointage-admin/pointage-admin/internal/rbac"
	"github.com/pointage-admin/pointage-admin/internal/shared"
	"github.com/pointage-admin/pointage-admin/jobs"
	"github.com/pointage-admin/pointage-admin/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	AuthHandler        *auth.Handler
	ListingHandler     *listing.Handler
	DashboardHandler   *dashboard.Handler
	AttendanceHandler  *attendance.Handler
	MenuHandler        *navigation.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with the dashboard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		// Static files skip the session, CSRF and rate limiting.
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		if params.Config == nil || !params.Config.IsProduction() {
			r.Use(chimw.Logger)
		}

		params.AuthHandler.MountRoutes(r)
		if params.DashboardHandler != nil {
			params.DashboardHandler.MountRoutes(r)
		}
		if params.ListingHandler != nil {
			params.ListingHandler.MountRoutes(r)
		}
		if params.AttendanceHandler != nil {
			params.AttendanceHandler.MountRoutes(r)
		}
		if params.MenuHandler != nil {
			r.Route("/api/menu", params.MenuHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/api/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Static assets (JS, CSS) are cached for 1 hour in browser.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
