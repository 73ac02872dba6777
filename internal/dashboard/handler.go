// Package dashboard serves the landing page of each role.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/pointage-admin/pointage-admin/internal/attendance"
	"github.com/pointage-admin/pointage-admin/internal/audit"
	"github.com/pointage-admin/pointage-admin/internal/auth"
	"github.com/pointage-admin/pointage-admin/internal/backend"
	"github.com/pointage-admin/pointage-admin/internal/entity"
	"github.com/pointage-admin/pointage-admin/internal/rbac"
	"github.com/pointage-admin/pointage-admin/internal/shared"
)

// API is the backend surface used by dashboards.
type API interface {
	List(ctx context.Context, token string, d entity.Descriptor) ([]entity.Record, error)
	attendance.DetailsAPI
}

// Identity is the read side of the session store.
type Identity interface {
	Token(sess *shared.Session) string
	Identity(sess *shared.Session) auth.Identity
	HandleBackendError(w http.ResponseWriter, r *http.Request, err error) bool
}

// RecentAudit lists the latest recorded changes.
type RecentAudit interface {
	Recent(ctx context.Context, limit int) ([]audit.Entry, error)
}

// Pages renders full HTML pages.
type Pages interface {
	Render(w http.ResponseWriter, r *http.Request, tpl, title string, data any, status int)
}

// Config collects the dependencies of Handler.
type Config struct {
	Registry *entity.Registry
	API      API
	Identity Identity
	Guard    rbac.Guard
	Pages    Pages
	// Recent is optional; without it the admin dashboard has no change feed.
	Recent RecentAudit
	Now    func() time.Time
	Logger *slog.Logger
}

// Handler serves /admin, /manager and /user.
type Handler struct {
	cfg    Config
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cfg: cfg, logger: logger}
}

// MountRoutes registers the three dashboards.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.cfg.Guard.Require(rbac.RouteAdminDashboard)).Get(string(rbac.RouteAdminDashboard), h.admin)
	r.With(h.cfg.Guard.Require(rbac.RouteManagerHome)).Get(string(rbac.RouteManagerHome), h.manager)
	r.With(h.cfg.Guard.Require(rbac.RouteUserHome)).Get(string(rbac.RouteUserHome), h.user)
}

// Counter is one record count tile.
type Counter struct {
	Label  string
	Href   string
	Count  int
	Failed bool
}

type countersPage struct {
	Counters []Counter
	Recent   []audit.Entry
	Error    string
}

type userPage struct {
	Profile    auth.Identity
	Attendance attendance.Week
	Error      string
}

const recentLimit = 10

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) {
	tags := []entity.Tag{entity.TagAdmin, entity.TagManager, entity.TagUser, entity.TagDepartment, entity.TagPointeuse, entity.TagPointage}
	data, err := h.counters(r.Context(), shared.SessionFromContext(r.Context()), tags)
	if err != nil && h.cfg.Identity.HandleBackendError(w, r, err) {
		return
	}
	if h.cfg.Recent != nil {
		recent, recentErr := h.cfg.Recent.Recent(r.Context(), recentLimit)
		if recentErr != nil {
			h.logger.Warn("load recent audit entries", slog.Any("error", recentErr))
		}
		data.Recent = recent
	}
	h.cfg.Pages.Render(w, r, "pages/dashboard_admin.html", "Dashboard", data, http.StatusOK)
}

func (h *Handler) manager(w http.ResponseWriter, r *http.Request) {
	tags := []entity.Tag{entity.TagUser, entity.TagPointage}
	data, err := h.counters(r.Context(), shared.SessionFromContext(r.Context()), tags)
	if err != nil && h.cfg.Identity.HandleBackendError(w, r, err) {
		return
	}
	h.cfg.Pages.Render(w, r, "pages/dashboard_manager.html", "Dashboard", data, http.StatusOK)
}

// user shows the profile card and this week's punches. The matricule of a
// standard account is its username.
func (h *Handler) user(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	identity := h.cfg.Identity.Identity(sess)
	year, week := attendance.ISOWeek(h.cfg.Now())

	data := userPage{Profile: identity}
	loaded, err := attendance.Load(r.Context(), h.cfg.API, h.cfg.Identity.Token(sess), identity.Username, year, week)
	data.Attendance = loaded
	if err != nil {
		if h.cfg.Identity.HandleBackendError(w, r, err) {
			return
		}
		h.logger.Warn("current week attendance", slog.String("username", identity.Username), slog.Any("error", err))
		data.Error = backend.UserMessage(err)
	}
	h.cfg.Pages.Render(w, r, "pages/dashboard_user.html", "My week", data, http.StatusOK)
}

// counters fetches every list concurrently. A rejected token cancels the
// remaining calls and is returned; other failures only mark their tile.
func (h *Handler) counters(ctx context.Context, sess *shared.Session, tags []entity.Tag) (countersPage, error) {
	token := h.cfg.Identity.Token(sess)
	out := make([]Counter, len(tags))
	g, gctx := errgroup.WithContext(ctx)
	for i, tag := range tags {
		d, ok := h.cfg.Registry.Lookup(tag)
		if !ok {
			continue
		}
		out[i] = Counter{Label: d.Title, Href: string(rbac.ListRoute(tag))}
		g.Go(func() error {
			rows, err := h.cfg.API.List(gctx, token, d)
			if err != nil {
				out[i].Failed = true
				if errors.Is(err, backend.ErrUnauthorized) {
					return err
				}
				h.logger.Warn("dashboard counter", slog.String("entity", tag.String()), slog.Any("error", err))
				return nil
			}
			out[i].Count = len(rows)
			return nil
		})
	}
	err := g.Wait()
	data := countersPage{Counters: out}
	for _, c := range out {
		if c.Failed {
			data.Error = "Some figures could not be loaded."
			break
		}
	}
	return data, err
}
