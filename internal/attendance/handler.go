package attendance

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pointage-admin/pointage-admin/internal/backend"
	"github.com/pointage-admin/pointage-admin/internal/rbac"
	"github.com/pointage-admin/pointage-admin/internal/shared"
)

// Identity is the read side of the session store.
type Identity interface {
	Token(sess *shared.Session) string
	HandleBackendError(w http.ResponseWriter, r *http.Request, err error) bool
}

// Pages renders full HTML pages.
type Pages interface {
	Render(w http.ResponseWriter, r *http.Request, tpl, title string, data any, status int)
}

// Handler serves the weekly details page.
type Handler struct {
	api      DetailsAPI
	identity Identity
	guard    rbac.Guard
	pages    Pages
	now      func() time.Time
	logger   *slog.Logger
}

// NewHandler constructs a Handler. now defaults to time.Now.
func NewHandler(api DetailsAPI, identity Identity, guard rbac.Guard, pages Pages, now func() time.Time, logger *slog.Logger) *Handler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{api: api, identity: identity, guard: guard, pages: pages, now: now, logger: logger}
}

// MountRoutes registers the details route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.Require(rbac.RoutePointageDetails)).Get(string(rbac.RoutePointageDetails), h.details)
}

type detailsPage struct {
	Attendance Week
	Error      string
	PrevHref   string
	NextHref   string
}

func (h *Handler) details(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, week := ISOWeek(h.now())
	if y, err := strconv.Atoi(q.Get("annee")); err == nil {
		if wk, err := strconv.Atoi(q.Get("semaine")); err == nil && ValidWeek(y, wk) {
			year, week = y, wk
		}
	}
	matricule := strings.TrimSpace(q.Get("matricule"))

	data := detailsPage{Attendance: Week{Matricule: matricule, Year: year, Week: week}}
	py, pw := Shift(year, week, -1)
	ny, nw := Shift(year, week, 1)
	data.PrevHref = detailsHref(matricule, py, pw)
	data.NextHref = detailsHref(matricule, ny, nw)

	status := http.StatusOK
	if matricule != "" {
		sess := shared.SessionFromContext(r.Context())
		loaded, err := Load(r.Context(), h.api, h.identity.Token(sess), matricule, year, week)
		if err != nil {
			if h.identity.HandleBackendError(w, r, err) {
				return
			}
			h.logger.Warn("pointage details failed", slog.String("matricule", matricule), slog.Any("error", err))
			data.Error = backend.UserMessage(err)
			status = http.StatusBadGateway
		}
		data.Attendance = loaded
	}
	h.pages.Render(w, r, "pages/details.html", "Weekly attendance", data, status)
}

func detailsHref(matricule string, year, week int) string {
	v := url.Values{}
	if matricule != "" {
		v.Set("matricule", matricule)
	}
	v.Set("annee", strconv.Itoa(year))
	v.Set("semaine", strconv.Itoa(week))
	return string(rbac.RoutePointageDetails) + "?" + v.Encode()
}
