package view

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/pointage-admin/pointage-admin/internal/navigation"
	"github.com/pointage-admin/pointage-admin/internal/rbac"
	"github.com/pointage-admin/pointage-admin/internal/shared"
)

// Chrome supplies the per-user parts of the layout.
type Chrome interface {
	Roles(sess *shared.Session) rbac.Set
	DisplayName(sess *shared.Session) string
}

// Renderer renders full pages inside the authenticated layout.
type Renderer struct {
	engine *Engine
	csrf   *shared.CSRFManager
	chrome Chrome
	logger *slog.Logger
}

// NewRenderer constructs a Renderer.
func NewRenderer(engine *Engine, csrf *shared.CSRFManager, chrome Chrome, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{engine: engine, csrf: csrf, chrome: chrome, logger: logger}
}

// Render writes the page named tpl with status. The menu is rebuilt from the
// session roles on every call.
func (p *Renderer) Render(w http.ResponseWriter, r *http.Request, tpl, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	var token string
	if p.csrf != nil {
		token, _ = p.csrf.EnsureToken(r.Context(), sess)
	}
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	td := TemplateData{
		Title:       title,
		CSRFToken:   token,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if p.chrome != nil {
		td.Username = p.chrome.DisplayName(sess)
		td.Menu = navigation.MarkActive(navigation.BuildMenu(p.chrome.Roles(sess)), r.URL.Path)
	}

	var buf bytes.Buffer
	if err := p.engine.templates.ExecuteTemplate(&buf, tpl, td); err != nil {
		p.logger.Error("render page", slog.String("template", tpl), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error renders the error page with message.
func (p *Renderer) Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	p.Render(w, r, "pages/error.html", http.StatusText(status), map[string]any{"Message": message}, status)
}
