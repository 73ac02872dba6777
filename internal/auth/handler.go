package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pointage-admin/pointage-admin/internal/backend"
	"github.com/pointage-admin/pointage-admin/internal/rbac"
	"github.com/pointage-admin/pointage-admin/internal/shared"
	"github.com/pointage-admin/pointage-admin/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger      *slog.Logger
	store       *Store
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, store *Store, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		store:       store,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/", h.home)
}

type loginPageData struct {
	Username string
	Errors   map[string]string
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if !h.store.IsAuthenticated(sess) {
		http.Redirect(w, r, string(rbac.RouteLogin), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, string(rbac.Landing(h.store.Roles(sess))), http.StatusSeeOther)
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if h.store.IsAuthenticated(sess) {
		http.Redirect(w, r, string(rbac.Landing(h.store.Roles(sess))), http.StatusSeeOther)
		return
	}
	h.render(w, r, loginPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	creds := Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(creds); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				switch fieldErr.Field() {
				case "Username":
					errs["username"] = "Username is required"
				case "Password":
					errs["password"] = "Password is required"
				}
			}
		}
	}

	if len(errs) == 0 {
		identity, err := h.store.Login(r.Context(), sess, creds)
		if err == nil {
			sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + identity.Username})
			http.Redirect(w, r, string(rbac.Landing(identity.Roles)), http.StatusSeeOther)
			return
		}
		h.logger.Warn("login failed", slog.String("username", creds.Username), slog.Any("error", err))
		errs["general"] = LoginErrorMessage(err)
	}

	h.render(w, r, loginPageData{Username: creds.Username, Errors: errs}, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.store.Logout(shared.SessionFromContext(r.Context()))
	http.Redirect(w, r, string(rbac.RouteLogin), http.StatusSeeOther)
}

// LoginErrorMessage maps a Login error to the text shown on the login page.
func LoginErrorMessage(err error) string {
	var serverErr *backend.ServerError
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.Is(err, ErrNoRecognisedRole):
		return "Your account has no access to this dashboard."
	case errors.Is(err, backend.ErrNetworkUnavailable):
		return "The server is unreachable. Please try again later."
	case errors.As(err, &serverErr) && serverErr.Message != "":
		return serverErr.Message
	}
	return "Sign-in failed. Please try again."
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data loginPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}
