package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/pointage-admin/pointage-admin/internal/backend"
	"github.com/pointage-admin/pointage-admin/internal/rbac"
	"github.com/pointage-admin/pointage-admin/internal/shared"
)

// Session keys written by Store only.
const (
	keyToken    = "auth.token"
	keyUsername = "auth.username"
	keyEmail    = "auth.email"
	keyRoles    = "auth.roles"
)

var (
	// ErrInvalidCredentials indicates the API refused the credentials.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrNoRecognisedRole indicates a successful sign-in without any dashboard role.
	ErrNoRecognisedRole = errors.New("auth: no recognised role")
)

// SignInClient is the part of the API client the store needs.
type SignInClient interface {
	SignIn(ctx context.Context, username, password string) (backend.SignInResponse, error)
}

// Credentials are the login form values.
type Credentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Identity is the authenticated user as seen by the dashboard.
type Identity struct {
	UserID   string
	Username string
	Email    string
	Roles    rbac.Set
}

// Store owns the identity fields of the session. Every other package reads
// them through Store and never writes them.
type Store struct {
	sessions *shared.SessionManager
	client   SignInClient
	logger   *slog.Logger
}

// NewStore constructs a Store.
func NewStore(sessions *shared.SessionManager, client SignInClient, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{sessions: sessions, client: client, logger: logger}
}

// IsAuthenticated reports whether sess carries a token and at least one known role.
func (s *Store) IsAuthenticated(sess *shared.Session) bool {
	if sess == nil {
		return false
	}
	return sess.Get(keyToken) != "" && !s.Roles(sess).Empty()
}

// Roles returns the normalised role set of sess.
func (s *Store) Roles(sess *shared.Session) rbac.Set {
	if sess == nil {
		return rbac.Set{}
	}
	raw := sess.Get(keyRoles)
	if raw == "" {
		return rbac.Set{}
	}
	return rbac.ParseRoles(strings.Split(raw, ",")...)
}

// Token returns the bearer token of sess.
func (s *Store) Token(sess *shared.Session) string {
	if sess == nil {
		return ""
	}
	return sess.Get(keyToken)
}

// DisplayName is the name shown in the layout header.
func (s *Store) DisplayName(sess *shared.Session) string {
	id := s.Identity(sess)
	if id.Username != "" {
		return id.Username
	}
	return id.Email
}

// Identity returns the user stored in sess.
func (s *Store) Identity(sess *shared.Session) Identity {
	if sess == nil {
		return Identity{}
	}
	return Identity{
		UserID:   sess.User(),
		Username: sess.Get(keyUsername),
		Email:    sess.Get(keyEmail),
		Roles:    s.Roles(sess),
	}
}

// Login authenticates against the API and persists the identity in sess.
// The session id is rotated, which also drops the previous CSRF token.
func (s *Store) Login(ctx context.Context, sess *shared.Session, creds Credentials) (Identity, error) {
	if sess == nil {
		return Identity{}, errors.New("auth: session missing")
	}
	resp, err := s.client.SignIn(ctx, strings.TrimSpace(creds.Username), creds.Password)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}
	if resp.AccessToken == "" {
		return Identity{}, fmt.Errorf("auth: sign-in for %q returned no token", creds.Username)
	}
	roles := rbac.ParseRoles(resp.Roles...)
	if roles.Empty() {
		s.logger.Warn("sign-in without dashboard role", slog.String("username", resp.Username), slog.Any("roles", resp.Roles))
		return Identity{}, ErrNoRecognisedRole
	}

	s.sessions.Renew(sess)
	sess.Set(keyToken, resp.AccessToken)
	sess.Set(keyUsername, resp.Username)
	sess.Set(keyEmail, resp.Email)
	sess.Set(keyRoles, roles.String())
	sess.SetUser(strconv.FormatInt(resp.ID, 10))

	s.logger.Info("user signed in", slog.String("username", resp.Username), slog.String("roles", roles.String()))
	return s.Identity(sess), nil
}

// Logout clears every identity field and retires the session id. It is safe
// to call on a nil, anonymous or already cleared session.
func (s *Store) Logout(sess *shared.Session) {
	if sess == nil {
		return
	}
	for _, key := range []string{keyToken, keyUsername, keyEmail, keyRoles} {
		if sess.Get(key) != "" {
			sess.Delete(key)
		}
	}
	s.sessions.Renew(sess)
}

// HandleBackendError logs the session out when err reports a rejected token
// and redirects to the login page. It reports whether it wrote a response.
func (s *Store) HandleBackendError(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, backend.ErrUnauthorized) {
		return false
	}
	sess := shared.SessionFromContext(r.Context())
	s.logger.Info("backend rejected session token", slog.String("username", s.Identity(sess).Username), slog.String("path", r.URL.Path))
	s.Logout(sess)
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: "Your session has expired. Please sign in again."})
	}
	http.Redirect(w, r, string(rbac.RouteLogin), http.StatusSeeOther)
	return true
}
