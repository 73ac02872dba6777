package auth_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointage-admin/pointage-admin/internal/auth"
	"github.com/pointage-admin/pointage-admin/internal/backend"
	"github.com/pointage-admin/pointage-admin/internal/rbac"
	"github.com/pointage-admin/pointage-admin/internal/shared"
	_ "github.com/pointage-admin/pointage-admin/testing"
)

type stubSignIn struct {
	resp  backend.SignInResponse
	err   error
	calls int
}

func (s *stubSignIn) SignIn(_ context.Context, username, _ string) (backend.SignInResponse, error) {
	s.calls++
	if s.err != nil {
		return backend.SignInResponse{}, s.err
	}
	resp := s.resp
	if resp.Username == "" {
		resp.Username = username
	}
	return resp, nil
}

type fixture struct {
	mr       *miniredis.Miniredis
	sessions *shared.SessionManager
	client   *stubSignIn
	store    *auth.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessions := shared.NewSessionManager(redisClient, "pointage_session", "secret", time.Hour, false)
	client := &stubSignIn{}
	return &fixture{mr: mr, sessions: sessions, client: client, store: auth.NewStore(sessions, client, nil)}
}

func (f *fixture) session(t *testing.T) *shared.Session {
	t.Helper()
	sess, err := f.sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	return sess
}

func TestLoginModeratorLandsOnManagerDashboard(t *testing.T) {
	f := newFixture(t)
	f.client.resp = backend.SignInResponse{ID: 12, Email: "fouad.madani@example.com", Roles: []string{"ROLE_MODERATOR"}, AccessToken: "jwt-12"}
	sess := f.session(t)

	identity, err := f.store.Login(context.Background(), sess, auth.Credentials{Username: "fouad.madani", Password: "secret"})
	require.NoError(t, err)

	assert.Equal(t, "fouad.madani", identity.Username)
	assert.Equal(t, "12", identity.UserID)
	assert.True(t, f.store.IsAuthenticated(sess))
	assert.Equal(t, "jwt-12", f.store.Token(sess))
	assert.Equal(t, rbac.RouteManagerHome, rbac.Landing(f.store.Roles(sess)))
}

func TestLoginNormalisesLegacyRoles(t *testing.T) {
	f := newFixture(t)
	f.client.resp = backend.SignInResponse{ID: 1, Roles: []string{"admin", "ROLE_SUPERVISOR"}, AccessToken: "jwt"}
	sess := f.session(t)

	identity, err := f.store.Login(context.Background(), sess, auth.Credentials{Username: "root", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.RoleAdmin}, identity.Roles.Roles())
}

func TestLoginFailures(t *testing.T) {
	cases := []struct {
		name    string
		resp    backend.SignInResponse
		err     error
		want    error
		message string
	}{
		{name: "bad credentials", err: fmt.Errorf("signin: %w", backend.ErrUnauthorized), want: auth.ErrInvalidCredentials, message: "Invalid username or password."},
		{name: "unreachable", err: fmt.Errorf("%w: dial tcp", backend.ErrNetworkUnavailable), want: backend.ErrNetworkUnavailable, message: "The server is unreachable. Please try again later."},
		{name: "no dashboard role", resp: backend.SignInResponse{AccessToken: "jwt", Roles: []string{"ROLE_GUEST"}}, want: auth.ErrNoRecognisedRole, message: "Your account has no access to this dashboard."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.client.resp = tc.resp
			f.client.err = tc.err
			sess := f.session(t)

			_, err := f.store.Login(context.Background(), sess, auth.Credentials{Username: "someone", Password: "pw"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))
			assert.Equal(t, tc.message, auth.LoginErrorMessage(err))
			assert.False(t, f.store.IsAuthenticated(sess))
		})
	}
}

func TestServerMessageShownVerbatim(t *testing.T) {
	err := &backend.ServerError{Status: http.StatusBadRequest, Message: "Compte désactivé"}
	assert.Equal(t, "Compte désactivé", auth.LoginErrorMessage(err))
	assert.Equal(t, "Sign-in failed. Please try again.", auth.LoginErrorMessage(&backend.ServerError{Status: 500}))
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.client.resp = backend.SignInResponse{ID: 3, Roles: []string{"ROLE_USER"}, AccessToken: "jwt-3"}
	sess := f.session(t)
	_, err := f.store.Login(context.Background(), sess, auth.Credentials{Username: "sanae", Password: "pw"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	require.NoError(t, f.sessions.Commit(context.Background(), rec, req, sess))
	loggedInID := sess.ID
	require.True(t, f.mr.Exists("session:"+loggedInID))

	f.store.Logout(sess)
	first := f.store.Identity(sess)
	f.store.Logout(sess)
	second := f.store.Identity(sess)

	assert.Equal(t, auth.Identity{}, first)
	assert.Equal(t, first, second)
	assert.False(t, f.store.IsAuthenticated(sess))
	assert.NotEqual(t, loggedInID, sess.ID)

	require.NoError(t, f.sessions.Commit(context.Background(), httptest.NewRecorder(), req, sess))
	assert.False(t, f.mr.Exists("session:"+loggedInID))

	f.store.Logout(nil)
	f.store.Logout(f.session(t))
}

func TestHandleBackendError(t *testing.T) {
	f := newFixture(t)
	f.client.resp = backend.SignInResponse{ID: 5, Roles: []string{"ROLE_ADMIN"}, AccessToken: "expired"}
	sess := f.session(t)
	_, err := f.store.Login(context.Background(), sess, auth.Credentials{Username: "nadia", Password: "pw"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/list/departments", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	rec := httptest.NewRecorder()
	assert.False(t, f.store.HandleBackendError(rec, req, &backend.ServerError{Status: 500}))

	rec = httptest.NewRecorder()
	handled := f.store.HandleBackendError(rec, req, fmt.Errorf("department.list: %w", backend.ErrUnauthorized))
	assert.True(t, handled)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.False(t, f.store.IsAuthenticated(sess))

	flash := sess.PopFlash()
	require.NotNil(t, flash)
	assert.Equal(t, "warning", flash.Kind)
}
