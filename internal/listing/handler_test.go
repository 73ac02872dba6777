package listing_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointage-admin/pointage-admin/internal/audit"
	"github.com/pointage-admin/pointage-admin/internal/backend"
	"github.com/pointage-admin/pointage-admin/internal/entity"
	"github.com/pointage-admin/pointage-admin/internal/listing"
	"github.com/pointage-admin/pointage-admin/internal/rbac"
	"github.com/pointage-admin/pointage-admin/internal/shared"
	"github.com/pointage-admin/pointage-admin/internal/view"
	_ "github.com/pointage-admin/pointage-admin/testing"
)

type recorded struct {
	Method string
	Path   string
	Body   string
	Header http.Header
}

type fakeAPI struct {
	mu        sync.Mutex
	requests  []recorded
	responses map[string]string
	status    map[string]int
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{responses: map[string]string{}, status: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		key := r.Method + " " + r.URL.Path
		f.mu.Lock()
		f.requests = append(f.requests, recorded{Method: r.Method, Path: r.URL.Path, Body: string(body), Header: r.Header.Clone()})
		status, resp := f.status[key], f.responses[key]
		f.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) calls() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func (f *fakeAPI) count(method, path string) int {
	n := 0
	for _, req := range f.calls() {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

type stubIdentity struct {
	roles rbac.Set
	token string
}

func (s stubIdentity) IsAuthenticated(*shared.Session) bool { return !s.roles.Empty() }
func (s stubIdentity) Roles(*shared.Session) rbac.Set       { return s.roles }
func (s stubIdentity) Token(*shared.Session) string         { return s.token }
func (s stubIdentity) DisplayName(*shared.Session) string   { return "nadia" }
func (s stubIdentity) HandleBackendError(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, backend.ErrUnauthorized) {
		return false
	}
	http.Redirect(w, r, string(rbac.RouteLogin), http.StatusSeeOther)
	return true
}

type memAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (m *memAudit) Record(_ context.Context, e audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

type harness struct {
	t        *testing.T
	api      *fakeAPI
	router   chi.Router
	sessions *shared.SessionManager
	cookie   *http.Cookie
	audit    *memAudit
}

func newHarness(t *testing.T, roles ...rbac.Role) *harness {
	t.Helper()
	api, srv := newFakeAPI(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	identity := stubIdentity{roles: rbac.NewSet(roles...), token: "jwt-token"}
	engine, err := view.NewEngine()
	require.NoError(t, err)
	rec := &memAudit{}
	handler := listing.NewHandler(listing.Config{
		Registry: entity.NewRegistry(),
		API:      backend.NewClient(backend.Options{BaseURL: srv.URL + "/api", ProfileSecret: "pol", Timeout: time.Second}),
		Identity: identity,
		Guard:    rbac.Guard{Source: identity},
		Pages:    view.NewRenderer(engine, nil, identity, nil),
		Locks:    shared.NewSubmitLocks(client, time.Minute),
		Audit:    rec,
		PerPage:  2,
	})
	router := chi.NewRouter()
	handler.MountRoutes(router)
	return &harness{
		t:        t,
		api:      api,
		router:   router,
		sessions: shared.NewSessionManager(client, "pointage_session", "secret", time.Hour, false),
		audit:    rec,
	}
}

func (h *harness) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	h.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	sess, err := h.sessions.Load(context.Background(), req)
	require.NoError(h.t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.NoError(h.t, h.sessions.Commit(ctx, rec, req, sess))
	h.cookie = &http.Cookie{Name: h.sessions.CookieName(), Value: sess.ID}
	return rec
}

func TestCreateDepartmentPostsOnceThenRefetches(t *testing.T) {
	h := newHarness(t, rbac.RoleAdmin)
	h.api.responses["GET /api/departments/all"] = `[{"id":1,"code":"D001","name":"IT"},{"id":2,"code":"D010","name":"Logistics"}]`

	res := h.do(http.MethodPost, "/list/departments/new", url.Values{"code": {"D010"}, "name": {"Logistics"}})
	require.Equal(t, http.StatusSeeOther, res.Code, res.Body.String())
	assert.Equal(t, "/list/departments", res.Header().Get("Location"))

	calls := h.api.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, "/api/departments/save", calls[0].Path)
	assert.JSONEq(t, `{"code":"D010","name":"Logistics"}`, calls[0].Body)
	assert.Equal(t, "Bearer jwt-token", calls[0].Header.Get("Authorization"))
	assert.Equal(t, "pol", calls[0].Header.Get("profile-secret"))

	res = h.do(http.MethodGet, "/list/departments", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 1, h.api.count(http.MethodGet, "/api/departments/all"))
	assert.Len(t, h.api.calls(), 2)
	assert.Contains(t, res.Body.String(), "Department created.")
	assert.NotContains(t, res.Body.String(), `role="dialog"`)

	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, audit.Entry{
		Actor:    "nadia",
		Action:   "create",
		Entity:   "department",
		EntityID: "D010",
		Meta:     map[string]any{"route": "/list/departments"},
		At:       h.audit.entries[0].At,
	}, h.audit.entries[0])
}

func TestInvalidDepartmentMakesNoBackendCall(t *testing.T) {
	h := newHarness(t, rbac.RoleAdmin)
	h.api.responses["GET /api/departments/all"] = `[{"id":1,"code":"D001","name":"IT"}]`

	res := h.do(http.MethodGet, "/list/departments/new", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `role="dialog"`)
	before := len(h.api.calls())

	res = h.do(http.MethodPost, "/list/departments/new", url.Values{"code": {""}, "name": {"Logistics"}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "code is required")
	assert.Contains(t, body, `value="Logistics"`)
	assert.Contains(t, body, "D001", "table is redrawn from the cache")
	assert.Len(t, h.api.calls(), before)
	assert.Zero(t, h.api.count(http.MethodPost, "/api/departments/save"))
	assert.Empty(t, h.audit.entries)
}

func TestServerErrorKeepsDialogOpen(t *testing.T) {
	h := newHarness(t, rbac.RoleAdmin)
	h.api.status["POST /api/departments/save"] = http.StatusConflict
	h.api.responses["POST /api/departments/save"] = `{"message":"Department code already exists"}`

	res := h.do(http.MethodPost, "/list/departments/new", url.Values{"code": {"D001"}, "name": {"IT"}})
	assert.Equal(t, http.StatusBadGateway, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Department code already exists")
	assert.Contains(t, body, `value="D001"`)
}

func TestStandardUserIsRedirectedWithoutBackendCall(t *testing.T) {
	h := newHarness(t, rbac.RoleUser)

	for _, target := range []string{"/list/administrateurs", "/list/administrateurs/new", "/list/departments/3/edit"} {
		res := h.do(http.MethodGet, target, nil)
		assert.Equal(t, http.StatusSeeOther, res.Code, target)
		assert.Equal(t, "/user", res.Header().Get("Location"), target)
	}
	assert.Empty(t, h.api.calls())
}

func TestModeratorSeesDeleteButNoCreateOnUsers(t *testing.T) {
	h := newHarness(t, rbac.RoleModerator)
	h.api.responses["GET /api/users/all"] = `[{"id":9,"username":"sanae","firstName":"Sanae","lastName":"Alaoui","matricule":"JFKXCS90"}]`

	res := h.do(http.MethodGet, "/list/users", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.NotContains(t, body, `href="/list/users/new"`)
	assert.NotContains(t, body, `href="/list/users/9/edit"`)
	assert.Contains(t, body, `href="/list/users/9/delete"`)

	res = h.do(http.MethodGet, "/list/users/new", nil)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/list/users", res.Header().Get("Location"))
}

func TestDeleteConfirmation(t *testing.T) {
	h := newHarness(t, rbac.RoleAdmin)
	h.api.responses["GET /api/badgeuse/all"] = `[{"id":7,"code":"AQ195","name":"Gate","badgeuseType":"IN"}]`

	res := h.do(http.MethodGet, "/list/pointeuses/7/delete", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Are you sure you want to delete this pointeuse (#7)?")

	res = h.do(http.MethodPost, "/list/pointeuses/7/delete", url.Values{})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, 1, h.api.count(http.MethodDelete, "/api/badgeuse/delete/7"))
	require.Len(t, h.audit.entries, 1)
	assert.Equal(t, "7", h.audit.entries[0].EntityID)
	assert.Equal(t, "delete", h.audit.entries[0].Action)

	res = h.do(http.MethodGet, "/list/pointeuses/99/delete", nil)
	assert.Equal(t, http.StatusSeeOther, res.Code, "missing records bounce back to the list")
}

func TestEditPrefillsFromRecord(t *testing.T) {
	h := newHarness(t, rbac.RoleAdmin)
	h.api.responses["GET /api/badgeuse/all"] = `[{"id":3,"code":"AQ195","name":"Gate","badgeuseType":"OUT"}]`

	res := h.do(http.MethodGet, "/list/pointeuses/3/edit", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `value="AQ195"`)
	assert.Contains(t, body, `<option value="OUT" selected>`)
	assert.Contains(t, body, `action="/list/pointeuses/3/edit"`)

	res = h.do(http.MethodPost, "/list/pointeuses/3/edit", url.Values{"code": {"AQ195"}, "name": {"Main gate"}, "badgeuseType": {"OUT"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, 1, h.api.count(http.MethodPut, "/api/badgeuse/update/3"))
}

func TestCloseReturnsToListWithoutRefetch(t *testing.T) {
	h := newHarness(t, rbac.RoleAdmin)
	for _, reason := range []string{"cancel", "escape", "backdrop"} {
		res := h.do(http.MethodPost, "/list/departments/close", url.Values{"reason": {reason}, "op": {"create"}})
		assert.Equal(t, http.StatusSeeOther, res.Code)
		assert.Equal(t, "/list/departments", res.Header().Get("Location"))
	}
	assert.Empty(t, h.api.calls())
}

func TestUnknownEntityShowsFallback(t *testing.T) {
	h := newHarness(t, rbac.RoleAdmin)

	res := h.do(http.MethodGet, "/list/timesheets/new", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "No form is available for")
	assert.Contains(t, body, `action="/list/timesheets/close"`)

	res = h.do(http.MethodPost, "/list/timesheets/close", url.Values{"reason": {"escape"}})
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/admin", res.Header().Get("Location"))

	res = h.do(http.MethodGet, "/list/badgeuses/new", nil)
	assert.Equal(t, "/list/pointeuses/new", res.Header().Get("Location"))
}

func TestExpiredTokenRedirectsToLogin(t *testing.T) {
	h := newHarness(t, rbac.RoleAdmin)
	h.api.status["GET /api/departments/all"] = http.StatusUnauthorized

	res := h.do(http.MethodGet, "/list/departments", nil)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
}

func TestSearchAndPagination(t *testing.T) {
	h := newHarness(t, rbac.RoleAdmin)
	h.api.responses["GET /api/departments/all"] = `[{"id":1,"code":"D001","name":"Comptabilité"},{"id":2,"code":"D002","name":"Ressources Humaines"},{"id":3,"code":"D003","name":"Logistique"}]`

	res := h.do(http.MethodGet, "/list/departments?q=comptabilite", nil)
	body := res.Body.String()
	assert.Contains(t, body, "Comptabilité")
	assert.NotContains(t, body, "Ressources Humaines")

	res = h.do(http.MethodGet, "/list/departments?page=2", nil)
	body = res.Body.String()
	assert.Contains(t, body, "Logistique")
	assert.NotContains(t, body, "Comptabilité")
	assert.Contains(t, body, "Page 2 of 2")
}

func TestHugePageOnEmptyListRendersEmptyPage(t *testing.T) {
	h := newHarness(t, rbac.RoleAdmin)
	h.api.responses["GET /api/departments/all"] = `[]`

	res := h.do(http.MethodGet, "/list/departments?page=9223372036854775807", nil)
	assert.Equal(t, http.StatusOK, res.Code)

	h.api.responses["GET /api/departments/all"] = `[{"id":1,"code":"D001","name":"Comptabilité"}]`
	res = h.do(http.MethodGet, "/list/departments?page=9223372036854775807", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Comptabilité")
}
