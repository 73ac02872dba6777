// Package listing serves the /list/<entity> pages and the dialogs opened on
// top of them.
package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pointage-admin/pointage-admin/internal/audit"
	"github.com/pointage-admin/pointage-admin/internal/backend"
	"github.com/pointage-admin/pointage-admin/internal/entity"
	"github.com/pointage-admin/pointage-admin/internal/modal"
	"github.com/pointage-admin/pointage-admin/internal/navigation"
	"github.com/pointage-admin/pointage-admin/internal/rbac"
	"github.com/pointage-admin/pointage-admin/internal/shared"
)

// Identity is the read side of the session store used by list pages.
type Identity interface {
	Token(sess *shared.Session) string
	Roles(sess *shared.Session) rbac.Set
	DisplayName(sess *shared.Session) string
	HandleBackendError(w http.ResponseWriter, r *http.Request, err error) bool
}

// Pages renders full HTML pages.
type Pages interface {
	Render(w http.ResponseWriter, r *http.Request, tpl, title string, data any, status int)
	Error(w http.ResponseWriter, r *http.Request, status int, message string)
}

// Config collects the dependencies of Handler.
type Config struct {
	Registry  *entity.Registry
	API       API
	Identity  Identity
	Guard     rbac.Guard
	Pages     Pages
	Locks     modal.Locker
	Audit     audit.Recorder
	PerPage   int
	CacheSize int
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

// Handler serves every registered entity list.
type Handler struct {
	registry *entity.Registry
	api      API
	identity Identity
	guard    rbac.Guard
	pages    Pages
	locks    modal.Locker
	audit    audit.Recorder
	perPage  int
	cache    *rowCache
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	return &Handler{
		registry: cfg.Registry,
		api:      cfg.API,
		identity: cfg.Identity,
		guard:    cfg.Guard,
		pages:    cfg.Pages,
		locks:    cfg.Locks,
		audit:    cfg.Audit,
		perPage:  perPage,
		cache:    newRowCache(cfg.CacheSize, cfg.CacheTTL),
		logger:   logger,
	}
}

// MountRoutes registers the list and dialog routes of every entity.
func (h *Handler) MountRoutes(r chi.Router) {
	for _, d := range h.registry.Descriptors() {
		h.mountEntity(r, d)
	}
	r.With(h.guard.RequireAuthenticated).Get("/list/{slug}/new", h.unknownEntity)
	r.With(h.guard.RequireAuthenticated).Post("/list/{slug}/close", h.closeUnknown)
}

func (h *Handler) mountEntity(r chi.Router, d entity.Descriptor) {
	route := rbac.ListRoute(d.Tag)
	base := string(route)

	r.With(h.guard.Require(route)).Get(base, h.list(d))
	r.With(h.guard.Require(route)).Post(base+"/close", h.close(d))

	create := r.With(h.guard.RequireOperation(d.Tag, entity.OpCreate))
	create.Get(base+"/new", h.openDialog(d, entity.OpCreate))
	create.Post(base+"/new", h.submit(d, entity.OpCreate))

	update := r.With(h.guard.RequireOperation(d.Tag, entity.OpUpdate))
	update.Get(base+"/{id}/edit", h.openDialog(d, entity.OpUpdate))
	update.Post(base+"/{id}/edit", h.submit(d, entity.OpUpdate))

	remove := r.With(h.guard.RequireOperation(d.Tag, entity.OpDelete))
	remove.Get(base+"/{id}/delete", h.openDialog(d, entity.OpDelete))
	remove.Post(base+"/{id}/delete", h.confirmDelete(d))
}

type row struct {
	ID          string
	Cells       []string
	DetailsHref string
}

type page struct {
	Title       string
	DisplayName string
	BasePath    string
	Columns     []string
	Rows        []row
	Actions     navigation.ActionSet
	Query       string
	Page        shared.Pagination
	PrevHref    string
	NextHref    string
	LoadError   string
	Modal       *dialog
}

// dialog is a modal.View plus the form targets of the page hosting it.
type dialog struct {
	modal.View
	Action      string
	CloseAction string
}

func (h *Handler) list(d entity.Descriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		rows, err := h.fetch(r.Context(), sess, d)
		if err != nil && h.identity.HandleBackendError(w, r, err) {
			return
		}
		data := h.page(r, sess, d, rows, err)
		h.pages.Render(w, r, "pages/list.html", d.Title, data, http.StatusOK)
	}
}

func (h *Handler) openDialog(d entity.Descriptor, op entity.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		rows, err := h.cachedRows(r.Context(), sess, d)
		if err != nil && h.identity.HandleBackendError(w, r, err) {
			return
		}

		req := modal.Request{Tag: d.Tag, Op: op, RecordID: chi.URLParam(r, "id")}
		if op != entity.OpCreate {
			if err != nil {
				h.pages.Render(w, r, "pages/list.html", d.Title, h.page(r, sess, d, nil, err), http.StatusBadGateway)
				return
			}
			record, ok := entity.FindRecord(rows, req.RecordID)
			if !ok {
				sess.AddFlash(shared.FlashMessage{Kind: "warning", Message: "The requested record no longer exists."})
				http.Redirect(w, r, string(rbac.ListRoute(d.Tag)), http.StatusSeeOther)
				return
			}
			if op == entity.OpUpdate {
				req.Initial = record.Fields()
			}
		}

		c := h.controller(sess)
		if openErr := c.Open(req); openErr != nil {
			h.logger.Error("open dialog", slog.String("entity", d.Tag.String()), slog.Any("error", openErr))
			h.pages.Error(w, r, http.StatusInternalServerError, "The form could not be opened.")
			return
		}
		h.renderDialog(w, r, sess, d, rows, err, c, http.StatusOK)
	}
}

func (h *Handler) submit(d entity.Descriptor, op entity.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		sess := shared.SessionFromContext(r.Context())
		c := h.controller(sess)
		if err := c.Open(modal.Request{Tag: d.Tag, Op: op, RecordID: chi.URLParam(r, "id")}); err != nil {
			h.pages.Error(w, r, http.StatusInternalServerError, "The form could not be opened.")
			return
		}
		res, err := c.Submit(r.Context(), r.PostForm)
		if err != nil {
			h.rejected(w, r, sess, d, c, err)
			return
		}
		h.completed(w, r, sess, d, res, r.PostForm)
	}
}

func (h *Handler) confirmDelete(d entity.Descriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		c := h.controller(sess)
		if err := c.Open(modal.Request{Tag: d.Tag, Op: entity.OpDelete, RecordID: chi.URLParam(r, "id")}); err != nil {
			h.pages.Error(w, r, http.StatusInternalServerError, "The form could not be opened.")
			return
		}
		res, err := c.Confirm(r.Context())
		if err != nil {
			h.rejected(w, r, sess, d, c, err)
			return
		}
		h.completed(w, r, sess, d, res, nil)
	}
}

func (h *Handler) close(d entity.Descriptor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		op, ok := entity.ParseOperation(r.PostFormValue("op"))
		if !ok {
			op = entity.OpCreate
		}
		c := h.controller(shared.SessionFromContext(r.Context()))
		_ = c.Open(modal.Request{Tag: d.Tag, Op: op, RecordID: r.PostFormValue("id")})
		res := c.Close(modal.ParseCloseReason(r.PostFormValue("reason")))
		h.logger.Debug("dialog closed", slog.String("entity", d.Tag.String()), slog.Any("result", res))
		http.Redirect(w, r, string(rbac.ListRoute(d.Tag)), http.StatusSeeOther)
	}
}

// unknownEntity answers dialog requests for slugs without a list page.
// Known aliases are sent to their guarded canonical route.
func (h *Handler) unknownEntity(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	tag := entity.ParseTag(slug)
	if tag != entity.TagUnknown {
		http.Redirect(w, r, string(rbac.ListRoute(tag))+"/new", http.StatusSeeOther)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	c := h.controller(sess)
	_ = c.Open(modal.Request{Tag: tag, Op: entity.OpCreate})
	base := "/list/" + url.PathEscape(slug)
	data := page{
		Title:    "Unavailable",
		BasePath: base,
		Page:     shared.NewPagination(1, h.perPage, 0),
		Modal:    &dialog{View: c.View(), CloseAction: base + "/close"},
	}
	h.pages.Render(w, r, "pages/list.html", data.Title, data, http.StatusNotFound)
}

func (h *Handler) closeUnknown(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	c := h.controller(sess)
	_ = c.Open(modal.Request{Tag: entity.ParseTag(chi.URLParam(r, "slug")), Op: entity.OpCreate})
	c.Close(modal.ParseCloseReason(r.PostFormValue("reason")))
	http.Redirect(w, r, string(rbac.Landing(h.identity.Roles(sess))), http.StatusSeeOther)
}

func (h *Handler) controller(sess *shared.Session) *modal.Controller {
	scope := ""
	if sess != nil {
		scope = sess.ID
	}
	return modal.NewController(modal.Config{
		Registry:  h.registry,
		Submitter: tokenSubmitter{api: h.api, token: h.identity.Token(sess)},
		Locks:     h.locks,
		LockScope: scope,
	})
}

// rejected redraws the dialog after a failed submission. Field errors and
// in-flight duplicates never reach the backend, so the table comes from the
// row cache when it can.
func (h *Handler) rejected(w http.ResponseWriter, r *http.Request, sess *shared.Session, d entity.Descriptor, c *modal.Controller, err error) {
	if h.identity.HandleBackendError(w, r, err) {
		return
	}
	var verrs entity.ValidationErrors
	if !errors.As(err, &verrs) {
		h.logger.Warn("dialog submit failed", slog.String("entity", d.Tag.String()), slog.Any("error", err))
	}
	rows, loadErr := h.cachedRows(r.Context(), sess, d)
	if loadErr != nil && h.identity.HandleBackendError(w, r, loadErr) {
		return
	}
	h.renderDialog(w, r, sess, d, rows, loadErr, c, statusFor(err))
}

func (h *Handler) completed(w http.ResponseWriter, r *http.Request, sess *shared.Session, d entity.Descriptor, res modal.Result, values url.Values) {
	if res.Refetch() {
		h.cache.invalidate(d.Tag)
	}
	var op entity.Operation
	var id string
	switch res := res.(type) {
	case modal.Submitted:
		op, id = res.Op, res.RecordID
		if id == "" {
			id = naturalKey(values)
		}
	case modal.DeleteConfirmed:
		op, id = entity.OpDelete, res.ID
	default:
		http.Redirect(w, r, string(rbac.ListRoute(d.Tag)), http.StatusSeeOther)
		return
	}
	h.record(r.Context(), audit.Entry{
		Actor:    h.identity.DisplayName(sess),
		Action:   string(op),
		Entity:   d.Tag.String(),
		EntityID: id,
		Meta:     map[string]any{"route": string(rbac.ListRoute(d.Tag))},
		At:       time.Now().UTC(),
	})
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: successMessage(d, op)})
	http.Redirect(w, r, string(rbac.ListRoute(d.Tag)), http.StatusSeeOther)
}

func (h *Handler) record(ctx context.Context, entry audit.Entry) {
	if h.audit == nil {
		return
	}
	if err := h.audit.Record(ctx, entry); err != nil {
		h.logger.Warn("audit record failed", slog.String("entity", entry.Entity), slog.String("entity_id", entry.EntityID), slog.Any("error", err))
	}
}

func (h *Handler) renderDialog(w http.ResponseWriter, r *http.Request, sess *shared.Session, d entity.Descriptor, rows []entity.Record, loadErr error, c *modal.Controller, status int) {
	data := h.page(r, sess, d, rows, loadErr)
	if v := c.View(); v.Open {
		if !v.IsDelete() && v.Fallback == "" {
			v.Options = h.options(r.Context(), sess, d)
		}
		base := string(rbac.ListRoute(d.Tag))
		data.Modal = &dialog{View: v, Action: dialogAction(base, v), CloseAction: base + "/close"}
	}
	h.pages.Render(w, r, "pages/list.html", d.Title, data, status)
}

func (h *Handler) fetch(ctx context.Context, sess *shared.Session, d entity.Descriptor) ([]entity.Record, error) {
	token := h.identity.Token(sess)
	rows, err := h.api.List(ctx, token, d)
	if err != nil {
		return nil, err
	}
	h.cache.putRows(d.Tag, token, rows)
	return rows, nil
}

func (h *Handler) cachedRows(ctx context.Context, sess *shared.Session, d entity.Descriptor) ([]entity.Record, error) {
	if rows, ok := h.cache.getRows(d.Tag, h.identity.Token(sess)); ok {
		return rows, nil
	}
	return h.fetch(ctx, sess, d)
}

// options loads the select choices of account forms. Failures leave the
// fields as free text.
func (h *Handler) options(ctx context.Context, sess *shared.Session, d entity.Descriptor) map[string][]modal.Option {
	out := make(map[string][]modal.Option)
	switch d.Tag {
	case entity.TagAdmin, entity.TagManager, entity.TagUser:
		if opts := h.optionList(ctx, sess, entity.TagDepartment); len(opts) > 0 {
			out["departmentCode"] = opts
		}
	}
	if d.Tag == entity.TagUser {
		if opts := h.optionList(ctx, sess, entity.TagManager); len(opts) > 0 {
			out["manager"] = opts
		}
	}
	return out
}

func (h *Handler) optionList(ctx context.Context, sess *shared.Session, tag entity.Tag) []modal.Option {
	token := h.identity.Token(sess)
	if opts, ok := h.cache.getOptions(tag, token); ok {
		return opts
	}
	d, ok := h.registry.Lookup(tag)
	if !ok {
		return nil
	}
	rows, err := h.api.List(ctx, token, d)
	if err != nil {
		h.logger.Warn("load select options", slog.String("entity", tag.String()), slog.Any("error", err))
		return nil
	}
	opts := make([]modal.Option, 0, len(rows))
	for _, rec := range rows {
		switch rec := rec.(type) {
		case entity.Department:
			opts = append(opts, modal.Option{Value: rec.Code, Label: rec.Code + " · " + rec.Name})
		case entity.Person:
			opts = append(opts, modal.Option{Value: rec.Username, Label: rec.FirstName + " " + rec.LastName + " (" + rec.Username + ")"})
		}
	}
	h.cache.putOptions(tag, token, opts)
	return opts
}

func (h *Handler) page(r *http.Request, sess *shared.Session, d entity.Descriptor, rows []entity.Record, loadErr error) page {
	base := string(rbac.ListRoute(d.Tag))
	query := r.URL.Query().Get("q")
	filtered := filterRows(rows, query)
	pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pag := shared.NewPagination(pageNum, h.perPage, len(filtered))
	start, end := pag.Bounds()

	data := page{
		Title:       d.Title,
		DisplayName: d.DisplayName,
		BasePath:    base,
		Columns:     d.Columns,
		Rows:        make([]row, 0, end-start),
		Actions:     navigation.Actions(h.identity.Roles(sess), d.Tag),
		Query:       query,
		Page:        pag,
	}
	for _, rec := range filtered[start:end] {
		data.Rows = append(data.Rows, row{ID: rec.RecordID(), Cells: rec.Cells(), DetailsHref: detailsHref(rec)})
	}
	if pag.HasPrev() {
		data.PrevHref = pageHref(base, query, pag.Page-1)
	}
	if pag.HasNext() {
		data.NextHref = pageHref(base, query, pag.Page+1)
	}
	if loadErr != nil {
		h.logger.Warn("list fetch failed", slog.String("entity", d.Tag.String()), slog.Any("error", loadErr))
		data.LoadError = backend.UserMessage(loadErr)
	}
	return data
}

func pageHref(base, query string, n int) string {
	v := url.Values{}
	if query != "" {
		v.Set("q", query)
	}
	v.Set("page", strconv.Itoa(n))
	return base + "?" + v.Encode()
}

// detailsHref links a punch to the week it belongs to.
func detailsHref(rec entity.Record) string {
	p, ok := rec.(entity.Pointage)
	if !ok {
		return ""
	}
	v := url.Values{}
	v.Set("matricule", p.Matricule)
	if day, err := time.Parse(time.DateOnly, p.Date); err == nil {
		year, week := day.ISOWeek()
		v.Set("annee", strconv.Itoa(year))
		v.Set("semaine", strconv.Itoa(week))
	}
	return string(rbac.RoutePointageDetails) + "?" + v.Encode()
}

func dialogAction(base string, v modal.View) string {
	switch v.Operation {
	case entity.OpUpdate:
		return base + "/" + url.PathEscape(v.RecordID) + "/edit"
	case entity.OpDelete:
		return base + "/" + url.PathEscape(v.RecordID) + "/delete"
	}
	return base + "/new"
}

// naturalKey identifies a freshly created record before the backend assigns an id.
func naturalKey(values url.Values) string {
	for _, field := range []string{"code", "username", "matricule"} {
		if v := values.Get(field); v != "" {
			return v
		}
	}
	return "new"
}

func successMessage(d entity.Descriptor, op entity.Operation) string {
	name := cases.Title(language.English).String(d.DisplayName)
	switch op {
	case entity.OpUpdate:
		return fmt.Sprintf("%s updated.", name)
	case entity.OpDelete:
		return fmt.Sprintf("%s deleted.", name)
	}
	return fmt.Sprintf("%s created.", name)
}

func statusFor(err error) int {
	var verrs entity.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrSubmitInFlight):
		return http.StatusConflict
	case errors.Is(err, backend.ErrNetworkUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}
