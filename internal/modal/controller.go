// Package modal drives the create, update and delete dialogs of list pages.
//
// A Controller lives for one dialog: it resolves the form for an entity and
// operation, validates submitted values, performs the submission exactly once
// and reports the outcome as a Result.
package modal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/pointage-admin/pointage-admin/internal/backend"
	"github.com/pointage-admin/pointage-admin/internal/entity"
	"github.com/pointage-admin/pointage-admin/internal/shared"
)

// Phase is the lifecycle position of a dialog.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpening
	PhaseOpen
	PhaseClosing
)

func (p Phase) String() string {
	switch p {
	case PhaseOpening:
		return "opening"
	case PhaseOpen:
		return "open"
	case PhaseClosing:
		return "closing"
	}
	return "closed"
}

var (
	// ErrNotOpen is returned when an action needs an open dialog.
	ErrNotOpen = errors.New("modal: dialog is not open")
	// ErrAlreadyOpen is returned by Open on a dialog that is already showing.
	ErrAlreadyOpen = errors.New("modal: dialog already open")
	// ErrWrongOperation is returned when Submit and Confirm are mixed up.
	ErrWrongOperation = errors.New("modal: action does not match the dialog operation")
)

// Submitter performs the mutating API calls.
type Submitter interface {
	Create(ctx context.Context, d entity.Descriptor, payload any) error
	Update(ctx context.Context, d entity.Descriptor, id string, payload any) error
	Delete(ctx context.Context, d entity.Descriptor, id string) error
}

// Locker hands out exclusive submission keys shared across requests.
type Locker interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Request describes the dialog to open.
type Request struct {
	Tag      entity.Tag
	Op       entity.Operation
	RecordID string
	// Initial pre-fills an update form.
	Initial map[string]string
}

// Config holds the collaborators of a Controller.
type Config struct {
	Registry  *entity.Registry
	Submitter Submitter
	Locks     Locker
	// LockScope namespaces the submission keys, usually the session id.
	LockScope string
}

// Controller is the state machine of one dialog. It is safe for concurrent use.
type Controller struct {
	cfg Config

	mu         sync.Mutex
	phase      Phase
	req        Request
	desc       entity.Descriptor
	form       entity.Form
	fallback   bool
	errors     entity.ValidationErrors
	banner     string
	submitting bool
	result     Result
}

// NewController builds a closed Controller.
func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Result returns the outcome of the last closed dialog, or nil.
func (c *Controller) Result() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Open shows the dialog for req. An entity without a form opens the
// fallback dialog, which can only be closed.
func (c *Controller) Open(req Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseClosed {
		return ErrAlreadyOpen
	}
	c.phase = PhaseOpening
	c.req = req
	c.result = nil
	c.errors = nil
	c.banner = ""
	c.fallback = false
	c.form = nil

	desc, err := c.resolve(req)
	if err != nil {
		c.fallback = true
		c.phase = PhaseOpen
		return nil
	}
	c.desc = desc
	if req.Op != entity.OpDelete {
		c.form = desc.NewForm(req.Op)
		if len(req.Initial) > 0 {
			entity.Fill(c.form, req.Initial)
		}
	}
	c.phase = PhaseOpen
	return nil
}

// resolve maps the request to a descriptor. Delete dialogs only need the
// display name, so they skip form resolution.
func (c *Controller) resolve(req Request) (entity.Descriptor, error) {
	switch req.Op {
	case entity.OpDelete:
		d, ok := c.cfg.Registry.Lookup(req.Tag)
		if !ok {
			return entity.Descriptor{}, fmt.Errorf("modal: %s: %w", req.Tag, entity.ErrNoForm)
		}
		return d, nil
	case entity.OpCreate, entity.OpUpdate:
		return c.cfg.Registry.Resolve(req.Tag, req.Op)
	}
	return entity.Descriptor{}, fmt.Errorf("modal: operation %q: %w", req.Op, entity.ErrNoForm)
}

// Submit validates values and sends them. Invalid values keep the dialog open
// with field errors and make no API call. A failed call keeps the dialog open
// with a banner and the entered values.
func (c *Controller) Submit(ctx context.Context, values url.Values) (Result, error) {
	c.mu.Lock()
	if err := c.checkAction(entity.OpCreate, entity.OpUpdate); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, shared.ErrSubmitInFlight
	}
	c.form.Bind(values)
	c.banner = ""
	if errs := entity.Validate(c.form, c.req.Op); errs != nil {
		c.errors = errs
		c.mu.Unlock()
		return nil, errs
	}
	c.errors = nil
	c.submitting = true
	req, desc, payload := c.req, c.desc, c.form.Payload(c.req.Op)
	c.mu.Unlock()

	err := c.exclusive(ctx, req, func() error {
		if req.Op == entity.OpCreate {
			return c.cfg.Submitter.Create(ctx, desc, payload)
		}
		return c.cfg.Submitter.Update(ctx, desc, req.RecordID, payload)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		c.banner = bannerFor(err)
		return nil, err
	}
	return c.finish(Submitted{Tag: req.Tag, Op: req.Op, RecordID: req.RecordID}), nil
}

// Confirm performs the delete of a delete dialog.
func (c *Controller) Confirm(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if err := c.checkAction(entity.OpDelete); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, shared.ErrSubmitInFlight
	}
	c.submitting = true
	c.banner = ""
	req, desc := c.req, c.desc
	c.mu.Unlock()

	err := c.exclusive(ctx, req, func() error {
		return c.cfg.Submitter.Delete(ctx, desc, req.RecordID)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		c.banner = bannerFor(err)
		return nil, err
	}
	return c.finish(DeleteConfirmed{Tag: req.Tag, ID: req.RecordID}), nil
}

// Close dismisses the dialog without submitting. Closing a closed dialog is a no-op.
func (c *Controller) Close(reason CloseReason) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseOpen {
		return c.result
	}
	if reason == ReasonSubmitted {
		reason = ReasonCancel
	}
	return c.finish(Cancelled{Reason: reason})
}

// finish is the single exit of every close path. Callers hold mu.
func (c *Controller) finish(result Result) Result {
	c.phase = PhaseClosing
	c.result = result
	c.form = nil
	c.errors = nil
	c.banner = ""
	c.fallback = false
	c.desc = entity.Descriptor{}
	c.phase = PhaseClosed
	return result
}

func (c *Controller) checkAction(ops ...entity.Operation) error {
	if c.phase != PhaseOpen {
		return ErrNotOpen
	}
	if c.fallback {
		return fmt.Errorf("modal: %s: %w", c.req.Tag, entity.ErrNoForm)
	}
	for _, op := range ops {
		if c.req.Op == op {
			return nil
		}
	}
	return ErrWrongOperation
}

// exclusive runs fn while holding the cross-request submission key.
func (c *Controller) exclusive(ctx context.Context, req Request, fn func() error) error {
	if c.cfg.Locks == nil {
		return fn()
	}
	key := shared.SubmitLockKey(c.cfg.LockScope, req.Tag.String(), string(req.Op), req.RecordID)
	ok, err := c.cfg.Locks.Acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("modal: acquire submit lock: %w", err)
	}
	if !ok {
		return shared.ErrSubmitInFlight
	}
	defer func() {
		_ = c.cfg.Locks.Release(context.WithoutCancel(ctx), key)
	}()
	return fn()
}

func bannerFor(err error) string {
	if errors.Is(err, shared.ErrSubmitInFlight) {
		return "This form is already being submitted."
	}
	return backend.UserMessage(err)
}
