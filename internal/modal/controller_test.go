package modal

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointage-admin/pointage-admin/internal/backend"
	"github.com/pointage-admin/pointage-admin/internal/entity"
	"github.com/pointage-admin/pointage-admin/internal/shared"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   atomic.Int32
	gate    chan struct{}
	err     error
	created []any
	deleted []string
}

func (f *fakeSubmitter) wait() {
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeSubmitter) Create(_ context.Context, _ entity.Descriptor, payload any) error {
	f.calls.Add(1)
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, payload)
	return f.err
}

func (f *fakeSubmitter) Update(_ context.Context, _ entity.Descriptor, _ string, payload any) error {
	f.calls.Add(1)
	f.wait()
	return f.err
}

func (f *fakeSubmitter) Delete(_ context.Context, _ entity.Descriptor, id string) error {
	f.calls.Add(1)
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.err
}

func pointageValues() url.Values {
	return url.Values{
		"matricule":   {"JFKXCS90"},
		"date":        {"2026-10-16"},
		"heure":       {"08:05"},
		"pointeuseId": {"2"},
		"type":        {"IN"},
	}
}

func TestCreateClosesWithSubmittedResult(t *testing.T) {
	sub := &fakeSubmitter{}
	c := NewController(Config{Registry: entity.NewRegistry(), Submitter: sub})
	require.NoError(t, c.Open(Request{Tag: entity.TagDepartment, Op: entity.OpCreate}))
	assert.Equal(t, PhaseOpen, c.Phase())
	assert.Equal(t, "Create department", c.View().Title)

	res, err := c.Submit(context.Background(), url.Values{"code": {"D010"}, "name": {"Logistics"}})
	require.NoError(t, err)
	assert.Equal(t, Submitted{Tag: entity.TagDepartment, Op: entity.OpCreate}, res)
	assert.True(t, res.Refetch())
	assert.Equal(t, PhaseClosed, c.Phase())
	require.Len(t, sub.created, 1)
	assert.Equal(t, entity.DepartmentForm{Code: "D010", Name: "Logistics"}, sub.created[0])
}

func TestInvalidSubmitStaysOpenWithoutCall(t *testing.T) {
	sub := &fakeSubmitter{}
	c := NewController(Config{Registry: entity.NewRegistry(), Submitter: sub})
	require.NoError(t, c.Open(Request{Tag: entity.TagDepartment, Op: entity.OpCreate}))

	res, err := c.Submit(context.Background(), url.Values{"code": {""}, "name": {"Logistics"}})
	assert.Nil(t, res)
	var verrs entity.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "code is required", verrs["code"])
	assert.Equal(t, int32(0), sub.calls.Load())

	view := c.View()
	assert.True(t, view.Open)
	assert.Equal(t, "code is required", view.Errors["code"])
	assert.Equal(t, "Logistics", view.Values["name"])
}

func TestFailedSubmitKeepsValuesAndShowsBanner(t *testing.T) {
	sub := &fakeSubmitter{err: &backend.ServerError{Status: 409, Message: "Department code already exists"}}
	c := NewController(Config{Registry: entity.NewRegistry(), Submitter: sub})
	require.NoError(t, c.Open(Request{Tag: entity.TagDepartment, Op: entity.OpCreate}))

	_, err := c.Submit(context.Background(), url.Values{"code": {"D001"}, "name": {"IT"}})
	require.Error(t, err)

	view := c.View()
	assert.True(t, view.Open)
	assert.Equal(t, "Department code already exists", view.Banner)
	assert.Equal(t, "D001", view.Values["code"])
	assert.Nil(t, c.Result())
}

func TestUnknownTagOpensFallbackThatCloses(t *testing.T) {
	sub := &fakeSubmitter{}
	c := NewController(Config{Registry: entity.NewRegistry(), Submitter: sub})
	require.NoError(t, c.Open(Request{Tag: entity.ParseTag("timesheet"), Op: entity.OpCreate}))

	view := c.View()
	assert.True(t, view.Open)
	assert.Equal(t, `No form is available for "unknown".`, view.Fallback)
	assert.Empty(t, view.Template)

	_, err := c.Submit(context.Background(), url.Values{})
	assert.True(t, errors.Is(err, entity.ErrNoForm))

	res := c.Close(ReasonEscape)
	assert.Equal(t, Cancelled{Reason: ReasonEscape}, res)
	assert.False(t, res.Refetch())
	assert.Equal(t, PhaseClosed, c.Phase())
	assert.Equal(t, int32(0), sub.calls.Load())
}

func TestDeleteSkipsFormResolution(t *testing.T) {
	sub := &fakeSubmitter{}
	c := NewController(Config{Registry: entity.NewRegistry(), Submitter: sub})
	require.NoError(t, c.Open(Request{Tag: entity.TagPointeuse, Op: entity.OpDelete, RecordID: "7"}))

	view := c.View()
	assert.True(t, view.IsDelete())
	assert.Equal(t, "All data will be lost. Are you sure you want to delete this pointeuse (#7)?", view.Prompt)

	_, err := c.Submit(context.Background(), url.Values{})
	assert.True(t, errors.Is(err, ErrWrongOperation))

	res, err := c.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DeleteConfirmed{Tag: entity.TagPointeuse, ID: "7"}, res)
	assert.Equal(t, []string{"7"}, sub.deleted)
}

func TestCloseReasonsConverge(t *testing.T) {
	for _, reason := range []CloseReason{ReasonCancel, ReasonEscape, ReasonBackdrop} {
		c := NewController(Config{Registry: entity.NewRegistry(), Submitter: &fakeSubmitter{}})
		require.NoError(t, c.Open(Request{Tag: entity.TagUser, Op: entity.OpCreate}))
		res := c.Close(reason)
		assert.Equal(t, Cancelled{Reason: reason}, res)
		assert.Equal(t, PhaseClosed, c.Phase())
		assert.False(t, c.View().Open)
		assert.Equal(t, res, c.Close(reason), "closing twice is a no-op")
	}
	assert.Equal(t, ReasonCancel, ParseCloseReason("whatever"))
	assert.Equal(t, ReasonBackdrop, ParseCloseReason("Backdrop"))
}

func TestOpenTwiceFails(t *testing.T) {
	c := NewController(Config{Registry: entity.NewRegistry(), Submitter: &fakeSubmitter{}})
	require.NoError(t, c.Open(Request{Tag: entity.TagPointage, Op: entity.OpCreate}))
	assert.ErrorIs(t, c.Open(Request{Tag: entity.TagPointage, Op: entity.OpCreate}), ErrAlreadyOpen)
}

func TestUpdatePrefillsInitialValues(t *testing.T) {
	c := NewController(Config{Registry: entity.NewRegistry(), Submitter: &fakeSubmitter{}})
	require.NoError(t, c.Open(Request{
		Tag:      entity.TagPointeuse,
		Op:       entity.OpUpdate,
		RecordID: "3",
		Initial:  map[string]string{"code": "AQ195", "name": "Gate", "badgeuseType": "OUT"},
	}))
	view := c.View()
	assert.Equal(t, "Update pointeuse", view.Title)
	assert.Equal(t, "OUT", view.Values["badgeuseType"])
}

func TestDoubleSubmitWhileInFlightCallsOnce(t *testing.T) {
	sub := &fakeSubmitter{gate: make(chan struct{})}
	c := NewController(Config{Registry: entity.NewRegistry(), Submitter: sub})
	require.NoError(t, c.Open(Request{Tag: entity.TagPointage, Op: entity.OpCreate}))

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), pointageValues())
		done <- err
	}()
	require.Eventually(t, func() bool { return sub.calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.True(t, c.View().Submitting)

	_, err := c.Submit(context.Background(), pointageValues())
	assert.ErrorIs(t, err, shared.ErrSubmitInFlight)

	close(sub.gate)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), sub.calls.Load())
}

func TestDoubleSubmitAcrossRequestsCallsOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locks := shared.NewSubmitLocks(client, time.Minute)

	sub := &fakeSubmitter{gate: make(chan struct{})}
	newDialog := func() *Controller {
		c := NewController(Config{Registry: entity.NewRegistry(), Submitter: sub, Locks: locks, LockScope: "sess-1"})
		require.NoError(t, c.Open(Request{Tag: entity.TagPointage, Op: entity.OpCreate}))
		return c
	}
	first, second := newDialog(), newDialog()

	done := make(chan error, 1)
	go func() {
		_, err := first.Submit(context.Background(), pointageValues())
		done <- err
	}()
	require.Eventually(t, func() bool { return sub.calls.Load() == 1 }, time.Second, time.Millisecond)

	_, err := second.Submit(context.Background(), pointageValues())
	assert.ErrorIs(t, err, shared.ErrSubmitInFlight)
	assert.Equal(t, "This form is already being submitted.", second.View().Banner)

	close(sub.gate)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), sub.calls.Load())
	assert.False(t, mr.Exists(shared.SubmitLockKey("sess-1", "pointage", "create", "")))
}
