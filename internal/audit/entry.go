// Package audit records who changed which record through the dashboard.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Entry is one successful mutation.
type Entry struct {
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// Validate checks the mandatory fields.
func (e Entry) Validate() error {
	if e.Action == "" || e.Entity == "" || e.EntityID == "" {
		return errors.New("audit: entry requires action/entity/entity_id")
	}
	return nil
}

// Recorder persists or forwards entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Observer is notified of every delivery attempt.
type Observer interface {
	ObserveAudit(sink string, err error)
}

// LogRecorder writes entries to the structured log. It is the fallback sink
// when no database is configured.
type LogRecorder struct {
	Logger *slog.Logger
}

// Record logs the entry.
func (r LogRecorder) Record(_ context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("audit",
		slog.String("actor", entry.Actor),
		slog.String("action", entry.Action),
		slog.String("entity", entry.Entity),
		slog.String("entity_id", entry.EntityID),
		slog.Time("at", entry.At),
	)
	return nil
}

// Observed wraps a Recorder and reports each attempt to an Observer.
func Observed(sink string, next Recorder, observer Observer) Recorder {
	if observer == nil {
		return next
	}
	return observedRecorder{sink: sink, next: next, observer: observer}
}

type observedRecorder struct {
	sink     string
	next     Recorder
	observer Observer
}

func (r observedRecorder) Record(ctx context.Context, entry Entry) error {
	err := r.next.Record(ctx, entry)
	r.observer.ObserveAudit(r.sink, err)
	return err
}
