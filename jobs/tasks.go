package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pointage-admin/pointage-admin/internal/audit"
	jobmetrics "github.com/pointage-admin/pointage-admin/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord delivers one audit entry to the audit store.
	TaskAuditRecord = "audit:record"
	// TaskAuditPrune removes audit entries past their retention.
	TaskAuditPrune = "audit:prune"
)

// NewAuditRecordTask builds the task carrying entry.
func NewAuditRecordTask(entry audit.Entry) (*asynq.Task, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, body, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// AuditPrunePayload contains the retention of a prune run.
type AuditPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewAuditPruneTask builds a prune task.
func NewAuditPruneTask(retentionDays int) (*asynq.Task, error) {
	if retentionDays <= 0 {
		return nil, fmt.Errorf("jobs: retention must be positive, got %d", retentionDays)
	}
	body, err := json.Marshal(AuditPrunePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, body, asynq.Queue(QueueDefault)), nil
}

// Pruner deletes old audit entries.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// AuditJob processes the audit tasks.
type AuditJob struct {
	recorder audit.Recorder
	pruner   Pruner
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

// NewAuditJob constructs the job. pruner may be nil when pruning is not scheduled.
func NewAuditJob(recorder audit.Recorder, pruner Pruner, logger *slog.Logger) *AuditJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditJob{recorder: recorder, pruner: pruner, logger: logger}
}

// WithMetrics attaches job metrics.
func (j *AuditJob) WithMetrics(m *jobmetrics.Metrics) *AuditJob {
	j.metrics = m
	return j
}

// HandleRecord processes TaskAuditRecord tasks.
func (j *AuditJob) HandleRecord(ctx context.Context, t *asynq.Task) error {
	var entry audit.Entry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return fmt.Errorf("jobs: decode audit entry: %v: %w", err, asynq.SkipRetry)
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("jobs: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskAuditRecord)
	if err := j.recorder.Record(ctx, entry); err != nil {
		j.logger.Warn("audit record failed", slog.String("entity", entry.Entity), slog.String("entity_id", entry.EntityID), slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}

// HandlePrune processes TaskAuditPrune tasks.
func (j *AuditJob) HandlePrune(ctx context.Context, t *asynq.Task) error {
	if j.pruner == nil {
		return fmt.Errorf("jobs: audit pruning not configured: %w", asynq.SkipRetry)
	}
	var payload AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RetentionDays <= 0 {
		return fmt.Errorf("jobs: invalid prune payload: %w", asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskAuditPrune)
	removed, err := j.pruner.Prune(ctx, time.Duration(payload.RetentionDays)*24*time.Hour)
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddPruned(removed)
	j.logger.Info("audit pruned", slog.Int64("removed", removed), slog.Int("retention_days", payload.RetentionDays))
	return tracker.End(nil)
}
