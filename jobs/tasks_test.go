package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointage-admin/pointage-admin/internal/audit"
	jobmetrics "github.com/pointage-admin/pointage-admin/internal/jobs"
)

type memRecorder struct {
	entries []audit.Entry
	err     error
}

func (m *memRecorder) Record(_ context.Context, entry audit.Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

type stubPruner struct {
	retention time.Duration
}

func (s *stubPruner) Prune(_ context.Context, retention time.Duration) (int64, error) {
	s.retention = retention
	return 4, nil
}

type captureEnqueuer struct {
	tasks []*asynq.Task
}

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: "1", Queue: QueueDefault, Type: task.Type()}, nil
}

func (c *captureEnqueuer) Close() error { return nil }

func sampleEntry() audit.Entry {
	return audit.Entry{Actor: "nadia", Action: "create", Entity: "department", EntityID: "D010", Meta: map[string]any{"code": "D010"}}
}

func TestClientRecordEnqueuesAuditTask(t *testing.T) {
	enq := &captureEnqueuer{}
	client := NewClientWith(enq)

	require.NoError(t, client.Record(context.Background(), sampleEntry()))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskAuditRecord, enq.tasks[0].Type())

	var decoded audit.Entry
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &decoded))
	assert.Equal(t, "department", decoded.Entity)
	assert.Equal(t, "nadia", decoded.Actor)
}

func TestClientRecordRejectsInvalidEntry(t *testing.T) {
	enq := &captureEnqueuer{}
	err := NewClientWith(enq).Record(context.Background(), audit.Entry{})
	require.Error(t, err)
	assert.Empty(t, enq.tasks)
}

func TestHandleRecordDelivers(t *testing.T) {
	rec := &memRecorder{}
	job := NewAuditJob(rec, nil, nil)
	task, err := NewAuditRecordTask(sampleEntry())
	require.NoError(t, err)

	require.NoError(t, job.HandleRecord(context.Background(), task))
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "create", rec.entries[0].Action)
}

func TestHandleRecordSkipsRetryOnBadPayload(t *testing.T) {
	job := NewAuditJob(&memRecorder{}, nil, nil)
	err := job.HandleRecord(context.Background(), asynq.NewTask(TaskAuditRecord, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleRecordRetriesStoreFailure(t *testing.T) {
	job := NewAuditJob(&memRecorder{err: errors.New("db down")}, nil, nil)
	task, err := NewAuditRecordTask(sampleEntry())
	require.NoError(t, err)
	err = job.HandleRecord(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandlePrune(t *testing.T) {
	pruner := &stubPruner{}
	job := NewAuditJob(&memRecorder{}, pruner, nil)
	task, err := NewAuditPruneTask(30)
	require.NoError(t, err)

	require.NoError(t, job.HandlePrune(context.Background(), task))
	assert.Equal(t, 30*24*time.Hour, pruner.retention)

	_, err = NewAuditPruneTask(0)
	assert.Error(t, err)

	noPruner := NewAuditJob(&memRecorder{}, nil, nil)
	assert.True(t, errors.Is(noPruner.HandlePrune(context.Background(), task), asynq.SkipRetry))
}

func TestAuditJobMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	job := NewAuditJob(&memRecorder{}, &stubPruner{}, nil).WithMetrics(metrics)

	task, err := NewAuditPruneTask(7)
	require.NoError(t, err)
	require.NoError(t, job.HandlePrune(context.Background(), task))

	record, err := NewAuditRecordTask(sampleEntry())
	require.NoError(t, err)
	require.NoError(t, job.HandleRecord(context.Background(), record))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "pointage_jobs_total")
	assert.Contains(t, names, "pointage_audit_pruned_total")
	assert.Equal(t, 2, testutil.CollectAndCount(registry, "pointage_jobs_total"))
}
