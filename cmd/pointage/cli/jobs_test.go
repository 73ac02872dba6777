package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointage-admin/pointage-admin/jobs"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Queue: jobs.QueueDefault, Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeInspector struct{}

func (fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return &asynq.QueueInfo{Queue: queue, Pending: 3, Retry: 1}, nil
}

func (fakeInspector) Close() error { return nil }

func TestRunPruneUsesDefaultRetention(t *testing.T) {
	enq := &fakeEnqueuer{}
	var out bytes.Buffer
	require.NoError(t, NewJobsCLIWith(enq, fakeInspector{}).Run(context.Background(), []string{"prune"}, 90, &out))

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, jobs.TaskAuditPrune, enq.tasks[0].Type())
	var payload jobs.AuditPrunePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, 90, payload.RetentionDays)
	assert.Equal(t, "enqueued audit:prune (t1) on default\n", out.String())
}

func TestRunPruneRejectsBadRetention(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := NewJobsCLIWith(enq, fakeInspector{})
	assert.Error(t, c.Run(context.Background(), []string{"prune", "abc"}, 90, &bytes.Buffer{}))
	assert.Error(t, c.Run(context.Background(), []string{"prune", "0"}, 90, &bytes.Buffer{}))
	assert.Empty(t, enq.tasks)
}

func TestRunStats(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewJobsCLIWith(&fakeEnqueuer{}, fakeInspector{}).Run(context.Background(), []string{"stats"}, 90, &out))
	assert.Equal(t, "queue=default pending=3 active=0 scheduled=0 retry=1\n", out.String())
}

func TestRunUnknownCommand(t *testing.T) {
	err := NewJobsCLIWith(&fakeEnqueuer{}, fakeInspector{}).Run(context.Background(), nil, 90, &bytes.Buffer{})
	assert.Error(t, err)
}
