package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SubmitLockKey builds the redis key guarding one in-flight dialog submission.
func SubmitLockKey(sessionID, entity, op, recordID string) string {
	if recordID == "" {
		recordID = "-"
	}
	return fmt.Sprintf("submit:%s:%s:%s:%s", sessionID, entity, op, recordID)
}

// SubmitLocks hands out short-lived exclusive keys so that a repeated submit
// of the same dialog is dropped while the first one is still running.
type SubmitLocks struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSubmitLocks constructs SubmitLocks. A zero ttl falls back to 30 seconds.
func NewSubmitLocks(client *redis.Client, ttl time.Duration) *SubmitLocks {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SubmitLocks{client: client, ttl: ttl}
}

// Acquire reports whether the caller now owns key.
func (l *SubmitLocks) Acquire(ctx context.Context, key string) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}
	return l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), l.ttl).Result()
}

// Release frees key.
func (l *SubmitLocks) Release(ctx context.Context, key string) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Del(ctx, key).Err()
}
