package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TaskGraphLockKey builds redis keys serializing dependency-graph mutations
// rooted at a task.
func TaskGraphLockKey(taskID uuid.UUID) string {
	return fmt.Sprintf("task:%s:graph:lock", taskID)
}

// Locker provides best-effort application-level write serialization on top
// of redis SET NX. With no redis client it degrades to a no-op: callers fall
// back to the database's own conflict detection.
type Locker struct {
	client *redis.Client
}

// NewLocker returns a Locker backed by the given client. A nil client is allowed.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// Acquire takes the lock and returns a release function. When the lock is
// held elsewhere it retries until the context is done.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			// Lock layer unavailable; proceed unlocked rather than fail.
			return func() {}, nil
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
	release := func() {
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		_ = l.client.Eval(context.Background(), script, []string{key}, token).Err()
	}
	return release, nil
}
