package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaseStore coordinates which worker owns a given workflow id when
// multiple worker processes share one task queue (spec.md §5 "Worker
// pool"). A workflow instance doesn't need a token-bucket refill the way
// an API rate limiter does — only mutual exclusion for the lease
// duration — so this is a plain SetNX-with-TTL rather than the Lua
// token-bucket script a request-rate limiter uses.
type LeaseStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaseStore connects to addr. A zero ttl defaults to 2 minutes,
// comfortably longer than any single activity's start-to-close timeout
// in the retry table (spec.md §4.7.5) so a live worker's lease never
// expires mid-activity.
func NewLeaseStore(addr, password string, db int, ttl time.Duration) *LeaseStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &LeaseStore{client: client, ttl: ttl}
}

// Close releases the underlying Redis connection.
func (l *LeaseStore) Close() error { return l.client.Close() }

// TTL returns the lease duration Acquire/Renew use, so a caller can pick
// a renewal cadence (e.g. half the TTL) without hardcoding it twice.
func (l *LeaseStore) TTL() time.Duration { return l.ttl }

func (l *LeaseStore) key(workflowID string) string {
	return fmt.Sprintf("apcore:workflow-lease:%s", workflowID)
}

// Acquire claims workflowID for ownerID. Returns false, nil if another
// owner already holds a live lease.
func (l *LeaseStore) Acquire(ctx context.Context, workflowID, ownerID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(workflowID), ownerID, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("workflow: acquire lease %s: %w", workflowID, err)
	}
	return ok, nil
}

// Renew extends ownerID's lease on workflowID if it still holds it.
// A worker calls this periodically (same cadence as an activity's
// heartbeat) while still processing the workflow.
func (l *LeaseStore) Renew(ctx context.Context, workflowID, ownerID string) (bool, error) {
	held, err := l.client.Get(ctx, l.key(workflowID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("workflow: renew lease %s: %w", workflowID, err)
	}
	if held != ownerID {
		return false, nil
	}
	if err := l.client.Expire(ctx, l.key(workflowID), l.ttl).Err(); err != nil {
		return false, fmt.Errorf("workflow: renew lease %s: %w", workflowID, err)
	}
	return true, nil
}

// Release drops ownerID's lease on workflowID, if held, so another
// worker can immediately pick the workflow up (e.g. on graceful
// shutdown rather than waiting out the TTL).
func (l *LeaseStore) Release(ctx context.Context, workflowID, ownerID string) error {
	held, err := l.client.Get(ctx, l.key(workflowID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("workflow: release lease %s: %w", workflowID, err)
	}
	if held != ownerID {
		return nil
	}
	return l.client.Del(ctx, l.key(workflowID)).Err()
}
