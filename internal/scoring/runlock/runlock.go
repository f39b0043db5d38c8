// Package runlock serializes score runs per list date. The job scheduler
// guarantees at-least-once delivery, so the same scoring unit can arrive on
// two instances at once; the lease makes the second delivery a fast no-op
// instead of a duplicate run. Score-record uniqueness still holds without the
// lock; the lease only avoids wasted work.
package runlock

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"listscreen/internal/domain"
)

// Lock grants a lease for running one list date. Acquire is non-blocking:
// ok=false means another holder is active.
type Lock interface {
	Acquire(ctx context.Context, date domain.ListDate, ttl time.Duration) (ok bool, err error)
	Release(ctx context.Context, date domain.ListDate) error
}

const keyPrefix = "scorerun:lock:"

// RedisLock is the distributed implementation, one SET NX per lease.
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

func (l *RedisLock) Acquire(ctx context.Context, date domain.ListDate, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, keyPrefix+date.String(), "held", ttl).Result()
}

func (l *RedisLock) Release(ctx context.Context, date domain.ListDate) error {
	return l.client.Del(ctx, keyPrefix+date.String()).Err()
}

// MemoryLock serializes runs within one process; the default when Redis is
// not configured.
type MemoryLock struct {
	mu    sync.Mutex
	held  map[domain.ListDate]time.Time
	clock func() time.Time
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{held: make(map[domain.ListDate]time.Time), clock: time.Now}
}

func (l *MemoryLock) Acquire(_ context.Context, date domain.ListDate, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if expiry, ok := l.held[date]; ok && l.clock().Before(expiry) {
		return false, nil
	}
	l.held[date] = l.clock().Add(ttl)
	return true, nil
}

func (l *MemoryLock) Release(_ context.Context, date domain.ListDate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, date)
	return nil
}
