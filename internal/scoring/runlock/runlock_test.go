package runlock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLock_AcquireRelease(t *testing.T) {
	lock := NewMemoryLock()
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "2026-08-20", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Acquire(ctx, "2026-08-20", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	// a different date is independent
	ok, err = lock.Acquire(ctx, "2026-08-21", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lock.Release(ctx, "2026-08-20"))
	ok, err = lock.Acquire(ctx, "2026-08-20", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLock_ExpiredLeaseIsReacquirable(t *testing.T) {
	lock := NewMemoryLock()
	now := time.Now()
	lock.clock = func() time.Time { return now }

	ok, err := lock.Acquire(context.Background(), "2026-08-20", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// a crashed holder never releases; the lease must lapse on its own
	lock.clock = func() time.Time { return now.Add(2 * time.Minute) }
	ok, err = lock.Acquire(context.Background(), "2026-08-20", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
