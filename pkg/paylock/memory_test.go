package paylock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerMutualExclusion(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker(time.Minute)

	ok, err := l.Acquire(ctx, "order-1", "auth-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "order-1", "auth-b")
	require.NoError(t, err)
	assert.False(t, ok, "second acquire before release must fail")

	// An unrelated order is not affected.
	ok, err = l.Acquire(ctx, "order-2", "auth-c")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "order-1"))
	ok, err = l.Acquire(ctx, "order-1", "auth-b")
	require.NoError(t, err)
	assert.True(t, ok, "acquire after release must succeed")
}

func TestMemoryLockerExpiryRecovery(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker(time.Minute)

	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	ok, err := l.Acquire(ctx, "order-1", "auth-a")
	require.NoError(t, err)
	require.True(t, ok)

	// Before expiry the lock still excludes.
	now = now.Add(59 * time.Second)
	ok, err = l.Acquire(ctx, "order-1", "auth-b")
	require.NoError(t, err)
	assert.False(t, ok)

	// Past expiry the stale lock is swept and acquisition succeeds.
	now = now.Add(2 * time.Second)
	ok, err = l.Acquire(ctx, "order-1", "auth-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLockerConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker(time.Minute)

	const n = 32
	var wg sync.WaitGroup
	won := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Acquire(ctx, "order-1", "auth")
			assert.NoError(t, err)
			if ok {
				won <- "winner"
			}
		}()
	}
	wg.Wait()
	close(won)

	count := 0
	for range won {
		count++
	}
	assert.Equal(t, 1, count, "exactly one goroutine may hold the lock")
}
