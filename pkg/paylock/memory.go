package paylock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	authority string
	expiresAt time.Time
}

// MemoryLocker is an in-process Locker for single-node deployments and
// tests. Expired entries are swept on every Acquire.
type MemoryLocker struct {
	mu    sync.Mutex
	ttl   time.Duration
	locks map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLocker{
		ttl:   ttl,
		locks: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, orderID, authority string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, e := range l.locks {
		if !e.expiresAt.After(now) {
			delete(l.locks, id)
		}
	}

	if _, held := l.locks[orderID]; held {
		return false, nil
	}
	l.locks[orderID] = memoryEntry{authority: authority, expiresAt: now.Add(l.ttl)}
	return true, nil
}

func (l *MemoryLocker) Release(_ context.Context, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, orderID)
	return nil
}
