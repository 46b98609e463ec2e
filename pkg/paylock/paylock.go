// Package paylock serializes payment verification per order. A lock is an
// optimization to avoid duplicate gateway verify calls and wasted work; the
// paid-transition transaction remains the correctness boundary either way.
package paylock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a crashed holder can keep an order locked.
const DefaultTTL = 5 * time.Minute

// Locker is an exclusive per-order verification lock with expiry.
type Locker interface {
	// Acquire takes the lock for orderID. It returns false when a live
	// lock is already held by another verification attempt.
	Acquire(ctx context.Context, orderID, authority string) (bool, error)
	// Release drops the lock unconditionally.
	Release(ctx context.Context, orderID string) error
}

// RedisLocker implements Locker with SET NX PX; expiry is enforced by Redis
// itself, so a crashed process never strands a lock.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, orderID, authority string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, key(orderID), authority, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("paylock acquire: %w", err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, orderID string) error {
	return l.rdb.Del(ctx, key(orderID)).Err()
}

func key(orderID string) string {
	return "paylock:" + orderID
}
