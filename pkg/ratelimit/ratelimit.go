// Package ratelimit provides the per-user request cap enforced by the
// checkout endpoints. Auth and rate limiting policy live upstream; this is
// only the enforcement primitive.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	// Allow reports whether userID may perform another request in the
	// current window.
	Allow(ctx context.Context, userID string) (bool, error)
}

// RedisLimiter is a fixed-window counter: INCR + EXPIRE on first hit.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf("rl:%s:%d", userID, time.Now().Unix()/int64(l.window.Seconds()))
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= l.limit, nil
}

// AllowAll disables limiting, for tests and local development.
type AllowAll struct{}

func (AllowAll) Allow(context.Context, string) (bool, error) { return true, nil }
