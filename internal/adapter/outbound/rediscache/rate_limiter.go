package rediscache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentry-mcp/gateway/internal/service"
)

// RateLimiter implements service.RateLimiter with a fixed window counter
// in Redis. One INCR per Allow; the window expiry is set on first use.
type RateLimiter struct {
	rdb    redis.UniversalClient
	limit  int64
	window time.Duration
}

// NewRateLimiter creates a limiter allowing limit requests per window.
func NewRateLimiter(rdb redis.UniversalClient, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &RateLimiter{rdb: rdb, limit: int64(limit), window: window}
}

// Allow reports whether one request under key may proceed. A Redis error
// is returned as-is; the caller decides the failure policy.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	pipe := l.rdb.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return count.Val() <= l.limit, nil
}

// Compile-time interface verification.
var _ service.RateLimiter = (*RateLimiter)(nil)
