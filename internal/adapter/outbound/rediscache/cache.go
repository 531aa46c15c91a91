// Package rediscache implements the constraints cache and the rate-limit
// counter on Redis, for multi-node deployments. Both are fail-open: cache
// read errors surface as misses and limiter errors are left to the
// caller's fail-open policy.
package rediscache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentry-mcp/gateway/internal/service"
)

// Cache implements service.ConstraintsCache on a Redis client.
type Cache struct {
	rdb    redis.UniversalClient
	logger *slog.Logger
}

// NewCache creates a cache over the given Redis client.
func NewCache(rdb redis.UniversalClient, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{rdb: rdb, logger: logger}
}

// Get returns the cached entry and true on a hit. Any Redis or decoding
// error is reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) (*service.CachedConstraints, bool) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("constraints cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var entry service.CachedConstraints
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Debug("constraints cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return &entry, true
}

// Set stores an entry with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value service.CachedConstraints, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, encoded, ttl).Err()
}

// Compile-time interface verification.
var _ service.ConstraintsCache = (*Cache)(nil)
