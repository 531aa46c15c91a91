package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sentry-mcp/gateway/internal/service"
)

// cacheEntry pairs a cached value with its expiry.
type cacheEntry struct {
	value     service.CachedConstraints
	expiresAt time.Time
}

// ConstraintsCache implements service.ConstraintsCache with a TTL map.
// Expired entries are evicted lazily on read.
type ConstraintsCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewConstraintsCache creates an empty in-memory constraints cache.
func NewConstraintsCache() *ConstraintsCache {
	return &ConstraintsCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached entry and true on a hit.
func (c *ConstraintsCache) Get(ctx context.Context, key string) (*service.CachedConstraints, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	value := entry.value
	return &value, true
}

// Set stores an entry with the given TTL.
func (c *ConstraintsCache) Set(ctx context.Context, key string, value service.CachedConstraints, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

// Compile-time interface verification.
var _ service.ConstraintsCache = (*ConstraintsCache)(nil)
