// Package service contains the application services: tool preparation,
// MCP dispatch, and constraint verification.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sentry-mcp/gateway/internal/domain/auth"
)

// CachedConstraints is the cacheable result of a successful constraint
// verification.
type CachedConstraints struct {
	RegionURL           string                    `json:"regionUrl,omitempty"`
	ProjectCapabilities *auth.ProjectCapabilities `json:"projectCapabilities"`
	CachedAt            time.Time                 `json:"cachedAt"`
}

// ConstraintsCacheTTL is how long verified constraints stay cached.
const ConstraintsCacheTTL = 15 * time.Minute

// ConstraintsCache is the outbound port for the verification cache.
// Implementations must be fail-open: a read error is reported as a miss
// by callers, and writes are fire-and-forget.
type ConstraintsCache interface {
	// Get returns the cached entry and true on a hit.
	Get(ctx context.Context, key string) (*CachedConstraints, bool)
	// Set stores an entry with the given TTL.
	Set(ctx context.Context, key string, value CachedConstraints, ttl time.Duration) error
}

// ConstraintsCacheKey builds the versioned cache key for a verification.
func ConstraintsCacheKey(userID, host, org, project string) string {
	return fmt.Sprintf("caps:v1:%s:%s:%s:%s", userID, host, org, project)
}

// RateLimiter is the outbound port for the per-token rate limit counter.
type RateLimiter interface {
	// Allow reports whether a request under key may proceed. An error means
	// the limiter backend is unavailable; callers decide the failure policy.
	Allow(ctx context.Context, key string) (bool, error)
}
