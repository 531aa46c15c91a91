package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sentry-mcp/gateway/internal/service"
)

// RateLimiter implements service.RateLimiter with GCRA in memory.
// Thread-safe. Single-node only; use the Redis limiter when the gateway
// runs behind a load balancer.
type RateLimiter struct {
	mu    sync.Mutex
	cells map[string]time.Time // theoretical arrival time per key
	rate  int
	burst int
	// period is the window the rate applies to.
	period time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing rate requests per period with
// a burst of the same size.
func NewRateLimiter(rate int, period time.Duration) *RateLimiter {
	if rate <= 0 {
		rate = 1
	}
	return &RateLimiter{
		cells:  make(map[string]time.Time),
		rate:   rate,
		burst:  rate,
		period: period,
		now:    time.Now,
	}
}

// Allow reports whether one request under key may proceed.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	emission := l.period / time.Duration(l.rate)
	burstOffset := time.Duration(l.burst) * emission

	tat, ok := l.cells[key]
	if !ok || tat.Before(now) {
		tat = now
	}

	if now.Before(tat.Add(-burstOffset)) {
		return false, nil
	}

	newTAT := tat.Add(emission)
	if newTAT.Before(now) {
		newTAT = now.Add(emission)
	}
	l.cells[key] = newTAT
	return true, nil
}

// Compile-time interface verification.
var _ service.RateLimiter = (*RateLimiter)(nil)
