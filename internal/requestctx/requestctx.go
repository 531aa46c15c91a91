// Package requestctx carries the resolved per-request ServerContext on a
// context.Context so that tool handlers and upstream clients observe the
// request's authorization state without threading it through every
// signature. Nested With calls stack: the inner value is observed inside,
// the outer value again after the inner scope ends. Concurrent requests
// are isolated by construction since each owns its own context chain.
package requestctx

import (
	"context"

	"github.com/sentry-mcp/gateway/internal/domain/auth"
)

// serverContextKey is the context key type for the ServerContext.
type serverContextKey struct{}

// With returns a child context carrying the given ServerContext.
func With(ctx context.Context, sc *auth.ServerContext) context.Context {
	return context.WithValue(ctx, serverContextKey{}, sc)
}

// From retrieves the ServerContext from ctx. Returns (nil, false) outside
// of a request scope.
func From(ctx context.Context) (*auth.ServerContext, bool) {
	sc, ok := ctx.Value(serverContextKey{}).(*auth.ServerContext)
	return sc, ok
}

// MustFrom retrieves the ServerContext from ctx and returns an empty
// context when none is present. Handlers use this to avoid nil checks on
// paths that are only reachable from inside a request.
func MustFrom(ctx context.Context) *auth.ServerContext {
	if sc, ok := From(ctx); ok {
		return sc
	}
	return &auth.ServerContext{}
}
