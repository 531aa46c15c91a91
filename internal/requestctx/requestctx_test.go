package requestctx

import (
	"context"
	"sync"
	"testing"

	"github.com/sentry-mcp/gateway/internal/domain/auth"
)

func TestFrom_EmptyOutsideScope(t *testing.T) {
	if sc, ok := From(context.Background()); ok || sc != nil {
		t.Fatalf("expected no context outside With, got %+v", sc)
	}
	if sc := MustFrom(context.Background()); sc.UserID != "" {
		t.Fatalf("MustFrom outside scope must return empty context, got %+v", sc)
	}
}

func TestWith_Nesting(t *testing.T) {
	outer := &auth.ServerContext{UserID: "outer"}
	inner := &auth.ServerContext{UserID: "inner"}

	ctx := With(context.Background(), outer)
	innerCtx := With(ctx, inner)

	if sc, _ := From(innerCtx); sc.UserID != "inner" {
		t.Errorf("inner scope observed %q, want inner", sc.UserID)
	}
	// The outer context is untouched by the nested scope.
	if sc, _ := From(ctx); sc.UserID != "outer" {
		t.Errorf("outer scope observed %q, want outer", sc.UserID)
	}
}

func TestWith_ConcurrentIsolation(t *testing.T) {
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			ctx := With(context.Background(), &auth.ServerContext{UserID: id})
			for range 1000 {
				if sc, _ := From(ctx); sc.UserID != id {
					t.Errorf("context leak: observed %q, want %q", sc.UserID, id)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	if _, ok := From(context.Background()); ok {
		t.Error("background context polluted after concurrent runs")
	}
}
