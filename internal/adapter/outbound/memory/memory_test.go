package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sentry-mcp/gateway/internal/adapter/inbound/oauthgw"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/service"
)

func TestOAuthStoreClientRoundTrip(t *testing.T) {
	store := NewOAuthStore()
	ctx := context.Background()

	client := &oauthgw.Client{
		ID:           "client-a",
		Name:         "Test Client",
		RedirectURIs: []string{"https://client.example/callback"},
	}
	if err := store.SaveClient(ctx, client); err != nil {
		t.Fatalf("SaveClient: %v", err)
	}

	got, err := store.GetClient(ctx, "client-a")
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	if got.Name != "Test Client" || len(got.RedirectURIs) != 1 {
		t.Errorf("GetClient = %+v", got)
	}

	// Mutating the returned copy must not affect the stored client.
	got.RedirectURIs[0] = "https://evil.example"
	again, _ := store.GetClient(ctx, "client-a")
	if again.RedirectURIs[0] != "https://client.example/callback" {
		t.Error("stored client was mutated through the returned copy")
	}

	if _, err := store.GetClient(ctx, "missing"); !errors.Is(err, oauthgw.ErrNotFound) {
		t.Errorf("GetClient(missing) = %v, want ErrNotFound", err)
	}
}

func TestOAuthStoreConsumeGrantIsOneShot(t *testing.T) {
	store := NewOAuthStore()
	ctx := context.Background()

	grant := &oauthgw.Grant{
		Code:      "code-1",
		ClientID:  "client-a",
		UserID:    "12345",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	if err := store.SaveGrant(ctx, grant); err != nil {
		t.Fatalf("SaveGrant: %v", err)
	}

	first, err := store.ConsumeGrant(ctx, "code-1")
	if err != nil {
		t.Fatalf("first ConsumeGrant: %v", err)
	}
	if first.UserID != "12345" {
		t.Errorf("UserID = %q", first.UserID)
	}

	if _, err := store.ConsumeGrant(ctx, "code-1"); !errors.Is(err, oauthgw.ErrNotFound) {
		t.Errorf("second ConsumeGrant = %v, want ErrNotFound", err)
	}
}

func TestOAuthStoreExpiredGrant(t *testing.T) {
	store := NewOAuthStore()
	ctx := context.Background()

	_ = store.SaveGrant(ctx, &oauthgw.Grant{
		Code:      "stale",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if _, err := store.ConsumeGrant(ctx, "stale"); !errors.Is(err, oauthgw.ErrNotFound) {
		t.Errorf("ConsumeGrant(expired) = %v, want ErrNotFound", err)
	}
}

func TestOAuthStoreTokenExpiry(t *testing.T) {
	store := NewOAuthStore()
	ctx := context.Background()

	token := &oauthgw.Token{
		Digest:        "digest-1",
		UserID:        "12345",
		GrantedScopes: auth.BaseScopes(),
		GrantedSkills: auth.NewSkillSet(auth.SkillInspect),
		ExpiresAt:     time.Now().Add(time.Hour),
	}
	if err := store.SaveToken(ctx, token); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	got, err := store.GetToken(ctx, "digest-1")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if !got.GrantedSkills.Has(auth.SkillInspect) {
		t.Error("GrantedSkills lost in round trip")
	}

	// Simulate clock advance past expiry.
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := store.GetToken(ctx, "digest-1"); !errors.Is(err, oauthgw.ErrNotFound) {
		t.Errorf("GetToken(expired) = %v, want ErrNotFound", err)
	}

	if err := store.DeleteToken(ctx, "digest-1"); err != nil {
		t.Errorf("DeleteToken: %v", err)
	}
}

func TestConstraintsCacheTTL(t *testing.T) {
	cache := NewConstraintsCache()
	ctx := context.Background()
	key := service.ConstraintsCacheKey("12345", "sentry.io", "acme", "backend")

	if _, ok := cache.Get(ctx, key); ok {
		t.Fatal("Get on empty cache reported a hit")
	}

	entry := service.CachedConstraints{
		RegionURL:           "https://us.sentry.io",
		ProjectCapabilities: &auth.ProjectCapabilities{Logs: true},
		CachedAt:            time.Now().UTC(),
	}
	if err := cache.Set(ctx, key, entry, service.ConstraintsCacheTTL); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := cache.Get(ctx, key)
	if !ok {
		t.Fatal("Get after Set missed")
	}
	if got.RegionURL != "https://us.sentry.io" || !got.ProjectCapabilities.Logs {
		t.Errorf("Get = %+v", got)
	}

	cache.now = func() time.Time { return time.Now().Add(16 * time.Minute) }
	if _, ok := cache.Get(ctx, key); ok {
		t.Error("Get returned an expired entry")
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)
	ctx := context.Background()

	allowedCount := 0
	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(ctx, "key-a")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if allowed {
			allowedCount++
		}
	}
	if allowedCount >= 10 {
		t.Errorf("allowed %d of 10 requests, want the burst to cap it", allowedCount)
	}

	// A different key has its own budget.
	if allowed, _ := limiter.Allow(ctx, "key-b"); !allowed {
		t.Error("fresh key was rate limited")
	}
}
