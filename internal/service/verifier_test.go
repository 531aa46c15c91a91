package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sentry-mcp/gateway/internal/adapter/outbound/sentryapi"
)

// routedTransport answers requests by "host path" lookup.
type routedTransport struct {
	mu        sync.Mutex
	responses map[string]routedResponse
	delays    map[string]time.Duration
	calls     []string
}

type routedResponse struct {
	status int
	body   string
}

func newRoutedTransport() *routedTransport {
	return &routedTransport{
		responses: map[string]routedResponse{},
		delays:    map[string]time.Duration{},
	}
}

func (r *routedTransport) respond(host, path string, status int, body string) {
	r.responses[host+" "+path] = routedResponse{status: status, body: body}
}

func (r *routedTransport) delay(host, path string, d time.Duration) {
	r.delays[host+" "+path] = d
}

func (r *routedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := req.URL.Host + " " + req.URL.Path
	r.mu.Lock()
	r.calls = append(r.calls, key)
	resp, ok := r.responses[key]
	delay := r.delays[key]
	r.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	if !ok {
		resp = routedResponse{status: 404, body: `{"detail": "The requested resource does not exist"}`}
	}
	return &http.Response{
		StatusCode: resp.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(resp.body)),
		Request:    req,
	}, nil
}

func (r *routedTransport) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func verifierWith(transport *routedTransport, cache ConstraintsCache) *Verifier {
	factory := func(token, host string) *sentryapi.Client {
		return sentryapi.NewClient(token, host, sentryapi.WithHTTPClient(&http.Client{Transport: transport}))
	}
	return NewVerifier(factory, cache, slog.New(slog.DiscardHandler))
}

// memCache is a simple in-process ConstraintsCache for tests.
type memCache struct {
	mu      sync.Mutex
	entries map[string]CachedConstraints
	sets    int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]CachedConstraints{}}
}

func (m *memCache) Get(ctx context.Context, key string) (*CachedConstraints, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[key]; ok {
		return &entry, true
	}
	return nil, false
}

func (m *memCache) Set(ctx context.Context, key string, value CachedConstraints, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	m.sets++
	return nil
}

func TestVerify_NoOrgShortCircuits(t *testing.T) {
	transport := newRoutedTransport()
	result := verifierWith(transport, nil).Verify(context.Background(), VerifyRequest{
		AccessToken: "tok", Host: "sentry.io",
	})
	if !result.OK {
		t.Fatalf("unconstrained requests need no verification: %+v", result)
	}
	if transport.callCount() != 0 {
		t.Errorf("no upstream calls expected, got %d", transport.callCount())
	}
}

func TestVerify_MissingToken(t *testing.T) {
	result := verifierWith(newRoutedTransport(), nil).Verify(context.Background(), VerifyRequest{
		OrganizationSlug: "acme", Host: "sentry.io",
	})
	if result.OK || result.Status != 401 {
		t.Fatalf("got %+v", result)
	}
	if result.Message != "Missing access token for constraint verification" {
		t.Errorf("message = %q", result.Message)
	}
}

func TestVerify_OrgNotFound(t *testing.T) {
	transport := newRoutedTransport()
	result := verifierWith(transport, nil).Verify(context.Background(), VerifyRequest{
		OrganizationSlug: "ghost", AccessToken: "tok", Host: "sentry.io",
	})
	if result.OK || result.Status != 404 || result.Message != "Organization 'ghost' not found" {
		t.Fatalf("got %+v", result)
	}
}

func TestVerify_OrgOnlyCapturesRegion(t *testing.T) {
	transport := newRoutedTransport()
	transport.respond("sentry.io", "/api/0/organizations/acme/", 200,
		`{"slug":"acme","links":{"regionUrl":"https://us.sentry.io"}}`)

	result := verifierWith(transport, nil).Verify(context.Background(), VerifyRequest{
		OrganizationSlug: "acme", AccessToken: "tok", Host: "sentry.io",
	})
	if !result.OK {
		t.Fatalf("got %+v", result)
	}
	if result.Constraints.RegionURL != "https://us.sentry.io" {
		t.Errorf("region URL = %q", result.Constraints.RegionURL)
	}
	if result.Constraints.ProjectCapabilities != nil {
		t.Error("no project, no capabilities")
	}
}

func TestVerify_ProjectDerivesCapabilities(t *testing.T) {
	transport := newRoutedTransport()
	transport.respond("sentry.io", "/api/0/organizations/acme/", 200,
		`{"slug":"acme","links":{"regionUrl":"https://us.sentry.io"}}`)
	transport.respond("us.sentry.io", "/api/0/projects/acme/backend/", 200,
		`{"slug":"backend","hasProfiles":true,"hasReplays":false,"hasLogs":true,"firstTransactionEvent":true}`)

	cache := newMemCache()
	result := verifierWith(transport, cache).Verify(context.Background(), VerifyRequest{
		OrganizationSlug: "acme", ProjectSlug: "backend",
		AccessToken: "tok", Host: "sentry.io", UserID: "42",
	})
	if !result.OK {
		t.Fatalf("got %+v", result)
	}
	caps := result.Constraints.ProjectCapabilities
	if caps == nil || !caps.Profiles || caps.Replays || !caps.Logs || !caps.Traces {
		t.Errorf("capabilities = %+v", caps)
	}

	// The project lookup must go through the region URL.
	found := false
	transport.mu.Lock()
	for _, call := range transport.calls {
		if strings.HasPrefix(call, "us.sentry.io ") {
			found = true
		}
	}
	transport.mu.Unlock()
	if !found {
		t.Errorf("project lookup did not use the region host: %v", transport.calls)
	}

	// Cache write is async.
	deadline := time.Now().Add(2 * time.Second)
	for {
		cache.mu.Lock()
		sets := cache.sets
		cache.mu.Unlock()
		if sets == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cache write never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}
	key := ConstraintsCacheKey("42", "sentry.io", "acme", "backend")
	if _, ok := cache.Get(context.Background(), key); !ok {
		t.Errorf("entry missing under %q", key)
	}
}

func TestVerify_CacheHitSkipsUpstream(t *testing.T) {
	transport := newRoutedTransport()
	cache := newMemCache()
	key := ConstraintsCacheKey("42", "sentry.io", "acme", "backend")
	cache.entries[key] = CachedConstraints{
		RegionURL: "https://us.sentry.io",
		CachedAt:  time.Now(),
	}

	result := verifierWith(transport, cache).Verify(context.Background(), VerifyRequest{
		OrganizationSlug: "acme", ProjectSlug: "backend",
		AccessToken: "tok", Host: "sentry.io", UserID: "42",
	})
	if !result.OK || result.Constraints.RegionURL != "https://us.sentry.io" {
		t.Fatalf("got %+v", result)
	}
	if transport.callCount() != 0 {
		t.Errorf("cache hit must not call upstream, got %d calls", transport.callCount())
	}
}

func TestVerify_ProjectNotFound(t *testing.T) {
	transport := newRoutedTransport()
	transport.respond("sentry.io", "/api/0/organizations/acme/", 200, `{"slug":"acme","links":{}}`)

	result := verifierWith(transport, nil).Verify(context.Background(), VerifyRequest{
		OrganizationSlug: "acme", ProjectSlug: "ghost",
		AccessToken: "tok", Host: "sentry.io",
	})
	if result.OK || result.Status != 404 {
		t.Fatalf("got %+v", result)
	}
	if result.Message != "Project 'ghost' not found in organization 'acme'" {
		t.Errorf("message = %q", result.Message)
	}
}

func TestVerify_NetworkFailureIs502WithEventID(t *testing.T) {
	transport := newRoutedTransport()
	transport.respond("sentry.io", "/api/0/organizations/acme/", 503, `{"detail": "upstream down"}`)

	result := verifierWith(transport, nil).Verify(context.Background(), VerifyRequest{
		OrganizationSlug: "acme", AccessToken: "tok", Host: "sentry.io",
	})
	if result.OK {
		t.Fatal("expected failure")
	}
	// 503 carries an APIError detail straight through.
	if result.Status != 503 || result.Message != "upstream down" {
		t.Errorf("got %+v", result)
	}
}
