package tools

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/sentry-mcp/gateway/internal/adapter/outbound/sentryapi"
	"github.com/sentry-mcp/gateway/internal/agent"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/requestctx"
)

// stubTransport answers requests by "host path" lookup and records URLs.
type stubTransport struct {
	mu        sync.Mutex
	responses map[string]string
	status    map[string]int
	calls     []string
}

func newStubTransport() *stubTransport {
	return &stubTransport{responses: map[string]string{}, status: map[string]int{}}
}

func (s *stubTransport) respond(host, path, body string) {
	s.responses[host+" "+path] = body
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := req.URL.Host + " " + req.URL.Path
	s.mu.Lock()
	s.calls = append(s.calls, req.URL.String())
	body, ok := s.responses[key]
	status := s.status[key]
	s.mu.Unlock()
	if !ok {
		status = 404
		body = `{"detail": "The requested resource does not exist"}`
	}
	if status == 0 {
		status = 200
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func testRegistry(transport *stubTransport, runner agent.Runner) *Registry {
	httpClient := &http.Client{Transport: transport}
	return New(Deps{
		NewClient: func(sc *auth.ServerContext) *sentryapi.Client {
			return sentryapi.NewClient(sc.AccessToken, sc.UpstreamHost, sentryapi.WithHTTPClient(httpClient))
		},
		Agent:      runner,
		HTTPClient: httpClient,
	})
}

func testContext(sc *auth.ServerContext) context.Context {
	if sc == nil {
		sc = &auth.ServerContext{AccessToken: "tok", UpstreamHost: "sentry.io", UserID: "1"}
	}
	return requestctx.With(context.Background(), sc)
}

func callTool(t *testing.T, r *Registry, name string, ctx context.Context, args map[string]any) (any, error) {
	t.Helper()
	for _, cfg := range r.Tools() {
		if cfg.Name == name {
			return cfg.Handler(ctx, args)
		}
	}
	t.Fatalf("tool %q not registered", name)
	return nil, nil
}

func TestRegistry_UniqueNamesAndSchemas(t *testing.T) {
	r := testRegistry(newStubTransport(), nil)
	seen := map[string]bool{}
	for _, cfg := range r.Tools() {
		if seen[cfg.Name] {
			t.Errorf("duplicate tool name %q", cfg.Name)
		}
		seen[cfg.Name] = true
		if cfg.Description == "" {
			t.Errorf("tool %q has no description", cfg.Name)
		}
		if cfg.Handler == nil {
			t.Errorf("tool %q has no handler", cfg.Name)
		}
		for _, scope := range cfg.RequiredScopes {
			if !scope.IsValid() {
				t.Errorf("tool %q requires unknown scope %q", cfg.Name, scope)
			}
		}
		for _, skill := range cfg.RequiredSkills {
			if !skill.IsValid() {
				t.Errorf("tool %q requires unknown skill %q", cfg.Name, skill)
			}
		}
	}
	if !seen["whoami"] || !seen["use_sentry"] || !seen["search_events"] {
		t.Errorf("expected core tools, got %v", seen)
	}
}

func TestWhoami(t *testing.T) {
	transport := newStubTransport()
	transport.respond("sentry.io", "/api/0/auth/", `{"id":"42","name":"Jane Doe","email":"jane@example.com"}`)
	r := testRegistry(transport, nil)

	result, err := callTool(t, r, "whoami", testContext(nil), map[string]any{})
	if err != nil {
		t.Fatalf("whoami error: %v", err)
	}
	text := result.(string)
	if !strings.Contains(text, "jane@example.com") || !strings.Contains(text, "42") {
		t.Errorf("output = %q", text)
	}
}

func TestFindIssues_FormatsMarkdownWithIssueURL(t *testing.T) {
	transport := newStubTransport()
	transport.respond("sentry.io", "/api/0/organizations/acme/issues/",
		`[{"id":"1","shortId":"BACKEND-1","title":"TypeError in checkout","status":"unresolved","level":"error","count":"120","userCount":14,"permalink":"","project":{"slug":"backend"}}]`)
	r := testRegistry(transport, nil)

	result, err := callTool(t, r, "find_issues", testContext(nil), map[string]any{
		"organizationSlug": "acme",
		"query":            "is:unresolved",
	})
	if err != nil {
		t.Fatalf("find_issues error: %v", err)
	}
	text := result.(string)
	for _, want := range []string{
		"BACKEND-1", "TypeError in checkout",
		"https://acme.sentry.io/issues/BACKEND-1",
		"get_issue_details",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestFindIssues_RegionURLArgumentRetargetsClient(t *testing.T) {
	transport := newStubTransport()
	transport.respond("us.sentry.io", "/api/0/organizations/acme/issues/", `[]`)
	r := testRegistry(transport, nil)

	_, err := callTool(t, r, "find_issues", testContext(nil), map[string]any{
		"organizationSlug": "acme",
		"regionUrl":        "https://us.sentry.io",
	})
	if err != nil {
		t.Fatalf("find_issues error: %v", err)
	}
	if len(transport.calls) != 1 || !strings.HasPrefix(transport.calls[0], "https://us.sentry.io/") {
		t.Errorf("calls = %v", transport.calls)
	}
}

func TestUpdateIssue_RequiresAMutation(t *testing.T) {
	r := testRegistry(newStubTransport(), nil)
	_, err := callTool(t, r, "update_issue", testContext(nil), map[string]any{
		"organizationSlug": "acme",
		"issueId":          "BACKEND-1",
	})
	if err == nil || !strings.Contains(err.Error(), "at least one") {
		t.Errorf("expected input error, got %v", err)
	}
}

func TestGetDoc_RejectsTraversal(t *testing.T) {
	r := testRegistry(newStubTransport(), nil)
	for _, path := range []string{"../etc/passwd", "platforms/../../x.md", "https://evil.example/x.md", "no-extension"} {
		_, err := callTool(t, r, "get_doc", testContext(nil), map[string]any{"path": path})
		if err == nil {
			t.Errorf("path %q must be rejected", path)
		}
	}
}

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string) (bool, error) { return false, nil }

func TestAgentTools_RateLimited(t *testing.T) {
	r := New(Deps{Limiter: denyLimiter{}, Agent: &fixedRunner{}})
	_, err := callTool(t, r, "search_events", testContext(nil), map[string]any{
		"organizationSlug":     "acme",
		"naturalLanguageQuery": "slowest queries",
	})
	if err == nil || !strings.Contains(err.Error(), "too many") {
		t.Errorf("expected rate limit rejection, got %v", err)
	}
}

type fixedRunner struct {
	result *agent.Result
	reqs   []agent.Request
}

func (f *fixedRunner) Run(ctx context.Context, req agent.Request) (*agent.Result, error) {
	f.reqs = append(f.reqs, req)
	if f.result != nil {
		return f.result, nil
	}
	return &agent.Result{Text: "{}"}, nil
}

func TestUseSentry_AgentToolsRespectGrants(t *testing.T) {
	r := testRegistry(newStubTransport(), &fixedRunner{})
	names := func(defs []agent.ToolDef) map[string]bool {
		out := make(map[string]bool, len(defs))
		for _, def := range defs {
			out[def.Name] = true
		}
		return out
	}

	base := &auth.ServerContext{
		GrantedScopes: auth.ScopesFromPermissions(nil),
		GrantedSkills: auth.SkillsFromPermissions(nil),
	}
	got := names(r.agentTools(base))
	for _, denied := range []string{"update_issue", "create_team", "create_project", "update_project", "create_dsn"} {
		if got[denied] {
			t.Errorf("base session must not hand %q to the embedded agent", denied)
		}
	}
	for _, want := range []string{"whoami", "find_issues"} {
		if !got[want] {
			t.Errorf("base session missing read tool %q", want)
		}
	}

	triage := &auth.ServerContext{
		GrantedScopes: auth.ScopesFromPermissions([]string{auth.PermissionIssueTriage}),
		GrantedSkills: auth.SkillsFromPermissions([]string{auth.PermissionIssueTriage}),
	}
	got = names(r.agentTools(triage))
	if !got["update_issue"] {
		t.Error("triage session must expose update_issue to the embedded agent")
	}
	if got["create_project"] {
		t.Error("triage session must not expose project management tools")
	}
}

func TestUseSentry_AgentToolsExcludeSelfAndWrapErrors(t *testing.T) {
	r := testRegistry(newStubTransport(), &fixedRunner{})
	sc := &auth.ServerContext{
		AccessToken:  "tok",
		UpstreamHost: "sentry.io",
		Constraints:  auth.Constraints{OrganizationSlug: "acme"},
	}

	defs := r.agentTools(sc)
	for _, def := range defs {
		if def.Name == "use_sentry" {
			t.Fatal("use_sentry must not expose itself to the embedded agent")
		}
	}

	// A failing handler reports through the error shape, not a Go error.
	var whoami *agent.ToolDef
	for i := range defs {
		if defs[i].Name == "whoami" {
			whoami = &defs[i]
		}
	}
	if whoami == nil {
		t.Fatal("whoami missing from agent tool set")
	}
	out, err := whoami.Handler(testContext(sc), map[string]any{})
	if err != nil {
		t.Fatalf("agent tool handlers must not return Go errors: %v", err)
	}
	if !strings.Contains(out, `"error"`) {
		t.Errorf("failure must use the error shape, got %q", out)
	}
}
