// Package tools holds the tool, prompt and resource definitions exposed
// over MCP. Handlers read the per-request ServerContext from requestctx
// and return markdown for the calling agent.
package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/sentry-mcp/gateway/internal/adapter/outbound/sentryapi"
	"github.com/sentry-mcp/gateway/internal/agent"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
	"github.com/sentry-mcp/gateway/internal/requestctx"
	"github.com/sentry-mcp/gateway/internal/service"
)

// DocsHost is the default host serving user-facing documentation.
const DocsHost = "docs.sentry.io"

// Deps carries the shared dependencies of the tool handlers.
type Deps struct {
	// NewClient builds the upstream client for a request. Defaults to a
	// plain client on the context's token and host.
	NewClient func(sc *auth.ServerContext) *sentryapi.Client
	// Agent runs the embedded LLM loops. Nil disables the agent-backed
	// tools at call time (they stay listed but report a config error).
	Agent agent.Runner
	// Limiter rate-limits the agent-backed tools. Nil disables limiting.
	Limiter service.RateLimiter
	// HTTPClient performs documentation fetches.
	HTTPClient *http.Client
	// DocsHost overrides the documentation host.
	DocsHost string
	Logger   *slog.Logger
}

// Registry is the assembled tool set.
type Registry struct {
	deps     Deps
	configs  []tool.Config
	preparer *service.Preparer
}

// New assembles the registry. Tool order here is the order reported by
// tools/list.
func New(deps Deps) *Registry {
	if deps.NewClient == nil {
		deps.NewClient = func(sc *auth.ServerContext) *sentryapi.Client {
			return sentryapi.NewClient(sc.AccessToken, sc.UpstreamHost)
		}
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if deps.DocsHost == "" {
		deps.DocsHost = DocsHost
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := &Registry{deps: deps}
	r.configs = []tool.Config{
		r.whoami(),
		r.findOrganizations(),
		r.findTeams(),
		r.findProjects(),
		r.findReleases(),
		r.findTags(),
		r.findIssues(),
		r.getIssueDetails(),
		r.getEventAttachment(),
		r.updateIssue(),
		r.createTeam(),
		r.createProject(),
		r.updateProject(),
		r.createDSN(),
		r.findDSNs(),
		r.searchEvents(),
		r.searchIssues(),
		r.analyzeIssueWithSeer(),
		r.searchDocs(),
		r.getDoc(),
		r.useSentry(),
	}
	r.preparer = service.NewPreparer(r.configs)
	return r
}

// Tools returns the tool configs in listing order.
func (r *Registry) Tools() []tool.Config {
	return r.configs
}

// client resolves the request context and builds an upstream client,
// honoring a regionUrl argument (injected or user-supplied) and falling
// back to the verified constraint region.
func (r *Registry) client(ctx context.Context, args map[string]any) (*sentryapi.Client, *auth.ServerContext, error) {
	sc, ok := requestctx.From(ctx)
	if !ok {
		return nil, nil, mcperr.NewConfigurationError(nil, "No authorization context is available for this request.")
	}
	c := r.deps.NewClient(sc)
	if region := stringArg(args, tool.FieldRegionURL); region != "" {
		c = c.WithRegionURL(region)
	} else if sc.Constraints.RegionURL != "" {
		c = c.WithRegionURL(sc.Constraints.RegionURL)
	}
	return c, sc, nil
}

// checkRateLimit admits one agent-backed call per Allow. The key is a
// truncated digest of the access token, never the token itself. Limiter
// backend errors fail open.
func (r *Registry) checkRateLimit(ctx context.Context, sc *auth.ServerContext) error {
	if r.deps.Limiter == nil {
		return nil
	}
	sum := sha256.Sum256([]byte(sc.AccessToken))
	key := "ratelimit:" + hex.EncodeToString(sum[:8])
	allowed, err := r.deps.Limiter.Allow(ctx, key)
	if err != nil {
		r.deps.Logger.Debug("rate limiter unavailable", "error", err)
		return nil
	}
	if !allowed {
		return mcperr.NewUserInputError("You have issued too many AI-assisted requests. Please wait a minute and try again.")
	}
	return nil
}

// runner returns the embedded agent runner or a configuration error when
// no LLM backend is configured.
func (r *Registry) runner() (agent.Runner, error) {
	if r.deps.Agent == nil {
		return nil, mcperr.NewConfigurationError(nil, "No LLM provider is configured. Set OPENAI_API_KEY to enable this tool.")
	}
	return r.deps.Agent, nil
}
