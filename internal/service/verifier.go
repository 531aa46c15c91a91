package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sentry-mcp/gateway/internal/adapter/outbound/sentryapi"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
)

// projectLookupTimeout caps only the project verification call. Exceeding
// it degrades to nil capabilities instead of failing the request:
// capability-based filtering is an optimization, scope gating is the
// security control.
const projectLookupTimeout = 5 * time.Second

// ClientFactory builds an upstream client for a token/host pair. Injected
// so tests can intercept the transport.
type ClientFactory func(accessToken, host string) *sentryapi.Client

// VerifyRequest identifies what to verify and on whose behalf.
type VerifyRequest struct {
	OrganizationSlug string
	ProjectSlug      string
	AccessToken      string
	Host             string
	UserID           string
}

// VerifyResult is the outcome of a constraint verification.
type VerifyResult struct {
	OK          bool
	Constraints auth.Constraints
	// Status, Message and EventID describe the failure when OK is false.
	Status  int
	Message string
	EventID string
}

// Verifier confirms URL-derived constraints against the upstream and
// derives project capabilities. Successful project verifications may be
// cached for 15 minutes; the cache is strictly fail-open.
type Verifier struct {
	newClient ClientFactory
	cache     ConstraintsCache
	logger    *slog.Logger
}

// NewVerifier creates a Verifier. cache may be nil to disable caching.
func NewVerifier(factory ClientFactory, cache ConstraintsCache, logger *slog.Logger) *Verifier {
	if factory == nil {
		factory = func(token, host string) *sentryapi.Client {
			return sentryapi.NewClient(token, host)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{newClient: factory, cache: cache, logger: logger}
}

// Verify checks org existence (capturing the region URL) and project
// access (deriving capability flags). Failure modes are distinguished:
// missing token (401), unknown org/project (404), upstream trouble (502).
func (v *Verifier) Verify(ctx context.Context, req VerifyRequest) VerifyResult {
	if req.OrganizationSlug == "" {
		return VerifyResult{OK: true}
	}
	if req.AccessToken == "" {
		return VerifyResult{Status: 401, Message: "Missing access token for constraint verification"}
	}

	cacheKey := ConstraintsCacheKey(req.UserID, req.Host, req.OrganizationSlug, req.ProjectSlug)
	if req.ProjectSlug != "" && v.cache != nil {
		if entry, ok := v.cache.Get(ctx, cacheKey); ok {
			return VerifyResult{OK: true, Constraints: auth.Constraints{
				OrganizationSlug:    req.OrganizationSlug,
				ProjectSlug:         req.ProjectSlug,
				RegionURL:           entry.RegionURL,
				ProjectCapabilities: entry.ProjectCapabilities,
			}}
		}
	}

	client := v.newClient(req.AccessToken, req.Host)
	org, err := client.GetOrganization(ctx, req.OrganizationSlug)
	if err != nil {
		return v.orgFailure(req.OrganizationSlug, err)
	}

	constraints := auth.Constraints{
		OrganizationSlug: req.OrganizationSlug,
		RegionURL:        org.Links.RegionURL,
	}
	if req.ProjectSlug == "" {
		return VerifyResult{OK: true, Constraints: constraints}
	}
	constraints.ProjectSlug = req.ProjectSlug

	projectCtx, cancel := context.WithTimeout(ctx, projectLookupTimeout)
	defer cancel()
	project, err := client.WithRegionURL(org.Links.RegionURL).GetProject(projectCtx, req.OrganizationSlug, req.ProjectSlug)
	if err != nil {
		if projectCtx.Err() != nil && ctx.Err() == nil {
			// Only the project deadline fired: fail open for capability
			// filtering, tool authorization is still enforced downstream.
			v.logger.Warn("project capability lookup timed out",
				"organization", req.OrganizationSlug, "project", req.ProjectSlug)
			constraints.ProjectCapabilities = nil
			return VerifyResult{OK: true, Constraints: constraints}
		}
		return v.projectFailure(req.OrganizationSlug, req.ProjectSlug, err)
	}

	constraints.ProjectCapabilities = &auth.ProjectCapabilities{
		Profiles: project.HasProfiles,
		Replays:  project.HasReplays,
		Logs:     project.HasLogs,
		Traces:   project.FirstTransactionEvent,
	}

	if v.cache != nil {
		// Fire-and-forget: never block the response on the cache write.
		entry := CachedConstraints{
			RegionURL:           constraints.RegionURL,
			ProjectCapabilities: constraints.ProjectCapabilities,
			CachedAt:            time.Now().UTC(),
		}
		go func() {
			writeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := v.cache.Set(writeCtx, cacheKey, entry, ConstraintsCacheTTL); err != nil {
				v.logger.Debug("constraints cache write failed", "key", cacheKey, "error", err)
			}
		}()
	}

	return VerifyResult{OK: true, Constraints: constraints}
}

func (v *Verifier) orgFailure(org string, err error) VerifyResult {
	var apiErr *mcperr.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == 404 {
			return VerifyResult{Status: 404, Message: "Organization '" + org + "' not found"}
		}
		return VerifyResult{Status: apiErr.Status, Message: apiErr.Detail}
	}
	eventID := uuid.NewString()
	v.logger.Error("organization verification failed", "organization", org, "error", err, "event_id", eventID)
	return VerifyResult{Status: 502, Message: "Failed to verify organization", EventID: eventID}
}

func (v *Verifier) projectFailure(org, project string, err error) VerifyResult {
	var apiErr *mcperr.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == 404 {
			return VerifyResult{Status: 404, Message: "Project '" + project + "' not found in organization '" + org + "'"}
		}
		return VerifyResult{Status: apiErr.Status, Message: apiErr.Detail}
	}
	eventID := uuid.NewString()
	v.logger.Error("project verification failed", "organization", org, "project", project, "error", err, "event_id", eventID)
	return VerifyResult{Status: 502, Message: "Failed to verify project access", EventID: eventID}
}
