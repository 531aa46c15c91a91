package tool

import (
	"context"

	"github.com/sentry-mcp/gateway/internal/domain/auth"
)

// Canonical constraint-bound field names shared across tool schemas.
const (
	FieldOrganizationSlug = "organizationSlug"
	FieldProjectSlug      = "projectSlug"
	FieldProjectSlugOrID  = "projectSlugOrId"
	FieldRegionURL        = "regionUrl"
)

// Annotations carries the MCP tool behavior hints.
type Annotations struct {
	// ReadOnlyHint marks tools that never mutate upstream state.
	ReadOnlyHint bool `json:"readOnlyHint"`
	// OpenWorldHint marks tools that reach outside the upstream's domain.
	OpenWorldHint bool `json:"openWorldHint"`
}

// HandlerFunc executes a tool. It returns either a string (wrapped as a
// single text content part) or a []mcp.ContentPart. The ServerContext is
// read from requestctx on ctx.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Config is an immutable tool definition, created at startup.
type Config struct {
	// Name is the unique tool identifier.
	Name string
	// Description is surfaced to the agent. First line is the summary.
	Description string
	// Schema is the full declared input schema. What a given session sees
	// is a projection of this (see Schema.Without).
	Schema Schema
	// RequiredScopes must all be granted for the tool to be visible and callable.
	RequiredScopes []auth.Scope
	// RequiredSkills lists the skills that enable this tool.
	RequiredSkills []auth.Skill
	// Annotations carries MCP behavior hints.
	Annotations Annotations
	// AgentEntrypoint marks the orchestrator tool a session narrows to
	// when its agent flag is set.
	AgentEntrypoint bool
	// Handler executes the tool.
	Handler HandlerFunc
}

// ApplyConstraints merges the request constraints into args. For every
// constraint whose target field exists in the tool's full schema, the
// user-provided value is overwritten: constraints always win, this is the
// security boundary. The projectSlug constraint maps to projectSlugOrId
// when the schema declares projectSlugOrId and not projectSlug.
// The input map is not modified.
func ApplyConstraints(args map[string]any, c auth.Constraints, schema Schema) map[string]any {
	merged := make(map[string]any, len(args)+3)
	for k, v := range args {
		merged[k] = v
	}
	if c.OrganizationSlug != "" && schema.Has(FieldOrganizationSlug) {
		merged[FieldOrganizationSlug] = c.OrganizationSlug
	}
	if c.ProjectSlug != "" {
		if schema.Has(FieldProjectSlug) {
			merged[FieldProjectSlug] = c.ProjectSlug
		} else if schema.Has(FieldProjectSlugOrID) {
			merged[FieldProjectSlugOrID] = c.ProjectSlug
		}
	}
	if c.RegionURL != "" && schema.Has(FieldRegionURL) {
		merged[FieldRegionURL] = c.RegionURL
	}
	return merged
}

// ConstrainedFields returns the schema field names that are bound by the
// given constraints and must be hidden from the session's visible schema.
func ConstrainedFields(c auth.Constraints) []string {
	var fields []string
	if c.OrganizationSlug != "" {
		fields = append(fields, FieldOrganizationSlug)
	}
	if c.ProjectSlug != "" {
		fields = append(fields, FieldProjectSlug, FieldProjectSlugOrID)
	}
	if c.RegionURL != "" {
		fields = append(fields, FieldRegionURL)
	}
	return fields
}
