package auth

// ProjectCapabilities describes which datasets a verified project has
// enabled. Used to hide tools that cannot return data for the project.
type ProjectCapabilities struct {
	Profiles bool
	Replays  bool
	Logs     bool
	Traces   bool
}

// Constraints restricts a request to an organization, project and region.
// Derived from the URL path /mcp/{org}/{project}, then verified against the
// upstream. Constraint values always override user-supplied tool arguments
// of the same name.
type Constraints struct {
	// OrganizationSlug is the org the request is scoped to. Empty = unscoped.
	OrganizationSlug string
	// ProjectSlug is the project the request is scoped to.
	// Invariant: when set, OrganizationSlug must also be set.
	ProjectSlug string
	// RegionURL is the region-specific API base URL discovered during
	// verification. Either a valid HTTPS URL or empty.
	RegionURL string
	// ProjectCapabilities holds the verified dataset capabilities.
	// Nil when the project lookup failed open (timeout) or no project is set.
	ProjectCapabilities *ProjectCapabilities
}

// ServerContext is the resolved per-request authorization context.
// Created at the entry of every MCP request, immutable thereafter.
type ServerContext struct {
	// UserID is the upstream user ID bound to the MCP token.
	UserID string
	// ClientID is the MCP client's OAuth client ID.
	ClientID string
	// AccessToken is the upstream access token acting on the user's behalf.
	AccessToken string
	// UpstreamHost is the upstream API hostname (never a URL).
	UpstreamHost string
	// MCPURL is the public URL of the MCP endpoint for this request.
	MCPURL string
	// GrantedScopes is the effective scope set granted at authorization.
	GrantedScopes ScopeSet
	// GrantedSkills is the skill set granted at authorization.
	GrantedSkills SkillSet
	// Constraints carries the verified org/project/region restriction.
	Constraints Constraints
	// ClientName and ClientVersion identify the MCP client, when sent.
	ClientName    string
	ClientVersion string
	// ProtocolVersion is the negotiated MCP protocol version.
	ProtocolVersion string
	// AgentMode is set by the agent=1 query flag. It narrows the visible
	// tool set to the use_sentry orchestrator so every request routes
	// through it.
	AgentMode bool
}
