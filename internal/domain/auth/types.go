// Package auth contains the domain types and logic for authorization:
// scopes, skills, and the per-request server context.
package auth

// Scope represents a fine-grained permission in the upstream's vocabulary.
type Scope string

const (
	// ScopeOrgRead grants read access to organizations.
	ScopeOrgRead Scope = "org:read"
	// ScopeOrgWrite grants write access to organizations.
	ScopeOrgWrite Scope = "org:write"
	// ScopeProjectRead grants read access to projects.
	ScopeProjectRead Scope = "project:read"
	// ScopeProjectWrite grants write access to projects.
	ScopeProjectWrite Scope = "project:write"
	// ScopeProjectReleases grants access to release management.
	ScopeProjectReleases Scope = "project:releases"
	// ScopeTeamRead grants read access to teams.
	ScopeTeamRead Scope = "team:read"
	// ScopeTeamWrite grants write access to teams.
	ScopeTeamWrite Scope = "team:write"
	// ScopeMemberRead grants read access to organization members.
	ScopeMemberRead Scope = "member:read"
	// ScopeEventRead grants read access to events and issues.
	ScopeEventRead Scope = "event:read"
	// ScopeEventWrite grants write access to events and issues.
	ScopeEventWrite Scope = "event:write"
)

// IsValid returns true if the scope is a known valid scope.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeOrgRead, ScopeOrgWrite, ScopeProjectRead, ScopeProjectWrite,
		ScopeProjectReleases, ScopeTeamRead, ScopeTeamWrite, ScopeMemberRead,
		ScopeEventRead, ScopeEventWrite:
		return true
	default:
		return false
	}
}

// AllScopes returns every known scope in a stable order. The OAuth
// federation requests all of them from the upstream; what the MCP client
// actually receives is narrowed by the approved permissions.
func AllScopes() []Scope {
	return []Scope{
		ScopeOrgRead, ScopeOrgWrite, ScopeProjectRead, ScopeProjectWrite,
		ScopeProjectReleases, ScopeTeamRead, ScopeTeamWrite, ScopeMemberRead,
		ScopeEventRead, ScopeEventWrite,
	}
}

// Skill represents a user-facing authorization bundle. Each tool declares
// the skills that enable it; granted skills imply a computed scope set.
type Skill string

const (
	// SkillInspect enables read-only inspection tools.
	SkillInspect Skill = "inspect"
	// SkillTriage enables issue triage tools (assign, resolve).
	SkillTriage Skill = "triage"
	// SkillProjectManagement enables project and team management tools.
	SkillProjectManagement Skill = "project-management"
	// SkillSeer enables the Seer AI root-cause analysis tools.
	SkillSeer Skill = "seer"
	// SkillDocs enables the documentation search tools.
	SkillDocs Skill = "docs"
)

// IsValid returns true if the skill is a known valid skill.
func (s Skill) IsValid() bool {
	switch s {
	case SkillInspect, SkillTriage, SkillProjectManagement, SkillSeer, SkillDocs:
		return true
	default:
		return false
	}
}

// AllSkills returns every known skill in a stable order.
func AllSkills() []Skill {
	return []Skill{SkillInspect, SkillTriage, SkillProjectManagement, SkillSeer, SkillDocs}
}

// ScopeSet is a set of scopes.
type ScopeSet map[Scope]struct{}

// NewScopeSet builds a ScopeSet from the given scopes.
func NewScopeSet(scopes ...Scope) ScopeSet {
	set := make(ScopeSet, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return set
}

// Has returns true if the set contains the scope.
func (s ScopeSet) Has(scope Scope) bool {
	_, ok := s[scope]
	return ok
}

// ContainsAll returns true if every scope in scopes is in the set.
func (s ScopeSet) ContainsAll(scopes []Scope) bool {
	for _, scope := range scopes {
		if !s.Has(scope) {
			return false
		}
	}
	return true
}

// Add inserts the given scopes into the set.
func (s ScopeSet) Add(scopes ...Scope) {
	for _, scope := range scopes {
		s[scope] = struct{}{}
	}
}

// Clone returns a copy of the set.
func (s ScopeSet) Clone() ScopeSet {
	out := make(ScopeSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// SkillSet is a set of skills.
type SkillSet map[Skill]struct{}

// NewSkillSet builds a SkillSet from the given skills.
func NewSkillSet(skills ...Skill) SkillSet {
	set := make(SkillSet, len(skills))
	for _, s := range skills {
		set[s] = struct{}{}
	}
	return set
}

// Has returns true if the set contains the skill.
func (s SkillSet) Has(skill Skill) bool {
	_, ok := s[skill]
	return ok
}

// Intersects returns true if any of the given skills is in the set.
func (s SkillSet) Intersects(skills []Skill) bool {
	for _, skill := range skills {
		if s.Has(skill) {
			return true
		}
	}
	return false
}

// Clone returns a copy of the set.
func (s SkillSet) Clone() SkillSet {
	out := make(SkillSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// BaseScopes returns the scopes always granted after authentication.
func BaseScopes() ScopeSet {
	return NewScopeSet(
		ScopeOrgRead,
		ScopeProjectRead,
		ScopeTeamRead,
		ScopeMemberRead,
		ScopeEventRead,
		ScopeProjectReleases,
	)
}

// Permission names accepted on the OAuth approval form.
const (
	// PermissionIssueTriage grants issue write access (resolve, assign).
	PermissionIssueTriage = "issue_triage"
	// PermissionProjectManagement grants project and team write access.
	PermissionProjectManagement = "project_management"
)

// ScopesFromPermissions maps the approval-form permissions to a scope set.
// It always starts from the base scopes. Unknown permission names are
// ignored; a nil or otherwise invalid list degrades to the base set.
func ScopesFromPermissions(permissions []string) ScopeSet {
	scopes := BaseScopes()
	for _, p := range permissions {
		switch p {
		case PermissionIssueTriage:
			scopes.Add(ScopeEventWrite)
		case PermissionProjectManagement:
			scopes.Add(ScopeProjectWrite, ScopeTeamWrite)
		}
	}
	return scopes
}

// SkillsFromPermissions maps the approval-form permissions to granted skills.
// Inspection, Seer and docs skills are always granted; triage and project
// management require the corresponding permission.
func SkillsFromPermissions(permissions []string) SkillSet {
	skills := NewSkillSet(SkillInspect, SkillSeer, SkillDocs)
	for _, p := range permissions {
		switch p {
		case PermissionIssueTriage:
			skills[SkillTriage] = struct{}{}
		case PermissionProjectManagement:
			skills[SkillProjectManagement] = struct{}{}
		}
	}
	return skills
}
