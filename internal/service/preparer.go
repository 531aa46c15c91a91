package service

import (
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
)

// PreparedTool pairs a tool with the schema projection visible to the
// current session.
type PreparedTool struct {
	Tool          *tool.Config
	VisibleSchema tool.Schema
}

// maxPreparedCacheSize bounds the memoized filter results. The key space
// is small (scope/skill/constraint combinations), so a flush-on-full
// policy is enough.
const maxPreparedCacheSize = 256

// Preparer filters the tool set for a session and projects each schema.
// Results are memoized by an xxhash of the session's authorization shape
// since the same client typically issues tools/list and many tools/call
// requests with identical grants.
type Preparer struct {
	tools []tool.Config

	mu   sync.Mutex
	memo map[uint64][]PreparedTool
}

// NewPreparer creates a Preparer over the given tool set. The slice order
// is preserved in every Prepare result.
func NewPreparer(tools []tool.Config) *Preparer {
	return &Preparer{
		tools: tools,
		memo:  make(map[uint64][]PreparedTool),
	}
}

// Tools returns the full unfiltered tool set.
func (p *Preparer) Tools() []tool.Config {
	return p.tools
}

// Lookup returns the tool with the given name from the full set.
func (p *Preparer) Lookup(name string) (*tool.Config, bool) {
	for i := range p.tools {
		if p.tools[i].Name == name {
			return &p.tools[i], true
		}
	}
	return nil, false
}

// Prepare returns the session's visible tools:
//
//  1. Granted skills expand to an effective scope set: every tool whose
//     required skills intersect the granted skills contributes its
//     required scopes. Base scopes are always included.
//  2. Tools whose required scopes are not a subset of the effective set
//     are dropped.
//  3. Each surviving schema is projected to hide constraint-bound fields.
func (p *Preparer) Prepare(sc *auth.ServerContext) []PreparedTool {
	key := p.cacheKey(sc)

	p.mu.Lock()
	if cached, ok := p.memo[key]; ok {
		p.mu.Unlock()
		return cached
	}
	p.mu.Unlock()

	effective := p.effectiveScopes(sc.GrantedSkills)
	hidden := tool.ConstrainedFields(sc.Constraints)

	prepared := make([]PreparedTool, 0, len(p.tools))
	for i := range p.tools {
		t := &p.tools[i]
		if !effective.ContainsAll(t.RequiredScopes) {
			continue
		}
		prepared = append(prepared, PreparedTool{
			Tool:          t,
			VisibleSchema: t.Schema.Without(hidden...),
		})
	}

	p.mu.Lock()
	if len(p.memo) >= maxPreparedCacheSize {
		p.memo = make(map[uint64][]PreparedTool)
	}
	p.memo[key] = prepared
	p.mu.Unlock()
	return prepared
}

// effectiveScopes expands granted skills into the scope set used for
// filtering. Base scopes are always granted.
func (p *Preparer) effectiveScopes(skills auth.SkillSet) auth.ScopeSet {
	effective := auth.BaseScopes()
	for i := range p.tools {
		t := &p.tools[i]
		if len(t.RequiredSkills) == 0 {
			continue
		}
		if skills.Intersects(t.RequiredSkills) {
			effective.Add(t.RequiredScopes...)
		}
	}
	return effective
}

// cacheKey hashes the parts of the context that influence Prepare.
func (p *Preparer) cacheKey(sc *auth.ServerContext) uint64 {
	parts := make([]string, 0, len(sc.GrantedScopes)+len(sc.GrantedSkills)+3)
	for scope := range sc.GrantedScopes {
		parts = append(parts, "s:"+string(scope))
	}
	for skill := range sc.GrantedSkills {
		parts = append(parts, "k:"+string(skill))
	}
	sort.Strings(parts)
	parts = append(parts,
		"org:"+sc.Constraints.OrganizationSlug,
		"proj:"+sc.Constraints.ProjectSlug,
		"region:"+sc.Constraints.RegionURL,
	)
	return xxhash.Sum64String(strings.Join(parts, "|"))
}
