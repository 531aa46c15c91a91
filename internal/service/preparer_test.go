package service

import (
	"testing"

	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
)

func testTools() []tool.Config {
	return []tool.Config{
		{
			Name:           "find_issues",
			RequiredScopes: []auth.Scope{auth.ScopeEventRead},
			RequiredSkills: []auth.Skill{auth.SkillInspect},
			Schema: tool.Schema{
				{Name: tool.FieldOrganizationSlug, Type: tool.TypeString, Required: true},
				{Name: tool.FieldProjectSlug, Type: tool.TypeString},
				{Name: "query", Type: tool.TypeString},
			},
		},
		{
			Name:           "update_issue",
			RequiredScopes: []auth.Scope{auth.ScopeEventWrite},
			RequiredSkills: []auth.Skill{auth.SkillTriage},
			Schema: tool.Schema{
				{Name: tool.FieldOrganizationSlug, Type: tool.TypeString, Required: true},
				{Name: "issueId", Type: tool.TypeString, Required: true},
			},
		},
		{
			Name:           "create_team",
			RequiredScopes: []auth.Scope{auth.ScopeTeamWrite},
			RequiredSkills: []auth.Skill{auth.SkillProjectManagement},
			Schema: tool.Schema{
				{Name: tool.FieldOrganizationSlug, Type: tool.TypeString, Required: true},
				{Name: "name", Type: tool.TypeString, Required: true},
			},
		},
	}
}

func preparedNames(prepared []PreparedTool) []string {
	names := make([]string, len(prepared))
	for i, p := range prepared {
		names[i] = p.Tool.Name
	}
	return names
}

func TestPrepare_SkillsGateWriteTools(t *testing.T) {
	p := NewPreparer(testTools())

	tests := []struct {
		name   string
		skills []auth.Skill
		want   []string
	}{
		{"inspect only", []auth.Skill{auth.SkillInspect}, []string{"find_issues"}},
		{"triage adds event write", []auth.Skill{auth.SkillInspect, auth.SkillTriage}, []string{"find_issues", "update_issue"}},
		{"project management adds team write", []auth.Skill{auth.SkillInspect, auth.SkillProjectManagement}, []string{"find_issues", "create_team"}},
		{"everything", []auth.Skill{auth.SkillInspect, auth.SkillTriage, auth.SkillProjectManagement}, []string{"find_issues", "update_issue", "create_team"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &auth.ServerContext{GrantedSkills: auth.NewSkillSet(tt.skills...)}
			got := preparedNames(p.Prepare(sc))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("tool %d = %q, want %q (order must follow registration)", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPrepare_NoVisibleToolHasUnsatisfiedScopes(t *testing.T) {
	p := NewPreparer(testTools())
	sc := &auth.ServerContext{GrantedSkills: auth.NewSkillSet(auth.SkillInspect)}

	effective := p.effectiveScopes(sc.GrantedSkills)
	for _, prepared := range p.Prepare(sc) {
		if !effective.ContainsAll(prepared.Tool.RequiredScopes) {
			t.Errorf("tool %q visible without its required scopes", prepared.Tool.Name)
		}
	}
}

func TestPrepare_ConstraintsProjectSchema(t *testing.T) {
	p := NewPreparer(testTools())
	sc := &auth.ServerContext{
		GrantedSkills: auth.NewSkillSet(auth.SkillInspect),
		Constraints: auth.Constraints{
			OrganizationSlug: "acme",
			ProjectSlug:      "backend",
		},
	}

	prepared := p.Prepare(sc)
	if len(prepared) != 1 {
		t.Fatalf("got %d tools, want 1", len(prepared))
	}
	visible := prepared[0].VisibleSchema
	if visible.Has(tool.FieldOrganizationSlug) || visible.Has(tool.FieldProjectSlug) {
		t.Errorf("constrained fields leaked into visible schema: %+v", visible)
	}
	if !visible.Has("query") {
		t.Error("unconstrained field dropped from visible schema")
	}
	// The full declared schema stays intact for constraint injection.
	if !prepared[0].Tool.Schema.Has(tool.FieldOrganizationSlug) {
		t.Error("projection must not modify the declared schema")
	}
}

func TestPrepare_MemoizedAcrossIdenticalContexts(t *testing.T) {
	p := NewPreparer(testTools())
	sc1 := &auth.ServerContext{
		UserID:        "1",
		GrantedSkills: auth.NewSkillSet(auth.SkillInspect),
		Constraints:   auth.Constraints{OrganizationSlug: "acme"},
	}
	sc2 := &auth.ServerContext{
		UserID:        "2",
		GrantedSkills: auth.NewSkillSet(auth.SkillInspect),
		Constraints:   auth.Constraints{OrganizationSlug: "acme"},
	}

	first := p.Prepare(sc1)
	second := p.Prepare(sc2)
	if len(first) != len(second) {
		t.Fatalf("identical authorization shapes must prepare identically")
	}
	if len(p.memo) != 1 {
		t.Errorf("expected a single memo entry, got %d", len(p.memo))
	}

	// A different constraint shape is a different entry.
	p.Prepare(&auth.ServerContext{
		GrantedSkills: auth.NewSkillSet(auth.SkillInspect),
		Constraints:   auth.Constraints{OrganizationSlug: "other"},
	})
	if len(p.memo) != 2 {
		t.Errorf("expected 2 memo entries, got %d", len(p.memo))
	}
}
