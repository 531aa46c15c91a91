package auth

import "testing"

func TestScopesFromPermissions(t *testing.T) {
	tests := []struct {
		name        string
		permissions []string
		want        []Scope
		wantAbsent  []Scope
	}{
		{
			name:        "nil degrades to base",
			permissions: nil,
			want:        []Scope{ScopeOrgRead, ScopeProjectRead, ScopeTeamRead, ScopeMemberRead, ScopeEventRead, ScopeProjectReleases},
			wantAbsent:  []Scope{ScopeEventWrite, ScopeProjectWrite, ScopeTeamWrite, ScopeOrgWrite},
		},
		{
			name:        "issue triage adds event write",
			permissions: []string{"issue_triage"},
			want:        []Scope{ScopeEventRead, ScopeEventWrite},
			wantAbsent:  []Scope{ScopeProjectWrite, ScopeTeamWrite},
		},
		{
			name:        "project management adds project and team write",
			permissions: []string{"project_management"},
			want:        []Scope{ScopeProjectWrite, ScopeTeamWrite},
			wantAbsent:  []Scope{ScopeEventWrite},
		},
		{
			name:        "both permissions",
			permissions: []string{"issue_triage", "project_management"},
			want:        []Scope{ScopeEventWrite, ScopeProjectWrite, ScopeTeamWrite},
		},
		{
			name:        "unknown permissions ignored",
			permissions: []string{"root", "", "admin"},
			wantAbsent:  []Scope{ScopeEventWrite, ScopeProjectWrite, ScopeTeamWrite},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScopesFromPermissions(tt.permissions)
			for _, s := range tt.want {
				if !got.Has(s) {
					t.Errorf("expected scope %q to be granted", s)
				}
			}
			for _, s := range tt.wantAbsent {
				if got.Has(s) {
					t.Errorf("expected scope %q to be absent", s)
				}
			}
		})
	}
}

func TestScopesFromPermissions_AlwaysIncludesBase(t *testing.T) {
	got := ScopesFromPermissions([]string{"issue_triage", "project_management"})
	for base := range BaseScopes() {
		if !got.Has(base) {
			t.Errorf("base scope %q missing from granted set", base)
		}
	}
}

func TestScopeSet_ContainsAll(t *testing.T) {
	set := NewScopeSet(ScopeOrgRead, ScopeProjectRead)
	if !set.ContainsAll([]Scope{ScopeOrgRead}) {
		t.Error("expected subset to be contained")
	}
	if set.ContainsAll([]Scope{ScopeOrgRead, ScopeEventWrite}) {
		t.Error("expected missing scope to fail ContainsAll")
	}
	if !set.ContainsAll(nil) {
		t.Error("empty requirement must always be contained")
	}
}

func TestSkillSet_Intersects(t *testing.T) {
	set := NewSkillSet(SkillInspect)
	if !set.Intersects([]Skill{SkillInspect, SkillTriage}) {
		t.Error("expected intersection with granted skill")
	}
	if set.Intersects([]Skill{SkillTriage}) {
		t.Error("unexpected intersection with ungranted skill")
	}
}
