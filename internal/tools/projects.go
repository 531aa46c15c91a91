package tools

import (
	"context"

	"github.com/sentry-mcp/gateway/internal/adapter/outbound/sentryapi"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
)

func (r *Registry) findTeams() tool.Config {
	return tool.Config{
		Name: "find_teams",
		Description: "Find teams in an organization in Sentry.\n\n" +
			"Use this tool when you need to:\n" +
			"- List teams before creating a project, which requires a teamSlug",
		Schema:         tool.Schema{orgField(), regionField()},
		RequiredScopes: []auth.Scope{auth.ScopeTeamRead},
		RequiredSkills: []auth.Skill{auth.SkillInspect},
		Annotations:    tool.Annotations{ReadOnlyHint: true},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			client, _, err := r.client(ctx, args)
			if err != nil {
				return nil, err
			}
			org, err := requiredStringArg(args, tool.FieldOrganizationSlug)
			if err != nil {
				return nil, err
			}
			teams, err := client.ListTeams(ctx, org)
			if err != nil {
				return nil, err
			}

			out := &md{}
			out.h1("Teams in **" + org + "**")
			if len(teams) == 0 {
				out.line("No teams found.")
				return out.String(), nil
			}
			for _, team := range teams {
				out.bullet("**" + team.Slug + "** — " + team.Name)
			}
			return out.String(), nil
		},
	}
}

func (r *Registry) createTeam() tool.Config {
	return tool.Config{
		Name: "create_team",
		Description: "Create a new team in an organization in Sentry.\n\n" +
			"Be careful with this tool: it mutates the organization.",
		Schema: tool.Schema{
			orgField(),
			{Name: "name", Type: tool.TypeString, Description: "The name of the team to create.", Required: true},
			regionField(),
		},
		RequiredScopes: []auth.Scope{auth.ScopeTeamWrite},
		RequiredSkills: []auth.Skill{auth.SkillProjectManagement},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			client, _, err := r.client(ctx, args)
			if err != nil {
				return nil, err
			}
			org, err := requiredStringArg(args, tool.FieldOrganizationSlug)
			if err != nil {
				return nil, err
			}
			name, err := requiredStringArg(args, "name")
			if err != nil {
				return nil, err
			}
			team, err := client.CreateTeam(ctx, org, name)
			if err != nil {
				return nil, err
			}

			out := &md{}
			out.h1("New Team in **" + org + "**")
			out.field("Slug", team.Slug)
			out.field("Name", team.Name)
			out.usageHint("Use the team's slug as `teamSlug` when creating projects with create_project.")
			return out.String(), nil
		},
	}
}

func (r *Registry) findProjects() tool.Config {
	return tool.Config{
		Name: "find_projects",
		Description: "Find projects in an organization in Sentry.\n\n" +
			"Use this tool when you need to:\n" +
			"- List projects before operations that need a projectSlug",
		Schema:         tool.Schema{orgField(), regionField()},
		RequiredScopes: []auth.Scope{auth.ScopeProjectRead},
		RequiredSkills: []auth.Skill{auth.SkillInspect},
		Annotations:    tool.Annotations{ReadOnlyHint: true},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			client, _, err := r.client(ctx, args)
			if err != nil {
				return nil, err
			}
			org, err := requiredStringArg(args, tool.FieldOrganizationSlug)
			if err != nil {
				return nil, err
			}
			projects, err := client.ListProjects(ctx, org)
			if err != nil {
				return nil, err
			}

			out := &md{}
			out.h1("Projects in **" + org + "**")
			if len(projects) == 0 {
				out.line("No projects found.")
				return out.String(), nil
			}
			for _, p := range projects {
				line := "**" + p.Slug + "**"
				if p.Platform != "" {
					line += " (" + p.Platform + ")"
				}
				out.bullet(line)
			}
			return out.String(), nil
		},
	}
}

func (r *Registry) createProject() tool.Config {
	return tool.Config{
		Name: "create_project",
		Description: "Create a new project in an organization in Sentry.\n\n" +
			"A project belongs to a team; call find_teams first if you do not know the team slug.",
		Schema: tool.Schema{
			orgField(),
			{Name: "teamSlug", Type: tool.TypeString, Description: "The team that owns the new project.", Required: true},
			{Name: "name", Type: tool.TypeString, Description: "The name of the project to create.", Required: true},
			{Name: "platform", Type: tool.TypeString, Description: "The platform of the project, for example python or javascript-react."},
			regionField(),
		},
		RequiredScopes: []auth.Scope{auth.ScopeProjectWrite},
		RequiredSkills: []auth.Skill{auth.SkillProjectManagement},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			client, _, err := r.client(ctx, args)
			if err != nil {
				return nil, err
			}
			org, err := requiredStringArg(args, tool.FieldOrganizationSlug)
			if err != nil {
				return nil, err
			}
			team, err := requiredStringArg(args, "teamSlug")
			if err != nil {
				return nil, err
			}
			name, err := requiredStringArg(args, "name")
			if err != nil {
				return nil, err
			}
			project, err := client.CreateProject(ctx, org, team, name, stringArg(args, "platform"))
			if err != nil {
				return nil, err
			}

			// A fresh project is only useful with a DSN.
			key, keyErr := client.CreateClientKey(ctx, org, project.Slug, "Default")

			out := &md{}
			out.h1("New Project in **" + org + "**")
			out.field("Slug", project.Slug)
			out.field("Name", project.Name)
			out.field("Platform", project.Platform)
			if keyErr == nil && key != nil {
				out.field("DSN", key.DSN.Public)
			} else {
				out.line("A client key could not be created automatically; use create_dsn to add one.")
			}
			return out.String(), nil
		},
	}
}

func (r *Registry) updateProject() tool.Config {
	return tool.Config{
		Name: "update_project",
		Description: "Update project settings in Sentry: name, slug, platform, or team assignment.\n\n" +
			"Be careful with this tool: it mutates the project.",
		Schema: tool.Schema{
			orgField(),
			projectOrIDField("The project to update."),
			{Name: "name", Type: tool.TypeString, Description: "The new name for the project."},
			{Name: "slug", Type: tool.TypeString, Description: "The new slug for the project."},
			{Name: "platform", Type: tool.TypeString, Description: "The new platform for the project."},
			{Name: "teamSlug", Type: tool.TypeString, Description: "Grant this team access to the project."},
			regionField(),
		},
		RequiredScopes: []auth.Scope{auth.ScopeProjectWrite},
		RequiredSkills: []auth.Skill{auth.SkillProjectManagement},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			client, _, err := r.client(ctx, args)
			if err != nil {
				return nil, err
			}
			org, err := requiredStringArg(args, tool.FieldOrganizationSlug)
			if err != nil {
				return nil, err
			}
			project, err := requiredStringArg(args, tool.FieldProjectSlugOrID)
			if err != nil {
				return nil, err
			}

			update := sentryapi.ProjectUpdate{
				Name:     stringArg(args, "name"),
				Slug:     stringArg(args, "slug"),
				Platform: stringArg(args, "platform"),
			}
			team := stringArg(args, "teamSlug")
			if update == (sentryapi.ProjectUpdate{}) && team == "" {
				return nil, mcperr.NewUserInputError("Provide at least one of name, slug, platform, or teamSlug.")
			}

			updated := &sentryapi.Project{Slug: project}
			if update != (sentryapi.ProjectUpdate{}) {
				updated, err = client.UpdateProject(ctx, org, project, update)
				if err != nil {
					return nil, err
				}
			}
			if team != "" {
				if err := client.AddTeamToProject(ctx, org, updated.Slug, team); err != nil {
					return nil, err
				}
			}

			out := &md{}
			out.h1("Updated Project in **" + org + "**")
			out.field("Slug", updated.Slug)
			out.field("Name", updated.Name)
			out.field("Platform", updated.Platform)
			if team != "" {
				out.field("Team added", team)
			}
			return out.String(), nil
		},
	}
}
