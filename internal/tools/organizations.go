package tools

import (
	"context"

	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
)

func (r *Registry) whoami() tool.Config {
	return tool.Config{
		Name: "whoami",
		Description: "Identify the authenticated user in Sentry.\n\n" +
			"Use this tool when you need to:\n" +
			"- Get the user's name and email address",
		Annotations: tool.Annotations{ReadOnlyHint: true},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			client, _, err := r.client(ctx, args)
			if err != nil {
				return nil, err
			}
			user, err := client.GetAuthenticatedUser(ctx)
			if err != nil {
				return nil, err
			}
			out := &md{}
			out.h1("Who Am I")
			out.f("You are **%s** (%s).\n", user.Email, user.Name)
			out.field("User ID", user.ID)
			return out.String(), nil
		},
	}
}

func (r *Registry) findOrganizations() tool.Config {
	return tool.Config{
		Name: "find_organizations",
		Description: "Find organizations the user has access to in Sentry.\n\n" +
			"Use this tool when you need to:\n" +
			"- List organizations before other operations that need an organizationSlug\n" +
			"- Discover the region URL of an organization",
		RequiredScopes: []auth.Scope{auth.ScopeOrgRead},
		RequiredSkills: []auth.Skill{auth.SkillInspect},
		Annotations:    tool.Annotations{ReadOnlyHint: true},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			client, _, err := r.client(ctx, args)
			if err != nil {
				return nil, err
			}
			orgs, err := client.ListOrganizations(ctx)
			if err != nil {
				return nil, err
			}

			out := &md{}
			out.h1("Organizations")
			if len(orgs) == 0 {
				out.line("You don't appear to be a member of any organizations.")
				return out.String(), nil
			}
			for _, org := range orgs {
				out.h2(org.Slug)
				out.field("Name", org.Name)
				out.field("Web URL", org.Links.OrganizationURL)
				out.field("Region URL", org.Links.RegionURL)
				out.blank()
			}
			out.usageHint(
				"The organization's name is the identifier for the organization, and is used in many tools.",
				"If a tool supports passing in the `regionUrl`, you should pass in the organization's region URL.",
			)
			return out.String(), nil
		},
	}
}
