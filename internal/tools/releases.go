package tools

import (
	"context"
	"fmt"

	"github.com/sentry-mcp/gateway/internal/adapter/outbound/sentryapi"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
)

func (r *Registry) findReleases() tool.Config {
	return tool.Config{
		Name: "find_releases",
		Description: "Find releases in an organization in Sentry.\n\n" +
			"Use this tool when you need to:\n" +
			"- Find recent releases\n" +
			"- Look up a release by version identifier",
		Schema: tool.Schema{
			orgField(),
			projectOrIDField("Limit releases to this project."),
			{Name: "query", Type: tool.TypeString, Description: "Search for releases matching this version fragment."},
			regionField(),
		},
		RequiredScopes: []auth.Scope{auth.ScopeProjectReleases},
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
			releases, err := client.ListReleases(ctx, sentryapi.ListReleasesParams{
				Organization: org,
				Project:      stringArg(args, tool.FieldProjectSlugOrID),
				Query:        stringArg(args, "query"),
			})
			if err != nil {
				return nil, err
			}

			out := &md{}
			out.h1("Releases in **" + org + "**")
			if len(releases) == 0 {
				out.line("No releases found.")
				return out.String(), nil
			}
			for _, rel := range releases {
				out.h2(rel.ShortVersion)
				out.field("Version", rel.Version)
				out.field("Created", rel.DateCreated)
				out.field("Released", rel.DateReleased)
				if rel.NewGroups > 0 {
					out.field("New issues", fmt.Sprintf("%d", rel.NewGroups))
				}
				out.blank()
			}
			out.usageHint(
				"Use the version with find_issues, for example `release:VERSION`, to filter issues introduced by a release.",
			)
			return out.String(), nil
		},
	}
}

func (r *Registry) findTags() tool.Config {
	return tool.Config{
		Name: "find_tags",
		Description: "Find tag keys available for search queries in Sentry.\n\n" +
			"Use this tool when you need to:\n" +
			"- Discover which tags can be used in find_issues or search_events queries",
		Schema: tool.Schema{
			orgField(),
			{
				Name:        "dataset",
				Type:        tool.TypeString,
				Description: "The dataset to list tags for.",
				Enum:        []string{"errors", "search_issues"},
			},
			projectOrIDField("Limit tags to this project."),
			regionField(),
		},
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
			dataset := stringArg(args, "dataset")
			if dataset == "" {
				dataset = "errors"
			}
			tags, err := client.ListTags(ctx, sentryapi.ListTagsParams{
				Organization: org,
				Dataset:      dataset,
				Project:      stringArg(args, tool.FieldProjectSlugOrID),
			})
			if err != nil {
				return nil, err
			}

			out := &md{}
			out.h1("Tags in **" + org + "**")
			if len(tags) == 0 {
				out.line("No tags found.")
				return out.String(), nil
			}
			for _, tag := range tags {
				out.bullet("`" + tag.Key + "`")
			}
			out.usageHint("Use tags in search queries, for example `tag_name:tag_value`.")
			return out.String(), nil
		},
	}
}

func (r *Registry) createDSN() tool.Config {
	return tool.Config{
		Name: "create_dsn",
		Description: "Create a new client key (DSN) for a project in Sentry.\n\n" +
			"The DSN is what an SDK needs to send events to Sentry.",
		Schema: tool.Schema{
			orgField(),
			projectOrIDField("The project to create the key in."),
			{Name: "name", Type: tool.TypeString, Description: "A name for the new key."},
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
			key, err := client.CreateClientKey(ctx, org, project, stringArg(args, "name"))
			if err != nil {
				return nil, err
			}

			out := &md{}
			out.h1("New DSN in **" + org + "/" + project + "**")
			out.field("Name", key.Name)
			out.field("DSN", key.DSN.Public)
			out.usageHint("Configure the SDK with this DSN to start sending events.")
			return out.String(), nil
		},
	}
}

func (r *Registry) findDSNs() tool.Config {
	return tool.Config{
		Name: "find_dsns",
		Description: "List client keys (DSNs) for a project in Sentry.",
		Schema: tool.Schema{
			orgField(),
			projectOrIDField("The project to list keys for."),
			regionField(),
		},
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
			project, err := requiredStringArg(args, tool.FieldProjectSlugOrID)
			if err != nil {
				return nil, err
			}
			keys, err := client.ListClientKeys(ctx, org, project)
			if err != nil {
				return nil, err
			}
			out := &md{}
			out.h1("DSNs in **" + org + "/" + project + "**")
			if len(keys) == 0 {
				out.line("No client keys found. Use create_dsn to add one.")
				return out.String(), nil
			}
			for _, key := range keys {
				out.h2(key.Name)
				out.field("DSN", key.DSN.Public)
				out.blank()
			}
			return out.String(), nil
		},
	}
}
