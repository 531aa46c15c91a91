package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sentry-mcp/gateway/internal/adapter/outbound/sentryapi"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
	"github.com/sentry-mcp/gateway/pkg/mcp"
)

func (r *Registry) findIssues() tool.Config {
	return tool.Config{
		Name: "find_issues",
		Description: "Find issues (grouped errors) in an organization in Sentry.\n\n" +
			"Use this tool when you need to:\n" +
			"- Search for issues with Sentry's search syntax, for example `is:unresolved level:error`\n" +
			"- Find the most frequent or most recent problems\n\n" +
			"If the user asked in natural language, prefer search_issues instead.",
		Schema: tool.Schema{
			orgField(),
			projectOrIDField("Limit issues to this project."),
			{Name: "query", Type: tool.TypeString, Description: "Sentry issue search query, for example `is:unresolved`."},
			{
				Name:        "sortBy",
				Type:        tool.TypeString,
				Description: "Sort order for results.",
				Enum:        []string{"user", "freq", "date", "new"},
			},
			regionField(),
		},
		RequiredScopes: []auth.Scope{auth.ScopeEventRead},
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
			query := stringArg(args, "query")
			project := stringArg(args, tool.FieldProjectSlugOrID)
			issues, err := client.ListIssues(ctx, sentryapi.ListIssuesParams{
				Organization: org,
				Project:      project,
				Query:        query,
				SortBy:       stringArg(args, "sortBy"),
			})
			if err != nil {
				return nil, err
			}
			return formatIssueList(client, org, query, project, issues), nil
		},
	}
}

func formatIssueList(client *sentryapi.Client, org, query, project string, issues []sentryapi.Issue) string {
	out := &md{}
	out.h1("Issues in **" + org + "**")
	if query != "" {
		out.field("Query", "`"+query+"`")
		out.blank()
	}
	if len(issues) == 0 {
		out.line("No issues found matching the query.")
		return out.String()
	}
	for _, issue := range issues {
		out.h2(issue.ShortID + ": " + issue.Title)
		out.field("Status", issue.Status)
		out.field("Level", issue.Level)
		out.field("Culprit", issue.Culprit)
		out.field("Events", issue.Count.String())
		out.field("Users affected", fmt.Sprintf("%d", issue.UserCount))
		out.field("First seen", issue.FirstSeen)
		out.field("Last seen", issue.LastSeen)
		out.field("URL", client.GetIssueURL(org, issue.ShortID))
		out.blank()
	}
	out.f("View this search in Sentry: %s\n", client.GetIssuesSearchURL(org, query, project))
	out.usageHint(
		"Use get_issue_details with the issue short ID to inspect the stacktrace.",
		"Use update_issue to resolve or assign an issue.",
	)
	return out.String()
}

func (r *Registry) getIssueDetails() tool.Config {
	return tool.Config{
		Name: "get_issue_details",
		Description: "Get detailed information about a specific issue in Sentry, including the stacktrace of its latest event.\n\n" +
			"Use this tool when you need to:\n" +
			"- Investigate a specific production error\n" +
			"- Fetch the stacktrace and context for debugging",
		Schema: tool.Schema{
			orgField(),
			{Name: "issueId", Type: tool.TypeString, Description: "The issue ID or short ID, for example `PROJECT-1Z3`.", Required: true},
			{Name: "eventId", Type: tool.TypeString, Description: "A specific event ID to fetch instead of the latest event."},
			regionField(),
		},
		RequiredScopes: []auth.Scope{auth.ScopeEventRead},
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
			issueID, err := requiredStringArg(args, "issueId")
			if err != nil {
				return nil, err
			}

			issue, err := client.GetIssue(ctx, org, issueID)
			if err != nil {
				return nil, err
			}

			var event *sentryapi.Event
			if eventID := stringArg(args, "eventId"); eventID != "" {
				event, err = client.GetEventForIssue(ctx, org, issueID, eventID)
			} else {
				event, err = client.GetLatestEventForIssue(ctx, org, issueID)
			}
			if err != nil {
				return nil, err
			}

			out := &md{}
			out.h1(issue.ShortID + ": " + issue.Title)
			out.field("Status", issue.Status)
			out.field("Level", issue.Level)
			out.field("Platform", issue.Platform)
			out.field("Culprit", issue.Culprit)
			out.field("Events", issue.Count.String())
			out.field("First seen", issue.FirstSeen)
			out.field("Last seen", issue.LastSeen)
			out.field("URL", client.GetIssueURL(org, issue.ShortID))
			out.blank()

			out.h2("Event " + event.EventID)
			out.field("Occurred", event.DateCreated)
			out.field("Message", event.Message)
			if len(event.Tags) > 0 {
				out.blank()
				out.h2("Tags")
				for _, tag := range event.Tags {
					out.bullet("`" + tag.Key + "`: " + tag.Value)
				}
			}
			if len(event.Entries) > 0 {
				out.blank()
				out.h2("Event Data")
				for _, entry := range event.Entries {
					out.line("```json")
					out.line(string(entry))
					out.line("```")
				}
			}
			out.usageHint(
				"Use analyze_issue_with_seer to get an AI root-cause analysis for this issue.",
				"Use update_issue to resolve or assign it once addressed.",
			)
			return out.String(), nil
		},
	}
}

// issueStatuses are the states accepted by update_issue.
var issueStatuses = []string{"resolved", "resolvedInNextRelease", "unresolved", "ignored"}

func (r *Registry) updateIssue() tool.Config {
	return tool.Config{
		Name: "update_issue",
		Description: "Update an issue's status or assignment in Sentry.\n\n" +
			"Use this tool when you need to:\n" +
			"- Resolve or ignore an issue\n" +
			"- Assign an issue to a user or team",
		Schema: tool.Schema{
			orgField(),
			{Name: "issueId", Type: tool.TypeString, Description: "The issue ID or short ID to update.", Required: true},
			{Name: "status", Type: tool.TypeString, Description: "The new status for the issue.", Enum: issueStatuses},
			{Name: "assignedTo", Type: tool.TypeString, Description: "Username, or `team:{team-slug}` for a team."},
			regionField(),
		},
		RequiredScopes: []auth.Scope{auth.ScopeEventWrite},
		RequiredSkills: []auth.Skill{auth.SkillTriage},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			client, _, err := r.client(ctx, args)
			if err != nil {
				return nil, err
			}
			org, err := requiredStringArg(args, tool.FieldOrganizationSlug)
			if err != nil {
				return nil, err
			}
			issueID, err := requiredStringArg(args, "issueId")
			if err != nil {
				return nil, err
			}
			update := sentryapi.IssueUpdate{
				Status:     stringArg(args, "status"),
				AssignedTo: stringArg(args, "assignedTo"),
			}
			if update == (sentryapi.IssueUpdate{}) {
				return nil, mcperr.NewUserInputError("Provide at least one of status or assignedTo.")
			}

			issue, err := client.UpdateIssue(ctx, org, issueID, update)
			if err != nil {
				return nil, err
			}

			out := &md{}
			out.h1("Updated " + issue.ShortID)
			out.field("Status", issue.Status)
			if update.AssignedTo != "" {
				out.field("Assigned to", update.AssignedTo)
			}
			out.field("URL", client.GetIssueURL(org, issue.ShortID))
			return out.String(), nil
		},
	}
}

// textualMimePrefixes marks attachment types returned inline as text.
var textualMimePrefixes = []string{"text/", "application/json", "application/xml"}

func (r *Registry) getEventAttachment() tool.Config {
	return tool.Config{
		Name: "get_event_attachment",
		Description: "Download an attachment from a Sentry event.\n\n" +
			"Without attachmentId, lists the available attachments instead.",
		Schema: tool.Schema{
			orgField(),
			{Name: tool.FieldProjectSlug, Type: tool.TypeString, Description: "The project the event belongs to.", Required: true},
			{Name: "eventId", Type: tool.TypeString, Description: "The event ID.", Required: true},
			{Name: "attachmentId", Type: tool.TypeString, Description: "The attachment to download. Omit to list attachments."},
			regionField(),
		},
		RequiredScopes: []auth.Scope{auth.ScopeEventRead},
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
			project, err := requiredStringArg(args, tool.FieldProjectSlug)
			if err != nil {
				return nil, err
			}
			eventID, err := requiredStringArg(args, "eventId")
			if err != nil {
				return nil, err
			}

			attachmentID := stringArg(args, "attachmentId")
			if attachmentID == "" {
				attachments, err := client.ListEventAttachments(ctx, org, project, eventID)
				if err != nil {
					return nil, err
				}
				out := &md{}
				out.h1("Attachments for event " + eventID)
				if len(attachments) == 0 {
					out.line("This event has no attachments.")
					return out.String(), nil
				}
				for _, a := range attachments {
					out.bullet(fmt.Sprintf("`%s` — %s (%s, %d bytes)", a.ID, a.Name, a.MimeType, a.Size))
				}
				out.usageHint("Call this tool again with attachmentId to download one.")
				return out.String(), nil
			}

			download, err := client.GetEventAttachment(ctx, org, project, eventID, attachmentID)
			if err != nil {
				return nil, err
			}

			header := &md{}
			header.h1("Attachment " + download.Filename)
			header.field("MIME type", download.Metadata.MimeType)
			header.field("Size", fmt.Sprintf("%d bytes", download.Metadata.Size))

			parts := []mcp.ContentPart{{Type: "text", Text: header.String()}}
			if isTextualMime(download.Metadata.MimeType) {
				parts = append(parts, mcp.ContentPart{Type: "text", Text: string(download.Bytes)})
			} else {
				parts = append(parts, mcp.ContentPart{
					Type: "resource",
					Resource: &mcp.ResourceContents{
						URI:      "sentry://attachments/" + attachmentID + "/" + download.Filename,
						MimeType: download.Metadata.MimeType,
						Blob:     base64.StdEncoding.EncodeToString(download.Bytes),
					},
				})
			}
			return parts, nil
		},
	}
}

func isTextualMime(mimeType string) bool {
	for _, prefix := range textualMimePrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}
