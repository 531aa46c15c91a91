package tools

import (
	"context"

	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
	"github.com/sentry-mcp/gateway/internal/service"
	"github.com/sentry-mcp/gateway/pkg/mcp"
)

// Prompts returns the prompt templates exposed over prompts/list.
func (r *Registry) Prompts() []service.Prompt {
	return []service.Prompt{
		{
			Descriptor: mcp.PromptDescriptor{
				Name:        "find_errors_in_file",
				Description: "Find recent Sentry errors originating from a specific file.",
				Arguments: []mcp.PromptArgument{
					{Name: "organizationSlug", Description: "The organization to search in.", Required: true},
					{Name: "filename", Description: "The file to find errors for.", Required: true},
				},
			},
			Handler: func(ctx context.Context, args map[string]string) (string, error) {
				org := args["organizationSlug"]
				filename := args["filename"]
				if org == "" || filename == "" {
					return "", mcperr.NewUserInputError("Both organizationSlug and filename are required.")
				}
				return "I want to find errors in Sentry for the organization " + org +
					" that occurred in the file " + filename + ".\n\n" +
					"Use the find_issues tool with a query like `stack.filename:\"*" + filename + "\"` " +
					"sorted by last seen, then summarize the most relevant issues with their short IDs.", nil
			},
		},
		{
			Descriptor: mcp.PromptDescriptor{
				Name:        "fix_issue",
				Description: "Investigate a Sentry issue and propose a fix.",
				Arguments: []mcp.PromptArgument{
					{Name: "organizationSlug", Description: "The organization the issue belongs to.", Required: true},
					{Name: "issueId", Description: "The issue ID or short ID.", Required: true},
				},
			},
			Handler: func(ctx context.Context, args map[string]string) (string, error) {
				org := args["organizationSlug"]
				issueID := args["issueId"]
				if org == "" || issueID == "" {
					return "", mcperr.NewUserInputError("Both organizationSlug and issueId are required.")
				}
				return "Investigate issue " + issueID + " in the Sentry organization " + org + ".\n\n" +
					"1. Use get_issue_details to fetch the stacktrace and event context.\n" +
					"2. If available, use analyze_issue_with_seer for a root-cause analysis.\n" +
					"3. Propose a concrete code fix, then suggest marking the issue resolved with update_issue.", nil
			},
		},
	}
}
