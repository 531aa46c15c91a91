package tools

import (
	"context"
	"time"

	"github.com/sentry-mcp/gateway/internal/adapter/outbound/sentryapi"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
)

const (
	seerPollInterval = 5 * time.Second
	seerPollBudget   = 3 * time.Minute
)

// terminalAutofixState reports whether a run state stops polling.
func terminalAutofixState(status string) bool {
	switch status {
	case "COMPLETED", "FAILED", "ERROR", "CANCELLED", "NEED_MORE_INFORMATION":
		return true
	}
	return false
}

func (r *Registry) analyzeIssueWithSeer() tool.Config {
	return tool.Config{
		Name: "analyze_issue_with_seer",
		Description: "Run Seer, Sentry's AI root-cause analysis, on an issue.\n\n" +
			"Use this tool when you need to:\n" +
			"- Understand why an error is happening\n" +
			"- Get a proposed fix for an issue\n\n" +
			"The analysis can take a couple of minutes; results of an earlier run are reused.",
		Schema: tool.Schema{
			orgField(),
			{Name: "issueId", Type: tool.TypeString, Description: "The issue ID or short ID to analyze.", Required: true},
			{Name: "eventId", Type: tool.TypeString, Description: "A specific event ID to anchor the analysis."},
			{Name: "instruction", Type: tool.TypeString, Description: "Extra guidance for the analysis."},
			regionField(),
		},
		RequiredScopes: []auth.Scope{auth.ScopeEventRead},
		RequiredSkills: []auth.Skill{auth.SkillSeer},
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

			run, err := client.GetAutofixState(ctx, org, issueID)
			if err != nil {
				return nil, err
			}
			if run == nil {
				run, err = client.StartAutofix(ctx, org, issueID,
					stringArg(args, "eventId"), stringArg(args, "instruction"))
				if err != nil {
					return nil, err
				}
			}

			run, timedOut := r.awaitAutofix(ctx, client, org, issueID, run)
			return formatAutofix(issueID, run, timedOut), nil
		},
	}
}

// awaitAutofix polls the run until it reaches a terminal state or the
// budget elapses. The last observed state is always returned.
func (r *Registry) awaitAutofix(ctx context.Context, client *sentryapi.Client, org, issueID string, run *sentryapi.AutofixRun) (*sentryapi.AutofixRun, bool) {
	deadline := time.Now().Add(seerPollBudget)
	for !terminalAutofixState(run.Status) {
		if time.Now().After(deadline) || ctx.Err() != nil {
			return run, true
		}
		select {
		case <-ctx.Done():
			return run, true
		case <-time.After(seerPollInterval):
		}
		next, err := client.GetAutofixState(ctx, org, issueID)
		if err != nil || next == nil {
			r.deps.Logger.Debug("autofix poll failed", "issue", issueID, "error", err)
			return run, true
		}
		run = next
	}
	return run, false
}

func formatAutofix(issueID string, run *sentryapi.AutofixRun, timedOut bool) string {
	out := &md{}
	out.h1("Seer Analysis for " + issueID)
	out.field("Run ID", run.RunID.String())
	out.field("Status", run.Status)
	if timedOut {
		out.blank()
		out.line("The analysis is still running. Call analyze_issue_with_seer again to check on it.")
	}
	for _, step := range run.Steps {
		out.blank()
		out.h2(step.Title)
		out.field("Status", step.Status)
		if len(step.Output) > 0 {
			out.line("```json")
			out.line(string(step.Output))
			out.line("```")
		}
	}
	return out.String()
}
