package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sentry-mcp/gateway/internal/adapter/outbound/sentryapi"
	"github.com/sentry-mcp/gateway/internal/agent"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
)

// eventsQuery is the structured output the translator agent must emit.
type eventsQuery struct {
	Dataset     string   `json:"dataset"`
	Query       string   `json:"query"`
	Fields      []string `json:"fields"`
	Sort        string   `json:"sort"`
	StatsPeriod string   `json:"timeRange"`
}

// issuesQuery is the structured output of the issue-search translator.
type issuesQuery struct {
	Query  string `json:"query"`
	SortBy string `json:"sort"`
}

var sqlPattern = regexp.MustCompile(`(?i)^\s*(SELECT|INSERT|UPDATE|DELETE)\b`)

const eventsTranslatorSystem = `You translate natural language questions about application telemetry into Sentry event search queries.

Respond with a single JSON object:
{"dataset": "errors"|"spans"|"logs", "query": "<sentry search syntax>", "fields": ["<column>", ...], "sort": "-<field or aggregate>", "timeRange": "<like 24h or 14d>"}

Rules:
- Use Sentry search syntax (key:value tokens), never SQL.
- "errors" for exceptions and crashes, "spans" for performance and tracing, "logs" for log records.
- Aggregate fields look like count() or avg(span.duration).
- Use the list_available_fields tool to discover valid field names.
- If the request cannot be expressed, respond with {"error": "<explanation>"}.`

const issuesTranslatorSystem = `You translate natural language questions into Sentry issue search queries.

Respond with a single JSON object:
{"query": "<sentry issue search syntax>", "sort": "user"|"freq"|"date"|"new"}

Rules:
- Use Sentry issue search syntax, for example is:unresolved level:error, never SQL.
- Use the list_available_fields tool to discover valid tag names.
- If the request cannot be expressed, respond with {"error": "<explanation>"}.`

func (r *Registry) searchEvents() tool.Config {
	return tool.Config{
		Name: "search_events",
		Description: "Search for individual events (errors, spans, logs) in Sentry using natural language.\n\n" +
			"Use this tool when you need to:\n" +
			"- Answer questions like \"what are the slowest database queries today\"\n" +
			"- Aggregate event data across a project",
		Schema: tool.Schema{
			orgField(),
			{Name: "naturalLanguageQuery", Type: tool.TypeString, Description: "The question to answer, in plain language.", Required: true},
			projectOrIDField("Limit the search to this project."),
			{Name: "limit", Type: tool.TypeInteger, Description: "Maximum number of rows to return. Defaults to 10."},
			regionField(),
		},
		RequiredScopes: []auth.Scope{auth.ScopeEventRead},
		RequiredSkills: []auth.Skill{auth.SkillInspect},
		Annotations:    tool.Annotations{ReadOnlyHint: true},
		Handler:        r.searchEventsHandler,
	}
}

func (r *Registry) searchEventsHandler(ctx context.Context, args map[string]any) (any, error) {
	client, sc, err := r.client(ctx, args)
	if err != nil {
		return nil, err
	}
	runner, err := r.runner()
	if err != nil {
		return nil, err
	}
	if err := r.checkRateLimit(ctx, sc); err != nil {
		return nil, err
	}
	org, err := requiredStringArg(args, tool.FieldOrganizationSlug)
	if err != nil {
		return nil, err
	}
	question, err := requiredStringArg(args, "naturalLanguageQuery")
	if err != nil {
		return nil, err
	}
	project := stringArg(args, tool.FieldProjectSlugOrID)
	limit := intArg(args, "limit", 10)

	translated, _, err := agent.RunDecoded[eventsQuery](ctx, runner, agent.Request{
		System: eventsTranslatorSystem,
		Prompt: question,
		Tools:  []agent.ToolDef{r.fieldListingTool(client, org, project)},
	}, validateEventsQuery)
	if err != nil {
		return nil, err
	}

	params := sentryapi.SearchParams{
		Query:       translated.Query,
		Fields:      translated.Fields,
		Limit:       limit,
		ProjectSlug: project,
		StatsPeriod: translated.StatsPeriod,
		Sort:        translated.Sort,
	}
	resp, err := client.SearchEvents(ctx, org, translated.Dataset, params)
	if err != nil {
		return nil, err
	}
	return formatEventsResult(client, org, project, translated, resp), nil
}

// validateEventsQuery rejects translator output the events endpoint would
// refuse, so the agent gets one chance to correct itself.
func validateEventsQuery(q eventsQuery) error {
	switch q.Dataset {
	case sentryapi.DatasetErrors, sentryapi.DatasetSpans, sentryapi.DatasetLogs:
	default:
		return mcperr.NewUserInputError("Invalid dataset %q: must be errors, spans, or logs.", q.Dataset)
	}
	if sqlPattern.MatchString(q.Query) {
		return mcperr.NewUserInputError("The query uses SQL syntax. Use Sentry search syntax (key:value tokens) instead.")
	}
	if len(q.Fields) == 0 {
		return mcperr.NewUserInputError("At least one output field is required.")
	}
	if q.Sort != "" {
		bare := strings.TrimPrefix(q.Sort, "-")
		matched := false
		for _, f := range q.Fields {
			if f == bare {
				matched = true
				break
			}
		}
		if !matched {
			return mcperr.NewUserInputError("The sort field %q must also appear in fields.", q.Sort)
		}
	}
	return nil
}

// fieldListingTool lets the translator discover valid tag/field names.
func (r *Registry) fieldListingTool(client *sentryapi.Client, org, project string) agent.ToolDef {
	return agent.ToolDef{
		Name:        "list_available_fields",
		Description: "List the field and tag keys recorded for a dataset.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"dataset": map[string]any{
					"type": "string",
					"enum": []string{"errors", "search_issues"},
				},
			},
			"required": []string{"dataset"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			tags, err := client.ListTags(ctx, sentryapi.ListTagsParams{
				Organization: org,
				Dataset:      stringArg(args, "dataset"),
				Project:      project,
			})
			if err != nil {
				return "", err
			}
			keys := make([]string, 0, len(tags))
			for _, tag := range tags {
				keys = append(keys, tag.Key)
			}
			return strings.Join(keys, "\n"), nil
		},
	}
}

func formatEventsResult(client *sentryapi.Client, org, project string, q eventsQuery, resp *sentryapi.EventsResponse) string {
	out := &md{}
	out.h1("Search Results")
	out.field("Dataset", q.Dataset)
	out.field("Query", "`"+q.Query+"`")
	out.blank()

	if len(resp.Data) == 0 {
		out.line("No results found. Try a broader query or a longer time range.")
		return out.String()
	}

	out.line("| " + strings.Join(q.Fields, " | ") + " |")
	sep := make([]string, len(q.Fields))
	for i := range sep {
		sep[i] = "---"
	}
	out.line("| " + strings.Join(sep, " | ") + " |")
	for _, row := range resp.Data {
		cells := make([]string, len(q.Fields))
		for i, field := range q.Fields {
			cells[i] = formatCell(row[field])
		}
		out.line("| " + strings.Join(cells, " | ") + " |")
	}

	out.blank()
	explorer := client.GetEventsExplorerURL(org, q.Query, q.Dataset, project, q.Fields)
	if q.Dataset == sentryapi.DatasetErrors && !hasAggregate(q.Fields) {
		explorer = client.BuildDiscoverURL(org, q.Query, project, q.Fields, q.Sort)
	} else if hasAggregate(q.Fields) {
		explorer = client.BuildEapURL(org, q.Query, q.Dataset, project, q.Fields, q.Sort)
	}
	out.f("View this query in Sentry: %s\n", explorer)
	return out.String()
}

func hasAggregate(fields []string) bool {
	for _, f := range fields {
		if open := strings.Index(f, "("); open > 0 && strings.HasSuffix(f, ")") {
			return true
		}
	}
	return false
}

func formatCell(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ReplaceAll(value, "|", `\|`)
	case float64:
		if value == float64(int64(value)) {
			return fmt.Sprintf("%d", int64(value))
		}
		return fmt.Sprintf("%.2f", value)
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(encoded)
	}
}

func (r *Registry) searchIssues() tool.Config {
	return tool.Config{
		Name: "search_issues",
		Description: "Search for grouped issues in Sentry using natural language.\n\n" +
			"Use this tool when you need to:\n" +
			"- Answer questions like \"what are the most common unresolved errors this week\"\n" +
			"- Find issues without knowing Sentry's search syntax",
		Schema: tool.Schema{
			orgField(),
			{Name: "naturalLanguageQuery", Type: tool.TypeString, Description: "The question to answer, in plain language.", Required: true},
			projectOrIDField("Limit the search to this project."),
			regionField(),
		},
		RequiredScopes: []auth.Scope{auth.ScopeEventRead},
		RequiredSkills: []auth.Skill{auth.SkillInspect},
		Annotations:    tool.Annotations{ReadOnlyHint: true},
		Handler:        r.searchIssuesHandler,
	}
}

func (r *Registry) searchIssuesHandler(ctx context.Context, args map[string]any) (any, error) {
	client, sc, err := r.client(ctx, args)
	if err != nil {
		return nil, err
	}
	runner, err := r.runner()
	if err != nil {
		return nil, err
	}
	if err := r.checkRateLimit(ctx, sc); err != nil {
		return nil, err
	}
	org, err := requiredStringArg(args, tool.FieldOrganizationSlug)
	if err != nil {
		return nil, err
	}
	question, err := requiredStringArg(args, "naturalLanguageQuery")
	if err != nil {
		return nil, err
	}
	project := stringArg(args, tool.FieldProjectSlugOrID)

	translated, _, err := agent.RunDecoded[issuesQuery](ctx, runner, agent.Request{
		System: issuesTranslatorSystem,
		Prompt: question,
		Tools:  []agent.ToolDef{r.fieldListingTool(client, org, project)},
	}, validateIssuesQuery)
	if err != nil {
		return nil, err
	}

	issues, err := client.ListIssues(ctx, sentryapi.ListIssuesParams{
		Organization: org,
		Project:      project,
		Query:        translated.Query,
		SortBy:       translated.SortBy,
	})
	if err != nil {
		return nil, err
	}
	return formatIssueList(client, org, translated.Query, project, issues), nil
}

func validateIssuesQuery(q issuesQuery) error {
	if sqlPattern.MatchString(q.Query) {
		return mcperr.NewUserInputError("The query uses SQL syntax. Use Sentry issue search syntax (key:value tokens) instead.")
	}
	switch q.SortBy {
	case "", "user", "freq", "date", "new":
		return nil
	}
	return mcperr.NewUserInputError("Invalid sort %q: must be one of user, freq, date, new.", q.SortBy)
}
