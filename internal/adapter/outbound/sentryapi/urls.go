package sentryapi

import (
	"net/url"
	"strings"
)

// Web-UI URL builders. These produce the "view in the UI" links returned
// to the agent. Regional API hosts (us.sentry.io) always resolve back to
// the root sentry.io domain for browser links.

// webHost returns the browser-facing host for this client.
func (c *Client) webHost() string {
	if IsSaaSHost(c.host) {
		return "sentry.io"
	}
	return c.host
}

// orgBaseURL returns the UI base URL for an organization. SaaS uses the
// org-subdomain form; self-hosted uses the path form.
func (c *Client) orgBaseURL(org string) string {
	if IsSaaSHost(c.host) {
		return "https://" + org + ".sentry.io"
	}
	return "https://" + c.host + "/organizations/" + org
}

// GetIssueURL returns the UI link for an issue.
func (c *Client) GetIssueURL(org, shortID string) string {
	return c.orgBaseURL(org) + "/issues/" + shortID
}

// GetTraceURL returns the UI link for a trace.
func (c *Client) GetTraceURL(org, traceID string) string {
	return c.orgBaseURL(org) + "/explore/traces/trace/" + traceID
}

// GetIssuesSearchURL returns the UI link for an issues search, optionally
// narrowed to a project and query.
func (c *Client) GetIssuesSearchURL(org, query, projectSlugOrID string) string {
	params := url.Values{}
	if projectSlugOrID != "" {
		params.Set("project", projectSlugOrID)
	}
	if query != "" {
		params.Set("query", query)
	}
	u := c.orgBaseURL(org) + "/issues/"
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// GetEventsExplorerURL returns the UI link for the events explorer with a
// table layout, preserving field order.
func (c *Client) GetEventsExplorerURL(org, query, dataset, project string, fields []string) string {
	params := url.Values{}
	params.Set("query", query)
	params.Set("dataset", dataset)
	params.Set("layout", "table")
	if project != "" {
		params.Set("project", project)
	}
	for _, field := range fields {
		params.Add("field", field)
	}
	return c.orgBaseURL(org) + "/explore/?" + params.Encode()
}

// BuildDiscoverURL returns the UI link for a non-aggregate errors query.
func (c *Client) BuildDiscoverURL(org, query, project string, fields []string, sort string) string {
	params := url.Values{}
	params.Set("queryDataset", "error-events")
	params.Set("query", query)
	if sort != "" {
		params.Set("sort", transformSort(sort))
	}
	if project != "" {
		params.Set("project", project)
	}
	for _, field := range fields {
		params.Add("field", field)
	}
	return c.orgBaseURL(org) + "/explore/discover/homepage/?" + params.Encode()
}

// BuildEapURL returns the UI link for an aggregate spans/logs query. The
// aggregate layout splits plain fields into groupBy and aggregate
// functions into visualize.
func (c *Client) BuildEapURL(org, query, dataset, project string, fields []string, sort string) string {
	params := url.Values{}
	params.Set("query", query)
	params.Set("dataset", dataset)
	if sort != "" {
		params.Set("sort", transformSort(sort))
	}
	if project != "" {
		params.Set("project", project)
	}

	var hasAggregate bool
	for _, field := range fields {
		if isAggregateField(field) {
			params.Add("visualize", `{"chartType":1,"yAxes":["`+field+`"]}`)
			hasAggregate = true
		} else {
			params.Add("groupBy", field)
		}
	}
	if hasAggregate {
		params.Set("mode", "aggregate")
	}
	return c.orgBaseURL(org) + "/explore/?" + params.Encode()
}

// isAggregateField reports whether a field is an aggregate expression
// like count() or avg(span.duration).
func isAggregateField(field string) bool {
	open := strings.Index(field, "(")
	return open > 0 && strings.HasSuffix(field, ")")
}
