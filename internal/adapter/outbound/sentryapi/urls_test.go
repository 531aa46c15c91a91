package sentryapi

import (
	"strings"
	"testing"
)

func TestGetIssueURL(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{"saas", "sentry.io", "https://acme.sentry.io/issues/PROJ-123"},
		{"regional resolves to root", "us.sentry.io", "https://acme.sentry.io/issues/PROJ-123"},
		{"self hosted", "sentry.example.com", "https://sentry.example.com/organizations/acme/issues/PROJ-123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient("", tt.host)
			if got := c.GetIssueURL("acme", "PROJ-123"); got != tt.want {
				t.Errorf("GetIssueURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetTraceURL(t *testing.T) {
	c := NewClient("", "sentry.io")
	want := "https://acme.sentry.io/explore/traces/trace/6a477f5b0f31ef7b6b9b5e1dea66c91d"
	if got := c.GetTraceURL("acme", "6a477f5b0f31ef7b6b9b5e1dea66c91d"); got != want {
		t.Errorf("GetTraceURL() = %q, want %q", got, want)
	}
}

func TestGetIssuesSearchURL(t *testing.T) {
	c := NewClient("", "sentry.io")

	got := c.GetIssuesSearchURL("acme", "is:unresolved", "backend")
	if !strings.HasPrefix(got, "https://acme.sentry.io/issues/?") {
		t.Errorf("unexpected base: %q", got)
	}
	if !strings.Contains(got, "project=backend") || !strings.Contains(got, "query=is%3Aunresolved") {
		t.Errorf("missing params: %q", got)
	}

	bare := c.GetIssuesSearchURL("acme", "", "")
	if bare != "https://acme.sentry.io/issues/" {
		t.Errorf("bare URL = %q", bare)
	}
}

func TestGetEventsExplorerURL(t *testing.T) {
	c := NewClient("", "sentry.io")
	got := c.GetEventsExplorerURL("acme", "span.op:db", "spans", "backend", []string{"span.op", "count()"})

	for _, want := range []string{"layout=table", "dataset=spans", "project=backend", "field=span.op", "field=count%28%29"} {
		if !strings.Contains(got, want) {
			t.Errorf("URL %q missing %q", got, want)
		}
	}
}

func TestBuildEapURL_AggregateMode(t *testing.T) {
	c := NewClient("", "sentry.io")
	got := c.BuildEapURL("acme", "", "spans", "", []string{"span.op", "count(span.duration)"}, "-count(span.duration)")

	if !strings.Contains(got, "mode=aggregate") {
		t.Errorf("aggregate fields must enable aggregate mode: %q", got)
	}
	if !strings.Contains(got, "groupBy=span.op") {
		t.Errorf("plain field must become groupBy: %q", got)
	}
	if !strings.Contains(got, "sort=-count_span_duration") {
		t.Errorf("sort must be flattened: %q", got)
	}
}
