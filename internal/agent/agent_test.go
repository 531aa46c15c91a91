package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
)

// scriptedRunner replays canned results and records the prompts it saw.
type scriptedRunner struct {
	results []*Result
	prompts []string
}

func (s *scriptedRunner) Run(ctx context.Context, req Request) (*Result, error) {
	s.prompts = append(s.prompts, req.Prompt)
	if len(s.results) == 0 {
		return &Result{}, nil
	}
	result := s.results[0]
	s.results = s.results[1:]
	return result, nil
}

type searchQuery struct {
	Dataset string `json:"dataset"`
	Query   string `json:"query"`
}

func TestRunDecoded_PlainJSON(t *testing.T) {
	runner := &scriptedRunner{results: []*Result{
		{Text: `{"dataset":"errors","query":"is:unresolved"}`},
	}}

	decoded, _, err := RunDecoded[searchQuery](context.Background(), runner, Request{Prompt: "find errors"}, nil)
	if err != nil {
		t.Fatalf("RunDecoded() error: %v", err)
	}
	if decoded.Dataset != "errors" || decoded.Query != "is:unresolved" {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(runner.prompts) != 1 {
		t.Errorf("expected a single run, got %d", len(runner.prompts))
	}
}

func TestRunDecoded_FencedJSON(t *testing.T) {
	runner := &scriptedRunner{results: []*Result{
		{Text: "Here is the query:\n```json\n{\"dataset\":\"spans\",\"query\":\"span.op:db\"}\n```"},
	}}

	decoded, _, err := RunDecoded[searchQuery](context.Background(), runner, Request{}, nil)
	if err != nil {
		t.Fatalf("RunDecoded() error: %v", err)
	}
	if decoded.Dataset != "spans" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestRunDecoded_ModelDeclineSurfacesImmediately(t *testing.T) {
	runner := &scriptedRunner{results: []*Result{
		{Text: `{"error":"I could not determine the dataset; 100% of fields were ambiguous."}`},
		{Text: `{"dataset":"errors","query":"level:error"}`},
	}}

	_, _, err := RunDecoded[searchQuery](context.Background(), runner, Request{Prompt: "show problems"}, nil)
	if err == nil {
		t.Fatal("a declined request must surface as an error")
	}
	if !mcperr.IsUserInput(err) {
		t.Errorf("expected user input error, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "100% of fields were ambiguous") {
		t.Errorf("decline message must survive verbatim: %v", err)
	}
	if len(runner.prompts) != 1 {
		t.Fatalf("a decline must not be retried, got %d runs", len(runner.prompts))
	}
}

func TestRunDecoded_ValidationFailureRetries(t *testing.T) {
	runner := &scriptedRunner{results: []*Result{
		{Text: `{"dataset":"errors","query":"SELECT * FROM issues"}`},
		{Text: `{"dataset":"errors","query":"is:unresolved"}`},
	}}
	validate := func(q searchQuery) error {
		if strings.HasPrefix(q.Query, "SELECT") {
			return mcperr.NewUserInputError("Query uses SQL syntax; use the search query language instead.")
		}
		return nil
	}

	decoded, _, err := RunDecoded[searchQuery](context.Background(), runner, Request{Prompt: "show unresolved"}, validate)
	if err != nil {
		t.Fatalf("RunDecoded() error: %v", err)
	}
	if decoded.Query != "is:unresolved" {
		t.Errorf("decoded = %+v", decoded)
	}
	if !strings.Contains(runner.prompts[1], "Previous attempt failed with: Query uses SQL syntax") {
		t.Errorf("validation failure must be fed back verbatim: %q", runner.prompts[1])
	}
}

func TestRunDecoded_SecondFailureSurfaces(t *testing.T) {
	runner := &scriptedRunner{results: []*Result{
		{Text: `{"dataset":"bad query","query":""}`},
		{Text: `{"dataset":"still bad","query":""}`},
	}}
	validate := func(q searchQuery) error {
		return mcperr.NewUserInputError("Unknown dataset %q.", q.Dataset)
	}

	_, _, err := RunDecoded[searchQuery](context.Background(), runner, Request{}, validate)
	if err == nil {
		t.Fatal("expected error after failed retry")
	}
	if !mcperr.IsUserInput(err) {
		t.Errorf("expected user input error, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "still bad") {
		t.Errorf("second failure must win: %v", err)
	}
	if len(runner.prompts) != 2 {
		t.Errorf("exactly one retry allowed, got %d runs", len(runner.prompts))
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"surrounded by prose", `Sure! {"a":1} Done.`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"no object", "sorry, no idea", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.in); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
