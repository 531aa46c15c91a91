// Package agent runs small embedded LLM loops that translate natural
// language into structured queries. The loop is bounded, tool calls are
// captured for diagnostics, and malformed model output surfaces as an
// input error the caller can retry.
package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
)

// MaxSteps bounds the tool-call loop of a single run.
const MaxSteps = 5

// ToolDef is a function tool exposed to the embedded agent.
type ToolDef struct {
	Name        string
	Description string
	// Schema is the JSON Schema of the arguments object.
	Schema map[string]any
	// Handler executes the tool and returns the text fed back to the model.
	Handler func(ctx context.Context, args map[string]any) (string, error)
}

// Request is one embedded agent invocation.
type Request struct {
	System string
	Prompt string
	Tools  []ToolDef
}

// ToolCall records one tool invocation made during a run.
type ToolCall struct {
	Tool      string
	Arguments map[string]any
}

// Result is the final output of a run.
type Result struct {
	Text  string
	Calls []ToolCall
}

// Runner executes embedded agent requests.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// retryPreamble asks the model to fix its previous output. The failed
// message is embedded verbatim.
const retryPreamble = "Previous attempt failed with: %s\nPlease correct the query."

// RunDecoded runs the agent and decodes its final output as JSON into T.
// The optional validate hook checks the decoded value; a user-input error
// from malformed output or validation triggers exactly one retry with the
// failure appended to the prompt. A {"error": ...} payload is the model
// declining the request outright and surfaces immediately, without the
// retry. The last Result is returned alongside the decoded value for
// call capture.
func RunDecoded[T any](ctx context.Context, runner Runner, req Request, validate func(T) error) (T, *Result, error) {
	var zero T

	decoded, result, declined, err := runOnce(ctx, runner, req, validate)
	if err == nil {
		return decoded, result, nil
	}

	var uie *mcperr.UserInputError
	if declined || result == nil || !asUserInput(err, &uie) {
		return zero, result, err
	}

	retry := req
	retry.Prompt = req.Prompt + "\n\n" + strings.Replace(retryPreamble, "%s", uie.Message, 1)
	decoded, result, _, err = runOnce(ctx, runner, retry, validate)
	return decoded, result, err
}

func runOnce[T any](ctx context.Context, runner Runner, req Request, validate func(T) error) (T, *Result, bool, error) {
	var zero T
	result, err := runner.Run(ctx, req)
	if err != nil {
		return zero, nil, false, err
	}
	decoded, declined, err := decode[T](result.Text)
	if err != nil {
		return zero, result, declined, err
	}
	if validate != nil {
		if err := validate(decoded); err != nil {
			return zero, result, false, err
		}
	}
	return decoded, result, false, nil
}

func asUserInput(err error, target **mcperr.UserInputError) bool {
	if uie, ok := err.(*mcperr.UserInputError); ok {
		*target = uie
		return true
	}
	return false
}

// decode extracts the JSON object from the model's final text. The
// declined flag marks a {"error": "..."} payload, the model's own
// diagnosis of the request; it surfaces verbatim and is never retried.
func decode[T any](text string) (T, bool, error) {
	var zero T
	payload := extractJSON(text)
	if payload == "" {
		return zero, false, mcperr.NewUserInputError("The response did not contain a JSON object.")
	}

	var refusal struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(payload), &refusal); err == nil && refusal.Error != "" {
		return zero, true, mcperr.NewUserInputError("%s", refusal.Error)
	}

	var decoded T
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return zero, false, mcperr.NewUserInputError("The response was not valid JSON: %v", err)
	}
	return decoded, false, nil
}

// extractJSON strips markdown fences and returns the outermost JSON
// object in the text, or "" when none is present.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
