package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-5"

// OpenAIRunner executes agent requests against the OpenAI chat
// completions API with function calling.
type OpenAIRunner struct {
	client openai.Client
	model  shared.ChatModel
	effort shared.ReasoningEffort
}

// NewOpenAIRunner creates a runner. model and reasoningEffort may be
// empty; the model falls back to DefaultModel and the effort is omitted
// from requests when unset.
func NewOpenAIRunner(apiKey, model, reasoningEffort string, opts ...option.RequestOption) *OpenAIRunner {
	if model == "" {
		model = DefaultModel
	}
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIRunner{
		client: openai.NewClient(clientOpts...),
		model:  shared.ChatModel(model),
		effort: shared.ReasoningEffort(reasoningEffort),
	}
}

// Run drives the completion loop until the model produces a final text
// answer or MaxSteps tool rounds have elapsed.
func (r *OpenAIRunner) Run(ctx context.Context, req Request) (*Result, error) {
	params := openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
	}
	if r.effort != "" {
		params.ReasoningEffort = r.effort
	}

	byName := make(map[string]ToolDef, len(req.Tools))
	for _, t := range req.Tools {
		byName[t.Name] = t
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  shared.FunctionParameters(t.Schema),
		}))
	}

	result := &Result{}
	for step := 0; step < MaxSteps; step++ {
		completion, err := r.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("chat completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return nil, fmt.Errorf("chat completion returned no choices")
		}
		msg := completion.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			result.Text = msg.Content
			return result, nil
		}

		params.Messages = append(params.Messages, msg.ToParam())
		for _, call := range msg.ToolCalls {
			output := r.invoke(ctx, byName, call, result)
			params.Messages = append(params.Messages, openai.ToolMessage(output, call.ID))
		}
	}
	return nil, fmt.Errorf("agent did not finish within %d steps", MaxSteps)
}

// invoke executes one tool call and returns the text fed back to the
// model. Tool failures are reported to the model rather than aborting
// the run, it may recover with a different call.
func (r *OpenAIRunner) invoke(ctx context.Context, byName map[string]ToolDef, call openai.ChatCompletionMessageToolCallUnion, result *Result) string {
	name := call.Function.Name
	var args map[string]any
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: arguments were not valid JSON: %v", err)
		}
	}
	result.Calls = append(result.Calls, ToolCall{Tool: name, Arguments: args})

	def, ok := byName[name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", name)
	}
	output, err := def.Handler(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return output
}
