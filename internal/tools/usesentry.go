package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sentry-mcp/gateway/internal/agent"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
	"github.com/sentry-mcp/gateway/internal/requestctx"
	"github.com/sentry-mcp/gateway/pkg/mcp"
)

const useSentrySystem = `You are an assistant operating Sentry, an error-tracking service, on the user's behalf. Use the available tools to fulfil the request, then summarize what you found or did in markdown. If the request cannot be fulfilled with the available tools, say so plainly.`

func (r *Registry) useSentry() tool.Config {
	return tool.Config{
		Name: "use_sentry",
		Description: "Fulfil a natural language request using the Sentry tools on the user's behalf.\n\n" +
			"Use this tool when the request does not map cleanly onto a single tool.",
		Schema: tool.Schema{
			{Name: "request", Type: tool.TypeString, Description: "What to do, in plain language.", Required: true},
		},
		Annotations:     tool.Annotations{OpenWorldHint: true},
		AgentEntrypoint: true,
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			sc, _ := requestctx.From(ctx)
			runner, err := r.runner()
			if err != nil {
				return nil, err
			}
			if sc != nil {
				if err := r.checkRateLimit(ctx, sc); err != nil {
					return nil, err
				}
			}
			request, err := requiredStringArg(args, "request")
			if err != nil {
				return nil, err
			}

			result, err := runner.Run(ctx, agent.Request{
				System: useSentrySystem,
				Prompt: request,
				Tools:  r.agentTools(sc),
			})
			if err != nil {
				return nil, err
			}

			out := &md{}
			out.h1("Result")
			out.line(result.Text)
			if len(result.Calls) > 0 {
				out.blank()
				out.h2("Tools used")
				for _, call := range result.Calls {
					out.bullet("`" + call.Tool + "`")
				}
			}
			return out.String(), nil
		},
	}
}

// agentTools re-wraps the session's prepared tools for the embedded
// agent: the scope/skill filtering of tools/list applies identically, the
// ServerContext is bound at wrap time, constraints are pre-injected, and
// handler errors come back as the {"error": ...} shape the model can
// reason about. use_sentry itself is excluded to prevent recursion.
func (r *Registry) agentTools(sc *auth.ServerContext) []agent.ToolDef {
	if sc == nil {
		sc = &auth.ServerContext{}
	}
	prepared := r.preparer.Prepare(sc)
	defs := make([]agent.ToolDef, 0, len(prepared))
	for _, p := range prepared {
		cfg := p.Tool
		if cfg.Name == "use_sentry" {
			continue
		}
		defs = append(defs, agent.ToolDef{
			Name:        cfg.Name,
			Description: cfg.Description,
			Schema:      p.VisibleSchema.JSONSchema(),
			Handler: func(callCtx context.Context, args map[string]any) (string, error) {
				if args == nil {
					args = map[string]any{}
				}
				merged := tool.ApplyConstraints(args, sc.Constraints, cfg.Schema)
				result, err := cfg.Handler(callCtx, merged)
				if err != nil {
					return encodeAgentError(err), nil
				}
				switch v := result.(type) {
				case string:
					return v, nil
				case []mcp.ContentPart:
					var text string
					for _, part := range v {
						if part.Type == "text" {
							text += part.Text + "\n"
						}
					}
					return text, nil
				default:
					return encodeAgentError(fmt.Errorf("unexpected result type %T", result)), nil
				}
			},
		})
	}
	return defs
}

// encodeAgentError renders a handler failure in the JSON error shape the
// embedded agent understands.
func encodeAgentError(err error) string {
	encoded, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return `{"error": "internal error"}`
	}
	return string(encoded)
}
