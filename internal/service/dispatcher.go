package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/domain/mcperr"
	"github.com/sentry-mcp/gateway/internal/domain/tool"
	"github.com/sentry-mcp/gateway/internal/requestctx"
	"github.com/sentry-mcp/gateway/pkg/mcp"
)

var toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sentry_mcp",
	Name:      "tool_calls_total",
	Help:      "Tool invocations by tool name and outcome.",
}, []string{"tool", "outcome"})

// Prompt is a registered prompt template. The handler renders the user
// message for prompts/get.
type Prompt struct {
	Descriptor mcp.PromptDescriptor
	Handler    func(ctx context.Context, args map[string]string) (string, error)
}

// Resource is a registered readable resource.
type Resource struct {
	Descriptor mcp.ResourceDescriptor
	Handler    func(ctx context.Context, uri string) (mcp.ResourceContents, error)
}

// Dispatcher routes decoded JSON-RPC requests to the MCP method handlers.
// It is stateless: everything per-request comes from the ServerContext.
type Dispatcher struct {
	preparer  *Preparer
	prompts   []Prompt
	resources []Resource

	serverName    string
	serverVersion string
	instructions  string

	tracer trace.Tracer
	logger *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPrompts registers the prompt templates.
func WithPrompts(prompts []Prompt) DispatcherOption {
	return func(d *Dispatcher) { d.prompts = prompts }
}

// WithResources registers the readable resources.
func WithResources(resources []Resource) DispatcherOption {
	return func(d *Dispatcher) { d.resources = resources }
}

// WithInstructions sets the server instructions sent in initialize.
func WithInstructions(instructions string) DispatcherOption {
	return func(d *Dispatcher) { d.instructions = instructions }
}

// WithLogger sets the fallback logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// NewDispatcher creates a Dispatcher over the prepared tool set.
func NewDispatcher(preparer *Preparer, serverName, serverVersion string, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		preparer:      preparer,
		serverName:    serverName,
		serverVersion: serverVersion,
		tracer:        otel.Tracer("sentry-mcp-gateway/dispatcher"),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one decoded request and returns the response, or nil
// when the request is a notification.
func (d *Dispatcher) Dispatch(ctx context.Context, sc *auth.ServerContext, req *mcp.Request) *mcp.Response {
	ctx = requestctx.With(ctx, sc)

	if strings.HasPrefix(req.Method, "notifications/") {
		// Notifications are acknowledged by silence in a stateless server.
		return nil
	}

	switch req.Method {
	case "initialize":
		return d.initialize(req)
	case "ping":
		return mcp.NewResponse(req.ID, struct{}{})
	case "tools/list":
		return d.toolsList(sc, req)
	case "tools/call":
		return d.toolsCall(ctx, sc, req)
	case "prompts/list":
		return d.promptsList(req)
	case "prompts/get":
		return d.promptsGet(ctx, sc, req)
	case "resources/list":
		return d.resourcesList(req)
	case "resources/templates/list":
		return mcp.NewResponse(req.ID, map[string]any{"resourceTemplates": d.resourceTemplates()})
	case "resources/read":
		return d.resourcesRead(ctx, sc, req)
	default:
		return mcp.NewErrorResponse(req.ID, mcp.ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}
}

func (d *Dispatcher) initialize(req *mcp.Request) *mcp.Response {
	capabilities := map[string]any{
		"tools": map[string]any{},
	}
	if len(d.prompts) > 0 {
		capabilities["prompts"] = map[string]any{}
	}
	if len(d.resources) > 0 {
		capabilities["resources"] = map[string]any{}
	}
	return mcp.NewResponse(req.ID, mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities:    capabilities,
		ServerInfo:      mcp.ServerInfo{Name: d.serverName, Version: d.serverVersion},
		Instructions:    d.instructions,
	})
}

func (d *Dispatcher) toolsList(sc *auth.ServerContext, req *mcp.Request) *mcp.Response {
	prepared := d.visibleTools(sc)
	descriptors := make([]mcp.ToolDescriptor, 0, len(prepared))
	for _, p := range prepared {
		descriptors = append(descriptors, mcp.ToolDescriptor{
			Name:        p.Tool.Name,
			Description: p.Tool.Description,
			InputSchema: p.VisibleSchema.JSONSchema(),
			Annotations: map[string]any{
				"readOnlyHint":  p.Tool.Annotations.ReadOnlyHint,
				"openWorldHint": p.Tool.Annotations.OpenWorldHint,
			},
		})
	}
	return mcp.NewResponse(req.ID, map[string]any{"tools": descriptors})
}

func (d *Dispatcher) toolsCall(ctx context.Context, sc *auth.ServerContext, req *mcp.Request) *mcp.Response {
	var params mcp.ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.ErrCodeInvalidParams, "Invalid tools/call params", nil)
	}
	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	prepared := d.lookupPrepared(sc, params.Name)
	if prepared == nil {
		// Unknown and unauthorized are indistinguishable on purpose.
		return mcp.NewErrorResponse(req.ID, mcp.ErrCodeInvalidParams, fmt.Sprintf("Unknown tool: %s", params.Name), nil)
	}
	// Constraint-bound fields are discarded before validation: the URL
	// binding overrides whatever the client sent, it never rejects it.
	for _, name := range tool.ConstrainedFields(sc.Constraints) {
		delete(params.Arguments, name)
	}
	if problems := prepared.VisibleSchema.Validate(params.Arguments); len(problems) > 0 {
		toolCallsTotal.WithLabelValues(prepared.Tool.Name, "invalid_input").Inc()
		return mcp.NewErrorResponse(req.ID, mcp.ErrCodeInvalidParams, strings.Join(problems, "\n"), nil)
	}

	result := d.callTool(ctx, sc, prepared, params.Arguments)
	return mcp.NewResponse(req.ID, result)
}

// callTool validates, injects constraints, and executes a tool. Handler
// failures come back as isError results, never as protocol errors.
func (d *Dispatcher) callTool(ctx context.Context, sc *auth.ServerContext, prepared *PreparedTool, args map[string]any) *mcp.ToolResult {
	ctx, span := d.tracer.Start(ctx, "tools/call "+prepared.Tool.Name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(toolCallAttributes(sc, prepared.Tool.Name, args)...),
	)
	defer span.End()

	merged := tool.ApplyConstraints(args, sc.Constraints, prepared.Tool.Schema)
	out, err := prepared.Tool.Handler(ctx, merged)
	if err != nil {
		toolCallsTotal.WithLabelValues(prepared.Tool.Name, "error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return errorResult(ctx, err)
	}

	toolCallsTotal.WithLabelValues(prepared.Tool.Name, "success").Inc()
	switch v := out.(type) {
	case string:
		return &mcp.ToolResult{Content: mcp.TextContent(v)}
	case []mcp.ContentPart:
		return &mcp.ToolResult{Content: v}
	default:
		span.SetStatus(codes.Error, "unexpected handler result type")
		return errorResult(ctx, fmt.Errorf("tool %s returned unexpected result type %T", prepared.Tool.Name, out))
	}
}

func errorResult(ctx context.Context, err error) *mcp.ToolResult {
	return &mcp.ToolResult{
		Content: mcp.TextContent(mcperr.FormatToolError(ctx, err)),
		IsError: true,
	}
}

// visibleTools returns the session's prepared tools. In agent mode the
// surface narrows to the orchestrator entrypoint so clients route every
// request through it; when no entrypoint is registered the flag is a
// no-op.
func (d *Dispatcher) visibleTools(sc *auth.ServerContext) []PreparedTool {
	prepared := d.preparer.Prepare(sc)
	if !sc.AgentMode {
		return prepared
	}
	narrowed := make([]PreparedTool, 0, 1)
	for _, p := range prepared {
		if p.Tool.AgentEntrypoint {
			narrowed = append(narrowed, p)
		}
	}
	if len(narrowed) == 0 {
		return prepared
	}
	return narrowed
}

// lookupPrepared resolves a tool by name from the session's visible set.
func (d *Dispatcher) lookupPrepared(sc *auth.ServerContext, name string) *PreparedTool {
	for _, p := range d.visibleTools(sc) {
		if p.Tool.Name == name {
			prepared := p
			return &prepared
		}
	}
	return nil
}

// toolCallAttributes records the caller identity and every argument as a
// JSON-stringified span attribute.
func toolCallAttributes(sc *auth.ServerContext, toolName string, args map[string]any) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("mcp.tool.name", toolName)}
	return append(attrs, requestAttributes(sc, args)...)
}

// requestAttributes tags the caller identity and every request argument
// as mcp.request.argument.{k}, values JSON-stringified.
func requestAttributes(sc *auth.ServerContext, args map[string]any) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("user.id", sc.UserID),
		attribute.String("client.id", sc.ClientID),
	}
	for k, v := range args {
		encoded, err := json.Marshal(v)
		if err != nil {
			continue
		}
		attrs = append(attrs, attribute.String("mcp.request.argument."+k, string(encoded)))
	}
	return attrs
}

func (d *Dispatcher) promptsList(req *mcp.Request) *mcp.Response {
	descriptors := make([]mcp.PromptDescriptor, 0, len(d.prompts))
	for _, p := range d.prompts {
		descriptors = append(descriptors, p.Descriptor)
	}
	return mcp.NewResponse(req.ID, map[string]any{"prompts": descriptors})
}

func (d *Dispatcher) promptsGet(ctx context.Context, sc *auth.ServerContext, req *mcp.Request) *mcp.Response {
	var params mcp.PromptGetParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.ErrCodeInvalidParams, "Invalid prompts/get params", nil)
	}
	for _, p := range d.prompts {
		if p.Descriptor.Name != params.Name {
			continue
		}
		if params.Arguments == nil {
			params.Arguments = map[string]string{}
		}
		args := make(map[string]any, len(params.Arguments))
		for k, v := range params.Arguments {
			args[k] = v
		}
		ctx, span := d.tracer.Start(ctx, "prompts/get "+params.Name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(requestAttributes(sc, args)...),
		)
		defer span.End()

		text, err := p.Handler(ctx, params.Arguments)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return mcp.NewErrorResponse(req.ID, mcp.ErrCodeInvalidParams, err.Error(), nil)
		}
		return mcp.NewResponse(req.ID, map[string]any{
			"description": p.Descriptor.Description,
			"messages": []mcp.PromptMessage{
				{Role: "user", Content: mcp.ContentPart{Type: "text", Text: text}},
			},
		})
	}
	return mcp.NewErrorResponse(req.ID, mcp.ErrCodeInvalidParams, fmt.Sprintf("Unknown prompt: %s", params.Name), nil)
}

func (d *Dispatcher) resourcesList(req *mcp.Request) *mcp.Response {
	descriptors := make([]mcp.ResourceDescriptor, 0, len(d.resources))
	for _, r := range d.resources {
		if r.Descriptor.URI != "" {
			descriptors = append(descriptors, r.Descriptor)
		}
	}
	return mcp.NewResponse(req.ID, map[string]any{"resources": descriptors})
}

func (d *Dispatcher) resourceTemplates() []mcp.ResourceDescriptor {
	var templates []mcp.ResourceDescriptor
	for _, r := range d.resources {
		if r.Descriptor.URITemplate != "" {
			templates = append(templates, r.Descriptor)
		}
	}
	if templates == nil {
		templates = []mcp.ResourceDescriptor{}
	}
	return templates
}

func (d *Dispatcher) resourcesRead(ctx context.Context, sc *auth.ServerContext, req *mcp.Request) *mcp.Response {
	var params mcp.ResourceReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.ErrCodeInvalidParams, "Invalid resources/read params", nil)
	}
	for _, r := range d.resources {
		if !resourceMatches(r.Descriptor, params.URI) {
			continue
		}
		ctx, span := d.tracer.Start(ctx, "resources/read "+r.Descriptor.Name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(requestAttributes(sc, map[string]any{"uri": params.URI})...),
		)
		defer span.End()

		contents, err := r.Handler(ctx, params.URI)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			d.logger.Warn("resource read failed", "uri", params.URI, "error", err)
			return mcp.NewErrorResponse(req.ID, mcp.ErrCodeInternalError, "Failed to read resource", nil)
		}
		return mcp.NewResponse(req.ID, map[string]any{
			"contents": []mcp.ResourceContents{contents},
		})
	}
	return mcp.NewErrorResponse(req.ID, mcp.ErrCodeInvalidParams, fmt.Sprintf("Unknown resource: %s", params.URI), nil)
}

// resourceMatches checks a request URI against a fixed URI or the static
// prefix of a URI template.
func resourceMatches(desc mcp.ResourceDescriptor, uri string) bool {
	if desc.URI != "" {
		return desc.URI == uri
	}
	if desc.URITemplate == "" {
		return false
	}
	prefix := desc.URITemplate
	if i := strings.IndexByte(prefix, '{'); i >= 0 {
		prefix = prefix[:i]
	}
	return strings.HasPrefix(uri, prefix)
}
