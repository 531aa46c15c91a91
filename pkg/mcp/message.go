// Package mcp provides MCP message types and JSON-RPC codec utilities
// for the gateway's stateless HTTP transport.
package mcp

import (
	"encoding/json"
)

// ProtocolVersion is the MCP protocol version this gateway speaks.
const ProtocolVersion = "2025-06-18"

// JSON-RPC 2.0 standard error codes.
const (
	// ErrCodeParseError indicates invalid JSON was received.
	ErrCodeParseError = -32700
	// ErrCodeInvalidRequest indicates the JSON is not a valid Request object.
	ErrCodeInvalidRequest = -32600
	// ErrCodeMethodNotFound indicates the method does not exist.
	ErrCodeMethodNotFound = -32601
	// ErrCodeInvalidParams indicates invalid method parameters.
	ErrCodeInvalidParams = -32602
	// ErrCodeInternalError indicates an internal JSON-RPC error.
	ErrCodeInternalError = -32603
)

// Request is a decoded JSON-RPC request with the raw ID preserved for
// echoing back in the response.
type Request struct {
	// ID is the raw JSON id value. Nil for notifications.
	ID json.RawMessage
	// Method is the JSON-RPC method name.
	Method string
	// Params holds the raw params object.
	Params json.RawMessage
}

// IsNotification reports whether the request carries no id.
func (r *Request) IsNotification() bool { return r.ID == nil }

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is a JSON-RPC 2.0 error object.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewResponse builds a success response echoing the request ID.
func NewResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

// NewErrorResponse builds an error response echoing the request ID.
func NewErrorResponse(id json.RawMessage, code int, message string, data any) *Response {
	if id == nil {
		id = json.RawMessage("null")
	}
	return &Response{JSONRPC: "2.0", ID: id, Error: &ErrorObject{Code: code, Message: message, Data: data}}
}

// ContentPart is one element of a tool result's content list.
// Type is "text", "image" or "resource".
type ContentPart struct {
	Type string `json:"type"`
	// Text is set for "text" parts.
	Text string `json:"text,omitempty"`
	// Data and MimeType are set for "image" parts (base64 payload).
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	// Resource is set for embedded "resource" parts.
	Resource *ResourceContents `json:"resource,omitempty"`
}

// ResourceContents is the payload of an embedded or read resource.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// TextContent wraps plain text as a single-element content list.
func TextContent(text string) []ContentPart {
	return []ContentPart{{Type: "text", Text: text}}
}

// ToolResult is the result payload of a tools/call response.
// Handler errors are returned as IsError=true with explanatory text,
// never as protocol errors.
type ToolResult struct {
	Content []ContentPart `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ToolDescriptor is one entry of a tools/list response.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	Annotations map[string]any `json:"annotations,omitempty"`
}

// PromptDescriptor is one entry of a prompts/list response.
type PromptDescriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes one prompt template argument.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptMessage is one message of a prompts/get response.
type PromptMessage struct {
	Role    string      `json:"role"`
	Content ContentPart `json:"content"`
}

// ResourceDescriptor is one entry of a resources/list response.
type ResourceDescriptor struct {
	URI         string `json:"uri,omitempty"`
	URITemplate string `json:"uriTemplate,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// InitializeResult is the result payload of an initialize response.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Instructions    string         `json:"instructions,omitempty"`
}

// ServerInfo identifies the MCP server implementation.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
