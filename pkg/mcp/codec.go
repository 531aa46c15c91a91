package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// ParseRequest decodes a single JSON-RPC request from its wire format.
// Structural validation (jsonrpc version, member types) is delegated to
// the MCP SDK's jsonrpc package; the raw id is captured separately so
// responses can echo it byte-for-byte.
func ParseRequest(data []byte) (*Request, error) {
	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		return nil, fmt.Errorf("decoding JSON-RPC message: %w", err)
	}
	req, ok := msg.(*jsonrpc.Request)
	if !ok {
		return nil, fmt.Errorf("expected a JSON-RPC request, got a response")
	}

	// Capture the raw id for echoing. jsonrpc.ID normalizes the value;
	// responses must carry the exact client representation.
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	_ = json.Unmarshal(data, &envelope)

	return &Request{
		ID:     envelope.ID,
		Method: req.Method,
		Params: req.Params,
	}, nil
}

// EncodeResponse serializes a response to its wire format.
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// ToolCallParams is the params shape of a tools/call request.
type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// PromptGetParams is the params shape of a prompts/get request.
type PromptGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

// ResourceReadParams is the params shape of a resources/read request.
type ResourceReadParams struct {
	URI string `json:"uri"`
}

// InitializeParams is the params shape of an initialize request.
type InitializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}
