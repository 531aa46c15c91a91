package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sentry-mcp/gateway/internal/adapter/inbound/oauthgw"
	"github.com/sentry-mcp/gateway/internal/domain/auth"
	"github.com/sentry-mcp/gateway/internal/service"
	"github.com/sentry-mcp/gateway/pkg/mcp"
)

// maxRequestBodySize caps MCP request bodies at 1 MB.
const maxRequestBodySize = 1 << 20

// MCPProtocolVersionHeader is the protocol version response header.
const MCPProtocolVersionHeader = "MCP-Protocol-Version"

// handleMCP serves POST /mcp[/{org}[/{project}]]. Each request is
// self-contained: authenticate, verify the URL constraints, dispatch,
// respond. No session state survives the request.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		// handled below
	case http.MethodOptions:
		s.handleMCPPreflight(w, r)
		return
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")

	logger := LoggerFromContext(r.Context())

	token, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	org, project, ok := parseMCPPath(r.URL.Path)
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	result := s.verifier.Verify(r.Context(), service.VerifyRequest{
		OrganizationSlug: org,
		ProjectSlug:      project,
		AccessToken:      token.UpstreamToken,
		Host:             s.upstreamHost,
		UserID:           token.UserID,
	})
	if !result.OK {
		msg := result.Message
		if result.EventID != "" {
			msg += " (event ID: " + result.EventID + ")"
		}
		http.Error(w, msg, result.Status)
		return
	}

	sc := &auth.ServerContext{
		UserID:        token.UserID,
		ClientID:      token.ClientID,
		AccessToken:   token.UpstreamToken,
		UpstreamHost:  s.upstreamHost,
		MCPURL:        s.origin(r) + r.URL.Path,
		GrantedScopes: token.GrantedScopes,
		GrantedSkills: token.GrantedSkills,
		Constraints:   result.Constraints,
		AgentMode:     r.URL.Query().Get("agent") == "1",
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.writeResponse(w, mcp.NewErrorResponse(nil, mcp.ErrCodeParseError, "Parse error: request body too large (max 1MB)", nil))
			return
		}
		s.writeResponse(w, mcp.NewErrorResponse(nil, mcp.ErrCodeParseError, "Parse error: failed to read request body", nil))
		return
	}

	req, err := mcp.ParseRequest(body)
	if err != nil {
		logger.Debug("rejecting malformed MCP request", "error", err)
		s.writeResponse(w, mcp.NewErrorResponse(nil, mcp.ErrCodeParseError, "Parse error: "+err.Error(), nil))
		return
	}

	resp := s.dispatcher.Dispatch(r.Context(), sc, req)
	if resp == nil {
		// Notification: acknowledged with 202 and no body.
		w.Header().Set(MCPProtocolVersionHeader, mcp.ProtocolVersion)
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set(MCPProtocolVersionHeader, mcp.ProtocolVersion)
	s.writeResponse(w, resp)
}

// authenticate resolves the Bearer token to a stored MCP token. Failures
// are answered with 401 plain text plus the RFC 9728 pointer.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*oauthgw.Token, bool) {
	header := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		s.unauthorized(w, r, "Missing access token")
		return nil, false
	}
	token, err := s.tokens.GetToken(r.Context(), oauthgw.TokenDigest(raw))
	if err != nil {
		s.unauthorized(w, r, "Invalid access token")
		return nil, false
	}
	return token, true
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate",
		`Bearer resource_metadata="`+s.origin(r)+`/.well-known/oauth-protected-resource"`)
	http.Error(w, message, http.StatusUnauthorized)
}

// parseMCPPath splits /mcp[/{org}[/{project}]] into its slugs.
func parseMCPPath(path string) (org, project string, ok bool) {
	rest := strings.TrimPrefix(path, "/mcp")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", "", true
	}
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *mcp.Response) {
	payload, err := mcp.EncodeResponse(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func (s *Server) handleMCPPreflight(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, MCP-Protocol-Version")
	h.Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}
