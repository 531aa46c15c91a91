package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// sseGoneBody is the literal deprecation payload for the removed SSE
// transport. Served byte-for-byte.
const sseGoneBody = `{"error":"SSE transport has been removed","message":"The SSE transport endpoint is no longer supported. Please use the HTTP transport at /mcp instead.","migrationGuide":"https://mcp.sentry.dev"}`

const robotsBody = `User-agent: *
Allow: /$
Allow: /robots.txt
Allow: /llms.txt
Disallow: /
`

func (s *Server) handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(robotsBody))
}

// llmsBody renders the llms.txt markdown for the given origin.
func llmsBody(origin string) string {
	return fmt.Sprintf(`# Sentry MCP Gateway

A remote MCP server exposing Sentry's error tracking, performance and
Seer analysis tools over the Model Context Protocol.

## Connecting

MCP endpoint: %[1]s/mcp

Scope the server to a single organization or project through the URL:

- %[1]s/mcp/{organization}
- %[1]s/mcp/{organization}/{project}

Authentication uses OAuth; your MCP client will open a browser window to
approve access. Example configuration:

`+"```json"+`
{
  "mcpServers": {
    "sentry": {
      "url": "%[1]s/mcp"
    }
  }
}
`+"```"+`
`, origin)
}

func (s *Server) handleLLMs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(llmsBody(s.origin(r))))
}

// handleRoot negotiates the landing page: agents asking for markdown get
// the llms.txt body, browsers get a minimal HTML page.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/markdown") {
		s.handleLLMs(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html>
<head><meta charset="utf-8"><title>Sentry MCP Gateway</title></head>
<body>
<h1>Sentry MCP Gateway</h1>
<p>Connect your MCP client to <code>%s/mcp</code>.</p>
</body>
</html>
`, s.origin(r))
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusGone)
	_, _ = w.Write([]byte(sseGoneBody))
}

// authorizationServerMetadata is the RFC 8414 document.
func (s *Server) handleAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	origin := s.origin(r)
	payload, _ := json.Marshal(map[string]any{
		"issuer":                                origin,
		"authorization_endpoint":                origin + "/oauth/authorize",
		"token_endpoint":                        origin + "/oauth/token",
		"registration_endpoint":                 origin + "/oauth/register",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code"},
		"code_challenge_methods_supported":      []string{"S256"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_post", "client_secret_basic", "none"},
	})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

// protectedResourceMetadata is the RFC 9728 document. The resource echoes
// the request path after the well-known prefix, query stripped, so any
// constrained MCP URL is a valid resource identifier.
func (s *Server) handleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	origin := s.origin(r)
	path := strings.TrimPrefix(r.URL.Path, "/.well-known/oauth-protected-resource")

	payload, _ := json.Marshal(struct {
		Resource             string   `json:"resource"`
		AuthorizationServers []string `json:"authorization_servers"`
	}{
		Resource:             origin + path,
		AuthorizationServers: []string{origin},
	})
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}
