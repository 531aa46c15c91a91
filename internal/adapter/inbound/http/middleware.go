// Package http is the gateway's edge: middleware, discovery endpoints,
// the OAuth routes and the stateless MCP endpoint.
package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sentry-mcp/gateway/internal/ctxkey"
)

// RequestIDKey is the context key for the request ID.
var RequestIDKey = ctxkey.RequestIDKey{}

// LoggerKey is the context key for the enriched logger.
// Uses the shared key type from ctxkey so other packages can read it
// without an import cycle.
var LoggerKey = ctxkey.LoggerKey{}

// ClientIPKey is the context key for the extracted client IP.
var ClientIPKey = ctxkey.ClientIPKey{}

// RequestIDMiddleware extracts or generates a request ID and enriches the
// logger. The request ID is stored in context using RequestIDKey; an
// enriched logger with a request_id field is stored using LoggerKey.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, logger.With("request_id", requestID))

			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// RealIPMiddleware extracts the client's real IP address and stores it in
// context using ClientIPKey.
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), ClientIPKey, extractRealIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractRealIP picks the first present of X-Real-IP, CF-Connecting-IP
// and the first X-Forwarded-For entry, falling back to RemoteAddr.
func extractRealIP(r *http.Request) string {
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Format: client, proxy1, proxy2. Trust only the first entry.
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SecurityHeadersMiddleware sets the standard hardening headers on every
// response.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// crossOriginExempt lists path prefixes that must stay reachable
// cross-origin: the machine-facing OAuth endpoints, the MCP transport and
// every discovery path. The CSRF check and the bot filter skip them.
func crossOriginExempt(path string) bool {
	switch {
	case path == "/oauth/token", path == "/oauth/register":
		return true
	case path == "/mcp", strings.HasPrefix(path, "/mcp/"):
		return true
	case strings.HasPrefix(path, "/.well-known/"):
		return true
	case path == "/robots.txt", path == "/llms.txt":
		return true
	case path == "/metrics":
		return true
	}
	return false
}

// CSRFMiddleware enforces same-origin form submissions. Requests without
// an Origin header pass (server-to-server, OAuth redirects, MCP clients);
// requests with one must match the request's own origin.
func CSRFMiddleware(publicURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if crossOriginExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if origin != requestOrigin(r, publicURL) {
				http.Error(w, "Forbidden: cross-origin request", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestOrigin returns the external origin of the request: the fixed
// public URL when configured, otherwise derived from the request itself.
func requestOrigin(r *http.Request, publicURL string) string {
	if publicURL != "" {
		return strings.TrimRight(publicURL, "/")
	}
	scheme := "https"
	if r.TLS == nil {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else if strings.HasPrefix(r.Host, "localhost") || strings.HasPrefix(r.Host, "127.0.0.1") {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host
}
