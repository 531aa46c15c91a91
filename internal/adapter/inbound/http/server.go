package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentry-mcp/gateway/internal/adapter/inbound/oauthgw"
	"github.com/sentry-mcp/gateway/internal/service"
)

// TokenSource resolves MCP access token digests to stored tokens.
// Satisfied by oauthgw.Store.
type TokenSource interface {
	GetToken(ctx context.Context, digest string) (*oauthgw.Token, error)
}

// Server is the gateway's HTTP edge. It owns the middleware chain, the
// discovery and OAuth routes, and the MCP endpoint.
type Server struct {
	addr         string
	publicURL    string
	upstreamHost string

	dispatcher *service.Dispatcher
	verifier   *service.Verifier
	tokens     TokenSource
	oauth      *oauthgw.Handler

	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	server   *http.Server
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithAddr sets the listen address. Default is "127.0.0.1:8080".
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithPublicURL fixes the external origin. When empty the origin is
// derived per request from Host and X-Forwarded-Proto.
func WithPublicURL(publicURL string) Option {
	return func(s *Server) { s.publicURL = publicURL }
}

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRegistry sets the Prometheus registry. A fresh registry is created
// otherwise.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// NewServer assembles the edge over the dispatcher, verifier, token
// source and OAuth handler.
func NewServer(dispatcher *service.Dispatcher, verifier *service.Verifier, tokens TokenSource, oauth *oauthgw.Handler, upstreamHost string, opts ...Option) *Server {
	s := &Server{
		addr:         "127.0.0.1:8080",
		upstreamHost: upstreamHost,
		dispatcher:   dispatcher,
		verifier:     verifier,
		tokens:       tokens,
		oauth:        oauth,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = NewMetrics(s.registry)
	return s
}

func (s *Server) origin(r *http.Request) string {
	return requestOrigin(r, s.publicURL)
}

// Handler builds the full middleware chain and route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/robots.txt", s.handleRobots)
	mux.HandleFunc("/llms.txt", s.handleLLMs)
	mux.HandleFunc("/sse", s.handleSSE)
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/.well-known/oauth-authorization-server", s.handleAuthorizationServerMetadata)
	mux.HandleFunc("/.well-known/oauth-protected-resource", s.handleProtectedResourceMetadata)
	mux.HandleFunc("/.well-known/oauth-protected-resource/", s.handleProtectedResourceMetadata)

	mux.HandleFunc("/oauth/authorize", s.oauth.Authorize)
	mux.HandleFunc("/oauth/callback", s.oauth.Callback)
	mux.HandleFunc("/oauth/token", s.oauth.Token)
	mux.HandleFunc("/oauth/register", s.oauth.Register)

	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/mcp/", s.handleMCP)

	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry: s.registry,
	}))

	// Middleware order (outermost first): metrics capture the full
	// duration, then request identity, IP extraction, hardening headers,
	// CSRF and the bot filter.
	var handler http.Handler = mux
	handler = BotFilterMiddleware(handler)
	handler = CSRFMiddleware(s.publicURL)(handler)
	handler = SecurityHeadersMiddleware(handler)
	handler = RealIPMiddleware(handler)
	handler = RequestIDMiddleware(s.logger)(handler)
	handler = MetricsMiddleware(s.metrics)(handler)
	return handler
}

// Start begins serving and blocks until the context is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down HTTP server")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return err
	}
	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	return s.shutdown()
}
