package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	gatewayhttp "github.com/sentry-mcp/gateway/internal/adapter/inbound/http"
	"github.com/sentry-mcp/gateway/internal/adapter/inbound/oauthgw"
	"github.com/sentry-mcp/gateway/internal/adapter/outbound/memory"
	"github.com/sentry-mcp/gateway/internal/adapter/outbound/rediscache"
	"github.com/sentry-mcp/gateway/internal/adapter/outbound/sqlitestore"
	"github.com/sentry-mcp/gateway/internal/agent"
	"github.com/sentry-mcp/gateway/internal/config"
	"github.com/sentry-mcp/gateway/internal/service"
	"github.com/sentry-mcp/gateway/internal/telemetry"
	"github.com/sentry-mcp/gateway/internal/tools"
)

// agentRateLimit bounds the agent-backed tools per access token.
const (
	agentRateLimit  = 20
	agentRatePeriod = time.Minute
)

var traceStdout bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Long: `Start the HTTP server: the MCP endpoint, the OAuth federation
endpoints and the discovery routes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&traceStdout, "trace-stdout", false, "export trace spans to stdout")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cfg *config.Config) error {
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	var traceWriter io.Writer
	if traceStdout {
		traceWriter = os.Stdout
	}
	shutdownTelemetry, err := telemetry.Setup(telemetry.Options{
		ServiceName:    "sentry-mcp-gateway",
		ServiceVersion: Version,
		Writer:         traceWriter,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	var store oauthgw.Store
	if cfg.Storage.SQLitePath != "" {
		sqlStore, err := sqlitestore.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("opening sqlite store: %w", err)
		}
		defer func() { _ = sqlStore.Close() }()
		logger.Info("using sqlite OAuth store", "path", cfg.Storage.SQLitePath)
		store = sqlStore
	} else {
		logger.Warn("using in-memory OAuth store, tokens will not survive restarts")
		store = memory.NewOAuthStore()
	}

	var cache service.ConstraintsCache
	var limiter service.RateLimiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		logger.Info("using redis cache and rate limiter", "addr", cfg.Redis.Addr)
		cache = rediscache.NewCache(rdb, logger)
		limiter = rediscache.NewRateLimiter(rdb, agentRateLimit, agentRatePeriod)
	} else {
		cache = memory.NewConstraintsCache()
		limiter = memory.NewRateLimiter(agentRateLimit, agentRatePeriod)
	}

	var runner agent.Runner
	if cfg.OpenAI.APIKey != "" {
		runner = agent.NewOpenAIRunner(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.ReasoningEffort)
		logger.Info("embedded agent enabled", "model", cfg.OpenAI.Model)
	} else {
		logger.Info("OPENAI_API_KEY not set, agent-backed tools will report a configuration error")
	}

	registry := tools.New(tools.Deps{
		Agent:   runner,
		Limiter: limiter,
		Logger:  logger,
	})

	dispatcher := service.NewDispatcher(
		service.NewPreparer(registry.Tools()),
		"Sentry MCP Gateway", Version,
		service.WithPrompts(registry.Prompts()),
		service.WithResources(registry.Resources()),
		service.WithInstructions(serverInstructions),
		service.WithLogger(logger),
	)
	verifier := service.NewVerifier(nil, cache, logger)

	oauthHandler := oauthgw.NewHandler(oauthgw.Config{
		UpstreamHost:         cfg.Upstream.Host,
		UpstreamClientID:     cfg.Upstream.ClientID,
		UpstreamClientSecret: cfg.Upstream.ClientSecret,
		CookieSecret:         []byte(cfg.CookieSecret),
		PublicURL:            cfg.Server.PublicURL,
	}, store, oauthgw.WithLogger(logger))

	server := gatewayhttp.NewServer(dispatcher, verifier, store, oauthHandler, cfg.Upstream.Host,
		gatewayhttp.WithAddr(cfg.Server.HTTPAddr),
		gatewayhttp.WithPublicURL(cfg.Server.PublicURL),
		gatewayhttp.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("gateway starting",
		"addr", cfg.Server.HTTPAddr,
		"upstream", cfg.Upstream.Host,
		"config_file", config.ConfigFileUsed())
	return server.Start(ctx)
}

const serverInstructions = `Use these tools to inspect Sentry organizations,
projects, issues and events, to triage issues, and to run Seer analysis.
Prefer search_events and search_issues for natural language queries.`

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
