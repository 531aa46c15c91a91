// Package cmd provides the CLI commands for the Sentry MCP gateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sentry-mcp/gateway/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sentry-mcp-gateway",
	Short: "Sentry MCP Gateway - remote MCP server for Sentry",
	Long: `Sentry MCP Gateway exposes Sentry's error tracking, performance and
Seer analysis tools to AI agents over the Model Context Protocol.

It federates OAuth to Sentry, scopes sessions to an organization or
project through the MCP URL, and serves a stateless JSON-RPC endpoint
at /mcp.

Quick start:
  1. Register an OAuth application with Sentry.
  2. Export UPSTREAM_CLIENT_ID, UPSTREAM_CLIENT_SECRET and COOKIE_SECRET.
  3. Run: sentry-mcp-gateway serve

Configuration:
  Config is loaded from sentry-mcp-gateway.yaml in the current directory,
  $HOME/.sentry-mcp-gateway/, or /etc/sentry-mcp-gateway/. Environment
  variables (UPSTREAM_HOST, OPENAI_API_KEY, REDIS_ADDR, ...) override
  file values.

Commands:
  serve       Start the gateway
  config      Show the redacted effective configuration
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sentry-mcp-gateway.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
