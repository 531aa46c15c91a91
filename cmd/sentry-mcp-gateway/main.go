package main

import "github.com/sentry-mcp/gateway/cmd/sentry-mcp-gateway/cmd"

func main() {
	cmd.Execute()
}
