package mcperr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sentry-mcp/gateway/internal/ctxkey"
)

const retryGuidance = "You may be able to resolve this by addressing the issue and trying again."

// FormatToolError converts any handler error into the human-readable text
// returned inside an isError tool result. Stack traces never reach the
// agent; unexpected errors are logged and referenced by event ID.
func FormatToolError(ctx context.Context, err error) string {
	logger := loggerFrom(ctx)

	var uie *UserInputError
	if errors.As(err, &uie) {
		// Deliberate: user input problems are the agent's to fix, not ours to log.
		return fmt.Sprintf("**Input Error**\n\n%s\n\n%s", uie.Message, retryGuidance)
	}

	var ce *ConfigurationError
	if errors.As(err, &ce) {
		logger.Warn("configuration error in tool handler", "error", ce.Message, "cause", ce.Cause)
		return fmt.Sprintf("**Configuration Error**\n\n%s", ce.Message)
	}

	var ae *APIError
	if errors.As(err, &ae) {
		if ae.Status >= 500 {
			eventID := logError(logger, err)
			return fmt.Sprintf("**Error**\n\nHTTP %d: %s\n\n**Event ID**: %s", ae.Status, ae.Detail, eventID)
		}
		return fmt.Sprintf("**Error**\n\nHTTP %d: %s", ae.Status, ae.Detail)
	}

	eventID := logError(logger, err)
	return fmt.Sprintf("**Error**\n\nAn unexpected error occurred.\n\n**Event ID**: %s\n\nPlease report this to the server operator if it persists.", eventID)
}

// logError records the error and returns a fresh event ID for correlation.
func logError(logger *slog.Logger, err error) string {
	eventID := uuid.NewString()
	logger.Error("tool handler error", "error", err, "event_id", eventID)
	return eventID
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
