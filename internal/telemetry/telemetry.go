// Package telemetry configures the OpenTelemetry tracer provider for the
// gateway. Spans are emitted to stdout; production deployments swap the
// exporter via OTLP environment configuration at the collector level.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Options configures telemetry setup.
type Options struct {
	// ServiceName identifies the gateway in span resources.
	ServiceName string
	// ServiceVersion is the build version attached to span resources.
	ServiceVersion string
	// Writer receives exported spans. Defaults to io.Discard so traces
	// are free unless explicitly enabled.
	Writer io.Writer
	// Logger reports setup and shutdown problems.
	Logger *slog.Logger
}

// Setup installs the global tracer provider and returns a shutdown
// function that flushes pending spans.
func Setup(opts Options) (func(context.Context) error, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = "sentry-mcp-gateway"
	}
	if opts.Writer == nil {
		opts.Writer = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(opts.Writer),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return func(ctx context.Context) error {
		if err := provider.Shutdown(ctx); err != nil {
			opts.Logger.Error("tracer provider shutdown failed", "error", err)
			return err
		}
		return nil
	}, nil
}
