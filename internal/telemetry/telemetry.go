// Package telemetry sets up OpenTelemetry tracing for API calls.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/ecoloop/ecoloop/internal/logger"
)

// Config selects the exporter. With neither TraceFile nor OTLPEndpoint set
// tracing stays disabled.
type Config struct {
	ServiceName  string
	Version      string
	TraceFile    string
	OTLPEndpoint string
}

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Init installs a global tracer provider. The TUI owns stdout, so spans go
// to a file or an OTLP collector, never the terminal.
func Init(ctx context.Context, log *logger.Logger, cfg Config) (Shutdown, error) {
	if cfg.TraceFile == "" && cfg.OTLPEndpoint == "" {
		return noop, nil
	}
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "ecoloop"
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(name),
		semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
		attribute.String("service.component", "cli"),
	))
	if err != nil && log != nil {
		log.Warn("otel resource init failed (continuing)", "error", err)
	}

	exporter, closer, err := buildExporter(ctx, cfg)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if log != nil {
		log.Info("otel tracing initialized", "service", name, "trace_file", cfg.TraceFile, "endpoint", cfg.OTLPEndpoint)
	}

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if closer != nil {
			err = errors.Join(err, closer.Close())
		}
		return err
	}, nil
}

func buildExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, io.Closer, error) {
	if cfg.OTLPEndpoint != "" {
		endpoint := cfg.OTLPEndpoint
		opts := []otlptracehttp.Option{}
		if strings.HasPrefix(endpoint, "http://") {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("otlp exporter: %w", err)
		}
		return exp, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.TraceFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create trace dir: %w", err)
	}
	f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace file: %w", err)
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stdout exporter: %w", err)
	}
	return exp, f, nil
}
