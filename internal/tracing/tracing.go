// Package tracing configures the OpenTelemetry tracer provider used by the
// resolution pipeline.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultServiceName identifies this tool in exported spans.
const DefaultServiceName = "gooffline"

// Config configures the tracing subsystem.
type Config struct {
	// FilePath receives one JSON span per line. Empty disables tracing.
	FilePath string
	// ServiceName defaults to DefaultServiceName.
	ServiceName string
}

// Provider wraps the tracer provider and the trace file.
type Provider struct {
	provider *sdktrace.TracerProvider
	file     *os.File
	tracer   trace.Tracer
}

// NewProvider creates and installs the global tracer provider. When tracing
// is disabled the global provider is left untouched and Tracer returns a
// no-op tracer. Package-level tracers delegate to the first provider
// installed, so a process installs at most one.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.FilePath == "" {
		return &Provider{tracer: noop.NewTracerProvider().Tracer("noop")}, nil
	}

	cleanPath := filepath.Clean(cfg.FilePath)

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o750); err != nil {
		return nil, fmt.Errorf("create trace directory: %w", err)
	}

	file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- path is cleaned above
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(file))
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)

	return &Provider{
		provider: provider,
		file:     file,
		tracer:   provider.Tracer(serviceName),
	}, nil
}

// Tracer returns the configured tracer. It is a no-op tracer when tracing
// is disabled.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.provider != nil
}

// Shutdown flushes pending spans and closes the trace file.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}

	err := p.provider.Shutdown(ctx)

	return errors.Join(err, p.file.Close())
}
