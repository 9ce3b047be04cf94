package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig controls span export. Unlike the teacher's
// TracingConfig (OTLP-only, per pkg/observability/tracer.go), Endpoint
// being empty selects the stdout exporter — SPEC_FULL.md's AMBIENT
// STACK commits to "stdouttrace for dev, otlptracegrpc for prod",
// which the teacher's own tracer.go never actually implements.
type TracingConfig struct {
	Enabled      bool
	ServiceName  string
	Endpoint     string // OTLP/gRPC endpoint; empty selects stdouttrace
	SamplingRate float64
	Insecure     bool
}

// SetDefaults fills in documented defaults for unset fields.
func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "insightloop-engine"
	}
	if c.SamplingRate <= 0 {
		c.SamplingRate = 1.0
	}
}

// Tracer wraps an OpenTelemetry TracerProvider with a Shutdown hook,
// grounded on the teacher's pkg/observability/tracer.go Tracer type —
// trimmed to the span helpers this engine's components actually need
// (start + error recording) rather than Hector's RAG/agent-specific
// span builders.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer from cfg. A disabled config returns a nil
// *Tracer whose methods are safe no-ops (GetTracer falls back to the
// global no-op provider), matching the nil-receiver convention used
// throughout this package's Metrics type.
func NewTracer(ctx context.Context, cfg *TracingConfig) (*Tracer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("observability: creating span exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: building resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Tracer{provider: provider, tracer: provider.Tracer(cfg.ServiceName)}, nil
}

// newSpanExporter picks stdouttrace when no OTLP endpoint is configured
// (the local/dev path), otherwise dials an OTLP/gRPC collector.
func newSpanExporter(ctx context.Context, cfg *TracingConfig) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return newOTLPExporter(ctx, cfg)
}

func newOTLPExporter(ctx context.Context, cfg *TracingConfig) (*otlptrace.Exporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(10 * time.Second),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

// Start begins a span named spanName. A nil receiver (tracing disabled)
// returns the incoming context unchanged and a no-op span.
func (t *Tracer) Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError annotates span with err, a no-op if either is nil.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.message", err.Error()))
}

// Shutdown flushes and stops the tracer provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// GetTracer returns a named tracer, falling back to the process-global
// provider (a no-op if tracing was never initialized) so callers never
// need to nil-check before starting a span.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
