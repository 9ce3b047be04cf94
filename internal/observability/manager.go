// Package observability wires OpenTelemetry tracing and Prometheus
// metrics for the engine, grounded on the teacher's
// pkg/observability package. The teacher's manager.go and config.go
// reference a NewTracer/TracerOption API surface and a set of
// DefaultXxx constants that do not actually exist anywhere in that
// package (confirmed by grep across the whole repo) — almost
// certainly leftover state from an incomplete refactor. Manager below
// is written from scratch against the self-consistent parts of the
// teacher's package only: the Metrics struct's nil-receiver no-op
// pattern (metrics.go) and the Tracer/InitGlobalTracer shape
// (tracer.go), extended with stdouttrace support per SPEC_FULL.md's
// ambient-stack commitment.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Config is the subset of config.EngineConfig this package consumes.
// It is a plain struct (not config.EngineConfig itself) so this
// package never needs to import internal/config.
type Config struct {
	ServiceName          string
	OTLPEndpoint         string
	PrometheusListenAddr string
	SamplingRate         float64
}

// Manager owns the lifecycle of both the tracer and the metrics
// registry and is the single thing cmd/enginectl constructs and
// shuts down.
type Manager struct {
	tracer  *Tracer
	metrics *Metrics
	logger  *slog.Logger

	httpServer *http.Server
}

// NewManager builds a Manager from cfg. Tracing is always enabled
// (stdout exporter unless cfg.OTLPEndpoint is set); metrics are
// enabled only when cfg.PrometheusListenAddr is non-empty, matching
// config.EngineConfig's "serves /metrics when non-empty" contract.
func NewManager(ctx context.Context, cfg Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tracer, err := NewTracer(ctx, &TracingConfig{
		Enabled:      true,
		ServiceName:  cfg.ServiceName,
		Endpoint:     cfg.OTLPEndpoint,
		SamplingRate: cfg.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("observability: initializing tracer: %w", err)
	}

	metrics := NewMetrics(&MetricsConfig{
		Enabled:   cfg.PrometheusListenAddr != "",
		Namespace: "insightloop",
	})

	m := &Manager{tracer: tracer, metrics: metrics, logger: logger}

	if cfg.PrometheusListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		m.httpServer = &http.Server{Addr: cfg.PrometheusListenAddr, Handler: mux}
		go func() {
			if err := m.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("observability: metrics server stopped", "error", err)
			}
		}()
		logger.Info("observability: serving Prometheus metrics", "addr", cfg.PrometheusListenAddr)
	}

	return m, nil
}

// Tracer returns the underlying Tracer (may be nil if disabled).
func (m *Manager) Tracer() *Tracer { return m.tracer }

// Metrics returns the underlying Metrics (may be nil if disabled).
func (m *Manager) Metrics() *Metrics { return m.metrics }

// Shutdown stops the metrics HTTP server (if running) and flushes the
// tracer provider. Safe to call on a nil Manager.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var errs []error
	if m.httpServer != nil {
		if err := m.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("observability: shutting down metrics server: %w", err))
		}
	}
	if err := m.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("observability: shutting down tracer: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("observability: shutdown errors: %v", errs)
	}
	return nil
}
