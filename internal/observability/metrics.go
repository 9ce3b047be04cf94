package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig controls whether/how Prometheus metrics are collected,
// mirroring the teacher's observability.MetricsConfig shape.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// SetDefaults fills in an empty Namespace. Enabled is left as-is: the
// caller decides whether metrics run at all.
func (c *MetricsConfig) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = "insightloop"
	}
}

// Metrics collects Prometheus counters/histograms/gauges for every
// SPEC_FULL.md component on the request path: the orchestrator's phases,
// the specialist loop, tool invocations, LLM calls, sessions, and the
// event bus. Grounded on the teacher's pkg/observability/metrics.go
// (private registry, nil-receiver no-op methods so metrics stay fully
// optional) re-scoped from Hector's agent/RAG taxonomy to this engine's
// own domain concerns.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	// Orchestrator turn metrics (C6).
	turnsTotal       *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	turnErrors       *prometheus.CounterVec
	turnsActive      prometheus.Gauge
	guardrailBlocked prometheus.Counter

	// Specialist metrics (C5).
	specialistCalls    *prometheus.CounterVec
	specialistDuration *prometheus.HistogramVec
	specialistErrors   *prometheus.CounterVec
	specialistHandoffs *prometheus.CounterVec

	// Tool metrics (C1).
	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec
	toolDedupHits    *prometheus.CounterVec

	// LLM metrics.
	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	// Session metrics (C4).
	sessionsCreated prometheus.Counter
	sessionsActive  prometheus.Gauge

	// Event bus metrics (C3).
	eventBusPublished *prometheus.CounterVec
	eventBusDropped   *prometheus.CounterVec
}

// NewMetrics builds a Metrics instance registered against a private
// registry, or returns nil when cfg disables metrics entirely — every
// Record*/Inc*/Set* method below is a safe no-op on a nil *Metrics.
func NewMetrics(cfg *MetricsConfig) *Metrics {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	cfg.SetDefaults()

	m := &Metrics{config: cfg, registry: prometheus.NewRegistry()}
	m.initTurnMetrics()
	m.initSpecialistMetrics()
	m.initToolMetrics()
	m.initLLMMetrics()
	m.initSessionMetrics()
	m.initEventBusMetrics()
	return m
}

func (m *Metrics) initTurnMetrics() {
	m.turnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "turn", Name: "total",
		Help: "Total number of orchestrated turns, by tier.",
	}, []string{"tier"})
	m.turnDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "turn", Name: "duration_seconds",
		Help:    "Turn wall-clock duration in seconds, by tier.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms .. ~13m
	}, []string{"tier"})
	m.turnErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "turn", Name: "errors_total",
		Help: "Total number of turns that ended in Phase R6 failure.",
	}, []string{"reason"})
	m.turnsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace, Subsystem: "turn", Name: "active",
		Help: "Number of turns currently in flight.",
	})
	m.guardrailBlocked = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "turn", Name: "guardrail_blocked_total",
		Help: "Total number of turns rejected by the Phase R2 security guardrail.",
	})
	m.registry.MustRegister(m.turnsTotal, m.turnDuration, m.turnErrors, m.turnsActive, m.guardrailBlocked)
}

func (m *Metrics) initSpecialistMetrics() {
	m.specialistCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "specialist", Name: "calls_total",
		Help: "Total number of specialist-loop invocations, by specialist name.",
	}, []string{"specialist"})
	m.specialistDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "specialist", Name: "call_duration_seconds",
		Help:    "Specialist-loop duration in seconds, by specialist name.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"specialist"})
	m.specialistErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "specialist", Name: "errors_total",
		Help: "Total number of specialist-loop errors, by specialist name.",
	}, []string{"specialist"})
	m.specialistHandoffs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "specialist", Name: "handoffs_total",
		Help: "Total number of coordinator handoffs, by target specialist.",
	}, []string{"target"})
	m.registry.MustRegister(m.specialistCalls, m.specialistDuration, m.specialistErrors, m.specialistHandoffs)
}

func (m *Metrics) initToolMetrics() {
	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "calls_total",
		Help: "Total number of tool invocations, by tool name.",
	}, []string{"tool"})
	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "call_duration_seconds",
		Help:    "Tool invocation duration in seconds, by tool name.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 16),
	}, []string{"tool"})
	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "errors_total",
		Help: "Total number of tool invocation errors, by tool name.",
	}, []string{"tool"})
	m.toolDedupHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "dedup_hits_total",
		Help: "Total number of tool calls served from the per-turn dedup cache, by tool name.",
	}, []string{"tool"})
	m.registry.MustRegister(m.toolCalls, m.toolCallDuration, m.toolErrors, m.toolDedupHits)
}

func (m *Metrics) initLLMMetrics() {
	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "calls_total",
		Help: "Total number of LLM chat calls, by model and tier.",
	}, []string{"model", "tier"})
	m.llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "call_duration_seconds",
		Help:    "LLM chat call duration in seconds, by model and tier.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 16),
	}, []string{"model", "tier"})
	m.llmTokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "tokens_input_total",
		Help: "Total input tokens consumed, by model.",
	}, []string{"model"})
	m.llmTokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "tokens_output_total",
		Help: "Total output tokens produced, by model.",
	}, []string{"model"})
	m.llmErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "errors_total",
		Help: "Total number of LLM chat call errors, by model.",
	}, []string{"model"})
	m.registry.MustRegister(m.llmCalls, m.llmCallDuration, m.llmTokensInput, m.llmTokensOutput, m.llmErrors)
}

func (m *Metrics) initSessionMetrics() {
	m.sessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "session", Name: "created_total",
		Help: "Total number of sessions created.",
	})
	m.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace, Subsystem: "session", Name: "active",
		Help: "Number of sessions currently tracked in the process.",
	})
	m.registry.MustRegister(m.sessionsCreated, m.sessionsActive)
}

func (m *Metrics) initEventBusMetrics() {
	m.eventBusPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "eventbus", Name: "published_total",
		Help: "Total number of events published, by kind.",
	}, []string{"kind"})
	m.eventBusDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "eventbus", Name: "dropped_total",
		Help: "Total number of events that failed to publish (bus closed or context canceled), by kind.",
	}, []string{"kind"})
	m.registry.MustRegister(m.eventBusPublished, m.eventBusDropped)
}

// RecordTurn records a completed turn's tier and duration.
func (m *Metrics) RecordTurn(tier string, duration time.Duration) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(tier).Inc()
	m.turnDuration.WithLabelValues(tier).Observe(duration.Seconds())
}

// RecordTurnError records a Phase R6 failure.
func (m *Metrics) RecordTurnError(reason string) {
	if m == nil {
		return
	}
	m.turnErrors.WithLabelValues(reason).Inc()
}

// IncTurnsActive/DecTurnsActive track in-flight turns.
func (m *Metrics) IncTurnsActive() {
	if m == nil {
		return
	}
	m.turnsActive.Inc()
}

func (m *Metrics) DecTurnsActive() {
	if m == nil {
		return
	}
	m.turnsActive.Dec()
}

// RecordGuardrailBlocked records a Phase R2 hard rejection.
func (m *Metrics) RecordGuardrailBlocked() {
	if m == nil {
		return
	}
	m.guardrailBlocked.Inc()
}

// RecordSpecialistCall records one specialist-loop invocation.
func (m *Metrics) RecordSpecialistCall(specialist string, duration time.Duration) {
	if m == nil {
		return
	}
	m.specialistCalls.WithLabelValues(specialist).Inc()
	m.specialistDuration.WithLabelValues(specialist).Observe(duration.Seconds())
}

// RecordSpecialistError records a specialist-loop error.
func (m *Metrics) RecordSpecialistError(specialist string) {
	if m == nil {
		return
	}
	m.specialistErrors.WithLabelValues(specialist).Inc()
}

// RecordHandoff records a coordinator handoff to the named specialist.
func (m *Metrics) RecordHandoff(target string) {
	if m == nil {
		return
	}
	m.specialistHandoffs.WithLabelValues(target).Inc()
}

// RecordToolCall records one tool invocation.
func (m *Metrics) RecordToolCall(tool string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool).Inc()
	m.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordToolError records a tool invocation error.
func (m *Metrics) RecordToolError(tool string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(tool).Inc()
}

// RecordToolDedupHit records a tool call served from the per-turn dedup cache.
func (m *Metrics) RecordToolDedupHit(tool string) {
	if m == nil {
		return
	}
	m.toolDedupHits.WithLabelValues(tool).Inc()
}

// RecordLLMCall records one LLM chat call.
func (m *Metrics) RecordLLMCall(model, tier string, duration time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(model, tier).Inc()
	m.llmCallDuration.WithLabelValues(model, tier).Observe(duration.Seconds())
}

// RecordLLMTokens records token usage for a completed LLM call.
func (m *Metrics) RecordLLMTokens(model string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmTokensInput.WithLabelValues(model).Add(float64(inputTokens))
	m.llmTokensOutput.WithLabelValues(model).Add(float64(outputTokens))
}

// RecordLLMError records an LLM chat call error.
func (m *Metrics) RecordLLMError(model string) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(model).Inc()
}

// RecordSessionCreated records a new session.
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

// SetSessionsActive sets the current tracked-session count.
func (m *Metrics) SetSessionsActive(count int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(count))
}

// RecordEventPublished records a successful event-bus publish.
func (m *Metrics) RecordEventPublished(kind string) {
	if m == nil {
		return
	}
	m.eventBusPublished.WithLabelValues(kind).Inc()
}

// RecordEventDropped records a failed event-bus publish.
func (m *Metrics) RecordEventDropped(kind string) {
	if m == nil {
		return
	}
	m.eventBusDropped.WithLabelValues(kind).Inc()
}

// Handler returns the Prometheus scrape endpoint handler. A nil *Metrics
// (metrics disabled) serves 503 so a misconfigured scrape target fails
// loudly instead of silently returning an empty body.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the private Prometheus registry backing this Metrics
// instance, or nil if metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
