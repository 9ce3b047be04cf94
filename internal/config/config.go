// Package config defines the engine's explicit configuration struct.
//
// Per spec.md §9's redesign note ("global mutable module state... model as
// an explicit engine configuration struct threaded through construction"),
// no package in this engine reads an environment variable mid-request.
// Configuration is loaded once, at process startup, via Load.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EngineConfig holds every recognized configuration option from spec.md §6.
type EngineConfig struct {
	// DefaultModel is the LLM model id used by complex-tier specialists.
	DefaultModel string `yaml:"default_model"`
	// RouterModel is a cheap model used for tier classification.
	RouterModel string `yaml:"router_model"`
	// SimpleModel and MediumModel back the short-circuit tiers.
	SimpleModel string `yaml:"simple_model"`
	MediumModel string `yaml:"medium_model"`

	// MaxGraphDepth bounds the specialist handoff chain (default 10).
	MaxGraphDepth int `yaml:"max_graph_depth"`
	// TurnTimeoutSeconds is the per-turn wall-clock budget (default 300).
	TurnTimeoutSeconds int `yaml:"turn_timeout_seconds"`
	// HistoryWindow is the number of prior messages injected into prompts
	// (default 10).
	HistoryWindow int `yaml:"history_window"`
	// LargeTableRowThreshold is the row count above which a table is
	// persisted as metadata-only (default 1000).
	LargeTableRowThreshold int `yaml:"large_table_row_threshold"`
	// ToolCallBudgetPerTurn caps the number of tool invocations in a turn
	// (default 50).
	ToolCallBudgetPerTurn int `yaml:"tool_call_budget_per_turn"`
	// EnableSecurityGuardrail toggles Phase R2.
	EnableSecurityGuardrail bool `yaml:"enable_security_guardrail"`

	// MaxSpecialistIterations bounds a single C5 ReAct loop (default 8).
	MaxSpecialistIterations int `yaml:"max_specialist_iterations"`
	// GracefulShutdownSeconds is how long cancellation waits for in-flight
	// tool calls before abandoning them (default 5).
	GracefulShutdownSeconds int `yaml:"graceful_shutdown_seconds"`
	// MaxQueryBytes bounds the inbound query length (default 8192).
	MaxQueryBytes int `yaml:"max_query_bytes"`

	// EventBusBufferSize is the bounded channel capacity for C3 (default 64).
	EventBusBufferSize int `yaml:"event_bus_buffer_size"`

	// LogLevel is one of debug/info/warn/error.
	LogLevel string `yaml:"log_level"`
	// LogFormat is "simple", "verbose", or empty for slog's default.
	LogFormat string `yaml:"log_format"`

	// VectorProvider selects the DatabaseProvider backing vector search:
	// "chromem" (embedded, default), "qdrant", or "pinecone".
	VectorProvider string `yaml:"vector_provider"`
	// SQLDriver selects the driver backing the SQL dataset tool:
	// "sqlite3" (default), "postgres", or "mysql".
	SQLDriver string `yaml:"sql_driver"`
	// SQLDataSourceName is the driver-specific DSN.
	SQLDataSourceName string `yaml:"sql_dsn"`

	// OTLPEndpoint, when set, exports traces via OTLP/gRPC; otherwise
	// traces are written to stdout (development default).
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// PrometheusListenAddr serves /metrics when non-empty.
	PrometheusListenAddr string `yaml:"prometheus_listen_addr"`

	// MCPServers lists MCP tool sources to discover at startup.
	MCPServers []MCPServerConfig `yaml:"mcp_servers"`
}

// MCPServerConfig names one MCP tool source, started as a local
// subprocess over stdio (tool.ConnectMCPServer's transport) — the
// engine has no need for the teacher's remote HTTP/SSE MCP transport
// since every MCP-backed tool here is a local analysis-tool server.
type MCPServerConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// TurnTimeout returns TurnTimeoutSeconds as a time.Duration.
func (c EngineConfig) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSeconds) * time.Second
}

// GracefulShutdown returns GracefulShutdownSeconds as a time.Duration.
func (c EngineConfig) GracefulShutdown() time.Duration {
	return time.Duration(c.GracefulShutdownSeconds) * time.Second
}

// Default returns an EngineConfig populated with the documented defaults.
func Default() EngineConfig {
	return EngineConfig{
		DefaultModel:            "claude-sonnet-4-5",
		RouterModel:             "claude-haiku-4-5",
		SimpleModel:             "claude-haiku-4-5",
		MediumModel:             "claude-haiku-4-5",
		MaxGraphDepth:           10,
		TurnTimeoutSeconds:      300,
		HistoryWindow:           10,
		LargeTableRowThreshold:  1000,
		ToolCallBudgetPerTurn:   50,
		EnableSecurityGuardrail: true,
		MaxSpecialistIterations: 8,
		GracefulShutdownSeconds: 5,
		MaxQueryBytes:           8192,
		EventBusBufferSize:      64,
		LogLevel:                "info",
		LogFormat:               "simple",
		VectorProvider:          "chromem",
		SQLDriver:               "sqlite3",
	}
}

// Load reads a YAML config file over the documented defaults and applies
// a `.env` overlay (via godotenv) for local secret injection, matching the
// teacher's own config-loading convention. envFile may be empty, in which
// case no .env is loaded.
func Load(path, envFile string) (EngineConfig, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: loading env file: %w", err)
		}
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks that required invariants hold (positive budgets, a
// default model configured). It is called once at startup, never
// mid-request.
func (c EngineConfig) Validate() error {
	if c.DefaultModel == "" {
		return fmt.Errorf("config: default_model is required")
	}
	if c.MaxGraphDepth <= 0 {
		return fmt.Errorf("config: max_graph_depth must be positive")
	}
	if c.TurnTimeoutSeconds <= 0 {
		return fmt.Errorf("config: turn_timeout_seconds must be positive")
	}
	if c.ToolCallBudgetPerTurn <= 0 {
		return fmt.Errorf("config: tool_call_budget_per_turn must be positive")
	}
	return nil
}
