// Package tool implements the Tool Registry & Invoker (C1): descriptors,
// argument validation, and a uniform execution wrapper around every tool
// handler in the engine.
package tool

import (
	"context"
	"log/slog"

	"github.com/insightloop/engine/internal/eventbus"
)

// ParameterSchema is a JSON-Schema-shaped description of a tool's
// arguments, used both to validate invocations and to render the tool as
// a callable function to the LLM.
type ParameterSchema struct {
	Type                 string                      `json:"type"`
	Description          string                      `json:"description,omitempty"`
	Properties           map[string]*ParameterSchema `json:"properties,omitempty"`
	Items                *ParameterSchema             `json:"items,omitempty"`
	Required             []string                     `json:"required,omitempty"`
	Enum                 []any                        `json:"enum,omitempty"`
	AdditionalProperties *bool                        `json:"additionalProperties,omitempty"`
}

// Result is the uniform envelope every tool invocation returns, per
// spec.md §4.1.
type Result struct {
	Success    bool           `json:"success"`
	Summary    string         `json:"summary"`
	Data       any            `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// EnvironmentAccessor is the subset of the Session Context Store (C4) a
// tool handler may touch. Handlers MUST NOT retain a reference beyond the
// call, per spec.md §4.1.
type EnvironmentAccessor interface {
	Get(key string) (any, bool)
	Add(key string, value any, metadata map[string]any)
	Find(pattern string) []string
}

// Publisher lets a long-running tool report progress on the event bus
// (spec.md §4.1: "a handle to publish status updates to the event bus").
type Publisher interface {
	Publish(ctx context.Context, ev eventbus.Event) error
}

// Context is passed to every tool Handler. It exposes exactly the
// collaborators spec.md §4.1 names: the Environment, the acting user,
// a logger, and the event publisher.
type Context struct {
	Environment EnvironmentAccessor
	UserID      string
	Logger      *slog.Logger
	Bus         Publisher
	AgentName   string
}

// Handler executes a tool given validated arguments. Implementations are
// expected to behave as a pure function of (name, arguments, Environment
// snapshot, external data) per spec.md §4.1's idempotency note; the
// registry itself does not cache.
type Handler func(ctx context.Context, args map[string]any, tc *Context) (Result, error)

// Descriptor is the process-global, read-after-startup tool record
// (spec.md §3 "Tool descriptor").
type Descriptor struct {
	Name             string
	HumanDescription string
	ParameterSchema  *ParameterSchema
	CapabilitySet    []string
	Handler          Handler
}

// ResultKey returns the Environment key a tool's output should be stored
// under, defaulting to "<tool_name>.result" per spec.md §4.5 step 5. A
// tool may set a "__result_key" string entry in a map-shaped Data to
// choose a different suffix.
func ResultKey(toolName string, data any) string {
	if m, ok := data.(map[string]any); ok {
		if key, ok := m["__result_key"].(string); ok && key != "" {
			return toolName + "." + key
		}
	}
	return toolName + ".result"
}

// truncate returns the first n runes of s followed by an ellipsis marker
// when s is longer.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
