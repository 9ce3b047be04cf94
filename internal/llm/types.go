// Package llm defines the engine's abstract LLM provider contract
// (spec.md §6) plus concrete adapters backed by real provider SDKs/wire
// formats, kept entirely behind this package so C5 (the specialist loop)
// never depends on a specific vendor.
package llm

import (
	"context"

	"github.com/insightloop/engine/internal/tool"
)

// Role identifies the speaker of a chat Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one entry in a chat-completion request.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolDefinition renders a tool.Descriptor as an LLM-callable function.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *tool.ParameterSchema
}

// ToolCall is a parsed tool-call intent emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
	RawArgs   string
}

// StructuredOutputConfig constrains the model's final message to a
// declared schema, provider-agnostically (spec.md §4.5 "Structured
// output"), mirroring the teacher's pkg/llms.StructuredOutputConfig.
type StructuredOutputConfig struct {
	Schema           *tool.ParameterSchema
	Enum             []string
	Prefill          string
	PropertyOrdering []string
}

// ChatRequest is one call to a provider's abstract chat-completion
// interface (spec.md §6).
type ChatRequest struct {
	Model          string
	Messages       []Message
	Tools          []ToolDefinition
	Temperature    float64
	MaxTokens      int
	ResponseFormat *StructuredOutputConfig
}

// StreamEventKind discriminates the Delta | ToolCall | Final union
// spec.md §6 names for the provider contract.
type StreamEventKind string

const (
	StreamDelta    StreamEventKind = "delta"
	StreamToolCall StreamEventKind = "tool_call"
	StreamFinal    StreamEventKind = "final"
	StreamError    StreamEventKind = "error"
)

// StreamEvent is one item from a Provider's Chat stream.
type StreamEvent struct {
	Kind StreamEventKind

	// Delta carries a text chunk when Kind == StreamDelta.
	Delta string

	// ToolCallEvt carries a parsed call when Kind == StreamToolCall.
	ToolCallEvt ToolCall

	// Final carries the terminal payload when Kind == StreamFinal.
	Final *FinalResponse

	// Err carries the failure when Kind == StreamError.
	Err error
}

// FinalResponse is the terminal payload of a Chat stream.
type FinalResponse struct {
	Text           string
	StructuredData any
	FinishReason   string
	TokensUsed     int
}

// Provider is the abstract chat-completion interface the engine consumes
// (spec.md §6). Concrete adapters (Anthropic, Gemini) implement it.
type Provider interface {
	// Chat streams Delta/ToolCall/Final events for one request.
	Chat(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)
	// HealthCheck reports whether the provider is currently reachable.
	HealthCheck(ctx context.Context) bool
	// SupportsStructuredOutput reports whether ResponseFormat is honored.
	SupportsStructuredOutput() bool
}
