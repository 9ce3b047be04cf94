// Package eventbus implements the engine's streaming event protocol (C3):
// a bounded, ordered, single-producer/single-consumer channel of typed
// events delivered to the caller in causal order, terminating in exactly
// one of complete or error.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Kind discriminates the recognized event kinds (spec.md §4.3).
type Kind string

const (
	KindConnected         Kind = "connected"
	KindStatus            Kind = "status"
	KindRouting           Kind = "routing"
	KindAgentStepStart    Kind = "agent_step_start"
	KindAgentStepContent  Kind = "agent_step_content"
	KindAgentStepComplete Kind = "agent_step_complete"
	KindToolCall          Kind = "tool_call"
	KindToolResult        Kind = "tool_result"
	KindContent           Kind = "content"
	KindStepError         Kind = "step_error"
	KindError             Kind = "error"
	KindComplete          Kind = "complete"
)

// Event is the wire shape: `{"type": <kind>, "data": <payload>}`.
type Event struct {
	Kind Kind `json:"type"`
	Data any  `json:"data"`
}

// Payload shapes, one per Kind.

type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type RoutingPayload struct {
	Specialist string   `json:"specialist"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Entities   []string `json:"entities,omitempty"`
}

type AgentStepStartPayload struct {
	StepID    string `json:"step_id"`
	AgentName string `json:"agent_name"`
	StepOrder int    `json:"step_order"`
	Timestamp string `json:"timestamp"`
}

type AgentStepContentPayload struct {
	StepID       string `json:"step_id"`
	ContentChunk string `json:"content_chunk"`
}

type AgentStepCompletePayload struct {
	StepID       string `json:"step_id"`
	AgentName    string `json:"agent_name"`
	Content      string `json:"content"`
	IsStructured bool   `json:"is_structured"`
}

type ToolCallPayload struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	AgentName string         `json:"agent_name"`
}

type ToolResultPayload struct {
	ToolName        string `json:"tool_name"`
	OutputSummary   string `json:"output_summary"`
	TruncatedOutput string `json:"truncated_output,omitempty"`
}

type ContentPayload struct {
	Content string `json:"content"`
}

type StepErrorPayload struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

type CompletePayload struct {
	MessageID string         `json:"message_id"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ErrClosed is returned by Publish after the bus has been closed or a
// terminal event has already been sent.
var ErrClosed = errors.New("eventbus: closed")

func isDeltaKind(k Kind) bool {
	return k == KindContent || k == KindAgentStepContent
}

func isTerminalKind(k Kind) bool {
	return k == KindComplete || k == KindError
}

// deltaKey returns the coalescing key for content events: the bare
// "content" kind shares one key; "agent_step_content" deltas are keyed by
// step so that two different specialist steps never merge into one chunk.
func deltaKey(ev Event) string {
	if ev.Kind == KindAgentStepContent {
		if p, ok := ev.Data.(AgentStepContentPayload); ok {
			return string(ev.Kind) + ":" + p.StepID
		}
	}
	return string(ev.Kind)
}

func mergeDelta(old, next Event) Event {
	switch old.Kind {
	case KindContent:
		op, _ := old.Data.(ContentPayload)
		np, _ := next.Data.(ContentPayload)
		return Event{Kind: KindContent, Data: ContentPayload{Content: op.Content + np.Content}}
	case KindAgentStepContent:
		op, _ := old.Data.(AgentStepContentPayload)
		np, _ := next.Data.(AgentStepContentPayload)
		return Event{Kind: KindAgentStepContent, Data: AgentStepContentPayload{
			StepID:       op.StepID,
			ContentChunk: op.ContentChunk + np.ContentChunk,
		}}
	default:
		return next
	}
}

// Bus is the bounded ordered event channel from engine to caller. It is
// safe for exactly one producer goroutine (per spec.md §5's single-turn
// cooperative concurrency model) and any number of consumer reads via
// Events().
type Bus struct {
	ch      chan Event
	mu      sync.Mutex
	pending *Event
	closed  bool
	done    chan struct{}
	once    sync.Once
}

// New creates a Bus with the given bounded buffer size.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Bus{
		ch:   make(chan Event, bufferSize),
		done: make(chan struct{}),
	}
}

// Events returns the consumer-facing channel. The channel is closed once
// Close is called and all buffered events have been drained.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Publish emits an event in causal order. Delta-kind events (content,
// agent_step_content) may be coalesced under backpressure rather than
// blocking the producer; all other kinds block until there is buffer
// space, the context is cancelled, or the bus is closed.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.mu.Unlock()

	if isDeltaKind(ev.Kind) {
		return b.publishDelta(ctx, ev)
	}

	if err := b.flushPending(ctx); err != nil {
		return err
	}
	if err := b.send(ctx, ev); err != nil {
		return err
	}
	if isTerminalKind(ev.Kind) {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
	}
	return nil
}

func (b *Bus) send(ctx context.Context, ev Event) error {
	select {
	case b.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}
}

func (b *Bus) publishDelta(ctx context.Context, ev Event) error {
	b.mu.Lock()
	if b.pending != nil {
		if deltaKey(*b.pending) == deltaKey(ev) {
			merged := mergeDelta(*b.pending, ev)
			b.pending = &merged
			b.mu.Unlock()
			b.tryFlushPending()
			return nil
		}
		// A different delta stream is pending: flush it first, blocking,
		// to preserve causal order before this new delta can be queued.
		old := *b.pending
		b.pending = nil
		b.mu.Unlock()
		if err := b.send(ctx, old); err != nil {
			return err
		}
	} else {
		b.mu.Unlock()
	}

	select {
	case b.ch <- ev:
		return nil
	default:
	}

	b.mu.Lock()
	b.pending = &ev
	b.mu.Unlock()
	return nil
}

// tryFlushPending makes a single non-blocking attempt to push the
// coalesced pending delta onto the channel, freeing space permitting.
func (b *Bus) tryFlushPending() {
	b.mu.Lock()
	p := b.pending
	b.mu.Unlock()
	if p == nil {
		return
	}
	select {
	case b.ch <- *p:
		b.mu.Lock()
		if b.pending == p {
			b.pending = nil
		}
		b.mu.Unlock()
	default:
	}
}

func (b *Bus) flushPending(ctx context.Context) error {
	b.mu.Lock()
	p := b.pending
	b.pending = nil
	b.mu.Unlock()
	if p == nil {
		return nil
	}
	return b.send(ctx, *p)
}

// Close flushes any coalesced delta and closes the underlying channel.
// Must be called exactly once by the producer after the terminal event
// has been published (or when abandoning the turn on cancellation).
func (b *Bus) Close(ctx context.Context) {
	b.once.Do(func() {
		_ = b.flushPending(ctx)
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.done)
		close(b.ch)
	})
}

// EncodeSSE renders an event as a server-sent-events frame:
// `data: <json>\n\n`, per spec.md §6.
func EncodeSSE(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("eventbus: encoding event: %w", err)
	}
	out := make([]byte, 0, len(payload)+8)
	out = append(out, "data: "...)
	out = append(out, payload...)
	out = append(out, '\n', '\n')
	return out, nil
}
