// Package specialist implements C5, the Specialist Agent Loop: a bounded
// ReAct iteration over a curated tool subset, with structured-output
// validation+retry, tool-call fan-out, and handoff-message handling.
// Grounded on the teacher's pkg/reasoning chain-of-thought strategy
// (iterate-until-no-tool-calls, per-iteration logging) generalized away
// from its OpenAI/Anthropic-native-function-calling-only framing to the
// engine's own abstract llm.Provider.
package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/insightloop/engine/internal/eventbus"
	"github.com/insightloop/engine/internal/llm"
	"github.com/insightloop/engine/internal/session"
	"github.com/insightloop/engine/internal/tool"
	"github.com/insightloop/engine/internal/tree"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxIterations bounds a specialist's ReAct loop absent an
// explicit Config.MaxIterations (spec.md §5 "iteration cap").
const DefaultMaxIterations = 8

// Config describes one specialist's identity, model tier, tool subset,
// and behavior — the Go analogue of the teacher's llmagent.Config,
// trimmed to what spec.md §5 actually specifies.
type Config struct {
	Name          string
	Description   string
	Instruction   string
	ModelTier     string
	Capabilities  []string // tool capability tags this specialist may use
	ToolNames     []string // explicit tool names, in addition to Capabilities
	MaxIterations int
	OutputSchema  *tool.ParameterSchema
	MaxConcurrentToolCalls int
}

// Result is the terminal output of one specialist invocation.
type Result struct {
	Text           string
	StructuredData any
	Iterations     int
	TokensUsed     int
	HandoffTo      string // Run leaves this empty; handoff decisions travel in StructuredData
	HandoffSummary string // Run leaves this empty as well
}

// Deps bundles the shared engine services a specialist loop needs,
// mirroring the teacher's *reasoning.Services aggregate.
type Deps struct {
	Providers *llm.Registry
	Tools     *tool.Registry
	Bus       *eventbus.Bus
	Tree      *tree.Tree
	Logger    *slog.Logger
}

// Loop runs one specialist's ReAct iteration to completion.
type Loop struct {
	cfg  Config
	deps Deps
}

// New constructs a specialist Loop.
func New(cfg Config, deps Deps) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxConcurrentToolCalls <= 0 {
		cfg.MaxConcurrentToolCalls = 4
	}
	return &Loop{cfg: cfg, deps: deps}
}

// Run executes the specialist against a user query, the restored
// Environment, and prior session history, publishing step events to the
// bus and recording nodes in the execution tree as it goes.
func (l *Loop) Run(ctx context.Context, query string, env *session.Environment, history []session.Message) (Result, error) {
	provider, err := l.deps.Providers.Resolve(l.cfg.ModelTier)
	if err != nil {
		return Result{}, fmt.Errorf("specialist %s: %w", l.cfg.Name, err)
	}

	nodeID, err := l.deps.Tree.StartNode(l.cfg.Name, tree.KindAgent, "", truncate(query, 100), nil, nil)
	if err != nil {
		return Result{}, fmt.Errorf("specialist %s: starting tree node: %w", l.cfg.Name, err)
	}

	messages := l.buildMessages(query, history, env)
	tools := l.resolveTools()

	var (
		totalTokens int
		lastText    string
		structured  any
	)

	cappedOut := true
	for iter := 1; iter <= l.cfg.MaxIterations; iter++ {
		stepID := fmt.Sprintf("%s-%d", nodeID, iter)
		l.publish(ctx, eventbus.Event{Kind: eventbus.KindAgentStepStart, Data: eventbus.AgentStepStartPayload{
			StepID: stepID, AgentName: l.cfg.Name, StepOrder: iter, Timestamp: time.Now().UTC().Format(time.RFC3339),
		}})

		req := llm.ChatRequest{
			Model:    l.cfg.ModelTier,
			Messages: messages,
			Tools:    tools,
		}
		if l.cfg.OutputSchema != nil && provider.SupportsStructuredOutput() {
			req.ResponseFormat = &llm.StructuredOutputConfig{Schema: l.cfg.OutputSchema}
		}

		text, toolCalls, final, err := l.runOneTurn(ctx, provider, stepID, req)
		if err != nil {
			_ = l.deps.Tree.FailNode(nodeID, err.Error(), nil)
			return Result{}, fmt.Errorf("specialist %s: llm call: %w", l.cfg.Name, err)
		}

		if l.cfg.OutputSchema != nil {
			if verr := validateStructured(l.cfg.OutputSchema, structuredDataOf(final)); verr != nil {
				l.deps.Logger.Warn("specialist: structured output mismatch, retrying",
					"specialist", l.cfg.Name, "error", verr)

				retryMessages := append(append([]llm.Message{}, messages...), llm.Message{
					Role: llm.RoleUser,
					Content: fmt.Sprintf("Your previous response did not match the required structured "+
						"output schema (%s). Respond again with a valid structured output.", verr),
				})
				retryReq := req
				retryReq.Messages = retryMessages

				text, toolCalls, final, err = l.runOneTurn(ctx, provider, stepID, retryReq)
				if err != nil {
					_ = l.deps.Tree.FailNode(nodeID, err.Error(), nil)
					return Result{}, fmt.Errorf("specialist %s: llm call (structured retry): %w", l.cfg.Name, err)
				}
				if verr := validateStructured(l.cfg.OutputSchema, structuredDataOf(final)); verr != nil {
					msg := "structured_output_mismatch: " + verr.Error()
					l.publish(ctx, eventbus.Event{Kind: eventbus.KindStepError, Data: eventbus.StepErrorPayload{
						Step: l.cfg.Name, Error: msg,
					}})
					_ = l.deps.Tree.FailNode(nodeID, msg, nil)
					return Result{}, fmt.Errorf("specialist %s: %s", l.cfg.Name, msg)
				}
			}
		}

		lastText = text
		isStructured := false
		if final != nil {
			totalTokens += final.TokensUsed
			structured = final.StructuredData
			isStructured = final.StructuredData != nil
		}

		l.publish(ctx, eventbus.Event{Kind: eventbus.KindAgentStepComplete, Data: eventbus.AgentStepCompletePayload{
			StepID: stepID, AgentName: l.cfg.Name, Content: truncate(text, 500), IsStructured: isStructured,
		}})

		if len(toolCalls) == 0 {
			cappedOut = false
			break
		}

		results := l.invokeTools(ctx, toolCalls, env)
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: text, ToolCalls: toolCalls})
		for i, tc := range toolCalls {
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    toolObservationContent(results[i]),
				ToolCallID: tc.ID,
				Name:       tc.Name,
			})
		}
	}

	if cappedOut {
		l.publish(ctx, eventbus.Event{Kind: eventbus.KindStepError, Data: eventbus.StepErrorPayload{
			Step:  l.cfg.Name,
			Error: fmt.Sprintf("iteration cap (%d) reached; returning last produced output", l.cfg.MaxIterations),
		}})
	}

	_ = l.deps.Tree.CompleteNode(nodeID, truncate(lastText, 200), nil, map[string]any{"tokens_used": totalTokens})

	return Result{
		Text:           lastText,
		StructuredData: structured,
		Iterations:     l.cfg.MaxIterations,
		TokensUsed:     totalTokens,
	}, nil
}

func (l *Loop) buildMessages(query string, history []session.Message, env *session.Environment) []llm.Message {
	out := make([]llm.Message, 0, len(history)+3)
	instruction := l.cfg.Instruction
	if desc := environmentDescription(env); desc != "" {
		instruction += "\n\n" + desc
	}
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: instruction})
	for _, h := range history {
		role := llm.RoleUser
		if h.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: h.Content})
	}
	out = append(out, llm.Message{Role: llm.RoleUser, Content: query})
	return out
}

// environmentDescription renders the Environment's keys and tags (never
// full contents) so a specialist can discover what earlier tool calls
// and specialists have already produced before deciding to call a tool
// itself, per spec.md §4.5 step 1.
func environmentDescription(env *session.Environment) string {
	if env == nil {
		return ""
	}
	keys := env.Keys()
	if len(keys) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Environment (already-available data from earlier steps):\n")
	for _, k := range keys {
		v, ok := env.GetValue(k)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s)\n", k, v.Tag)
	}
	return b.String()
}

func (l *Loop) resolveTools() []llm.ToolDefinition {
	var descriptors []tool.Descriptor
	if len(l.cfg.Capabilities) > 0 {
		descriptors = l.deps.Tools.ListFor(l.cfg.Capabilities)
	}
	seen := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		seen[d.Name] = true
	}
	for _, name := range l.cfg.ToolNames {
		if seen[name] {
			continue
		}
		if d, err := l.deps.Tools.Get(name); err == nil {
			descriptors = append(descriptors, d)
			seen[name] = true
		}
	}

	out := make([]llm.ToolDefinition, 0, len(descriptors))
	for _, d := range descriptors {
		out = append(out, llm.ToolDefinition{Name: d.Name, Description: d.HumanDescription, Parameters: d.ParameterSchema})
	}
	return out
}

// runOneTurn drains a Chat stream into accumulated text, tool calls, and
// the terminal FinalResponse.
func (l *Loop) runOneTurn(ctx context.Context, provider llm.Provider, stepID string, req llm.ChatRequest) (string, []llm.ToolCall, *llm.FinalResponse, error) {
	stream, err := provider.Chat(ctx, req)
	if err != nil {
		return "", nil, nil, err
	}

	var text string
	var calls []llm.ToolCall
	var final *llm.FinalResponse

	for ev := range stream {
		switch ev.Kind {
		case llm.StreamDelta:
			text += ev.Delta
			l.publish(ctx, eventbus.Event{Kind: eventbus.KindAgentStepContent, Data: eventbus.AgentStepContentPayload{
				StepID: stepID, ContentChunk: ev.Delta,
			}})
		case llm.StreamToolCall:
			calls = append(calls, ev.ToolCallEvt)
		case llm.StreamFinal:
			final = ev.Final
			if final != nil && final.Text != "" {
				text = final.Text
			}
		case llm.StreamError:
			return text, calls, final, ev.Err
		}
	}
	return text, calls, final, nil
}

// invokeTools fans calls out concurrently (spec.md §5 "parallel tool
// calls"), bounded by MaxConcurrentToolCalls, via golang.org/x/sync/errgroup.
// Individual tool failures are non-fatal: they surface as a failed
// tool.Result, never abort the turn.
func (l *Loop) invokeTools(ctx context.Context, calls []llm.ToolCall, env *session.Environment) []tool.Result {
	results := make([]tool.Result, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.MaxConcurrentToolCalls)

	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			l.publish(gctx, eventbus.Event{Kind: eventbus.KindToolCall, Data: eventbus.ToolCallPayload{
				ToolName: call.Name, Arguments: call.Arguments, AgentName: l.cfg.Name,
			}})

			tc := &tool.Context{Environment: env, AgentName: l.cfg.Name, Logger: l.deps.Logger, Bus: l.deps.Bus}
			res, err := l.deps.Tools.Invoke(gctx, call.Name, call.Arguments, tc)
			if err != nil {
				res = tool.Result{Success: false, Summary: fmt.Sprintf("Tool execution failed: %s", err), Error: err.Error()}
			}
			results[i] = res

			if res.Success && res.Data != nil && env != nil {
				env.Add(tool.ResultKey(call.Name, res.Data), res.Data, res.Metadata)
			}

			l.publish(gctx, eventbus.Event{Kind: eventbus.KindToolResult, Data: eventbus.ToolResultPayload{
				ToolName: call.Name, OutputSummary: truncate(res.Summary, 500),
			}})
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (l *Loop) publish(ctx context.Context, ev eventbus.Event) {
	if l.deps.Bus == nil {
		return
	}
	_ = l.deps.Bus.Publish(ctx, ev)
}

// structuredDataOf extracts a turn's structured payload, tolerating a nil
// FinalResponse (e.g. a stream that ended without ever emitting one).
func structuredDataOf(final *llm.FinalResponse) any {
	if final == nil {
		return nil
	}
	return final.StructuredData
}

// validateStructured checks a turn's structured output against the
// specialist's OutputSchema (spec.md §4.5 "Structured output"): every
// required field must be present and non-empty, and any enum-constrained
// field's value must be one of the declared choices.
func validateStructured(schema *tool.ParameterSchema, data any) error {
	if schema == nil {
		return nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("structured output is missing or not an object")
	}
	for _, req := range schema.Required {
		v, present := m[req]
		if !present {
			return fmt.Errorf("missing required field %q", req)
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return fmt.Errorf("required field %q is empty", req)
		}
	}
	for name, prop := range schema.Properties {
		if prop == nil || len(prop.Enum) == 0 {
			continue
		}
		v, present := m[name]
		if !present {
			continue
		}
		if !enumContains(prop.Enum, v) {
			return fmt.Errorf("field %q has value %v outside its allowed enum", name, v)
		}
	}
	return nil
}

func enumContains(enum []any, v any) bool {
	for _, e := range enum {
		if fmt.Sprintf("%v", e) == fmt.Sprintf("%v", v) {
			return true
		}
	}
	return false
}

// toolObservationContent renders the message fed back into the chat
// loop as the tool-result observation (spec.md §4.5 step 5). The human
// Summary alone loses the retrieved data a later tool call or specialist
// needs to chain off of (e.g. sql_query's rows feeding sentiment_score's
// texts argument), so a truncated JSON rendering of Data is appended.
func toolObservationContent(res tool.Result) string {
	content := res.Summary
	if res.Data != nil {
		if raw, err := json.Marshal(res.Data); err == nil {
			content += "\ndata: " + truncate(string(raw), 4000)
		}
	}
	return content
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
