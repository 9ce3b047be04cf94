// Package orchestrator implements C6, the Query Router/Orchestrator: the
// single entry point that drives one turn through security guardrail,
// tier classification, tier-appropriate execution (a direct LLM call for
// simple/medium turns, or a bounded specialist graph for complex turns),
// synthesis, and persistence — publishing every step onto an eventbus.Bus
// as it goes. Grounded on the teacher's pkg/workflow orchestration loop,
// generalized from its fixed BaseAgent pipeline to spec.md §4.6's six
// explicit phases (R1-R6).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/insightloop/engine/internal/config"
	"github.com/insightloop/engine/internal/eventbus"
	"github.com/insightloop/engine/internal/llm"
	"github.com/insightloop/engine/internal/session"
	"github.com/insightloop/engine/internal/specialist"
	"github.com/insightloop/engine/internal/tool"
	"github.com/insightloop/engine/internal/tree"
)

// Deps bundles every shared engine service the orchestrator needs to
// drive a turn.
type Deps struct {
	Providers *llm.Registry
	Tools     *tool.Registry
	Sessions  session.Store
	Config    config.EngineConfig
	Logger    *slog.Logger
}

// Request is one inbound turn (spec.md §6 "submit_query").
type Request struct {
	SessionID string
	UserID    string
	Message   string
}

// Orchestrator drives Request turns through phases R1-R6.
type Orchestrator struct {
	deps Deps
}

// New constructs an Orchestrator.
func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{deps: deps}
}

// HandleTurn starts the turn in a background goroutine and returns the
// Bus the caller drains for events. The bus is always closed, terminating
// in exactly one of a `complete` or `error` event (spec.md §4.3/§8).
func (o *Orchestrator) HandleTurn(ctx context.Context, req Request) *eventbus.Bus {
	bus := eventbus.New(o.deps.Config.EventBusBufferSize)
	go o.run(ctx, req, bus)
	return bus
}

func (o *Orchestrator) run(parent context.Context, req Request, bus *eventbus.Bus) {
	defer bus.Close(parent)

	ctx, cancel := context.WithTimeout(parent, o.deps.Config.TurnTimeout())
	defer cancel()

	o.publish(ctx, bus, eventbus.Event{Kind: eventbus.KindConnected, Data: map[string]any{"session_id": req.SessionID}})
	o.publish(ctx, bus, eventbus.Event{Kind: eventbus.KindStatus, Data: eventbus.StatusPayload{Status: "initializing"}})

	// R1: restore/create session state.
	sess, err := o.loadOrCreateSession(ctx, req)
	if err != nil {
		o.fail(ctx, bus, req.SessionID, nil, "", err)
		return
	}

	env, envErr := sess.RestoreEnvironment()
	if envErr != nil {
		o.deps.Logger.Warn("orchestrator: environment restore failed, starting fresh", "session_id", req.SessionID, "error", envErr)
		env = session.NewEnvironment()
	}

	hasHistory := len(sess.History(0)) > 0
	history := sess.History(o.deps.Config.HistoryWindow)

	if err := o.deps.Sessions.AppendMessage(ctx, req.SessionID, session.Message{
		Role: session.RoleUser, Content: req.Message, CreatedAt: time.Now(),
	}); err != nil {
		o.fail(ctx, bus, req.SessionID, nil, "", fmt.Errorf("orchestrator: recording user turn: %w", err))
		return
	}

	assistantMsgID := uuid.NewString()
	if err := o.deps.Sessions.AppendMessage(ctx, req.SessionID, session.Message{
		ID: assistantMsgID, Role: session.RoleAssistant, Content: "", CreatedAt: time.Now(),
	}); err != nil {
		o.fail(ctx, bus, req.SessionID, nil, "", fmt.Errorf("orchestrator: reserving assistant turn: %w", err))
		return
	}

	tr := tree.New(req.Message, req.SessionID)

	// R2: security guardrail.
	query := req.Message
	if o.deps.Config.EnableSecurityGuardrail {
		o.publish(ctx, bus, eventbus.Event{Kind: eventbus.KindStatus, Data: eventbus.StatusPayload{Status: "security_check"}})
		gr := checkQuery(query)
		query = gr.Sanitized
		if gr.Flagged && strings.TrimSpace(query) == "" {
			o.fail(ctx, bus, req.SessionID, tr, assistantMsgID, errors.New("orchestrator: query rejected, nothing but prompt-injection patterns"))
			return
		}
	}

	// R3: tier classification.
	cls := classifyTier(query, hasHistory)
	o.publish(ctx, bus, eventbus.Event{Kind: eventbus.KindRouting, Data: eventbus.RoutingPayload{
		Specialist: string(cls.Tier), Confidence: cls.Confidence, Reasoning: cls.Reasoning,
	}})

	// R4: tier-appropriate execution.
	var finalText string
	var alreadyStreamed bool
	switch cls.Tier {
	case TierComplex:
		finalText, err = o.runComplexGraph(ctx, bus, tr, env, query, history)
	default:
		finalText, err = o.runDirectAnswer(ctx, bus, tr, string(cls.Tier), query, history)
		alreadyStreamed = true
	}
	if err != nil {
		o.fail(ctx, bus, req.SessionID, tr, assistantMsgID, err)
		return
	}

	// R5: synthesis, PII post-check, and persistence.
	o.publish(ctx, bus, eventbus.Event{Kind: eventbus.KindStatus, Data: eventbus.StatusPayload{Status: "generating_response"}})

	redacted, changed := checkOutgoing(finalText)
	if changed {
		o.publish(ctx, bus, eventbus.Event{Kind: eventbus.KindStatus, Data: eventbus.StatusPayload{Status: "security_postprocess"}})
		finalText = redacted
	}
	if !alreadyStreamed {
		o.publish(ctx, bus, eventbus.Event{Kind: eventbus.KindContent, Data: eventbus.ContentPayload{Content: finalText}})
	}

	completedAt := time.Now()
	if err := o.deps.Sessions.UpdateMessage(ctx, req.SessionID, assistantMsgID, finalText, completedAt); err != nil {
		o.deps.Logger.Warn("orchestrator: persisting final message failed", "session_id", req.SessionID, "error", err)
	}
	if err := o.deps.Sessions.SaveSteps(ctx, req.SessionID, assistantMsgID, stepRecords(tr)); err != nil {
		o.deps.Logger.Warn("orchestrator: persisting step records failed", "session_id", req.SessionID, "error", err)
	}
	if err := sess.SaveEnvironment(env, o.deps.Config.LargeTableRowThreshold); err != nil {
		o.deps.Logger.Warn("orchestrator: snapshotting environment failed", "session_id", req.SessionID, "error", err)
	}

	stats := tr.Stats()
	_ = tr.CompleteNode(tree.RootNodeID, truncate(finalText, 200), nil, map[string]any{
		"tier": string(cls.Tier),
	})

	o.publish(ctx, bus, eventbus.Event{Kind: eventbus.KindComplete, Data: eventbus.CompletePayload{
		MessageID: assistantMsgID,
		Message:   finalText,
		Timestamp: completedAt.UTC().Format(time.RFC3339),
		Metadata: map[string]any{
			"tier":            string(cls.Tier),
			"total_duration":  stats.TotalDuration.Milliseconds(),
			"nodes_completed": stats.CountByStatus[tree.StatusCompleted],
			"nodes_failed":    stats.CountByStatus[tree.StatusFailed],
		},
	}})
}

func (o *Orchestrator) loadOrCreateSession(ctx context.Context, req Request) (*session.Session, error) {
	sess, err := o.deps.Sessions.GetSession(ctx, req.SessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, session.ErrSessionNotFound) {
		return nil, fmt.Errorf("orchestrator: loading session: %w", err)
	}
	sess, err = o.deps.Sessions.CreateSession(ctx, req.SessionID, req.UserID, nil)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: creating session: %w", err)
	}
	return sess, nil
}

// runDirectAnswer handles the simple/medium short-circuit: one streamed
// LLM call with no specialist graph (spec.md §4.6 Phase R4).
func (o *Orchestrator) runDirectAnswer(ctx context.Context, bus *eventbus.Bus, tr *tree.Tree, tierModel string, query string, history []session.Message) (string, error) {
	provider, err := o.deps.Providers.Resolve(tierModel)
	if err != nil {
		return "", fmt.Errorf("orchestrator: resolving %s provider: %w", tierModel, err)
	}

	nodeID, err := tr.StartNode("direct_answer", tree.KindAgent, "", truncate(query, 100), nil, nil)
	if err != nil {
		return "", fmt.Errorf("orchestrator: starting direct-answer node: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: "You are a helpful data-analysis assistant. Answer directly and concisely."})
	for _, h := range history {
		role := llm.RoleUser
		if h.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: h.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	stream, err := provider.Chat(ctx, llm.ChatRequest{Model: tierModel, Messages: messages})
	if err != nil {
		_ = tr.FailNode(nodeID, err.Error(), nil)
		return "", fmt.Errorf("orchestrator: direct answer call: %w", err)
	}

	var text string
	for ev := range stream {
		switch ev.Kind {
		case llm.StreamDelta:
			text += ev.Delta
			o.publish(ctx, bus, eventbus.Event{Kind: eventbus.KindContent, Data: eventbus.ContentPayload{Content: ev.Delta}})
		case llm.StreamFinal:
			if ev.Final != nil && ev.Final.Text != "" {
				text = ev.Final.Text
			}
		case llm.StreamError:
			_ = tr.FailNode(nodeID, ev.Err.Error(), nil)
			return "", fmt.Errorf("orchestrator: direct answer stream: %w", ev.Err)
		}
	}

	_ = tr.CompleteNode(nodeID, truncate(text, 200), nil, nil)
	return text, nil
}

// maxCoordinatorTurns bounds the complex-graph loop independent of
// MaxGraphDepth: every specialist node is started under the root, so the
// tree depth stays at 1 however many coordinator round trips are made.
const maxCoordinatorTurns = 25

// runComplexGraph drives the bounded coordinator-led specialist graph
// (spec.md §4.6 Phase R4, complex tier): the coordinator chooses a
// specialist to hand off to or decides to synthesize, guarded by a
// max-depth check, a wall-clock budget (the outer context deadline), and
// (specialist, handoff-summary) cycle detection.
func (o *Orchestrator) runComplexGraph(ctx context.Context, bus *eventbus.Bus, tr *tree.Tree, env *session.Environment, query string, history []session.Message) (string, error) {
	dedup := newDedupCache()
	budget := newToolBudget(o.deps.Config.ToolCallBudgetPerTurn)
	turnTools := dedup.wrapForDedup(budget.wrapForBudget(o.deps.Tools))

	visited := make(map[string]bool)
	var transcript []string

	currentName := "coordinator"
	nextQuery := query

graphLoop:
	for turn := 0; turn < maxCoordinatorTurns; turn++ {
		if tr.Depth() >= o.deps.Config.MaxGraphDepth {
			o.deps.Logger.Warn("orchestrator: max graph depth reached, forcing synthesis", "depth", tr.Depth())
			break
		}

		cfg, ok := specialist.Resolve(currentName)
		if !ok {
			break
		}
		if currentName == "coordinator" {
			cfg.OutputSchema = coordinatorDecisionSchema
		}

		loop := specialist.New(cfg, specialist.Deps{
			Providers: o.deps.Providers,
			Tools:     turnTools,
			Bus:       bus,
			Tree:      tr,
			Logger:    o.deps.Logger,
		})

		res, err := loop.Run(ctx, nextQuery, env, history)
		if err != nil {
			return "", fmt.Errorf("orchestrator: specialist %s: %w", currentName, err)
		}

		if currentName != "coordinator" {
			transcript = append(transcript, fmt.Sprintf("[%s] %s", currentName, res.Text))
			currentName = "coordinator"
			nextQuery = query
			continue graphLoop
		}

		decision := parseCoordinatorDecision(res.StructuredData)
		key := handoffKey(cfg, decision.Action+":"+decision.Specialist+":"+decision.Summary)
		if visited[key] {
			o.deps.Logger.Warn("orchestrator: repeated handoff detected, forcing synthesis", "specialist", decision.Specialist)
			break graphLoop
		}
		visited[key] = true

		if decision.Action != "handoff" || decision.Specialist == "" || decision.Specialist == "coordinator" {
			break graphLoop
		}
		if _, known := specialist.Resolve(decision.Specialist); !known {
			break graphLoop
		}

		currentName = decision.Specialist
		nextQuery = decision.Summary
		if nextQuery == "" {
			nextQuery = query
		}
	}

	return o.synthesize(ctx, bus, tr, turnTools, env, query, history, transcript)
}

// synthesize runs the report_writer specialist over the accumulated
// specialist transcript to produce the final cited answer.
func (o *Orchestrator) synthesize(ctx context.Context, bus *eventbus.Bus, tr *tree.Tree, tools *tool.Registry, env *session.Environment, query string, history []session.Message, transcript []string) (string, error) {
	cfg, ok := specialist.Resolve("report_writer")
	if !ok {
		return "", errors.New("orchestrator: report_writer specialist not registered")
	}

	synthHistory := history
	if len(transcript) > 0 {
		synthHistory = append(append([]session.Message{}, history...), session.Message{
			Role:      session.RoleSystem,
			Content:   "Specialist findings so far:\n" + strings.Join(transcript, "\n"),
			CreatedAt: time.Now(),
		})
	}

	loop := specialist.New(cfg, specialist.Deps{
		Providers: o.deps.Providers,
		Tools:     tools,
		Bus:       bus,
		Tree:      tr,
		Logger:    o.deps.Logger,
	})
	res, err := loop.Run(ctx, query, env, synthHistory)
	if err != nil {
		return "", fmt.Errorf("orchestrator: synthesis: %w", err)
	}
	return res.Text, nil
}

// fail implements Phase R6: mark the root node failed (if a tree exists
// yet), persist whatever partial state accumulated, and emit the turn's
// terminal error event.
func (o *Orchestrator) fail(ctx context.Context, bus *eventbus.Bus, sessionID string, tr *tree.Tree, assistantMsgID string, cause error) {
	o.deps.Logger.Error("orchestrator: turn failed", "error", cause)

	if tr != nil {
		_ = tr.FailNode(tree.RootNodeID, cause.Error(), nil)
		if assistantMsgID != "" {
			_ = o.deps.Sessions.SaveSteps(ctx, sessionID, assistantMsgID, stepRecords(tr))
		}
	}

	o.publish(ctx, bus, eventbus.Event{Kind: eventbus.KindError, Data: eventbus.ErrorPayload{Error: cause.Error()}})
}

func (o *Orchestrator) publish(ctx context.Context, bus *eventbus.Bus, ev eventbus.Event) {
	if err := bus.Publish(ctx, ev); err != nil && !errors.Is(err, eventbus.ErrClosed) && !errors.Is(err, context.Canceled) {
		o.deps.Logger.Debug("orchestrator: publish failed", "kind", ev.Kind, "error", err)
	}
}

func stepRecords(tr *tree.Tree) []session.StepRecord {
	nodes := tr.StepRecords()
	out := make([]session.StepRecord, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, session.StepRecord{
			ID:            n.ID,
			ParentID:      n.ParentID,
			Kind:          string(n.Kind),
			Name:          n.Name,
			Status:        string(n.Status),
			DurationMs:    n.DurationMs,
			InputSummary:  n.InputSummary,
			OutputSummary: n.OutputSummary,
			Error:         n.Error,
			Metadata:      n.Metadata,
		})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
