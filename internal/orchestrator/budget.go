package orchestrator

import (
	"context"
	"sync"

	"github.com/insightloop/engine/internal/tool"
)

// toolBudget enforces spec.md §6's tool_call_budget_per_turn: once a
// turn's tool invocations reach the configured cap, every further call
// fails fast instead of reaching a tool handler.
type toolBudget struct {
	mu        sync.Mutex
	remaining int
}

func newToolBudget(limit int) *toolBudget {
	return &toolBudget{remaining: limit}
}

// wrapForBudget builds a fresh tool.Registry whose descriptors proxy to
// base's handlers but reject invocation once the turn's budget is
// spent, mirroring dedupCache.wrapForDedup's per-turn registry-wrapping
// approach (spec.md §4.1: this is a per-turn orchestrator policy, not a
// property of the process-global registry). Wrap the base registry with
// this before dedupCache.wrapForDedup so that cache hits, which never
// reach a handler, don't themselves consume budget.
func (b *toolBudget) wrapForBudget(base *tool.Registry) *tool.Registry {
	turnRegistry := tool.NewRegistry()
	for _, desc := range base.All() {
		desc := desc
		wrapped := desc
		wrapped.Handler = func(ctx context.Context, args map[string]any, tc *tool.Context) (tool.Result, error) {
			b.mu.Lock()
			if b.remaining <= 0 {
				b.mu.Unlock()
				return tool.Result{
					Success: false,
					Summary: "tool call budget for this turn is exhausted",
					Error:   "tool_call_budget_exceeded",
				}, nil
			}
			b.remaining--
			b.mu.Unlock()
			return desc.Handler(ctx, args, tc)
		}
		_ = turnRegistry.Register(wrapped)
	}
	return turnRegistry
}
