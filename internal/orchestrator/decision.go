package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/insightloop/engine/internal/specialist"
	"github.com/insightloop/engine/internal/tool"
)

// coordinatorDecisionSchema constrains the coordinator specialist's
// final turn to a structured "what next" decision, per spec.md §4.6's
// complex-graph coordinator contract: select a specialist, a direct
// tool shortcut, or synthesis.
var coordinatorDecisionSchema = &tool.ParameterSchema{
	Type:     "object",
	Required: []string{"action", "reasoning"},
	Properties: map[string]*tool.ParameterSchema{
		"action": {
			Type:        "string",
			Description: "handoff to a specialist, run a tool directly, or synthesize the final answer now.",
			Enum:        []any{"handoff", "tool", "synthesize"},
		},
		"specialist": {Type: "string", Description: "Specialist name to hand off to, when action=handoff."},
		"tool_name":  {Type: "string", Description: "Tool to invoke directly, when action=tool."},
		"summary":    {Type: "string", Description: "Short handoff summary passed to the next specialist (capped; over-long handoffs degrade the next specialist's answer)."},
		"reasoning":  {Type: "string", Description: "Brief justification for this decision."},
	},
}

// maxHandoffSummaryLen enforces spec.md §9's "handoff messages MUST be
// capped in length" non-negotiable.
const maxHandoffSummaryLen = 280

// coordinatorDecision is the parsed form of the coordinator's structured
// output.
type coordinatorDecision struct {
	Action     string
	Specialist string
	ToolName   string
	Summary    string
	Reasoning  string
}

// parseCoordinatorDecision extracts the coordinator's structured "what
// next" decision. By the time StructuredData reaches here,
// specialist.Loop.Run has already validated it against
// coordinatorDecisionSchema with a one-shot retry, failing the turn with
// structured_output_mismatch rather than returning malformed data — the
// defaulting below is a defensive fallback for a schema-less caller, not
// the primary correctness mechanism.
func parseCoordinatorDecision(data any) coordinatorDecision {
	m, _ := data.(map[string]any)
	d := coordinatorDecision{Action: "synthesize"}
	if m == nil {
		return d
	}
	if v, ok := m["action"].(string); ok && v != "" {
		d.Action = v
	}
	if v, ok := m["specialist"].(string); ok {
		d.Specialist = v
	}
	if v, ok := m["tool_name"].(string); ok {
		d.ToolName = v
	}
	if v, ok := m["summary"].(string); ok {
		d.Summary = capSummary(v)
	}
	if v, ok := m["reasoning"].(string); ok {
		d.Reasoning = v
	}
	return d
}

func capSummary(s string) string {
	if len(s) <= maxHandoffSummaryLen {
		return s
	}
	return s[:maxHandoffSummaryLen] + "..."
}

// handoffKey identifies a (specialist, summary) pair for spec.md §8
// invariant 6's cycle-detection rule: "the same (specialist,
// hash-of-handoff-summary) pair may not recur".
func handoffKey(cfg specialist.Config, summary string) string {
	sum := sha256.Sum256([]byte(summary))
	return cfg.Name + ":" + hex.EncodeToString(sum[:8])
}
