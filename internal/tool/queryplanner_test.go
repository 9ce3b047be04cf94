package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryPlannerNormalizesValidPlan(t *testing.T) {
	d := NewQueryPlannerDescriptor()
	res, err := d.Handler(context.Background(), map[string]any{
		"query":            "what do customers complain about most?",
		"intent":           "Gap Analysis",
		"output_format":    "cited_summary",
		"needs_rag":        true,
		"needs_web_search": false,
		"needs_analytics":  false,
		"needs_nlp":        true,
		"reasoning":        "asks about recurring complaints",
	}, &Context{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	plan := res.Data.(map[string]any)
	assert.Equal(t, "Gap Analysis", plan["intent"])
	assert.Equal(t, "cited_summary", plan["output_format"])
}

func TestQueryPlannerDefaultsInvalidEnum(t *testing.T) {
	d := NewQueryPlannerDescriptor()
	res, err := d.Handler(context.Background(), map[string]any{
		"query":         "hello",
		"intent":        "NotARealIntent",
		"output_format": "nonsense",
	}, &Context{})
	require.NoError(t, err)
	plan := res.Data.(map[string]any)
	assert.Equal(t, "Summarization", plan["intent"])
	assert.Equal(t, "text", plan["output_format"])
}

func TestQueryPlannerDecodesLooseArgTypes(t *testing.T) {
	d := NewQueryPlannerDescriptor()
	res, err := d.Handler(context.Background(), map[string]any{
		"query":            "avg rating by category",
		"intent":           "Aggregation",
		"output_format":    "visualization",
		"needs_rag":        "true",
		"needs_analytics":  "true",
		"needs_web_search": false,
		"needs_nlp":        false,
		"reasoning":        "needs grouped aggregation",
	}, &Context{})
	require.NoError(t, err)
	plan := res.Data.(map[string]any)
	assert.Equal(t, true, plan["needs_rag"])
	assert.Equal(t, true, plan["needs_analytics"])
	assert.Equal(t, 2, res.Metadata["tools_needed"])
}

func TestQueryPlannerDefaultsReasoning(t *testing.T) {
	d := NewQueryPlannerDescriptor()
	res, err := d.Handler(context.Background(), map[string]any{
		"query": "x", "intent": "Summarization", "output_format": "text",
	}, &Context{})
	require.NoError(t, err)
	plan := res.Data.(map[string]any)
	assert.Equal(t, "Query analysis complete", plan["reasoning"])
}
