package specialist

import (
	"context"
	"testing"

	"github.com/insightloop/engine/internal/eventbus"
	"github.com/insightloop/engine/internal/llm"
	"github.com/insightloop/engine/internal/session"
	"github.com/insightloop/engine/internal/tool"
	"github.com/insightloop/engine/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays a fixed sequence of turns: each call to Chat
// returns the next scripted []llm.StreamEvent, letting tests drive the
// ReAct loop deterministically without a real LLM.
type scriptedProvider struct {
	turns [][]llm.StreamEvent
	calls int
}

func (p *scriptedProvider) Chat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	turn := p.turns[p.calls]
	p.calls++
	ch := make(chan llm.StreamEvent, len(turn))
	for _, ev := range turn {
		ch <- ev
	}
	close(ch)
	return ch, nil
}
func (p *scriptedProvider) HealthCheck(ctx context.Context) bool { return true }
func (p *scriptedProvider) SupportsStructuredOutput() bool       { return false }

func newTestDeps(t *testing.T, provider llm.Provider) Deps {
	t.Helper()
	providers := llm.NewRegistry()
	require.NoError(t, providers.RegisterProvider("simple", provider))

	tools := tool.NewRegistry()
	require.NoError(t, tools.Register(tool.Descriptor{
		Name:             "lookup",
		HumanDescription: "looks something up",
		ParameterSchema:  &tool.ParameterSchema{Type: "object"},
		CapabilitySet:    []string{"dataset_read"},
		Handler: func(ctx context.Context, args map[string]any, tc *tool.Context) (tool.Result, error) {
			return tool.Result{Success: true, Summary: "found it"}, nil
		},
	}))

	return Deps{
		Providers: providers,
		Tools:     tools,
		Bus:       eventbus.New(16),
		Tree:      tree.New("test query", "sess-1"),
	}
}

func TestLoopRunStopsWhenNoToolCalls(t *testing.T) {
	provider := &scriptedProvider{turns: [][]llm.StreamEvent{
		{
			{Kind: llm.StreamDelta, Delta: "final answer"},
			{Kind: llm.StreamFinal, Final: &llm.FinalResponse{Text: "final answer", TokensUsed: 10}},
		},
	}}
	deps := newTestDeps(t, provider)
	loop := New(Config{Name: "general_assistant", ModelTier: "simple", Instruction: "answer"}, deps)

	res, err := loop.Run(context.Background(), "hello", session.NewEnvironment(), nil)
	require.NoError(t, err)
	assert.Equal(t, "final answer", res.Text)
	assert.Equal(t, 10, res.TokensUsed)
	assert.Equal(t, 1, provider.calls)
}

func TestLoopRunInvokesToolThenFinishes(t *testing.T) {
	provider := &scriptedProvider{turns: [][]llm.StreamEvent{
		{
			{Kind: llm.StreamToolCall, ToolCallEvt: llm.ToolCall{ID: "1", Name: "lookup", Arguments: map[string]any{}}},
			{Kind: llm.StreamFinal, Final: &llm.FinalResponse{}},
		},
		{
			{Kind: llm.StreamDelta, Delta: "done"},
			{Kind: llm.StreamFinal, Final: &llm.FinalResponse{Text: "done"}},
		},
	}}
	deps := newTestDeps(t, provider)
	loop := New(Config{Name: "data_discovery", ModelTier: "simple", Instruction: "answer", Capabilities: []string{"dataset_read"}}, deps)

	res, err := loop.Run(context.Background(), "look something up", session.NewEnvironment(), nil)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)
	assert.Equal(t, 2, provider.calls)
}

func TestLoopRunStopsAtIterationCap(t *testing.T) {
	infiniteToolCall := []llm.StreamEvent{
		{Kind: llm.StreamToolCall, ToolCallEvt: llm.ToolCall{ID: "1", Name: "lookup", Arguments: map[string]any{}}},
		{Kind: llm.StreamFinal, Final: &llm.FinalResponse{}},
	}
	turns := make([][]llm.StreamEvent, 3)
	for i := range turns {
		turns[i] = infiniteToolCall
	}
	provider := &scriptedProvider{turns: turns}
	deps := newTestDeps(t, provider)
	loop := New(Config{Name: "data_discovery", ModelTier: "simple", Instruction: "answer", Capabilities: []string{"dataset_read"}, MaxIterations: 3}, deps)

	_, err := loop.Run(context.Background(), "loop forever", session.NewEnvironment(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, provider.calls)

	deps.Bus.Close(context.Background())
	var sawStepError bool
	for ev := range deps.Bus.Events() {
		if ev.Kind == eventbus.KindStepError {
			sawStepError = true
		}
	}
	assert.True(t, sawStepError, "expected a step_error event annotating the iteration cap hit")
}

func TestResolveAlias(t *testing.T) {
	cfg, ok := Resolve("product")
	require.True(t, ok)
	assert.Equal(t, "gap_analysis", cfg.Name)

	_, ok = Resolve("nonexistent")
	assert.False(t, ok)
}
