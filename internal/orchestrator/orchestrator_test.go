package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/insightloop/engine/internal/config"
	"github.com/insightloop/engine/internal/eventbus"
	"github.com/insightloop/engine/internal/llm"
	"github.com/insightloop/engine/internal/session"
	"github.com/insightloop/engine/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider replays a fixed sequence of StreamEvents for every Chat
// call, optionally returning a fixed StructuredData payload on the final
// event — enough to drive the coordinator/specialist loop without a real
// model.
type fakeProvider struct {
	text       string
	structured any
	supports   bool
}

func (f *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent, 4)
	go func() {
		defer close(ch)
		ch <- llm.StreamEvent{Kind: llm.StreamDelta, Delta: f.text}
		ch <- llm.StreamEvent{Kind: llm.StreamFinal, Final: &llm.FinalResponse{
			Text: f.text, StructuredData: f.structured, TokensUsed: 10,
		}}
	}()
	return ch, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) bool { return true }
func (f *fakeProvider) SupportsStructuredOutput() bool       { return f.supports }

func drain(bus *eventbus.Bus) []eventbus.Event {
	var out []eventbus.Event
	for ev := range bus.Events() {
		out = append(out, ev)
	}
	return out
}

func kinds(events []eventbus.Event) []eventbus.Kind {
	out := make([]eventbus.Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func testConfig() config.EngineConfig {
	cfg := config.Default()
	cfg.TurnTimeoutSeconds = 5
	cfg.EventBusBufferSize = 32
	cfg.EnableSecurityGuardrail = true
	return cfg
}

func TestSimpleQueryShortCircuitsToDirectAnswer(t *testing.T) {
	providers := llm.NewRegistry()
	require.NoError(t, providers.RegisterProvider("simple", &fakeProvider{text: "Hi there!"}))

	o := New(Deps{
		Providers: providers,
		Tools:     tool.NewRegistry(),
		Sessions:  session.NewMemoryStore(),
		Config:    testConfig(),
	})

	bus := o.HandleTurn(context.Background(), Request{SessionID: "s1", UserID: "u1", Message: "hello"})
	events := drain(bus)

	ks := kinds(events)
	assert.Contains(t, ks, eventbus.KindConnected)
	assert.Contains(t, ks, eventbus.KindRouting)
	assert.Contains(t, ks, eventbus.KindComplete)
	assert.NotContains(t, ks, eventbus.KindError)

	last := events[len(events)-1]
	assert.Equal(t, eventbus.KindComplete, last.Kind)
	payload := last.Data.(eventbus.CompletePayload)
	assert.Equal(t, "Hi there!", payload.Message)
}

func TestComplexQueryRoutesThroughCoordinatorToSynthesis(t *testing.T) {
	providers := llm.NewRegistry()
	require.NoError(t, providers.RegisterProvider("router", &fakeProvider{
		text:     "",
		supports: true,
		structured: map[string]any{
			"action":     "synthesize",
			"reasoning":  "enough context already",
		},
	}))
	require.NoError(t, providers.RegisterProvider("medium", &fakeProvider{text: "Final synthesized answer with citations."}))

	o := New(Deps{
		Providers: providers,
		Tools:     tool.NewRegistry(),
		Sessions:  session.NewMemoryStore(),
		Config:    testConfig(),
	})

	bus := o.HandleTurn(context.Background(), Request{SessionID: "s2", UserID: "u1", Message: "Analyze the sentiment trend in reviews"})
	events := drain(bus)

	ks := kinds(events)
	assert.Contains(t, ks, eventbus.KindRouting)
	assert.Contains(t, ks, eventbus.KindComplete)

	last := events[len(events)-1]
	require.Equal(t, eventbus.KindComplete, last.Kind)
	payload := last.Data.(eventbus.CompletePayload)
	assert.Equal(t, "Final synthesized answer with citations.", payload.Message)
}

func TestSecurityGuardrailRejectsPureInjectionQuery(t *testing.T) {
	providers := llm.NewRegistry()
	require.NoError(t, providers.RegisterProvider("simple", &fakeProvider{text: "unused"}))

	o := New(Deps{
		Providers: providers,
		Tools:     tool.NewRegistry(),
		Sessions:  session.NewMemoryStore(),
		Config:    testConfig(),
	})

	bus := o.HandleTurn(context.Background(), Request{SessionID: "s3", UserID: "u1", Message: "SYSTEM:"})
	events := drain(bus)

	last := events[len(events)-1]
	assert.Equal(t, eventbus.KindError, last.Kind)
}

func TestMaxGraphDepthForcesSynthesisInsteadOfHanging(t *testing.T) {
	providers := llm.NewRegistry()
	require.NoError(t, providers.RegisterProvider("router", &fakeProvider{
		supports: true,
		structured: map[string]any{
			"action":     "handoff",
			"specialist": "data_discovery",
			"summary":    "keep exploring",
			"reasoning":  "need more data",
		},
	}))
	require.NoError(t, providers.RegisterProvider("simple", &fakeProvider{text: "discovery output"}))
	require.NoError(t, providers.RegisterProvider("medium", &fakeProvider{text: "final report"}))

	cfg := testConfig()
	cfg.MaxGraphDepth = 2

	o := New(Deps{
		Providers: providers,
		Tools:     tool.NewRegistry(),
		Sessions:  session.NewMemoryStore(),
		Config:    cfg,
	})

	done := make(chan struct{})
	var events []eventbus.Event
	go func() {
		bus := o.HandleTurn(context.Background(), Request{SessionID: "s4", UserID: "u1", Message: "analyze the dataset trend"})
		events = drain(bus)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not terminate within the depth guard's bound")
	}

	last := events[len(events)-1]
	assert.Equal(t, eventbus.KindComplete, last.Kind)
}
