package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndDrain(t *testing.T) {
	bus := New(4)
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, Event{Kind: KindConnected}))
	require.NoError(t, bus.Publish(ctx, Event{Kind: KindContent, Data: ContentPayload{Content: "hello "}}))
	require.NoError(t, bus.Publish(ctx, Event{Kind: KindContent, Data: ContentPayload{Content: "world"}}))
	require.NoError(t, bus.Publish(ctx, Event{Kind: KindComplete, Data: CompletePayload{Message: "hello world"}}))
	bus.Close(ctx)

	var events []Event
	for ev := range bus.Events() {
		events = append(events, ev)
	}

	require.Len(t, events, 4)
	assert.Equal(t, KindConnected, events[0].Kind)
	assert.Equal(t, KindComplete, events[len(events)-1].Kind)

	var content string
	for _, ev := range events {
		if ev.Kind == KindContent {
			content += ev.Data.(ContentPayload).Content
		}
	}
	final := events[len(events)-1].Data.(CompletePayload)
	assert.Equal(t, final.Message, content)
}

func TestPublishAfterTerminalFails(t *testing.T) {
	bus := New(4)
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, Event{Kind: KindComplete, Data: CompletePayload{Message: "done"}}))
	err := bus.Publish(ctx, Event{Kind: KindContent, Data: ContentPayload{Content: "late"}})
	assert.ErrorIs(t, err, ErrClosed)
	bus.Close(ctx)
}

func TestDeltaCoalescingUnderBackpressure(t *testing.T) {
	bus := New(1)
	ctx := context.Background()

	// Fill the single buffer slot with a non-delta event so subsequent
	// delta publishes must coalesce rather than block.
	require.NoError(t, bus.Publish(ctx, Event{Kind: KindStatus, Data: StatusPayload{Status: "initializing"}}))

	done := make(chan error, 1)
	go func() {
		done <- bus.Publish(ctx, Event{Kind: KindContent, Data: ContentPayload{Content: "a"}})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Publish of a coalescible delta should not block")
	}
}

func TestEncodeSSE(t *testing.T) {
	frame, err := EncodeSSE(Event{Kind: KindConnected})
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"type":"connected"`)
	assert.True(t, len(frame) >= 2 && string(frame[len(frame)-2:]) == "\n\n")
}
