package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct{ name string }

func (f *fakeProvider) Chat(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	ch := make(chan StreamEvent, 1)
	ch <- StreamEvent{Kind: StreamFinal, Final: &FinalResponse{Text: f.name}}
	close(ch)
	return ch, nil
}
func (f *fakeProvider) HealthCheck(ctx context.Context) bool { return true }
func (f *fakeProvider) SupportsStructuredOutput() bool       { return false }

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterProvider("router", &fakeProvider{name: "router-model"}))

	p, err := r.Resolve("router")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count())

	ch, err := p.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	ev := <-ch
	assert.Equal(t, "router-model", ev.Final.Text)
}

func TestRegistryResolveMissingFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("missing")
	assert.Error(t, err)
}

func TestRegistryRejectsEmptyNameOrNilProvider(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.RegisterProvider("", &fakeProvider{}))
	assert.Error(t, r.RegisterProvider("x", nil))
}
