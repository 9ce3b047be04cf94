package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type modelCapturingProvider struct{ lastModel string }

func (p *modelCapturingProvider) Chat(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	p.lastModel = req.Model
	ch := make(chan StreamEvent, 1)
	ch <- StreamEvent{Kind: StreamFinal, Final: &FinalResponse{Text: "ok"}}
	close(ch)
	return ch, nil
}
func (p *modelCapturingProvider) HealthCheck(ctx context.Context) bool { return true }
func (p *modelCapturingProvider) SupportsStructuredOutput() bool      { return true }

func TestWithModelOverridesRequestModel(t *testing.T) {
	inner := &modelCapturingProvider{}
	tiered := WithModel(inner, "claude-haiku-4-5")

	_, err := tiered.Chat(context.Background(), ChatRequest{Model: "simple"})
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4-5", inner.lastModel)
	assert.True(t, tiered.SupportsStructuredOutput())
}
