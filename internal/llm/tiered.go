package llm

import "context"

// tieredProvider pins every request routed through it to a fixed real
// model id, so a Registry can expose spec.md's tier names ("router",
// "simple", "medium", "default") as resolvable provider keys while the
// underlying wire adapter (AnthropicProvider, GeminiProvider, ...)
// still receives the concrete model string config.EngineConfig names
// for that tier (e.g. "claude-haiku-4-5").
type tieredProvider struct {
	Provider
	model string
}

// WithModel wraps p so every ChatRequest it handles has Model
// overwritten with model, regardless of what the caller set — this is
// how cmd/enginectl binds config.EngineConfig's SimpleModel/MediumModel/
// DefaultModel/RouterModel to one shared provider instance per vendor.
func WithModel(p Provider, model string) Provider {
	return &tieredProvider{Provider: p, model: model}
}

func (t *tieredProvider) Chat(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	req.Model = t.model
	return t.Provider.Chat(ctx, req)
}
