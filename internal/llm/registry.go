package llm

import (
	"fmt"

	"github.com/insightloop/engine/internal/registry"
)

// Registry resolves model-tier names (e.g. config.RouterModel,
// config.SimpleModel) to a concrete Provider, grounded directly on the
// teacher's pkg/llms.LLMRegistry wrapping registry.BaseRegistry.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

// RegisterProvider names a Provider instance for later resolution by
// model-tier name (e.g. "router", "simple", "medium", "default").
func (r *Registry) RegisterProvider(name string, p Provider) error {
	if name == "" {
		return fmt.Errorf("llm: provider name cannot be empty")
	}
	if p == nil {
		return fmt.Errorf("llm: provider cannot be nil")
	}
	return r.Register(name, p)
}

// Resolve returns the Provider registered under name.
func (r *Registry) Resolve(name string) (Provider, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, fmt.Errorf("llm: no provider registered for %q: %w", name, err)
	}
	return p, nil
}
