package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/insightloop/engine/internal/registry"
)

// ErrDuplicateTool is returned by Register when the name already exists.
var ErrDuplicateTool = errors.New("tool: duplicate name")

// ErrUnknownTool is returned by Get/Invoke when the name is not registered.
var ErrUnknownTool = errors.New("tool: unknown name")

// Registry holds tool descriptors keyed by name, populated once at
// startup and read concurrently thereafter (spec.md §5: "process-global
// and read-only after startup; no synchronization needed on the hot
// path" — the underlying BaseRegistry still takes a read lock, which is
// cheap and keeps the implementation honest under concurrent specialists
// within one turn).
type Registry struct {
	base *registry.BaseRegistry[Descriptor]
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Descriptor]()}
}

// Register adds a tool descriptor. It fails with ErrDuplicateTool if the
// name is already registered, per spec.md §4.1.
func (r *Registry) Register(d Descriptor) error {
	if _, err := r.base.Get(d.Name); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, d.Name)
	}
	return r.base.Register(d.Name, d)
}

// Get retrieves a descriptor by name.
func (r *Registry) Get(name string) (Descriptor, error) {
	d, err := r.base.Get(name)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return d, nil
}

// ListFor returns every tool whose capability set is a subset of the
// caller-supplied capabilities (spec.md §4.1 "list_for"), used to curate
// the tool subset a specialist may see (spec.md §4.5).
func (r *Registry) ListFor(capabilities []string) []Descriptor {
	allowed := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		allowed[c] = true
	}
	var out []Descriptor
	for _, d := range r.base.List() {
		if isSubset(d.CapabilitySet, allowed) {
			out = append(out, d)
		}
	}
	return out
}

func isSubset(set []string, allowed map[string]bool) bool {
	for _, s := range set {
		if !allowed[s] {
			return false
		}
	}
	return true
}

// Invoke validates arguments and executes the named tool, wrapping the
// handler call in a timer and an error boundary: any returned error or
// handler panic is converted into a failed Result rather than propagated,
// per spec.md §4.1.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, tc *Context) (result Result, err error) {
	d, getErr := r.Get(name)
	if getErr != nil {
		return Result{}, getErr
	}

	if valErr := ValidateArguments(name, d.ParameterSchema, args); valErr != nil {
		return Result{}, valErr
	}

	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			result = Result{
				Success:    false,
				Summary:    fmt.Sprintf("Tool execution failed: %v", rec),
				Error:      fmt.Sprintf("%v", rec),
				DurationMs: time.Since(start).Milliseconds(),
			}
			err = nil
		}
	}()

	res, handlerErr := d.Handler(ctx, args, tc)
	res.DurationMs = time.Since(start).Milliseconds()

	if handlerErr != nil {
		return Result{
			Success:    false,
			Summary:    fmt.Sprintf("Tool execution failed: %s", handlerErr.Error()),
			Error:      handlerErr.Error(),
			DurationMs: res.DurationMs,
		}, nil
	}

	return res, nil
}

// Count reports the number of registered tools, mainly for diagnostics
// and tests.
func (r *Registry) Count() int {
	return r.base.Count()
}

// All returns every registered descriptor, in unspecified order. Used by
// the orchestrator (C6) to build a per-turn deduplicating proxy registry
// (spec.md §4.6) without needing to know every capability tag up front.
func (r *Registry) All() []Descriptor {
	return r.base.List()
}
