package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/insightloop/engine/internal/tool"
)

// canonicalArgsKey produces a stable cache key for a (tool_name,
// arguments) pair, independent of map key ordering, per spec.md §4.6's
// "identical (tool_name, canonicalized_arguments) tuples invoked within
// one turn return the cached ToolResult" dedup invariant.
func canonicalArgsKey(name string, args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]any, len(args))
	for _, k := range keys {
		ordered[k] = args[k]
	}
	payload, err := json.Marshal(ordered)
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", args))
	}

	sum := sha256.Sum256(append([]byte(name+":"), payload...))
	return hex.EncodeToString(sum[:])
}

// dedupCache is the per-turn tool-call memoization table.
type dedupCache struct {
	mu    sync.Mutex
	cache map[string]tool.Result
	hits  int
}

func newDedupCache() *dedupCache {
	return &dedupCache{cache: make(map[string]tool.Result)}
}

// wrapForDedup builds a fresh tool.Registry whose descriptors proxy to
// base's handlers but skip re-execution for a (name, canonicalized
// arguments) pair already seen this turn, per spec.md §4.6's
// tool-call-deduplication rule. The wrapping is done at registry
// construction time rather than inside tool.Registry.Invoke itself,
// since deduplication is a per-turn orchestrator policy, not a property
// of the process-global tool registry (spec.md §4.1's registry is
// explicitly "read-only after startup... the orchestrator may
// deduplicate").
func (d *dedupCache) wrapForDedup(base *tool.Registry) *tool.Registry {
	turnRegistry := tool.NewRegistry()
	for _, desc := range base.All() {
		desc := desc
		wrapped := desc
		wrapped.Handler = func(ctx context.Context, args map[string]any, tc *tool.Context) (tool.Result, error) {
			key := canonicalArgsKey(desc.Name, args)

			d.mu.Lock()
			if cached, ok := d.cache[key]; ok {
				d.hits++
				d.mu.Unlock()
				return cached, nil
			}
			d.mu.Unlock()

			res, err := desc.Handler(ctx, args, tc)
			if err != nil {
				return res, err
			}

			d.mu.Lock()
			d.cache[key] = res
			d.mu.Unlock()
			return res, nil
		}
		_ = turnRegistry.Register(wrapped)
	}
	return turnRegistry
}
