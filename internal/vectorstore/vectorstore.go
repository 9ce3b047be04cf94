// Package vectorstore defines the DatabaseProvider abstraction for
// similarity search over embedded review/product text, directly
// grounded on the teacher's pkg/databases.DatabaseProvider interface
// and DatabaseRegistry, generalized to the three selectable backends
// named in SPEC_FULL.md's DOMAIN STACK: chromem-go (embedded, default
// for local/dev), Qdrant, and Pinecone.
package vectorstore

import (
	"context"

	"github.com/insightloop/engine/internal/registry"
)

// SearchResult is one hit from a similarity search.
type SearchResult struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
}

// DatabaseProvider is the vector-store contract every backend adapter
// implements, unchanged in shape from the teacher's pkg/databases one.
type DatabaseProvider interface {
	Upsert(ctx context.Context, collection, id string, vector []float32, content string, metadata map[string]any) error
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error)
	Delete(ctx context.Context, collection, id string) error
	CreateCollection(ctx context.Context, collection string, vectorSize int) error
	Close() error
}

// Registry selects a DatabaseProvider by backend name ("chromem",
// "qdrant", "pinecone"), mirroring pkg/databases.DatabaseRegistry.
type Registry struct {
	*registry.BaseRegistry[DatabaseProvider]
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[DatabaseProvider]()}
}
