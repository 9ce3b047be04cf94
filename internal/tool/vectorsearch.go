package tool

import (
	"context"
	"fmt"

	"github.com/insightloop/engine/internal/vectorstore"
)

// NewVectorSearchDescriptor builds the vector_search tool backed by a
// vectorstore.DatabaseProvider (chromem/qdrant/pinecone, selected by
// config.VectorProvider). The query embedding is expected to already
// exist in the Environment under embedding_key (produced by an earlier
// embedding step), since this engine has no embedding model of its own
// — it orchestrates specialists, it doesn't host an encoder.
func NewVectorSearchDescriptor(store vectorstore.DatabaseProvider) Descriptor {
	return Descriptor{
		Name:             "vector_search",
		HumanDescription: "Finds the most similar review/product passages to a query embedding already present in the session Environment.",
		ParameterSchema: &ParameterSchema{
			Type:     "object",
			Required: []string{"collection", "embedding_key"},
			Properties: map[string]*ParameterSchema{
				"collection":    {Type: "string", Description: "Vector collection/index to search."},
				"embedding_key": {Type: "string", Description: "Environment key holding the query embedding vector."},
				"top_k":         {Type: "integer", Description: "Number of matches to return (default 10)."},
			},
		},
		CapabilitySet: []string{"vector_search"},
		Handler: func(ctx context.Context, args map[string]any, tc *Context) (Result, error) {
			collection, _ := args["collection"].(string)
			embeddingKey, _ := args["embedding_key"].(string)
			topK := 10
			if v, ok := args["top_k"].(float64); ok {
				topK = int(v)
			}

			raw, ok := tc.Environment.Get(embeddingKey)
			if !ok {
				return Result{Success: false, Summary: fmt.Sprintf("embedding key %q not found in Environment", embeddingKey)}, nil
			}
			vector, err := toFloat32Vector(raw)
			if err != nil {
				return Result{Success: false, Summary: fmt.Sprintf("embedding key %q is not a numeric vector: %s", embeddingKey, err)}, nil
			}

			results, err := store.Search(ctx, collection, vector, topK)
			if err != nil {
				return Result{}, err
			}

			hits := make([]map[string]any, 0, len(results))
			for _, r := range results {
				hits = append(hits, map[string]any{
					"id": r.ID, "score": r.Score, "content": r.Content, "metadata": r.Metadata,
				})
			}

			return Result{
				Success: true,
				Summary: fmt.Sprintf("found %d matches in %q", len(hits), collection),
				Data:    map[string]any{"results": hits},
			}, nil
		},
	}
}

func toFloat32Vector(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case []float32:
		return v, nil
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out, nil
	case [][]float64:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty embedding matrix")
		}
		return toFloat32Vector(v[0])
	case []any:
		out := make([]float32, len(v))
		for i, f := range v {
			n, ok := f.(float64)
			if !ok {
				return nil, fmt.Errorf("non-numeric vector element at index %d", i)
			}
			out[i] = float32(n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported vector type %T", raw)
	}
}
