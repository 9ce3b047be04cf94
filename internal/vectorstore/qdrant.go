package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// qdrantProvider wraps the official qdrant/go-client, directly grounded
// on the teacher's pkg/databases/qdrant.go adapter (collection-exists
// check, lazy collection creation, payload value conversion).
type qdrantProvider struct {
	client *qdrant.Client
	host   string
	port   int
}

// NewQdrantProvider dials a Qdrant instance at host:port.
func NewQdrantProvider(host string, port int, apiKey string, useTLS bool) (DatabaseProvider, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connecting to qdrant at %s:%d: %w", host, port, err)
	}
	return &qdrantProvider{client: client, host: host, port: port}, nil
}

func (p *qdrantProvider) Upsert(ctx context.Context, collection, id string, vector []float32, content string, metadata map[string]any) error {
	exists, err := p.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("vectorstore: checking collection %q at %s:%d: %w", collection, p.host, p.port, err)
	}
	if !exists {
		if err := p.CreateCollection(ctx, collection, len(vector)); err != nil {
			return err
		}
	}

	merged := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["content"] = content

	payload := make(map[string]*qdrant.Value, len(merged))
	for key, value := range merged {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return fmt.Errorf("vectorstore: converting metadata key %q: %w", key, err)
		}
		payload[key] = val
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(id),
		Vectors: qdrant.NewVectors(vector...),
		Payload: payload,
	}
	_, err = p.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: collection, Points: []*qdrant.PointStruct{point}})
	if err != nil {
		return fmt.Errorf("vectorstore: upserting point: %w", err)
	}
	return nil
}

func (p *qdrantProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	pointsClient := p.client.GetPointsClient()
	res, err := pointsClient.Search(ctx, &qdrant.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: searching collection %q: %w", collection, err)
	}

	out := make([]SearchResult, 0, len(res.Result))
	for _, scored := range res.Result {
		meta := make(map[string]any, len(scored.Payload))
		var content string
		for k, v := range scored.Payload {
			val := v.AsInterface()
			if k == "content" {
				content = fmt.Sprintf("%v", val)
				continue
			}
			meta[k] = val
		}
		out = append(out, SearchResult{
			ID:       pointIDString(scored.Id),
			Score:    scored.Score,
			Content:  content,
			Metadata: meta,
		})
	}
	return out, nil
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Uuid:
		return v.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num)
	default:
		return ""
	}
}

func (p *qdrantProvider) Delete(ctx context.Context, collection, id string) error {
	_, err := p.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewID(id)),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: deleting point %q: %w", id, err)
	}
	return nil
}

func (p *qdrantProvider) CreateCollection(ctx context.Context, collection string, vectorSize int) error {
	err := p.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("vectorstore: creating collection %q: %w", collection, err)
	}
	return nil
}

func (p *qdrantProvider) Close() error { return nil }

var _ DatabaseProvider = (*qdrantProvider)(nil)
