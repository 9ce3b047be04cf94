package vectorstore

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// pineconeProvider wraps pinecone-io/go-pinecone, directly grounded on
// the teacher's pkg/databases/pinecone.go adapter. Pinecone has no
// server-side "collection" concept the way Qdrant/chromem do; as the
// teacher does, a collection name maps onto a Pinecone index name.
type pineconeProvider struct {
	client      *pinecone.Client
	defaultName string
}

// NewPineconeProvider constructs a client against the given API key,
// defaulting the index name used when a tool call passes no collection.
func NewPineconeProvider(apiKey, defaultIndexName string) (DatabaseProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vectorstore: pinecone requires an API key")
	}
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: creating pinecone client: %w", err)
	}
	if defaultIndexName == "" {
		defaultIndexName = "insightloop-index"
	}
	return &pineconeProvider{client: client, defaultName: defaultIndexName}, nil
}

func (p *pineconeProvider) indexName(collection string) string {
	if collection != "" {
		return collection
	}
	return p.defaultName
}

func (p *pineconeProvider) connect(ctx context.Context, collection string) (*pinecone.IndexConnection, error) {
	name := p.indexName(collection)
	index, err := p.client.DescribeIndex(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: describing pinecone index %q: %w", name, err)
	}
	conn, err := p.client.Index(pinecone.NewIndexConnParams{Host: index.Host})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: connecting to pinecone index %q: %w", name, err)
	}
	return conn, nil
}

func (p *pineconeProvider) Upsert(ctx context.Context, collection, id string, vector []float32, content string, metadata map[string]any) error {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()

	merged := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		merged[k] = v
	}
	merged["content"] = content

	meta, err := structpb.NewStruct(merged)
	if err != nil {
		return fmt.Errorf("vectorstore: converting metadata: %w", err)
	}

	_, err = conn.UpsertVectors(ctx, []*pinecone.Vector{{Id: id, Values: vector, Metadata: meta}})
	if err != nil {
		return fmt.Errorf("vectorstore: upserting vector %q: %w", id, err)
	}
	return nil
}

func (p *pineconeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error) {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if topK <= 0 {
		topK = 10
	}
	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: querying pinecone: %w", err)
	}

	out := make([]SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Vector == nil {
			continue
		}
		fields := m.Vector.Metadata.GetFields()
		meta := make(map[string]any, len(fields))
		var content string
		for k, v := range fields {
			val := v.AsInterface()
			if k == "content" {
				content = fmt.Sprintf("%v", val)
				continue
			}
			meta[k] = val
		}
		out = append(out, SearchResult{ID: m.Vector.Id, Score: m.Score, Content: content, Metadata: meta})
	}
	return out, nil
}

func (p *pineconeProvider) Delete(ctx context.Context, collection, id string) error {
	conn, err := p.connect(ctx, collection)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := conn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("vectorstore: deleting vector %q: %w", id, err)
	}
	return nil
}

func (p *pineconeProvider) CreateCollection(ctx context.Context, collection string, vectorSize int) error {
	name := p.indexName(collection)
	_, err := p.client.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      name,
		Dimension: int32ptr(int32(vectorSize)),
		Metric:    pinecone.Cosine,
		Cloud:     pinecone.Aws,
		Region:    "us-east-1",
	})
	if err != nil {
		return fmt.Errorf("vectorstore: creating pinecone index %q: %w", name, err)
	}
	return nil
}

func int32ptr(v int32) *int32 { return &v }

func (p *pineconeProvider) Close() error { return nil }

var _ DatabaseProvider = (*pineconeProvider)(nil)
