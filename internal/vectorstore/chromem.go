package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
)

// chromemProvider is the embedded, zero-infra default backend — no
// server to run, matching how the teacher defaults local dev setups to
// an in-process store before reaching for Qdrant/Pinecone in prod.
type chromemProvider struct {
	mu          sync.Mutex
	db          *chromem.DB
	collections map[string]*chromem.Collection
}

// NewChromemProvider returns a DatabaseProvider backed by an in-process
// chromem-go database, persisted to persistPath if non-empty.
func NewChromemProvider(persistPath string) (DatabaseProvider, error) {
	var db *chromem.DB
	var err error
	if persistPath != "" {
		db, err = chromem.NewPersistentDB(persistPath, false)
	} else {
		db = chromem.NewDB()
	}
	if err != nil {
		return nil, fmt.Errorf("vectorstore: opening chromem db: %w", err)
	}
	return &chromemProvider{db: db, collections: make(map[string]*chromem.Collection)}, nil
}

// noopEmbeddingFunc is passed to CreateCollection because this engine
// always supplies its own pre-computed embedding vectors (the caller's
// embedding model, not chromem's default OpenAI call-out); AddDocument
// here always sets Embedding explicitly so the func is never invoked.
func noopEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("vectorstore: embedding func should not be invoked; embeddings are supplied explicitly")
}

func (p *chromemProvider) collection(name string) (*chromem.Collection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.collections[name]; ok {
		return c, nil
	}
	c, err := p.db.GetOrCreateCollection(name, nil, noopEmbeddingFunc)
	if err != nil {
		return nil, err
	}
	p.collections[name] = c
	return c, nil
}

func (p *chromemProvider) Upsert(ctx context.Context, collection, id string, vector []float32, content string, metadata map[string]any) error {
	c, err := p.collection(collection)
	if err != nil {
		return err
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = fmt.Sprintf("%v", v)
	}
	return c.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: vector,
		Metadata:  meta,
	})
}

func (p *chromemProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error) {
	c, err := p.collection(collection)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	if topK > c.Count() {
		topK = c.Count()
	}
	if topK == 0 {
		return nil, nil
	}

	res, err := c.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: chromem query: %w", err)
	}

	out := make([]SearchResult, 0, len(res))
	for _, r := range res {
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		out = append(out, SearchResult{ID: r.ID, Score: r.Similarity, Content: r.Content, Metadata: meta})
	}
	return out, nil
}

func (p *chromemProvider) Delete(ctx context.Context, collection, id string) error {
	c, err := p.collection(collection)
	if err != nil {
		return err
	}
	return c.Delete(ctx, nil, nil, id)
}

func (p *chromemProvider) CreateCollection(ctx context.Context, collection string, vectorSize int) error {
	_, err := p.collection(collection)
	return err
}

func (p *chromemProvider) Close() error { return nil }

var _ DatabaseProvider = (*chromemProvider)(nil)
