package memory

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// index is the store's similarity search backend: an in-memory chromem-go
// collection mirroring the live set. The canonical collection stays in the
// Store; the index holds IDs, embeddings, and the text they were computed
// from. It is rebuilt from the persisted snapshot at startup.
type index struct {
	db  *chromem.DB
	col *chromem.Collection
}

func newIndex() (*index, error) {
	db := chromem.NewDB()

	col, err := db.CreateCollection(
		"memories",
		nil, // no collection metadata
		nil, // embeddings are always provided, no embedding func
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &index{db: db, col: col}, nil
}

func (ix *index) add(ctx context.Context, m *Memory) error {
	doc := chromem.Document{
		ID:        m.ID,
		Content:   m.Text,
		Embedding: m.Embedding,
		Metadata:  map[string]string{"type": string(m.Type)},
	}
	if err := ix.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

func (ix *index) remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ix.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// match is a single similarity hit.
type match struct {
	id         string
	similarity float64 // raw cosine similarity
}

// search returns up to limit matches ordered by raw cosine similarity,
// highest first. chromem-go rejects result counts larger than the collection,
// so limit is clamped to the number of indexed documents.
func (ix *index) search(ctx context.Context, embedding []float32, limit int) ([]match, error) {
	if n := ix.col.Count(); limit > n {
		limit = n
	}
	if limit <= 0 {
		return nil, nil
	}

	results, err := ix.col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	matches := make([]match, 0, len(results))
	for _, r := range results {
		matches = append(matches, match{id: r.ID, similarity: float64(r.Similarity)})
	}
	return matches, nil
}
