package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// DefaultQueryLimit is used when Query is called with a non-positive limit.
const DefaultQueryLimit = 3

// similarityWeight and recencyWeight blend the retrieval ranking:
//
//	blended = 0.8*cosine + 0.2*recencyFactor
//	recencyFactor = 1 - min((now - timestamp)/ttl, 1)
const (
	similarityWeight = 0.8
	recencyWeight    = 0.2
)

// Retriever ranks the store's live memories against a query and reinforces
// whatever it returns: frequently recalled memories gain confidence,
// counteracting TTL decay.
type Retriever struct {
	store *Store
}

// NewRetriever creates a Retriever over the store. Queries are embedded with
// the store's own embedder, so query and memory vectors always share a model.
func NewRetriever(store *Store) *Retriever {
	return &Retriever{store: store}
}

// QueryOption configures a single Query call.
type QueryOption func(*queryConfig)

type queryConfig struct {
	hasMinSimilarity bool
	minSimilarity    float64
}

// WithMinSimilarity drops results whose raw cosine similarity (not the
// blended score) falls below min. Prompt augmentation uses this to avoid
// injecting irrelevant context.
func WithMinSimilarity(min float64) QueryOption {
	return func(c *queryConfig) {
		c.hasMinSimilarity = true
		c.minSimilarity = min
	}
}

// Query returns up to limit live memories, most relevant first. Empty query
// text returns an empty result; an embedding failure propagates as
// ErrEmbeddingUnavailable with no state change.
func (r *Retriever) Query(ctx context.Context, text string, limit int, opts ...QueryOption) ([]Memory, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	var cfg queryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	embedding, err := r.store.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query %q: %w: %v", truncateLog(text, 40), ErrEmbeddingUnavailable, err)
	}

	s := r.store
	s.mu.Lock()
	evicted := s.sweepLocked(ctx)
	if evicted > 0 {
		if err := s.persistLocked(); err != nil {
			log.Printf("[MEMORY] Persist after query sweep: %v", err)
		}
	}

	// Rank every live memory; the index returns raw similarities, the blend
	// adds the recency term.
	matches, err := s.index.search(ctx, embedding, len(s.memories))
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	now := time.Now().UnixMilli()

	type candidate struct {
		m       Memory
		blended float64
	}
	candidates := make([]candidate, 0, len(matches))
	for _, hit := range matches {
		if cfg.hasMinSimilarity && hit.similarity < cfg.minSimilarity {
			continue
		}
		m, ok := s.byID[hit.id]
		if !ok {
			continue
		}
		blended := similarityWeight*hit.similarity + recencyWeight*recencyFactor(m, now)
		candidates = append(candidates, candidate{m: m.snapshot(), blended: blended})
	}
	s.mu.Unlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].blended > candidates[j].blended
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	if evicted > 0 {
		s.notify()
	}

	out := make([]Memory, 0, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.m)
		ids = append(ids, c.m.ID)
	}

	log.Printf("[MEMORY] Retrieved %d memories for query %q", len(out), truncateLog(text, 50))

	// Retrieval strengthens confidence.
	if err := s.reinforceAll(ids); err != nil {
		log.Printf("[MEMORY] Reinforcement persist: %v", err)
	}

	return out, nil
}

// recencyFactor decays linearly from 1 at creation to 0 at expiry.
func recencyFactor(m *Memory, now int64) float64 {
	if m.TTL <= 0 {
		return 1
	}
	age := float64(now-m.Timestamp) / float64(m.TTL)
	if age < 0 {
		age = 0
	}
	if age > 1 {
		age = 1
	}
	return 1 - age
}
