// Package mock provides deterministic embedders for tests and offline use.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// Dimensions matches the nomic-embed-text-class models the app targets in
// miniature; any consistent size works for the store.
const Dimensions = 384

// Embedder generates deterministic unit vectors from a hash of the text.
// Identical texts always embed identically; different texts land far apart,
// so hash embeddings exercise identity but not semantic similarity.
type Embedder struct {
	dims int
}

// New creates a hash-based embedder with the default dimensions.
func New() *Embedder {
	return &Embedder{dims: Dimensions}
}

// Embed creates a deterministic embedding from the text hash.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, e.dims)
	for i := range embedding {
		// Simple LCG keyed by the hash.
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// Static maps exact texts to canned vectors, falling back to hash embeddings
// for anything unmapped. Tests use it to force near-duplicates and controlled
// similarities between otherwise unrelated strings.
type Static struct {
	vectors  map[string][]float32
	fallback *Embedder
}

// NewStatic creates a canned-vector embedder of the given dimensions.
func NewStatic(dims int, vectors map[string][]float32) *Static {
	return &Static{
		vectors:  vectors,
		fallback: &Embedder{dims: dims},
	}
}

// Embed returns the canned vector for the text, or a hash embedding.
func (s *Static) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := s.vectors[text]; ok {
		return append([]float32(nil), vec...), nil
	}
	return s.fallback.Embed(ctx, text)
}

// Dimensions returns the embedding size.
func (s *Static) Dimensions() int {
	return s.fallback.dims
}

// normalize converts the embedding to a unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
