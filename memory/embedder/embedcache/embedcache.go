// Package embedcache wraps any memory.Embedder with a ristretto cache, so
// repeated captures and queries of the same text skip the embedding
// round-trip.
package embedcache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/MuseFuze-Studios/Athisis-AI/memory"
)

// DefaultMaxBytes bounds the cache at 32 MiB of vectors, roughly twenty
// thousand 384-dimension embeddings.
const DefaultMaxBytes = 32 << 20

// Embedder caches the inner embedder's vectors keyed by exact text.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New creates a caching decorator. maxBytes <= 0 selects DefaultMaxBytes.
func New(inner memory.Embedder, maxBytes int64) (*Embedder, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000, // ~10x the expected entry count, per ristretto guidance
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector when present, otherwise embeds through the
// inner embedder and caches the result. Failures are never cached.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return append([]float32(nil), vec...), nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(len(vec))*4)
	return vec, nil
}

// Dimensions returns the inner embedder's dimensions.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until pending cache writes are applied. Ristretto admits
// entries asynchronously; a vector embedded just now may not be readable until
// Wait returns.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close releases the cache's resources.
func (e *Embedder) Close() {
	e.cache.Close()
}
