// Package ollamaembed adapts the Ollama embeddings API to the memory.Embedder
// interface. This is the embedder the Athisis app runs against.
package ollamaembed

import (
	"context"
	"fmt"
	"sync"

	"github.com/MuseFuze-Studios/Athisis-AI/ollama"
)

// Embedder generates embeddings through an Ollama server. The embedding model
// is bound at construction; mixing vectors from different models in one store
// is undefined, so the persistence layer records the model name.
type Embedder struct {
	client *ollama.Client
	model  string

	dims     int
	dimsOnce sync.Once
	seenDims int
}

// New creates an embedder for the given model (e.g. "nomic-embed-text").
// dims may be 0 when unknown; the dimension is then learned from the first
// successful call.
func New(client *ollama.Client, model string, dims int) *Embedder {
	return &Embedder{
		client: client,
		model:  model,
		dims:   dims,
	}
}

// Embed converts a single text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embeddings(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings (%s): %w", e.model, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("ollama embeddings (%s): empty vector in response", e.model)
	}

	e.dimsOnce.Do(func() {
		e.seenDims = len(vec)
	})
	return vec, nil
}

// Dimensions returns the dimension learned from the first result, or the
// configured default.
func (e *Embedder) Dimensions() int {
	if e.seenDims > 0 {
		return e.seenDims
	}
	return e.dims
}

// Model returns the embedding model identifier, used to tag persisted
// snapshots.
func (e *Embedder) Model() string {
	return e.model
}
