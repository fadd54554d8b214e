package memory

import (
	"context"
	"errors"
	"time"
)

// Type categorizes a memory and drives its retention and admission scoring.
type Type string

const (
	TypeProfile    Type = "profile"    // who the user is
	TypePreference Type = "preference" // how the user likes things
	TypeProject    Type = "project"    // what the user is working on
	TypeFact       Type = "fact"       // general knowledge about the user's world
	TypeGlossary   Type = "glossary"   // user-specific vocabulary
	TypeTask       Type = "task"       // short-lived to-dos
)

// Memory is a single stored fact/preference/note with an embedding,
// used to augment future prompts.
type Memory struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Text        string    `json:"text"`
	SourceMsgID string    `json:"source_msg_id,omitempty"` // originating chat message, lookup only
	Timestamp   int64     `json:"timestamp"`               // epoch ms; creation or last merge
	Tags        []string  `json:"tags,omitempty"`
	Entities    []string  `json:"entities,omitempty"`
	Embedding   []float32 `json:"embedding"`
	Score       float64   `json:"score"`      // admission score at creation time
	TTL         int64     `json:"ttl"`        // lifespan in ms from Timestamp
	Confidence  float64   `json:"confidence"` // usage-weighted trust in [0,1]
}

// Expired reports whether the memory has outlived its TTL at the given time.
func (m *Memory) Expired(now time.Time) bool {
	return now.UnixMilli() > m.Timestamp+m.TTL
}

// snapshot returns a deep copy so callers can never mutate the stored entry.
func (m *Memory) snapshot() Memory {
	out := *m
	out.Tags = append([]string(nil), m.Tags...)
	out.Entities = append([]string(nil), m.Entities...)
	out.Embedding = append([]float32(nil), m.Embedding...)
	return out
}

var (
	// ErrEmbeddingUnavailable indicates the embedding backend was unreachable
	// or returned a malformed payload. Add and Query abort without mutating
	// the store when embedding fails.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrPersistence indicates the durable write failed after the in-memory
	// state already changed. There is no rollback; the caller may retry the
	// operation or accept that the change survives only until restart.
	ErrPersistence = errors.New("memory persistence failed")
)

// Embedder converts text to vector embeddings.
// Implementations: ollamaembed.Embedder (app), mock.Embedder (testing),
// embedcache.Embedder (caching decorator around either).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Persister is the durable-storage boundary: full-collection snapshot
// save/load. Load tolerates missing or malformed storage by returning an
// empty collection rather than failing startup.
type Persister interface {
	Load() ([]Memory, error)
	Save([]Memory) error
}

// nopPersister keeps the collection in memory only. Used when a Store is
// constructed without a Persister (tests, throwaway sessions).
type nopPersister struct{}

func (nopPersister) Load() ([]Memory, error) { return nil, nil }
func (nopPersister) Save([]Memory) error     { return nil }
