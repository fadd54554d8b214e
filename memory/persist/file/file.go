// Package file persists the memory collection as a versioned JSON snapshot on
// disk, the SDK equivalent of the original app's localStorage blob.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/MuseFuze-Studios/Athisis-AI/memory"
)

// SchemaVersion tags the snapshot layout. Version 0 is the legacy
// localStorage dump: a bare array of records with a "content" field.
const SchemaVersion = 1

// Adapter implements memory.Persister over a single JSON file. Save is a
// full-collection overwrite via an atomic rename; Load tolerates missing or
// malformed storage by returning an empty collection.
type Adapter struct {
	path  string
	model string // embedding model the snapshot's vectors belong to
}

// New creates an adapter writing to path. embeddingModel tags the snapshot so
// a later load under a different model can be flagged; it may be empty.
func New(path, embeddingModel string) *Adapter {
	return &Adapter{path: path, model: embeddingModel}
}

type snapshot struct {
	Version        int               `json:"version"`
	EmbeddingModel string            `json:"embedding_model,omitempty"`
	SavedAt        int64             `json:"saved_at,omitempty"` // epoch ms
	Memories       []json.RawMessage `json:"memories"`
}

// Load reads the snapshot, migrating each record to the current schema.
// A missing file or undecodable blob yields an empty collection, never an
// error that prevents startup.
func (a *Adapter) Load() ([]memory.Memory, error) {
	data, err := os.ReadFile(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		log.Printf("[PERSIST] Unreadable snapshot at %s, starting empty: %v", a.path, err)
		return nil, nil
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.Version == 0 && snap.Memories == nil {
		// Legacy layout: a bare array of records.
		var legacy []json.RawMessage
		if err2 := json.Unmarshal(data, &legacy); err2 != nil {
			log.Printf("[PERSIST] Malformed snapshot at %s, starting empty: %v", a.path, err)
			return nil, nil
		}
		snap = snapshot{Version: 0, Memories: legacy}
	}

	if snap.EmbeddingModel != "" && a.model != "" && snap.EmbeddingModel != a.model {
		log.Printf("[PERSIST] Snapshot embeddings were produced by %q but the current embedder is %q; similarity against them is unreliable",
			snap.EmbeddingModel, a.model)
	}

	out := make([]memory.Memory, 0, len(snap.Memories))
	for i, raw := range snap.Memories {
		m, err := migrate(raw, snap.Version)
		if err != nil {
			log.Printf("[PERSIST] Skipping record #%d: %v", i+1, err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Save overwrites the snapshot with the full collection. The write goes to a
// temp file first and is renamed into place so a crash mid-write never
// corrupts the previous snapshot.
func (a *Adapter) Save(ms []memory.Memory) error {
	raws := make([]json.RawMessage, 0, len(ms))
	for i := range ms {
		raw, err := json.Marshal(&ms[i])
		if err != nil {
			return fmt.Errorf("encode memory %s: %w", ms[i].ID, err)
		}
		raws = append(raws, raw)
	}

	data, err := json.Marshal(snapshot{
		Version:        SchemaVersion,
		EmbeddingModel: a.model,
		SavedAt:        time.Now().UnixMilli(),
		Memories:       raws,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// migrate upgrades a raw persisted record from the given schema version to
// the current Memory shape, patching absent fields with defaults so old
// snapshots keep loading across schema drift.
func migrate(raw json.RawMessage, fromVersion int) (memory.Memory, error) {
	var m memory.Memory
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("decode record: %w", err)
	}

	if fromVersion < 1 && m.Text == "" {
		// Version 0 stored the text under "content".
		var legacy struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(raw, &legacy); err == nil {
			m.Text = legacy.Content
		}
	}

	if m.ID == "" {
		return m, fmt.Errorf("record has no id")
	}
	if m.Text == "" {
		return m, fmt.Errorf("record %s has no text", m.ID)
	}
	if m.Type == "" {
		m.Type = memory.TypeFact
	}
	if m.Timestamp <= 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
	if m.TTL <= 0 {
		m.TTL = memory.DefaultRetention.TTL(m.Type)
	}
	if m.Confidence <= 0 {
		m.Confidence = memory.DefaultConfidence
	}
	if m.Score <= 0 {
		m.Score = memory.SaveThreshold
	}
	return m, nil
}
