package file_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/MuseFuze-Studios/Athisis-AI/memory"
	"github.com/MuseFuze-Studios/Athisis-AI/memory/persist/file"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memories.json")
	adapter := file.New(path, "nomic-embed-text")

	want := []memory.Memory{
		{
			ID:          "m-1",
			Type:        memory.TypePreference,
			Text:        "User prefers dark mode",
			SourceMsgID: "msg-42",
			Timestamp:   time.Now().UnixMilli(),
			Tags:        []string{"ui", "theme"},
			Entities:    []string{"dark mode"},
			Embedding:   []float32{0.1, -0.2, 0.3},
			Score:       0.68,
			TTL:         1000,
			Confidence:  0.7,
		},
		{
			ID:         "m-2",
			Type:       memory.TypeProfile,
			Text:       "User's name is Jordan",
			Timestamp:  time.Now().UnixMilli(),
			Embedding:  []float32{-0.5, 0.5, 0},
			Score:      0.68,
			TTL:        memory.TTLNever,
			Confidence: 0.5,
		},
	}

	if err := adapter.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := adapter.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestSaveWritesVersionAndModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memories.json")
	adapter := file.New(path, "nomic-embed-text")

	if err := adapter.Save(nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var snap struct {
		Version        int    `json:"version"`
		EmbeddingModel string `json:"embedding_model"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Version != file.SchemaVersion {
		t.Errorf("version = %d, want %d", snap.Version, file.SchemaVersion)
	}
	if snap.EmbeddingModel != "nomic-embed-text" {
		t.Errorf("embedding_model = %q", snap.EmbeddingModel)
	}
}

func TestSaveCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "memories.json")
	adapter := file.New(path, "")

	if err := adapter.Save([]memory.Memory{{ID: "m-1", Text: "x"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	adapter := file.New(filepath.Join(t.TempDir(), "absent.json"), "")

	got, err := adapter.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d memories from missing file", len(got))
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memories.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	adapter := file.New(path, "")

	got, err := adapter.Load()
	if err != nil {
		t.Fatalf("malformed snapshot must not fail startup: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d memories from malformed file", len(got))
	}
}

func TestLoadLegacyBareArray(t *testing.T) {
	// The original client stored a bare array with the text under "content".
	legacy := `[
		{"id": "legacy-1", "content": "User prefers dark mode", "type": "preference"},
		{"id": "legacy-2", "content": "User lives in Berlin"},
		{"content": "no id, skipped"}
	]`
	path := filepath.Join(t.TempDir(), "memories.json")
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	adapter := file.New(path, "")

	got, err := adapter.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d migrated memories, want 2", len(got))
	}

	first := got[0]
	if first.ID != "legacy-1" || first.Text != "User prefers dark mode" {
		t.Errorf("migrated record = %+v", first)
	}
	if first.Type != memory.TypePreference {
		t.Errorf("type = %s, want preference", first.Type)
	}
	if first.TTL != memory.DefaultRetention.TTL(memory.TypePreference) {
		t.Errorf("ttl not defaulted: %d", first.TTL)
	}
	if first.Confidence != memory.DefaultConfidence {
		t.Errorf("confidence not defaulted: %v", first.Confidence)
	}
	if first.Timestamp <= 0 {
		t.Error("timestamp not defaulted")
	}

	if got[1].Type != memory.TypeFact {
		t.Errorf("absent type should default to fact, got %s", got[1].Type)
	}
}

func TestLoadSkipsUndecodableRecords(t *testing.T) {
	blob := `{"version": 1, "memories": [
		{"id": "good", "text": "kept"},
		{"id": "", "text": "no id, dropped"},
		"not even an object"
	]}`
	path := filepath.Join(t.TempDir(), "memories.json")
	if err := os.WriteFile(path, []byte(blob), 0o644); err != nil {
		t.Fatal(err)
	}
	adapter := file.New(path, "")

	got, err := adapter.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "good" {
		t.Errorf("got %+v, want the single valid record", got)
	}
}
