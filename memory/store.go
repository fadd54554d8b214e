package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DedupThreshold is the cosine similarity above which a candidate is folded
// into an existing memory instead of stored as a second entry.
const DedupThreshold = 0.9

// ReinforceStep is the confidence increase applied per retrieval, saturating
// at 1.
const ReinforceStep = 0.1

// DefaultConfidence seeds new memories when the caller supplies no override.
const DefaultConfidence = 0.5

// Store owns the memory collection. All mutation goes through its methods;
// callers only ever receive copies, so the admission, dedup, and TTL
// invariants cannot be bypassed from outside.
//
// Concurrency contract: Add is serialized end to end (embedding round-trip
// included) by a per-store mutex, so deduplication is exactly-once — two
// concurrent Adds of near-identical text can never both be stored.
type Store struct {
	embedder  Embedder
	persister Persister
	scorer    Scorer
	retention RetentionPolicy

	addMu sync.Mutex // serializes Add end to end

	mu       sync.Mutex
	memories []*Memory // insertion order
	byID     map[string]*Memory
	index    *index

	subMu       sync.Mutex
	subscribers map[int]func()
	nextSubID   int
	onAdded     func(Memory)
}

// Option configures the store.
type Option func(*Store)

// WithScorer replaces the default admission policy.
func WithScorer(sc Scorer) Option {
	return func(s *Store) {
		s.scorer = sc
	}
}

// WithRetention replaces the default TTL table.
func WithRetention(p RetentionPolicy) Option {
	return func(s *Store) {
		s.retention = p
	}
}

// NewStore loads the persisted collection and builds the similarity index.
// A nil persister keeps the collection in memory only. Missing or malformed
// storage starts an empty store, never an error.
func NewStore(embedder Embedder, persister Persister, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if persister == nil {
		persister = nopPersister{}
	}

	s := &Store{
		embedder:    embedder,
		persister:   persister,
		scorer:      WeightedScorer{},
		retention:   DefaultRetention,
		byID:        make(map[string]*Memory),
		subscribers: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}

	ix, err := newIndex()
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	s.index = ix

	loaded, err := persister.Load()
	if err != nil {
		log.Printf("[MEMORY] Starting with empty collection: %v", err)
		loaded = nil
	}
	for i := range loaded {
		m := loaded[i]
		if m.ID == "" || s.byID[m.ID] != nil {
			continue
		}
		m.Confidence = clamp01(m.Confidence)
		if err := ix.add(context.Background(), &m); err != nil {
			log.Printf("[MEMORY] Skipping unindexable memory %s: %v", m.ID, err)
			continue
		}
		s.memories = append(s.memories, &m)
		s.byID[m.ID] = &m
	}
	log.Printf("[MEMORY] Loaded %d memories", len(s.memories))

	return s, nil
}

// AddOptions carries the optional attributes of Store.Add.
type AddOptions struct {
	SourceMsgID string
	Tags        []string
	Entities    []string
	TTL         int64   // ms; <= 0 means the retention default for the type
	Confidence  float64 // initial confidence; <= 0 means DefaultConfidence
}

// Add embeds the text, checks it against the live collection for a
// near-duplicate, gates it on the admission score, and either merges it into
// the existing entry or stores it as a new memory. It returns nil (and no
// error) when the text is empty or the score falls below SaveThreshold.
//
// An embedding failure aborts with ErrEmbeddingUnavailable and no mutation.
// A persistence failure after mutation returns the memory together with an
// ErrPersistence-wrapped error; the in-memory state stands.
func (s *Store) Add(ctx context.Context, text string, typ Type, opts AddOptions) (*Memory, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	s.addMu.Lock()
	defer s.addMu.Unlock()

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed %q: %w: %v", truncateLog(text, 40), ErrEmbeddingUnavailable, err)
	}

	s.mu.Lock()
	evicted := s.sweepLocked(ctx)

	dup, sim, err := s.nearestLocked(ctx, embedding)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	recurring := dup != nil && sim > DedupThreshold

	score := s.scorer.Score(text, typ, recurring)
	if score < SaveThreshold {
		var perr error
		if evicted > 0 {
			perr = s.persistLocked()
		}
		s.mu.Unlock()
		if evicted > 0 {
			s.notify()
		}
		log.Printf("[MEMORY] Discarded candidate below save threshold: score=%.2f, text=%q",
			score, truncateLog(text, 40))
		return nil, perr
	}

	var result Memory
	if recurring {
		now := time.Now().UnixMilli()
		dup.Text = text
		dup.Timestamp = now
		dup.Tags = unionStrings(dup.Tags, opts.Tags)
		dup.Entities = unionStrings(dup.Entities, opts.Entities)
		if c := clamp01(opts.Confidence); c > dup.Confidence {
			dup.Confidence = c
		}
		// The existing ID and embedding are retained; only the text, the
		// merged sets, and the timestamp change.
		result = dup.snapshot()
		log.Printf("[MEMORY] Merged near-duplicate into %s (similarity=%.3f)", dup.ID, sim)
	} else {
		ttl := opts.TTL
		if ttl <= 0 {
			ttl = s.retention.TTL(typ)
		}
		conf := opts.Confidence
		if conf <= 0 {
			conf = DefaultConfidence
		}
		m := &Memory{
			ID:          uuid.New().String(),
			Type:        typ,
			Text:        text,
			SourceMsgID: opts.SourceMsgID,
			Timestamp:   time.Now().UnixMilli(),
			Tags:        unionStrings(nil, opts.Tags),
			Entities:    unionStrings(nil, opts.Entities),
			Embedding:   embedding,
			Score:       score,
			TTL:         ttl,
			Confidence:  clamp01(conf),
		}
		if err := s.index.add(ctx, m); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("index memory: %w", err)
		}
		s.memories = append(s.memories, m)
		s.byID[m.ID] = m
		result = m.snapshot()
		log.Printf("[MEMORY] Stored %s memory %s (score=%.2f): %q",
			typ, m.ID, score, truncateLog(text, 50))
	}

	perr := s.persistLocked()
	s.mu.Unlock()

	s.notify()
	s.notifyAdded(result)
	return &result, perr
}

// GetAll returns the live collection in insertion order. It runs the
// expiration sweep first and persists if anything was evicted.
func (s *Store) GetAll(ctx context.Context) ([]Memory, error) {
	s.mu.Lock()
	evicted := s.sweepLocked(ctx)
	var perr error
	if evicted > 0 {
		perr = s.persistLocked()
	}
	out := make([]Memory, 0, len(s.memories))
	for _, m := range s.memories {
		out = append(out, m.snapshot())
	}
	s.mu.Unlock()

	if evicted > 0 {
		s.notify()
	}
	return out, perr
}

// Delete removes the memory if present and persists. Deleting an absent ID is
// a no-op, not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.byID[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	s.removeLocked(ctx, id)
	perr := s.persistLocked()
	s.mu.Unlock()

	s.notify()
	return perr
}

// ClearAll empties the store and persists.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.memories))
	for _, m := range s.memories {
		ids = append(ids, m.ID)
	}
	if err := s.index.remove(ctx, ids...); err != nil {
		log.Printf("[MEMORY] Index clear: %v", err)
	}
	s.memories = nil
	s.byID = make(map[string]*Memory)
	perr := s.persistLocked()
	s.mu.Unlock()

	s.notify()
	return perr
}

// Reinforce raises the memory's confidence by ReinforceStep, saturating at 1,
// and persists. Reinforcing an absent ID is a no-op.
func (s *Store) Reinforce(id string) error {
	return s.reinforceAll([]string{id})
}

// reinforceAll applies ReinforceStep to each present ID with a single persist
// and a single notification. Used by the Retriever after ranking.
func (s *Store) reinforceAll(ids []string) error {
	s.mu.Lock()
	changed := false
	for _, id := range ids {
		if m, ok := s.byID[id]; ok {
			m.Confidence = clamp01(m.Confidence + ReinforceStep)
			changed = true
		}
	}
	var perr error
	if changed {
		perr = s.persistLocked()
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return perr
}

// Len reports the live memory count after a sweep.
func (s *Store) Len(ctx context.Context) int {
	ms, _ := s.GetAll(ctx)
	return len(ms)
}

// Export returns the live collection as JSON, the original app's memory
// export format.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	ms, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ms)
}

// Import re-adds exported memories through the normal admission path (dedup
// and score gate included) and reports how many were accepted.
func (s *Store) Import(ctx context.Context, data []byte) (int, error) {
	var ms []Memory
	if err := json.Unmarshal(data, &ms); err != nil {
		return 0, fmt.Errorf("decode import: %w", err)
	}
	added := 0
	for _, m := range ms {
		stored, err := s.Add(ctx, m.Text, m.Type, AddOptions{
			SourceMsgID: m.SourceMsgID,
			Tags:        m.Tags,
			Entities:    m.Entities,
		})
		if err != nil {
			return added, err
		}
		if stored != nil {
			added++
		}
	}
	return added, nil
}

// Subscribe registers fn to run after every collection change (add, delete,
// clear, reinforce, sweep eviction). The returned function cancels the
// subscription.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// SetOnAdded registers a callback fired with each newly stored or merged
// memory. Distinct from Subscribe: it carries the memory itself, so a UI can
// surface a one-shot "remembered X" event without re-subscribing per render.
func (s *Store) SetOnAdded(fn func(Memory)) {
	s.subMu.Lock()
	s.onAdded = fn
	s.subMu.Unlock()
}

// sweepLocked evicts expired memories and returns how many were removed.
// Expiration is only ever checked here, lazily; there is no background timer.
func (s *Store) sweepLocked(ctx context.Context) int {
	now := time.Now()
	var expired []string
	for _, m := range s.memories {
		if m.Expired(now) {
			expired = append(expired, m.ID)
		}
	}
	for _, id := range expired {
		s.removeLocked(ctx, id)
	}
	if len(expired) > 0 {
		log.Printf("[MEMORY] Swept %d expired memories", len(expired))
	}
	return len(expired)
}

func (s *Store) removeLocked(ctx context.Context, id string) {
	if err := s.index.remove(ctx, id); err != nil {
		log.Printf("[MEMORY] Index removal of %s: %v", id, err)
	}
	delete(s.byID, id)
	for i, m := range s.memories {
		if m.ID == id {
			s.memories = append(s.memories[:i], s.memories[i+1:]...)
			break
		}
	}
}

// nearestLocked returns the live memory closest to the embedding, if any.
func (s *Store) nearestLocked(ctx context.Context, embedding []float32) (*Memory, float64, error) {
	matches, err := s.index.search(ctx, embedding, 1)
	if err != nil {
		return nil, 0, fmt.Errorf("dedup lookup: %w", err)
	}
	if len(matches) == 0 {
		return nil, 0, nil
	}
	m, ok := s.byID[matches[0].id]
	if !ok {
		return nil, 0, nil
	}
	return m, matches[0].similarity, nil
}

func (s *Store) persistLocked() error {
	ms := make([]Memory, 0, len(s.memories))
	for _, m := range s.memories {
		ms = append(ms, m.snapshot())
	}
	if err := s.persister.Save(ms); err != nil {
		log.Printf("[MEMORY] Persist failed, in-memory state retained: %v", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *Store) notifyAdded(m Memory) {
	s.subMu.Lock()
	fn := s.onAdded
	s.subMu.Unlock()

	if fn != nil {
		fn(m)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// unionStrings merges b into a, preserving order and dropping duplicates and
// blanks.
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range a {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
