// Package chat ties a conversation to the memory core: each turn retrieves
// relevant memories into the system prompt, calls the model backend, and
// optionally captures durable facts from the exchange. This is the host-side
// glue around the memory store; rendering stays with the caller.
package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/MuseFuze-Studios/Athisis-AI/memory"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Completer generates an assistant reply for a conversation.
// Implementations: OllamaCompleter, AnthropicCompleter.
type Completer interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// Config controls memory augmentation for a session.
type Config struct {
	// SystemPrompt is the base system prompt; retrieved memories are appended
	// beneath it.
	SystemPrompt string

	// RetrieveLimit caps how many memories augment a turn. Default: 3.
	RetrieveLimit int

	// MinSimilarity is the raw-similarity floor for augmentation, keeping
	// irrelevant memories out of the prompt. Default: 0.75.
	MinSimilarity float64

	// MinQueryLen skips retrieval for trivially short user messages.
	// Default: 10 characters.
	MinQueryLen int

	// AutoCapture summarizes memorable exchanges through the completer and
	// stores the summary as a tagged fact.
	AutoCapture bool
}

// DefaultConfig mirrors the thresholds the original client shipped with.
var DefaultConfig = Config{
	RetrieveLimit: 3,
	MinSimilarity: 0.75,
	MinQueryLen:   10,
	AutoCapture:   true,
}

// Session is one conversation augmented by the memory core.
type Session struct {
	completer Completer
	store     *memory.Store
	retriever *memory.Retriever
	cfg       Config
	history   []Message
}

// NewSession creates a session. Zero-value config fields fall back to
// DefaultConfig.
func NewSession(completer Completer, store *memory.Store, retriever *memory.Retriever, cfg Config) *Session {
	if cfg.RetrieveLimit <= 0 {
		cfg.RetrieveLimit = DefaultConfig.RetrieveLimit
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = DefaultConfig.MinSimilarity
	}
	if cfg.MinQueryLen <= 0 {
		cfg.MinQueryLen = DefaultConfig.MinQueryLen
	}
	return &Session{
		completer: completer,
		store:     store,
		retriever: retriever,
		cfg:       cfg,
	}
}

// Ask runs one turn: augment, complete, capture. Memory failures degrade the
// turn (no augmentation, no capture) but never fail it; only a completer
// failure is returned.
func (s *Session) Ask(ctx context.Context, userMsg string) (string, error) {
	userMsg = strings.TrimSpace(userMsg)
	if userMsg == "" {
		return "", nil
	}

	system := s.cfg.SystemPrompt
	if len(userMsg) > s.cfg.MinQueryLen {
		mems, err := s.retriever.Query(ctx, userMsg, s.cfg.RetrieveLimit,
			memory.WithMinSimilarity(s.cfg.MinSimilarity))
		switch {
		case err != nil:
			log.Printf("[CHAT] Memory unavailable this turn: %v", err)
		case len(mems) > 0:
			system = strings.TrimSpace(system + "\n\n" + FormatMemories(mems))
		}
	}

	s.history = append(s.history, Message{Role: RoleUser, Content: userMsg})

	reply, err := s.completer.Complete(ctx, system, s.history)
	if err != nil {
		// Keep the user turn out of history so a retry does not duplicate it.
		s.history = s.history[:len(s.history)-1]
		return "", fmt.Errorf("complete: %w", err)
	}
	s.history = append(s.history, Message{Role: RoleAssistant, Content: reply})

	if s.cfg.AutoCapture && memorable(userMsg, reply) {
		s.capture(ctx, userMsg, reply)
	}
	return reply, nil
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Message {
	return append([]Message(nil), s.history...)
}

// Reset clears the conversation, leaving stored memories untouched.
func (s *Session) Reset() {
	s.history = nil
}

// FormatMemories renders retrieved memories as a system prompt block.
func FormatMemories(mems []memory.Memory) string {
	if len(mems) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("=== RELEVANT MEMORIES ===\n")
	b.WriteString("Facts remembered from earlier conversations. Use them when they apply; never invent memories.\n")
	for i, m := range mems {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, m.Type, m.Text)
	}
	return b.String()
}

// captureSignals mark a user message as carrying a durable fact. Taken from
// the original client's automatic-memory heuristic.
var captureSignals = []string{
	"remember",
	"my name is",
	"call me",
	"i prefer",
	"i like",
	"i live",
	"i work",
	"i am ",
	"i'm ",
}

// memorable decides whether the exchange is worth capturing: a substantive
// reply plus either an explicit signal phrase or a long, information-dense
// user message.
func memorable(userMsg, reply string) bool {
	if len(reply) < 40 {
		return false
	}
	lower := strings.ToLower(userMsg)
	for _, signal := range captureSignals {
		if strings.Contains(lower, signal) {
			return true
		}
	}
	return len(userMsg) > 120
}

const capturePrompt = `Extract the single most durable fact about the user from this exchange. Reply with one short sentence containing only that fact, no preamble. If there is no durable fact, reply with exactly NONE.`

// capture summarizes the exchange through the completer and stores the
// summary as an auto-tagged fact. Failures are logged and skipped; capture
// must never break the turn.
func (s *Session) capture(ctx context.Context, userMsg, reply string) {
	exchange := fmt.Sprintf("User: %s\nAssistant: %s", userMsg, reply)
	summary, err := s.completer.Complete(ctx, capturePrompt, []Message{{Role: RoleUser, Content: exchange}})
	if err != nil {
		log.Printf("[CHAT] Automatic capture skipped: %v", err)
		return
	}
	summary = strings.TrimSpace(firstLine(summary))
	if summary == "" || strings.EqualFold(summary, "NONE") {
		return
	}

	stored, err := s.store.Add(ctx, summary, memory.TypeFact, memory.AddOptions{
		Tags: []string{"auto"},
	})
	if err != nil {
		log.Printf("[CHAT] Automatic capture failed: %v", err)
		return
	}
	if stored != nil {
		log.Printf("[CHAT] Captured memory: %s", stored.Text)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
