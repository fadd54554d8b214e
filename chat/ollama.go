package chat

import (
	"context"

	"github.com/MuseFuze-Studios/Athisis-AI/ollama"
)

// OllamaCompleter generates replies through a local Ollama server, the
// primary backend of the Athisis client.
type OllamaCompleter struct {
	client *ollama.Client
	model  string
}

// NewOllamaCompleter creates a completer for the given chat model.
func NewOllamaCompleter(client *ollama.Client, model string) *OllamaCompleter {
	return &OllamaCompleter{client: client, model: model}
}

// Complete sends the conversation with the system prompt prepended.
func (c *OllamaCompleter) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	out := make([]ollama.ChatMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, ollama.ChatMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		out = append(out, ollama.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return c.client.Chat(ctx, c.model, out)
}
