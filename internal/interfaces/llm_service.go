package interfaces

import "context"

// Message is one turn of a chat-style LLM exchange.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// LLMService is the Classifier's dependency on an external model. The
// heuristic fallback in the classifier package must independently produce
// a valid label, so this interface stays narrow: a timeout or error here
// only ever degrades classification quality, never correctness.
type LLMService interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
