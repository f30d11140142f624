// Package llm defines the chat completion contract used to generate
// memory-aware replies.
package llm

import "context"

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer generates a chat completion from a conversation.
type Completer interface {
	// Complete returns the assistant's reply to the conversation.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Close releases any resources held by the completer.
	Close() error
}
