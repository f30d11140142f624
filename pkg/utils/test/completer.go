package testutils

import (
	"context"

	"github.com/engramdev/engram/pkg/llm"
)

// MockCompleter is a test completer that records conversations and returns
// a canned reply.
type MockCompleter struct {
	// Reply is returned by every Complete call.
	Reply string

	// Conversations accumulates every message slice passed to Complete.
	Conversations [][]llm.Message

	// FailComplete causes Complete to return an error.
	FailComplete error
}

// NewMockCompleter creates a mock completer with the given canned reply.
func NewMockCompleter(reply string) *MockCompleter {
	return &MockCompleter{Reply: reply}
}

func (m *MockCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	m.Conversations = append(m.Conversations, messages)
	if m.FailComplete != nil {
		return "", m.FailComplete
	}
	return m.Reply, nil
}

func (m *MockCompleter) Close() error {
	return nil
}
