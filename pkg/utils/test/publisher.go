package testutils

import (
	"context"

	"github.com/engramdev/engram/pkg/eventstream"
)

// MockPublisher is a test publisher that records published events.
type MockPublisher struct {
	// Events accumulates every event passed to PublishMemoryEvent.
	Events []*eventstream.MemoryEvent

	// FailPublish causes PublishMemoryEvent to return an error.
	FailPublish error
}

// NewMockPublisher creates a new mock eventstream publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Events: make([]*eventstream.MemoryEvent, 0),
	}
}

func (m *MockPublisher) PublishMemoryEvent(_ context.Context, event *eventstream.MemoryEvent) error {
	if event == nil {
		return eventstream.ErrNilMemoryEvent
	}
	if m.FailPublish != nil {
		return m.FailPublish
	}
	m.Events = append(m.Events, event)
	return nil
}

// EventsOfType returns the recorded events with the given type.
func (m *MockPublisher) EventsOfType(eventType string) []*eventstream.MemoryEvent {
	var out []*eventstream.MemoryEvent
	for _, e := range m.Events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockPublisher) Close() error {
	return nil
}
