package eventstream

import (
	"time"

	"github.com/engramdev/engram/pkg/memory"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryStored is emitted after a new memory is persisted.
	EventTypeMemoryStored = "engram.memory.stored"

	// EventTypeMemoryMerged is emitted when a candidate is absorbed into an
	// existing memory instead of inserted.
	EventTypeMemoryMerged = "engram.memory.merged"

	// EventTypeMemoryPruned is emitted when the capacity policy evicts a memory.
	EventTypeMemoryPruned = "engram.memory.pruned"

	// EventTypeMemoryDeleted is emitted when a memory is removed on user request.
	EventTypeMemoryDeleted = "engram.memory.deleted"
)

// MemoryEvent is a transport-neutral event payload for a memory lifecycle
// transition. Embeddings are stripped before publishing; downstream
// consumers get record metadata, not vectors.
type MemoryEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	UserID   string `json:"user_id"`
	MemoryID string `json:"memory_id"`

	Text       string  `json:"text,omitempty"`
	Importance float64 `json:"importance,omitempty"`
	Category   string  `json:"category,omitempty"`

	// MergedFromText is set on merge events: the candidate text that was
	// absorbed into the surviving record.
	MergedFromText string `json:"merged_from_text,omitempty"`
}

// EventTypeFor maps a lifecycle outcome to its event type.
func EventTypeFor(o memory.Outcome) string {
	switch o {
	case memory.OutcomeInserted:
		return EventTypeMemoryStored
	case memory.OutcomeMerged:
		return EventTypeMemoryMerged
	case memory.OutcomePruned:
		return EventTypeMemoryPruned
	case memory.OutcomeDeleted:
		return EventTypeMemoryDeleted
	}
	return ""
}
