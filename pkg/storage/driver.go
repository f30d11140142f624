// Package storage defines the persistence contract for memory records.
//
// Drivers are pluggable via configuration:
//
//	[storage]
//	provider = "inmemory"   # or "sqlite", "postgres", "qdrant"
//
// A Driver is a durable keyed collection of memories partitioned by user.
// Schema and migration mechanics are entirely the driver's own concern; the
// engine only depends on the read/write contract below. Single-record
// updates must be atomic and List must never observe a half-applied write.
package storage

import (
	"context"

	"github.com/engramdev/engram/pkg/memory"
)

// Driver handles storage and retrieval of memory records.
type Driver interface {
	// Put persists a new memory record.
	Put(ctx context.Context, m *memory.Memory) error

	// Get retrieves one memory by owner and id.
	// Returns ErrNotFound if no such record exists.
	Get(ctx context.Context, userID, id string) (*memory.Memory, error)

	// List returns all memories owned by a user.
	List(ctx context.Context, userID string) ([]*memory.Memory, error)

	// Update atomically replaces the stored record with the same ID.
	// Returns ErrNotFound if no such record exists.
	Update(ctx context.Context, m *memory.Memory) error

	// Delete removes one memory by owner and id.
	// Returns ErrNotFound if no such record exists.
	Delete(ctx context.Context, userID, id string) error

	// Count returns the number of memories owned by a user.
	Count(ctx context.Context, userID string) (int, error)

	// Close releases driver resources.
	Close() error
}

// Match pairs a stored memory with a similarity score against some query
// vector. Higher is more similar.
type Match struct {
	Memory *memory.Memory
	Score  float64
}

// Searcher is an optional capability for drivers with native nearest-
// neighbor search (e.g. sqlite-vec, qdrant). Callers type-assert for it and
// fall back to a linear cosine scan over List when absent; the observable
// ranking contract is identical either way.
type Searcher interface {
	// MostSimilar returns up to k matches for the user, most similar first.
	MostSimilar(ctx context.Context, userID string, embedding []float32, k int) ([]Match, error)
}
