// Package inmemory provides an in-memory implementation of storage.Driver.
//
// Records are held in per-user maps guarded by a read-write mutex. This is
// the default backend for local development and tests; nothing survives
// process exit.
package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/engramdev/engram/pkg/memory"
	"github.com/engramdev/engram/pkg/storage"
)

// Driver implements storage.Driver using in-process data structures.
type Driver struct {
	// mu guards the user -> id -> record mapping.
	mu sync.RWMutex

	users map[string]map[string]*memory.Memory
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		users: make(map[string]map[string]*memory.Memory),
	}
}

// Put persists a new memory record.
func (d *Driver) Put(_ context.Context, m *memory.Memory) error {
	if m == nil {
		return errors.New("cannot store nil memory")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	records, ok := d.users[m.UserID]
	if !ok {
		records = make(map[string]*memory.Memory)
		d.users[m.UserID] = records
	}

	records[m.ID] = clone(m)
	return nil
}

// Get retrieves one memory by owner and id.
func (d *Driver) Get(_ context.Context, userID, id string) (*memory.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.users[userID][id]
	if !ok {
		return nil, storage.ErrNotFound{UserID: userID, ID: id}
	}

	return clone(m), nil
}

// List returns all memories owned by a user.
func (d *Driver) List(_ context.Context, userID string) ([]*memory.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	records := d.users[userID]
	result := make([]*memory.Memory, 0, len(records))
	for _, m := range records {
		result = append(result, clone(m))
	}

	return result, nil
}

// Update replaces the stored record with the same ID.
func (d *Driver) Update(_ context.Context, m *memory.Memory) error {
	if m == nil {
		return errors.New("cannot update nil memory")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	records, ok := d.users[m.UserID]
	if !ok {
		return storage.ErrNotFound{UserID: m.UserID, ID: m.ID}
	}
	if _, ok := records[m.ID]; !ok {
		return storage.ErrNotFound{UserID: m.UserID, ID: m.ID}
	}

	records[m.ID] = clone(m)
	return nil
}

// Delete removes one memory by owner and id.
func (d *Driver) Delete(_ context.Context, userID, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, ok := d.users[userID]
	if !ok {
		return storage.ErrNotFound{UserID: userID, ID: id}
	}
	if _, ok := records[id]; !ok {
		return storage.ErrNotFound{UserID: userID, ID: id}
	}

	delete(records, id)
	return nil
}

// Count returns the number of memories owned by a user.
func (d *Driver) Count(_ context.Context, userID string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.users[userID]), nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

// clone copies a record so callers can't mutate internal state.
func clone(m *memory.Memory) *memory.Memory {
	c := *m
	if m.Embedding != nil {
		c.Embedding = make([]float32, len(m.Embedding))
		copy(c.Embedding, m.Embedding)
	}
	return &c
}
