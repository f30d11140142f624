package storage

// ErrNotFound is returned when a memory doesn't exist in the store.
type ErrNotFound struct {
	UserID string
	ID     string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "memory not found"
	}

	return "memory not found: " + e.ID
}
