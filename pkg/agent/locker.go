package agent

import "sync"

// userLocks serializes mutations per user while letting different users
// proceed in parallel. Locks are never reclaimed; the map grows with the
// number of distinct users seen by this process.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// acquire locks the user's mutex and returns the unlock func.
func (l *userLocks) acquire(userID string) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
