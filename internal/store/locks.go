package store

import "sync"

// UserLocks serializes mutations of a single user record. Every lifecycle
// operation and every sweeper touch acquires the user's lock before the
// read-check-write sequence, so a lost race shows up as a rejected status
// check instead of a corrupted record.
type UserLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewUserLocks creates an empty lock registry.
func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the given user id and returns its unlock func.
func (l *UserLocks) Lock(userID string) func() {
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
