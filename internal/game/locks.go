package game

import "sync"

// userLocks serializes turns per user. The read-modify-append-persist
// sequence is not transactional across the history read and the final
// write, so one full turn holds its user's lock, narrator round trip
// included. A second message for the same user waits; it is never dropped.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

// lock acquires the user's mutex and returns its release func. Lock entries
// are never removed; the map is bounded by the player population.
func (l *userLocks) lock(userID int64) func() {
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
