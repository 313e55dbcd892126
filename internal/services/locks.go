package services

import "sync"

// lockArena hands out one mutex per contact so two racing events for the
// same user cannot interleave their state read-modify-write. Entries are
// reference counted and dropped when the last holder unlocks, so the arena
// does not grow with the contact base.
type lockArena struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the per-contact mutex and returns its release func.
func (a *lockArena) lock(key string) func() {
	a.mu.Lock()
	entry, exists := a.locks[key]
	if !exists {
		entry = &userLock{}
		a.locks[key] = entry
	}
	entry.refs++
	a.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		a.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(a.locks, key)
		}
		a.mu.Unlock()
	}
}
