// pkg/keylock/keylock.go

// Package keylock provides per-key mutual exclusion. The balance service uses
// it to serialize all operations for one user id within the process, on top of
// the database's row-level locks.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyLock is a registry of mutexes keyed by user id. Locks for distinct keys
// are fully independent. The zero value is not usable; call New.
type KeyLock struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// New creates an empty KeyLock.
func New() *KeyLock {
	return &KeyLock{entries: make(map[int64]*entry)}
}

// Lock acquires the mutex for key, blocking until it is available, and
// returns the function that releases it. Entries are reference-counted and
// removed once the last holder unlocks, so the registry does not grow with
// the number of distinct keys ever seen.
func (k *KeyLock) Lock(key int64) (unlock func()) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
