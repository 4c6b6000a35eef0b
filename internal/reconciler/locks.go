package reconciler

import "sync"

// lockTable provides per-directory mutual exclusion without holding a mutex
// per directory forever. Entries are reference counted and removed once the
// last holder releases.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*dirLock
}

type dirLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*dirLock)}
}

// acquire blocks until the lock for key is held and returns the release
// function. Two reconciliation passes for the same directory serialize;
// passes for different directories proceed concurrently.
func (t *lockTable) acquire(key string) func() {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &dirLock{}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}
