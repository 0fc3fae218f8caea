package core

import (
	"context"
	"sync"
)

// MemoryRefreshLocker keys a mutex per credential so concurrent reads of a
// near-expiry token trigger exactly one refresh in this process. Entries are
// reference counted and dropped once idle.
type MemoryRefreshLocker struct {
	mu    sync.Mutex
	locks map[string]*refreshLockEntry
}

type refreshLockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewMemoryRefreshLocker() *MemoryRefreshLocker {
	return &MemoryRefreshLocker{
		locks: map[string]*refreshLockEntry{},
	}
}

func (l *MemoryRefreshLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &refreshLockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			entry.mu.Unlock()
			l.mu.Lock()
			entry.refs--
			if entry.refs <= 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
	return release, nil
}
