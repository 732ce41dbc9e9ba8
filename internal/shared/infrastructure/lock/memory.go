package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLock is a per-key lock for a single process. Entries are dropped
// once no goroutine holds or waits on them, so one entry per tenant does not
// accumulate forever.
type MemoryLock struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	token chan struct{} // buffered(1); holding the value means holding the lock
	refs  int
}

// NewMemoryLock creates an empty MemoryLock.
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{entries: make(map[string]*memoryEntry)}
}

func (l *MemoryLock) ref(key string) *memoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &memoryEntry{token: make(chan struct{}, 1)}
		e.token <- struct{}{}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *MemoryLock) unref(key string, e *memoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *MemoryLock) releaser(key string, e *memoryEntry, ttl time.Duration) func() {
	var once sync.Once
	release := func() {
		once.Do(func() {
			e.token <- struct{}{}
			l.unref(key, e)
		})
	}
	if ttl > 0 {
		timer := time.AfterFunc(ttl, release)
		return func() {
			timer.Stop()
			release()
		}
	}
	return release
}

// Acquire blocks until key is free or ctx is done.
func (l *MemoryLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	e := l.ref(key)
	select {
	case <-e.token:
		return l.releaser(key, e, ttl), nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}
}

// TryAcquire takes key only if nobody holds it.
func (l *MemoryLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	e := l.ref(key)
	select {
	case <-e.token:
		return l.releaser(key, e, ttl), true, nil
	default:
		l.unref(key, e)
		return nil, false, nil
	}
}

// Len returns the number of keys currently held or awaited.
func (l *MemoryLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

var _ Locker = (*MemoryLock)(nil)
