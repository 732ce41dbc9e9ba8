// Package lock provides keyed mutual exclusion for lifecycle transitions
// and the expiry sweep.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned by Acquire when the lock is still held at the deadline.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker serialises work on a key.
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done.
	// A ttl > 0 bounds how long the lock may be held before it is released
	// automatically.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)

	// TryAcquire takes the lock only if it is free.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// WithLock runs fn while holding the lock for key.
func WithLock(ctx context.Context, l Locker, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}
