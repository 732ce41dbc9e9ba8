package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisTTL bounds a lock whose holder disappears without releasing it.
	DefaultRedisTTL = 10 * time.Minute

	redisKeyPrefix    = "pathlab:lock:"
	redisPollInterval = 50 * time.Millisecond
)

// releaseScript deletes the key only if it still carries the holder's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock implements Locker with SET NX PX so several worker replicas
// share one lock.
type RedisLock struct {
	client *redis.Client
}

// NewRedisLock creates a Redis-backed lock.
func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

func (l *RedisLock) redisKey(key string) string {
	return redisKeyPrefix + key
}

// TryAcquire sets the key if absent. ttl <= 0 uses DefaultRedisTTL.
func (l *RedisLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.redisKey(key), token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("try acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{l.redisKey(key)}, token).Err()
		})
	}
	return release, true, nil
}

// Acquire polls until the key is free or ctx is done.
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	ticker := time.NewTicker(redisPollInterval)
	defer ticker.Stop()
	for {
		release, ok, err := l.TryAcquire(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w: %w", key, ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}

var _ Locker = (*RedisLock)(nil)

// NoopLock always grants the lock. Local single-process mode uses it for the
// sweep, where the worker already prevents overlapping runs.
type NoopLock struct{}

// Acquire always succeeds.
func (NoopLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

// TryAcquire always succeeds.
func (NoopLock) TryAcquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
