package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/studyquest/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISTRIBUTED LOCK
// ══════════════════════════════════════════════════════════════════════════════

// ErrLockLost is returned by unlock when the lock expired and was taken
// by someone else before release.
var ErrLockLost = errors.New("lock: not held by this owner")

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements leaderboard.Locker with SET NX and an owner token, so
// recalculations on different instances exclude each other.
type Locker struct {
	cache *Cache
	ttl   time.Duration
}

// NewLocker creates a Locker. A non-positive ttl uses TTLDistributedLock.
func NewLocker(cache *Cache, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	return &Locker{cache: cache, ttl: ttl}
}

// Lock takes the named lock or returns shared.ErrRecalculationInProgress
// when someone else holds it.
func (l *Locker) Lock(ctx context.Context, name string) (func(ctx context.Context) error, error) {
	if name == "" {
		return nil, ErrCacheKeyEmpty
	}

	key := LockKey(name)
	token := uuid.NewString()

	ok, err := l.cache.Client().SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, shared.ErrRecalculationInProgress
	}

	released := false
	return func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true

		n, err := releaseScript.Run(ctx, l.cache.Client(), []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("release lock %s: %w", name, err)
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}, nil
}
