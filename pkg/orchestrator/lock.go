package orchestrator

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/redis"
)

// Lock is a held save lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker serialises save-all calls for the same kind across instances.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

type redisLocker struct {
	locker *redis.Locker
}

// RedisLocker adapts a redis Locker.
func RedisLocker(locker *redis.Locker) Locker {
	return redisLocker{locker: locker}
}

func (l redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.locker.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return lock, nil
}
