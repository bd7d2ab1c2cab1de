package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/packdrop-backend/pkg/instance"
)

const defaultLockTTL = 2 * time.Hour

// Locker hands out one exclusive lease per job name so a long reconcile on
// one replica does not hold back the other jobs.
type Locker interface {
	Acquire(ctx context.Context, job string) (bool, error)
	Release(ctx context.Context, job string) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// RedisLocker implements Locker with SET NX plus a TTL. The TTL bounds how
// long a crashed holder can block a job.
type RedisLocker struct {
	client lockStore
	ttl    time.Duration

	mu     sync.Mutex
	owners map[string]string
}

func NewRedisLocker(client lockStore, ttl time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for cron lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl, owners: map[string]string{}}, nil
}

func (l *RedisLocker) key(job string) string {
	return l.client.LockKey("cron:" + job)
}

func (l *RedisLocker) Acquire(ctx context.Context, job string) (bool, error) {
	owner := instance.ID() + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(job), owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", job, err)
	}
	if ok {
		l.mu.Lock()
		l.owners[job] = owner
		l.mu.Unlock()
	}
	return ok, nil
}

// Release deletes the lease only while this process still owns it.
func (l *RedisLocker) Release(ctx context.Context, job string) error {
	l.mu.Lock()
	owner, held := l.owners[job]
	delete(l.owners, job)
	l.mu.Unlock()
	if !held {
		return nil
	}

	key := l.key(job)
	value, err := l.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("read lock owner %s: %w", job, err)
	}
	if value != owner {
		return nil
	}
	if err := l.client.Del(ctx, key); err != nil {
		return fmt.Errorf("delete lock %s: %w", job, err)
	}
	return nil
}
