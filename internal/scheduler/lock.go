package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Locker guards a job so that only one replica runs it at a time.
type Locker interface {
	// Acquire returns ok=false when the lock is held elsewhere.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "cron:"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
	}
	return release, true, nil
}

// LocalLocker only serialises jobs inside this process.
type LocalLocker struct {
	mu      sync.Mutex
	running map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{running: make(map[string]bool)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running[key] {
		return nil, false, nil
	}
	l.running[key] = true

	return func() {
		l.mu.Lock()
		delete(l.running, key)
		l.mu.Unlock()
	}, true, nil
}
