package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Locker serializes engine steps per conversation. The session store's
// one-active-session-per-conversation invariant relies on no two events for
// the same conversation executing concurrently.
type Locker interface {
	Lock(ctx context.Context, conversationID string) (func(), error)
}

// KeyedMutex is the in-process Locker used by single-instance deployments
// and tests. Mutexes are created on first use and kept for the lifetime of
// the engine; the per-conversation footprint is one mutex.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex creates an in-process conversation locker.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *KeyedMutex) Lock(_ context.Context, conversationID string) (func(), error) {
	k.mu.Lock()

	lock, ok := k.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[conversationID] = lock
	}

	k.mu.Unlock()

	lock.Lock()

	return lock.Unlock, nil
}

const (
	redisLockTTL       = 30 * time.Second
	redisLockRetry     = 50 * time.Millisecond
	redisLockKeyPrefix = "flowengine:conversation_lock:"
)

// RedisLocker serializes conversations across engine instances with a
// SET NX lease. The TTL guards against a crashed holder; steps are expected
// to finish well inside it.
type RedisLocker struct {
	client redis.UniversalClient
	owner  string
}

// NewRedisLocker creates a distributed conversation locker. owner
// distinguishes this engine instance's leases.
func NewRedisLocker(client redis.UniversalClient, owner string) *RedisLocker {
	return &RedisLocker{client: client, owner: owner}
}

func (r *RedisLocker) Lock(ctx context.Context, conversationID string) (func(), error) {
	key := redisLockKeyPrefix + conversationID

	for {
		ok, err := r.client.SetNX(ctx, key, r.owner, redisLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire conversation lock: %w", err)
		}

		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redisLockRetry):
		}
	}

	release := func() {
		// Only the owner's lease is removed; an expired and re-acquired
		// key belongs to someone else.
		current, err := r.client.Get(context.Background(), key).Result()
		if err == nil && current == r.owner {
			r.client.Del(context.Background(), key)
		}
	}

	return release, nil
}
