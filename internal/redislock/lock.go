// Package redislock implements the distributed lock shared by all
// service instances: set-if-absent with a random token and a safety TTL,
// released by a compare-and-delete script so one instance can never drop
// a lock another instance re-acquired after the TTL fired.
package redislock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotAcquired means the acquire retry budget ran out.
	ErrNotAcquired = errors.New("redislock: lock not acquired")
	// ErrNotHeld means the token no longer matched on release; the TTL
	// fired and someone else holds the lock now.
	ErrNotHeld = errors.New("redislock: lock not held")
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

const retryInterval = 50 * time.Millisecond

// Lock is one acquisition of a named lock key.
type Lock struct {
	rdb   *redis.Client
	key   string
	token string
}

// Acquire blocks until the lock is taken, the context is cancelled, or
// the wait budget (one TTL) is exhausted. The TTL is a safety fallback
// against a crashed holder, not an expected release path.
func Acquire(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.New().String()
	deadline := time.Now().Add(ttl)

	for {
		ok, err := rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lock{rdb: rdb, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// Release deletes the lock key iff this holder's token still matches.
func (l *Lock) Release(ctx context.Context) error {
	deleted, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotHeld
	}
	return nil
}

// Key returns the lock's redis key.
func (l *Lock) Key() string { return l.key }
