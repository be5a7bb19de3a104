// Package lock provides named mutual exclusion across service instances
// (Redis) or within a single process.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when a lock could not be acquired before the
// retry budget or the context ran out.
var ErrNotObtained = errors.New("lock not obtained")

// Releaser releases a held lock
type Releaser func(ctx context.Context) error

// Locker acquires a named lock held for at most ttl
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (Releaser, error)
}

// RedisLocker implements Locker with bsm/redislock
type RedisLocker struct {
	client  *redislock.Client
	retries int
	backoff time.Duration
}

// NewRedisLocker creates a Redis backed locker that retries with linear backoff
func NewRedisLocker(rdb *redis.Client, retries int, backoff time.Duration) *RedisLocker {
	if retries <= 0 {
		retries = 50
	}
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	return &RedisLocker{
		client:  redislock.New(rdb),
		retries: retries,
		backoff: backoff,
	}
}

// Obtain acquires key, retrying until the retry budget is spent
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Releaser, error) {
	lk, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return lk.Release, nil
}

// LocalLocker implements Locker with in-process channels. The ttl is ignored:
// a lock is held until released.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Obtain blocks until key is free or ctx is done
func (l *LocalLocker) Obtain(ctx context.Context, key string, _ time.Duration) (Releaser, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, s)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotObtained, key, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-s.ch
			l.drop(key, s)
		})
		return nil
	}, nil
}

func (l *LocalLocker) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
