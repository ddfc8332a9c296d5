package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 2 * time.Hour

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// LockParams configure a RedisLock. Holder names the process in the stored
// token so operators can tell which worker owns a stuck lock.
type LockParams struct {
	Client redisStore
	Key    string
	Holder string
	TTL    time.Duration
}

// RedisLock is a SETNX lease. Release deletes the key only while it still holds
// the token written on Acquire, so a lease that expired and was taken over by
// another worker survives.
type RedisLock struct {
	client redisStore
	key    string
	holder string
	ttl    time.Duration
	token  string
}

func NewRedisLock(params LockParams) (*RedisLock, error) {
	if params.Client == nil {
		return nil, errors.New("redis client required for lock")
	}
	key := strings.TrimSpace(params.Key)
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	holder := strings.TrimSpace(params.Holder)
	if holder == "" {
		holder = "worker"
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: params.Client, key: key, holder: holder, ttl: ttl}, nil
}

// Token returns the value held in redis, empty when the lock is not owned.
func (l *RedisLock) Token() string { return l.token }

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := l.holder + "/" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if _, err := l.client.CompareAndDelete(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
