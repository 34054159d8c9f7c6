package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisFailPrefix = "portal:lockout:fail:"
	redisLockPrefix = "portal:lockout:lock:"
)

// RedisLockout keeps lockout state in Redis, for deployments running several
// portal instances against the same user directory. Counters use INCR with a
// TTL set on first increment, so a stale counter ages out on its own.
//
// State lives entirely in Redis; the user row's failed_attempts column is
// still reset on login success but is not consulted here.
type RedisLockout struct {
	client *redis.Client

	// counterTTL bounds how long a failure streak is remembered.
	counterTTL time.Duration
}

// NewRedisLockout returns a Redis-backed lockout policy. counterTTL controls
// how long the consecutive-failure counter survives without new failures; the
// lock duration itself is passed per Lock call.
func NewRedisLockout(client *redis.Client, counterTTL time.Duration) *RedisLockout {
	if counterTTL <= 0 {
		counterTTL = 15 * time.Minute
	}
	return &RedisLockout{client: client, counterTTL: counterTTL}
}

func (l *RedisLockout) RecordFailure(ctx context.Context, email string) (int, error) {
	key := redisFailPrefix + email

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.counterTTL).Err(); err != nil {
			return 0, err
		}
	}
	return int(count), nil
}

func (l *RedisLockout) IsLocked(ctx context.Context, email string) (bool, error) {
	n, err := l.client.Exists(ctx, redisLockPrefix+email).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *RedisLockout) Lock(ctx context.Context, email string, d time.Duration) error {
	return l.client.Set(ctx, redisLockPrefix+email, "1", d).Err()
}

func (l *RedisLockout) Clear(ctx context.Context, email string) error {
	return l.client.Del(ctx, redisFailPrefix+email, redisLockPrefix+email).Err()
}

var _ LockoutPolicy = (*RedisLockout)(nil)
