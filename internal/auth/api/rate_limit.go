package api

import (
	"context"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginIPPrefix = "portal:ratelimit:login:ip:"

// LoginLimiter throttles login attempts per client IP using a Redis counter
// with a fixed window. It guards the endpoint against spray attacks across
// many accounts, which the per-account lockout policy cannot see.
type LoginLimiter struct {
	client *redis.Client
	max    int
	window time.Duration
}

// NewLoginLimiter returns a Redis-backed per-IP login limiter.
func NewLoginLimiter(client *redis.Client, max int, window time.Duration) *LoginLimiter {
	if max <= 0 {
		max = 20
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &LoginLimiter{client: client, max: max, window: window}
}

// Allow records one attempt for the IP and reports whether it is within the
// window budget. The counter TTL is set on the first attempt of a window.
func (l *LoginLimiter) Allow(ctx context.Context, ip net.IP) (bool, time.Duration, error) {
	if ip == nil {
		return true, 0, nil
	}
	key := loginIPPrefix + ip.String()

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, 0, err
		}
	}
	if count > int64(l.max) {
		ttl, err := l.client.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = l.window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}

func (h *Handler) checkLoginThrottle(ctx context.Context, ip net.IP) (blocked bool, retryAfter time.Duration, err error) {
	if h.limiter == nil {
		return false, 0, nil
	}
	allowed, retryAfter, err := h.limiter.Allow(ctx, ip)
	if err != nil {
		return false, 0, err
	}
	return !allowed, retryAfter, nil
}
