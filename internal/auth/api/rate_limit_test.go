package api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, max int) (*LoginLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLoginLimiter(client, max, time.Minute), mr
}

func TestLoginLimiter_AllowWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(t, 3)
	ctx := context.Background()
	ip := net.ParseIP("203.0.113.7")

	for i := 0; i < 3; i++ {
		allowed, _, err := l.Allow(ctx, ip)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !allowed {
			t.Fatalf("attempt %d blocked within budget", i+1)
		}
	}

	allowed, retryAfter, err := l.Allow(ctx, ip)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatalf("attempt over budget must be blocked")
	}
	if retryAfter <= 0 {
		t.Fatalf("retryAfter = %v", retryAfter)
	}

	// A different IP has its own budget.
	allowed, _, err = l.Allow(ctx, net.ParseIP("203.0.113.8"))
	if err != nil || !allowed {
		t.Fatalf("other IP: allowed=%v err=%v", allowed, err)
	}

	// Unknown IPs are never throttled.
	allowed, _, err = l.Allow(ctx, nil)
	if err != nil || !allowed {
		t.Fatalf("nil IP: allowed=%v err=%v", allowed, err)
	}
}

func TestLoginLimiter_WindowResets(t *testing.T) {
	l, mr := newTestLimiter(t, 1)
	ctx := context.Background()
	ip := net.ParseIP("203.0.113.7")

	if allowed, _, _ := l.Allow(ctx, ip); !allowed {
		t.Fatalf("first attempt blocked")
	}
	if allowed, _, _ := l.Allow(ctx, ip); allowed {
		t.Fatalf("second attempt must be blocked")
	}

	mr.FastForward(2 * time.Minute)

	if allowed, _, _ := l.Allow(ctx, ip); !allowed {
		t.Fatalf("attempt after window must be allowed")
	}
}
