package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisLockout(t *testing.T) (*RedisLockout, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLockout(client, time.Minute), mr
}

func TestRedisLockout_RecordFailureCounts(t *testing.T) {
	l, _ := newRedisLockout(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := l.RecordFailure(ctx, "a@x.com")
		if err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
		if got != want {
			t.Fatalf("count = %d, want %d", got, want)
		}
	}

	// Each email has its own streak.
	got, err := l.RecordFailure(ctx, "b@x.com")
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if got != 1 {
		t.Fatalf("count for other email = %d, want 1", got)
	}
}

func TestRedisLockout_CounterExpires(t *testing.T) {
	l, mr := newRedisLockout(t)
	ctx := context.Background()

	if _, err := l.RecordFailure(ctx, "a@x.com"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	got, err := l.RecordFailure(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if got != 1 {
		t.Fatalf("stale streak must restart at 1, got %d", got)
	}
}

func TestRedisLockout_LockAndExpire(t *testing.T) {
	l, mr := newRedisLockout(t)
	ctx := context.Background()

	locked, err := l.IsLocked(ctx, "a@x.com")
	if err != nil || locked {
		t.Fatalf("fresh account: locked=%v err=%v", locked, err)
	}

	if err := l.Lock(ctx, "a@x.com", 10*time.Minute); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	locked, err = l.IsLocked(ctx, "a@x.com")
	if err != nil || !locked {
		t.Fatalf("after Lock: locked=%v err=%v", locked, err)
	}

	mr.FastForward(11 * time.Minute)
	locked, err = l.IsLocked(ctx, "a@x.com")
	if err != nil || locked {
		t.Fatalf("after expiry: locked=%v err=%v", locked, err)
	}
}

func TestRedisLockout_Clear(t *testing.T) {
	l, _ := newRedisLockout(t)
	ctx := context.Background()

	if _, err := l.RecordFailure(ctx, "a@x.com"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := l.Lock(ctx, "a@x.com", 10*time.Minute); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if err := l.Clear(ctx, "a@x.com"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	locked, err := l.IsLocked(ctx, "a@x.com")
	if err != nil || locked {
		t.Fatalf("after Clear: locked=%v err=%v", locked, err)
	}
	got, err := l.RecordFailure(ctx, "a@x.com")
	if err != nil || got != 1 {
		t.Fatalf("after Clear count = %d err=%v, want 1", got, err)
	}
}
