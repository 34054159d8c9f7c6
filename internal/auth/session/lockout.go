package session

import (
	"context"
	"time"

	"github.com/oliver-JPS/Portal-com-Login/internal/identity"
)

// LockoutPolicy tracks failed login attempts per account email and computes
// lock state.
//
// Failure counting is keyed by email regardless of whether the email maps to a
// real account; implementations must not let an outside caller distinguish the
// two. The lock check happens before password verification, so a locked
// account is rejected without touching the hasher.
type LockoutPolicy interface {
	// RecordFailure bumps the consecutive-failure counter and returns the new
	// count. Unknown accounts return 0.
	RecordFailure(ctx context.Context, email string) (int, error)

	IsLocked(ctx context.Context, email string) (bool, error)
	Lock(ctx context.Context, email string, d time.Duration) error

	// Clear resets the counter and removes any lock. Called on successful
	// verification.
	Clear(ctx context.Context, email string) error
}

// StoreLockout keeps lockout state on the user row (failed_attempts,
// locked_until) via the identity store. The store's atomic per-row updates
// serialize concurrent failures for the same account.
type StoreLockout struct {
	store identity.Store
	now   func() time.Time
}

// NewStoreLockout returns the store-backed lockout policy.
func NewStoreLockout(store identity.Store) *StoreLockout {
	return &StoreLockout{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (l *StoreLockout) RecordFailure(ctx context.Context, email string) (int, error) {
	return l.store.IncrementFailedAttempts(ctx, email)
}

func (l *StoreLockout) IsLocked(ctx context.Context, email string) (bool, error) {
	return l.store.IsLocked(ctx, email, l.now())
}

func (l *StoreLockout) Lock(ctx context.Context, email string, d time.Duration) error {
	return l.store.LockUntil(ctx, email, l.now().Add(d))
}

func (l *StoreLockout) Clear(ctx context.Context, email string) error {
	return l.store.ClearLock(ctx, email)
}

var _ LockoutPolicy = (*StoreLockout)(nil)
