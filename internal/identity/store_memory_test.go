package identity

import (
	"context"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestMemoryStore_CreateUser_DuplicateEmail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := s.CreateUser(ctx, CreateUserInput{Email: "a@x.com", PasswordHash: strPtr("h"), Now: now})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	_, err = s.CreateUser(ctx, CreateUserInput{Email: "a@x.com", PasswordHash: strPtr("h2"), Now: now})
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestMemoryStore_CreateUser_RequiresCredential(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.CreateUser(context.Background(), CreateUserInput{Email: "a@x.com"})
	if !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestMemoryStore_EmailIsCaseSensitive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, CreateUserInput{Email: "A@x.com", PasswordHash: strPtr("h")}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if _, err := s.GetUserByEmail(ctx, "a@x.com"); !IsNotFound(err) {
		t.Fatalf("expected not found for different casing, got %v", err)
	}
}

func TestMemoryStore_FailedAttemptsAndLock(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	u, err := s.CreateUser(ctx, CreateUserInput{Email: "a@x.com", PasswordHash: strPtr("h"), Now: now})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	for i := 1; i <= 3; i++ {
		n, err := s.IncrementFailedAttempts(ctx, "a@x.com")
		if err != nil {
			t.Fatalf("IncrementFailedAttempts: %v", err)
		}
		if n != i {
			t.Fatalf("attempt %d: got count %d", i, n)
		}
	}

	// Unknown email is a silent no-op.
	if n, err := s.IncrementFailedAttempts(ctx, "z@x.com"); err != nil || n != 0 {
		t.Fatalf("unknown email: got (%d, %v)", n, err)
	}

	if err := s.LockUntil(ctx, "a@x.com", now.Add(time.Minute)); err != nil {
		t.Fatalf("LockUntil: %v", err)
	}
	locked, err := s.IsLocked(ctx, "a@x.com", now)
	if err != nil || !locked {
		t.Fatalf("expected locked, got (%v, %v)", locked, err)
	}

	// Lock expiry is strict: at the boundary the account is unlocked.
	locked, err = s.IsLocked(ctx, "a@x.com", now.Add(time.Minute))
	if err != nil || locked {
		t.Fatalf("expected unlocked at expiry, got (%v, %v)", locked, err)
	}

	if err := s.RecordLoginSuccess(ctx, u.ID, now); err != nil {
		t.Fatalf("RecordLoginSuccess: %v", err)
	}
	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.FailedAttempts != 0 || got.LockedUntil != nil || got.LastLogin == nil {
		t.Fatalf("login success did not reset lockout state: %+v", got)
	}
}

func TestMemoryStore_RefreshTokenLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	u, err := s.CreateUser(ctx, CreateUserInput{Email: "a@x.com", PasswordHash: strPtr("h"), Now: now})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	if err := s.CreateRefreshToken(ctx, u.ID, "tok1", now.Add(time.Hour), now); err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}
	if err := s.CreateRefreshToken(ctx, u.ID, "tok2", now.Add(-time.Hour), now); err != nil {
		t.Fatalf("CreateRefreshToken: %v", err)
	}

	if _, err := s.GetValidRefreshToken(ctx, "tok1", now); err != nil {
		t.Fatalf("tok1 should be valid: %v", err)
	}
	if _, err := s.GetValidRefreshToken(ctx, "tok2", now); !IsNotFound(err) {
		t.Fatalf("expired token should be not found, got %v", err)
	}

	// Revocation is monotonic and idempotent.
	if err := s.RevokeRefreshToken(ctx, "tok1"); err != nil {
		t.Fatalf("RevokeRefreshToken: %v", err)
	}
	if err := s.RevokeRefreshToken(ctx, "tok1"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if err := s.RevokeRefreshToken(ctx, "never-existed"); err != nil {
		t.Fatalf("unknown revoke: %v", err)
	}
	if _, err := s.GetValidRefreshToken(ctx, "tok1", now); !IsNotFound(err) {
		t.Fatalf("revoked token should be not found, got %v", err)
	}

	n, err := s.PurgeRefreshTokens(ctx, now)
	if err != nil {
		t.Fatalf("PurgeRefreshTokens: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 purged rows, got %d", n)
	}
}

func TestMemoryStore_RevokeAllForUser(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	a, _ := s.CreateUser(ctx, CreateUserInput{Email: "a@x.com", PasswordHash: strPtr("h"), Now: now})
	b, _ := s.CreateUser(ctx, CreateUserInput{Email: "b@x.com", PasswordHash: strPtr("h"), Now: now})

	_ = s.CreateRefreshToken(ctx, a.ID, "a1", now.Add(time.Hour), now)
	_ = s.CreateRefreshToken(ctx, a.ID, "a2", now.Add(time.Hour), now)
	_ = s.CreateRefreshToken(ctx, b.ID, "b1", now.Add(time.Hour), now)

	if err := s.RevokeAllForUser(ctx, a.ID); err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}

	for _, tok := range []string{"a1", "a2"} {
		if _, err := s.GetValidRefreshToken(ctx, tok, now); !IsNotFound(err) {
			t.Fatalf("token %s should be revoked, got %v", tok, err)
		}
	}
	if _, err := s.GetValidRefreshToken(ctx, "b1", now); err != nil {
		t.Fatalf("other user's token must be unaffected: %v", err)
	}
}
