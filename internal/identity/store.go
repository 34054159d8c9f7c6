package identity

import (
	"context"
	"time"
)

// CreateUserInput describes a new identity record.
// Exactly one provisioning path sets it up: password registration supplies
// PasswordHash, OAuth provisioning supplies GoogleID. At least one must be set.
type CreateUserInput struct {
	Email        string
	PasswordHash *string
	Name         *string
	GoogleID     *string
	Now          time.Time
}

// HasCredential reports whether the input carries at least one credential
// anchor (password hash or external identity).
func (in CreateUserInput) HasCredential() bool {
	return (in.PasswordHash != nil && *in.PasswordHash != "") ||
		(in.GoogleID != nil && *in.GoogleID != "")
}

// Store is the credential persistence boundary.
//
// Contract notes:
//   - Uniqueness conflicts are reported as ConflictError, distinctly from other
//     failures.
//   - IncrementFailedAttempts and RecordLoginSuccess must be atomic per user
//     row: concurrent logins for the same account race on the failed-attempt
//     counter, and the store is the serialization point.
//   - Emails are matched exactly as stored (case-sensitive).
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)

	// LinkGoogleID attaches an external identity to an existing user.
	LinkGoogleID(ctx context.Context, userID, googleID string, now time.Time) error

	CreateRefreshToken(ctx context.Context, userID, token string, expiresAt, now time.Time) error

	// GetValidRefreshToken returns the token row only when it is non-revoked
	// and non-expired at now; otherwise ErrNotFound.
	GetValidRefreshToken(ctx context.Context, token string, now time.Time) (RefreshToken, error)

	// RevokeRefreshToken is idempotent: revoking an already-revoked or unknown
	// token is not an error.
	RevokeRefreshToken(ctx context.Context, token string) error

	// RevokeAllForUser revokes every refresh token owned by the user,
	// regardless of validity state.
	RevokeAllForUser(ctx context.Context, userID string) error

	// PurgeRefreshTokens deletes expired-or-revoked token rows and returns the
	// number removed. Best-effort housekeeping; not correctness-critical.
	PurgeRefreshTokens(ctx context.Context, now time.Time) (int64, error)

	// RecordLoginSuccess sets last_login and resets the failed-attempt counter
	// and lock expiry in a single atomic update.
	RecordLoginSuccess(ctx context.Context, userID string, now time.Time) error

	// IncrementFailedAttempts bumps the counter for the account with the given
	// email and returns the new count. Unknown emails are a no-op returning 0,
	// so account existence cannot be probed through the counter.
	IncrementFailedAttempts(ctx context.Context, email string) (int, error)

	LockUntil(ctx context.Context, email string, until time.Time) error
	IsLocked(ctx context.Context, email string, now time.Time) (bool, error)
	ClearLock(ctx context.Context, email string) error
}
