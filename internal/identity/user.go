package identity

import "time"

// User is the portal's canonical security principal.
//
// Invariant: PasswordHash or GoogleID is present (or both, when a password is
// added to an OAuth-provisioned account), never neither.
type User struct {
	ID    string
	Email string

	// PasswordHash is nil for OAuth-only accounts.
	PasswordHash *string
	Name         *string

	// GoogleID is the external-identity reference set by OAuth provisioning.
	GoogleID *string

	Active bool

	// Lockout bookkeeping. FailedAttempts counts consecutive failed logins;
	// LockedUntil is set when the lockout threshold is reached.
	FailedAttempts int
	LockedUntil    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	LastLogin *time.Time
}

// HasPassword reports whether the user can authenticate with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Locked reports whether the account is locked at the given instant.
// An account is locked iff locked_until exists and is strictly in the future.
func (u User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// RefreshToken mirrors a refresh_tokens row.
// The token value is an opaque high-entropy string; validity is established
// only by store lookup (non-revoked and non-expired).
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// Valid reports whether the token is usable at the given instant.
func (t RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
