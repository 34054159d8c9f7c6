package session

import (
	"errors"
	"fmt"
)

// Error taxonomy for session operations. Callers branch with errors.Is; the
// HTTP boundary maps each kind to a status code and stable machine code.
var (
	// ErrValidation is returned for malformed input (caller's fault, never
	// retried).
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when registering an email that already has an
	// identity.
	ErrConflict = errors.New("email already registered")

	// ErrInvalidCredentials covers wrong password and unknown email alike, so
	// the caller cannot probe account existence.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountLocked is temporary: retry after the lock duration elapses.
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrAccountDeactivated is terminal until administrative action.
	ErrAccountDeactivated = errors.New("account deactivated")

	// ErrInvalidToken is returned for refresh or access tokens that are
	// unknown, revoked, malformed, or bound to a missing/inactive user.
	// Terminal for that token; the caller must re-authenticate.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrTokenExpired is the expiry-specific access-token failure. It is kept
	// distinct from ErrInvalidToken because the client contract depends on
	// distinguishing "refresh and retry" from "hard failure".
	ErrTokenExpired = errors.New("token expired")

	// ErrStore wraps persistence failures. Surfaced as a generic server fault
	// at the outermost boundary, never exposing internal detail.
	ErrStore = errors.New("store failure")
)

// ValidationError carries the offending logical field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Msg)
}

func (e ValidationError) Unwrap() error { return ErrValidation }

func storeFault(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStore, err)
}
