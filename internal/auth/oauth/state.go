package oauth

import "github.com/google/uuid"

// NewState returns a fresh CSRF state nonce for an authorization redirect.
// The HTTP boundary stores it in a short-lived cookie and compares it on
// callback.
func NewState() string {
	return uuid.NewString()
}
