package oauth

import (
	"context"
	"errors"

	"github.com/oliver-JPS/Portal-com-Login/internal/auth/session"
)

var (
	// ErrExchange is returned when the authorization-code exchange or
	// ID-token verification fails. The caller should restart the flow.
	ErrExchange = errors.New("oauth exchange failed")

	// ErrUnverifiedEmail is returned when the provider has not verified
	// ownership of the email, which would let an attacker pre-claim an
	// account by registering an unverified address upstream.
	ErrUnverifiedEmail = errors.New("provider email not verified")
)

// Provider is a delegated identity provider.
//
// AuthCodeURL starts the flow; Exchange completes it and returns an identity
// the provider has cryptographically vouched for.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (session.ExternalIdentity, error)
}
