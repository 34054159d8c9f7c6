package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oliver-JPS/Portal-com-Login/internal/identity"
)

// Claims is the verified identity envelope carried by an access token.
type Claims struct {
	UserID    string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Issuer    string
}

type accessClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies access tokens and generates opaque refresh tokens.
//
// Access tokens are HS256 JWTs signed with a server-held secret; they are
// self-contained and never persisted. Refresh tokens are random hex strings
// whose validity is established only by store lookup.
type Issuer struct {
	issuer       string
	secret       []byte
	ttl          time.Duration
	clockSkew    time.Duration
	refreshBytes int
}

// NewIssuer constructs an Issuer from session config.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, ErrConfig
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenBytes < 32 {
		return nil, ErrConfig
	}

	return &Issuer{
		issuer:       cfg.Issuer,
		secret:       []byte(cfg.JWTSecret),
		ttl:          cfg.AccessTokenTTL,
		clockSkew:    cfg.ClockSkew,
		refreshBytes: cfg.RefreshTokenBytes,
	}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.ttl }

// IssueAccessToken signs an access token for the user.
func (i *Issuer) IssueAccessToken(u identity.User, now time.Time) (string, time.Time, error) {
	exp := now.Add(i.ttl)

	name := ""
	if u.Name != nil {
		name = *u.Name
	}

	claims := accessClaims{
		Email: u.Email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccessToken parses and validates an access token.
//
// It fails closed: any signature, structure, or issuer problem yields
// ErrInvalidToken. Expiry is reported as ErrTokenExpired so callers can
// trigger a refresh instead of a hard auth failure.
func (i *Issuer) VerifyAccessToken(token string, now time.Time) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithLeeway(i.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)

	var claims accessClaims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}

	if claims.Subject == "" || claims.Email == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Issuer: claims.Issuer,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// NewRefreshToken returns a cryptographically random opaque token.
// With the minimum of 32 bytes this carries 256 bits of entropy.
func (i *Issuer) NewRefreshToken() (string, error) {
	b := make([]byte, i.refreshBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
