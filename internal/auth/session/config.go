package session

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid session config")

// Config defines all runtime configuration for the session subsystem.
//
// It controls access-token TTL and signing, refresh-token entropy and fixed
// expiry, lockout policy, and the background sweep cadence. The struct is
// intentionally explicit and environment-driven so production deployments can
// tune security parameters without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	// JWTSecret signs HS256 access tokens. Required, minimum 32 bytes.
	JWTSecret string

	// AccessTokenTTL defines the lifetime of access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the fixed refresh-token expiry. Refresh tokens are
	// not rotated on use; they remain valid until this TTL elapses or they
	// are explicitly revoked.
	RefreshTokenTTL time.Duration

	// RefreshTokenBytes defines the number of random bytes used to generate
	// opaque refresh tokens.
	RefreshTokenBytes int

	// ClockSkew is the allowed time skew during access-token validation.
	ClockSkew time.Duration

	// MaxLoginAttempts is the consecutive-failure threshold after which an
	// account is locked.
	MaxLoginAttempts int

	// LockoutDuration is how long a locked account stays locked.
	LockoutDuration time.Duration

	// SweepInterval is the cadence of the expired/revoked refresh-token purge.
	SweepInterval time.Duration
}

// DefaultConfig returns a secure default configuration suitable for
// development. Production environments override values via environment
// variables; JWTSecret has no default.
func DefaultConfig() Config {
	return Config{
		Issuer:            "portal",
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		RefreshTokenBytes: 32,
		ClockSkew:         30 * time.Second,
		MaxLoginAttempts:  5,
		LockoutDuration:   15 * time.Minute,
		SweepInterval:     time.Hour,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - PORTAL_JWT_SECRET (>= 32 bytes)
//
// Optional (durations must be valid Go duration strings):
//   - PORTAL_AUTH_ISSUER
//   - PORTAL_ACCESS_TTL
//   - PORTAL_REFRESH_TTL
//   - PORTAL_REFRESH_TOKEN_BYTES
//   - PORTAL_CLOCK_SKEW
//   - PORTAL_MAX_LOGIN_ATTEMPTS
//   - PORTAL_LOCKOUT_DURATION
//   - PORTAL_SWEEP_INTERVAL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("PORTAL_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("PORTAL_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("PORTAL_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenTTL = d
	}

	if v := os.Getenv("PORTAL_REFRESH_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenBytes = n
	}

	if v := os.Getenv("PORTAL_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("PORTAL_MAX_LOGIN_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, ErrConfig
		}
		cfg.MaxLoginAttempts = n
	}

	if v := os.Getenv("PORTAL_LOCKOUT_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.LockoutDuration = d
	}

	if v := os.Getenv("PORTAL_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.SweepInterval = d
	}

	cfg.JWTSecret = strings.TrimSpace(os.Getenv("PORTAL_JWT_SECRET"))
	if len(cfg.JWTSecret) < 32 {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
