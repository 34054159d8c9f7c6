package session

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_RequiresSecret(t *testing.T) {
	t.Setenv("PORTAL_JWT_SECRET", "")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("missing secret: expected ErrConfig, got %v", err)
	}

	t.Setenv("PORTAL_JWT_SECRET", "too-short")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("short secret: expected ErrConfig, got %v", err)
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("PORTAL_JWT_SECRET", strings.Repeat("s", 32))

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("RefreshTokenTTL = %v", cfg.RefreshTokenTTL)
	}
	if cfg.MaxLoginAttempts != 5 || cfg.LockoutDuration != 15*time.Minute {
		t.Fatalf("lockout defaults: %d / %v", cfg.MaxLoginAttempts, cfg.LockoutDuration)
	}
	if cfg.SweepInterval != time.Hour {
		t.Fatalf("SweepInterval = %v", cfg.SweepInterval)
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORTAL_JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("PORTAL_AUTH_ISSUER", "portal-test")
	t.Setenv("PORTAL_ACCESS_TTL", "5m")
	t.Setenv("PORTAL_REFRESH_TTL", "48h")
	t.Setenv("PORTAL_REFRESH_TOKEN_BYTES", "48")
	t.Setenv("PORTAL_MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("PORTAL_LOCKOUT_DURATION", "30m")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "portal-test" || cfg.AccessTokenTTL != 5*time.Minute || cfg.RefreshTokenTTL != 48*time.Hour {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.RefreshTokenBytes != 48 || cfg.MaxLoginAttempts != 3 || cfg.LockoutDuration != 30*time.Minute {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"PORTAL_ACCESS_TTL":          "soon",
		"PORTAL_REFRESH_TTL":         "-1h",
		"PORTAL_REFRESH_TOKEN_BYTES": "8",
		"PORTAL_MAX_LOGIN_ATTEMPTS":  "0",
		"PORTAL_LOCKOUT_DURATION":    "never",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("PORTAL_JWT_SECRET", strings.Repeat("s", 32))
			t.Setenv(key, val)
			if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
				t.Fatalf("%s=%s: expected ErrConfig, got %v", key, val, err)
			}
		})
	}
}
