package oauth

import (
	"errors"
	"testing"
)

func TestLoadGoogleConfigFromEnv(t *testing.T) {
	t.Run("empty disables", func(t *testing.T) {
		t.Setenv("PORTAL_GOOGLE_CLIENT_ID", "")
		t.Setenv("PORTAL_GOOGLE_CLIENT_SECRET", "")
		t.Setenv("PORTAL_GOOGLE_REDIRECT_URL", "")

		cfg, err := LoadGoogleConfigFromEnv()
		if err != nil {
			t.Fatalf("LoadGoogleConfigFromEnv: %v", err)
		}
		if cfg.Enabled() {
			t.Fatalf("empty registration must be disabled")
		}
	})

	t.Run("complete enables", func(t *testing.T) {
		t.Setenv("PORTAL_GOOGLE_CLIENT_ID", "cid")
		t.Setenv("PORTAL_GOOGLE_CLIENT_SECRET", "csecret")
		t.Setenv("PORTAL_GOOGLE_REDIRECT_URL", "https://portal.example.com/auth/google/callback")

		cfg, err := LoadGoogleConfigFromEnv()
		if err != nil {
			t.Fatalf("LoadGoogleConfigFromEnv: %v", err)
		}
		if !cfg.Enabled() {
			t.Fatalf("complete registration must be enabled")
		}
	})

	t.Run("partial is an error", func(t *testing.T) {
		t.Setenv("PORTAL_GOOGLE_CLIENT_ID", "cid")
		t.Setenv("PORTAL_GOOGLE_CLIENT_SECRET", "")
		t.Setenv("PORTAL_GOOGLE_REDIRECT_URL", "")

		if _, err := LoadGoogleConfigFromEnv(); !errors.Is(err, ErrConfig) {
			t.Fatalf("expected ErrConfig, got %v", err)
		}
	})
}

func TestNewState(t *testing.T) {
	a, b := NewState(), NewState()
	if a == "" || a == b {
		t.Fatalf("state nonces must be unique and non-empty: %q %q", a, b)
	}
}
