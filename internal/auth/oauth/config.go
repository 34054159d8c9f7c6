package oauth

import (
	"errors"
	"os"
)

// ErrConfig is returned for invalid provider configuration.
var ErrConfig = errors.New("invalid oauth config")

// GoogleConfig holds the Google OAuth client registration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string

	// RedirectURL is the callback endpoint registered with Google, e.g.
	// https://portal.example.com/auth/google/callback.
	RedirectURL string
}

// Enabled reports whether the registration is complete. Delegated login is
// optional; an empty registration disables the endpoints instead of failing
// startup.
func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// LoadGoogleConfigFromEnv loads the Google client registration from
// environment variables:
//   - PORTAL_GOOGLE_CLIENT_ID
//   - PORTAL_GOOGLE_CLIENT_SECRET
//   - PORTAL_GOOGLE_REDIRECT_URL
//
// A partially filled registration is a configuration error; fully empty
// means the feature is off.
func LoadGoogleConfigFromEnv() (GoogleConfig, error) {
	cfg := GoogleConfig{
		ClientID:     os.Getenv("PORTAL_GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("PORTAL_GOOGLE_CLIENT_SECRET"),
		RedirectURL:  os.Getenv("PORTAL_GOOGLE_REDIRECT_URL"),
	}

	if !cfg.Enabled() && (cfg.ClientID != "" || cfg.ClientSecret != "" || cfg.RedirectURL != "") {
		return GoogleConfig{}, ErrConfig
	}
	return cfg, nil
}
