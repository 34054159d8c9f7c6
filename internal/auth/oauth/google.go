package oauth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/oliver-JPS/Portal-com-Login/internal/auth/session"
)

const googleIssuerURL = "https://accounts.google.com"

// Google is the Google OIDC provider. The ID token returned from the code
// exchange is verified against Google's published keys before any claim is
// trusted.
type Google struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	log      *slog.Logger
}

// NewGoogle performs OIDC discovery against Google and builds the provider.
// Discovery requires outbound network access, so construction takes a context.
func NewGoogle(ctx context.Context, cfg GoogleConfig, log *slog.Logger) (*Google, error) {
	if !cfg.Enabled() {
		return nil, ErrConfig
	}
	if log == nil {
		log = slog.Default()
	}

	provider, err := oidc.NewProvider(ctx, googleIssuerURL)
	if err != nil {
		return nil, fmt.Errorf("google oidc discovery: %w", err)
	}

	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		log:      log,
	}, nil
}

func (g *Google) Name() string { return "google" }

// AuthCodeURL builds the authorization URL carrying the CSRF state nonce.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange redeems the authorization code, verifies the returned ID token,
// and extracts the identity claims.
func (g *Google) Exchange(ctx context.Context, code string) (session.ExternalIdentity, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		g.log.Warn("oauth.google.exchange.fail", "err", err)
		return session.ExternalIdentity{}, ErrExchange
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return session.ExternalIdentity{}, ErrExchange
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		g.log.Warn("oauth.google.verify.fail", "err", err)
		return session.ExternalIdentity{}, ErrExchange
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return session.ExternalIdentity{}, ErrExchange
	}
	if claims.Subject == "" || claims.Email == "" {
		return session.ExternalIdentity{}, ErrExchange
	}
	if !claims.EmailVerified {
		return session.ExternalIdentity{}, ErrUnverifiedEmail
	}

	return session.ExternalIdentity{
		Provider: g.Name(),
		Subject:  claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
	}, nil
}

var _ Provider = (*Google)(nil)
