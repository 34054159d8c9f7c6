package api

import (
	"time"

	"github.com/oliver-JPS/Portal-com-Login/internal/auth/session"
)

// Stable machine codes. Clients branch on these, never on messages.
const (
	codeValidation         = "VALIDATION_ERROR"
	codeEmailExists        = "EMAIL_EXISTS"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeAccountLocked      = "ACCOUNT_LOCKED"
	codeAccountDeactivated = "ACCOUNT_DEACTIVATED"
	codeInvalidToken       = "INVALID_TOKEN"
	codeTokenExpired       = "TOKEN_EXPIRED"
	codeRateLimited        = "RATE_LIMITED"
	codeOAuthFailed        = "OAUTH_FAILED"
	codeServerError        = "SERVER_ERROR"
)

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     *string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      *string    `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

func toUserResponse(u session.PublicUser) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

type registerResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}

type loginResponse struct {
	Success      bool         `json:"success"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         userResponse `json:"user"`
}

type refreshResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type okResponse struct {
	Success bool `json:"success"`
}

// verifiedUser carries only what the access token itself attests to.
type verifiedUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type verifyResponse struct {
	Success bool         `json:"success"`
	Valid   bool         `json:"valid"`
	User    verifiedUser `json:"user"`
}

type meResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}
