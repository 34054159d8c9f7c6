package session

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oliver-JPS/Portal-com-Login/internal/identity"
	"github.com/oliver-JPS/Portal-com-Login/internal/security/password"
)

// minPasswordLen is the registration floor for password length.
const minPasswordLen = 6

// maxTokenLen bounds token inputs to avoid pathological payloads.
const maxTokenLen = 4096

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Service implements the high-level authentication operations for the portal.
//
// It orchestrates lockout policy, token issuance, and the credential store for
// login, refresh, logout and logout-all, and owns the background refresh-token
// sweeper via Start/Stop.
type Service struct {
	cfg     Config
	store   identity.Store
	hasher  password.Hasher
	lockout LockoutPolicy
	issuer  *Issuer
	log     *slog.Logger

	now func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewService constructs a Service with injected dependencies.
func NewService(cfg Config, store identity.Store, hasher password.Hasher, lockout LockoutPolicy, issuer *Issuer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		store:   store,
		hasher:  hasher,
		lockout: lockout,
		issuer:  issuer,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// PublicUser is the identity projection returned to callers.
// It never carries the password hash.
type PublicUser struct {
	ID        string
	Email     string
	Name      *string
	CreatedAt time.Time
	LastLogin *time.Time
}

func publicUser(u identity.User) PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

// LoginResult carries the tokens and identity returned by a successful login.
type LoginResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	ExpiresIn       int64 // seconds
	RefreshToken    string
	User            PublicUser
}

// RefreshResult carries the fresh access token minted by Refresh.
type RefreshResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	ExpiresIn       int64 // seconds
}

// ExternalIdentity is a verified identity delivered by an OAuth provider.
// The handshake itself is outside this package; by the time a value arrives
// here the provider has already proven ownership of the email.
type ExternalIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// Register validates input, hashes the password, and creates the identity.
//
// Validation happens before touching the store. Duplicate emails return
// ErrConflict. The returned projection never includes the hash.
func (s *Service) Register(ctx context.Context, email, plainPassword string, name *string) (PublicUser, error) {
	const op = "session.Register"

	email = strings.TrimSpace(email)
	if !emailRe.MatchString(email) {
		return PublicUser{}, ValidationError{Field: "email", Msg: "invalid email format"}
	}
	if len(plainPassword) < minPasswordLen {
		return PublicUser{}, ValidationError{Field: "password", Msg: "password must be at least 6 characters long"}
	}

	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return PublicUser{}, storeFault(op, err)
	}

	u, err := s.store.CreateUser(ctx, identity.CreateUserInput{
		Email:        email,
		PasswordHash: &hash,
		Name:         name,
		Now:          s.now(),
	})
	if err != nil {
		if identity.IsConflict(err) {
			return PublicUser{}, ErrConflict
		}
		if identity.IsInvalidInput(err) {
			return PublicUser{}, ValidationError{Field: "email", Msg: "invalid input"}
		}
		return PublicUser{}, storeFault(op, err)
	}

	s.log.Info("auth.register", "user_id", u.ID)
	return publicUser(u), nil
}

// Login verifies credentials and issues an access/refresh token pair.
//
// State machine per attempt: lock check, then credential check, then one of
// success, fail, or locked. The lock check precedes password verification so
// a locked account never reaches the hasher. Unknown emails and wrong
// passwords produce the same ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, plainPassword string) (LoginResult, error) {
	const op = "session.Login"
	email = strings.TrimSpace(email)

	locked, err := s.lockout.IsLocked(ctx, email)
	if err != nil {
		loginTotal.WithLabelValues(outcomeError).Inc()
		return LoginResult{}, storeFault(op, err)
	}
	if locked {
		loginTotal.WithLabelValues(outcomeLocked).Inc()
		return LoginResult{}, ErrAccountLocked
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if identity.IsNotFound(err) {
			loginTotal.WithLabelValues(outcomeInvalid).Inc()
			return LoginResult{}, ErrInvalidCredentials
		}
		loginTotal.WithLabelValues(outcomeError).Inc()
		return LoginResult{}, storeFault(op, err)
	}

	// OAuth-only accounts have no hash; indistinguishable from an unknown
	// email on the wire, and not counted as a failed attempt.
	if !u.HasPassword() {
		loginTotal.WithLabelValues(outcomeInvalid).Inc()
		return LoginResult{}, ErrInvalidCredentials
	}

	if !u.Active {
		loginTotal.WithLabelValues(outcomeDeactivated).Inc()
		return LoginResult{}, ErrAccountDeactivated
	}

	if !s.hasher.Verify(plainPassword, *u.PasswordHash) {
		return LoginResult{}, s.recordLoginFailure(ctx, op, email)
	}

	if err := s.lockout.Clear(ctx, email); err != nil {
		loginTotal.WithLabelValues(outcomeError).Inc()
		return LoginResult{}, storeFault(op, err)
	}

	res, err := s.issueTokens(ctx, op, u)
	if err != nil {
		loginTotal.WithLabelValues(outcomeError).Inc()
		return LoginResult{}, err
	}

	loginTotal.WithLabelValues(outcomeSuccess).Inc()
	s.log.Info("auth.login", "user_id", u.ID)
	return res, nil
}

func (s *Service) recordLoginFailure(ctx context.Context, op, email string) error {
	count, err := s.lockout.RecordFailure(ctx, email)
	if err != nil {
		loginTotal.WithLabelValues(outcomeError).Inc()
		return storeFault(op, err)
	}

	if count >= s.cfg.MaxLoginAttempts {
		if err := s.lockout.Lock(ctx, email, s.cfg.LockoutDuration); err != nil {
			loginTotal.WithLabelValues(outcomeError).Inc()
			return storeFault(op, err)
		}
		loginTotal.WithLabelValues(outcomeLocked).Inc()
		s.log.Info("auth.login.locked", "attempts", count)
		return ErrAccountLocked
	}

	loginTotal.WithLabelValues(outcomeInvalid).Inc()
	return ErrInvalidCredentials
}

// LoginOrRegister logs in, auto-provisioning the account when the email is
// unregistered.
//
// The retry is an explicit two-step sequence bounded at one: register, then a
// single further Login call. A second failure after registration is a hard
// failure. Auto-provisioning intentionally trades away part of Login's
// account-existence hiding: a caller can infer that an email was unregistered
// by observing the newly created account.
func (s *Service) LoginOrRegister(ctx context.Context, email, plainPassword string) (LoginResult, error) {
	res, err := s.Login(ctx, email, plainPassword)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, ErrInvalidCredentials) {
		return LoginResult{}, err
	}

	// Only provision when the email has no identity; an existing account with
	// a wrong password keeps the original failure.
	if _, lookupErr := s.store.GetUserByEmail(ctx, strings.TrimSpace(email)); lookupErr == nil {
		return LoginResult{}, err
	} else if !identity.IsNotFound(lookupErr) {
		return LoginResult{}, storeFault("session.LoginOrRegister", lookupErr)
	}

	if _, regErr := s.Register(ctx, email, plainPassword, nil); regErr != nil {
		return LoginResult{}, regErr
	}

	return s.Login(ctx, email, plainPassword)
}

// LoginExternal completes an OAuth-delegated login: it creates the identity on
// first sight of the email, links the external subject to an existing account
// that lacks one, and then issues tokens as a successful login.
func (s *Service) LoginExternal(ctx context.Context, ext ExternalIdentity) (LoginResult, error) {
	const op = "session.LoginExternal"

	email := strings.TrimSpace(ext.Email)
	if !emailRe.MatchString(email) || ext.Subject == "" {
		return LoginResult{}, ValidationError{Field: "external_identity", Msg: "missing subject or email"}
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case identity.IsNotFound(err):
		var name *string
		if n := strings.TrimSpace(ext.Name); n != "" {
			name = &n
		}
		subject := ext.Subject
		u, err = s.store.CreateUser(ctx, identity.CreateUserInput{
			Email:    email,
			Name:     name,
			GoogleID: &subject,
			Now:      s.now(),
		})
		if err != nil {
			return LoginResult{}, storeFault(op, err)
		}
		s.log.Info("auth.oauth.provisioned", "user_id", u.ID, "provider", ext.Provider)
	case err != nil:
		return LoginResult{}, storeFault(op, err)
	default:
		if !u.Active {
			return LoginResult{}, ErrAccountDeactivated
		}
		if u.GoogleID == nil {
			if err := s.store.LinkGoogleID(ctx, u.ID, ext.Subject, s.now()); err != nil {
				return LoginResult{}, storeFault(op, err)
			}
		}
	}

	res, err := s.issueTokens(ctx, op, u)
	if err != nil {
		return LoginResult{}, err
	}

	loginTotal.WithLabelValues(outcomeSuccess).Inc()
	s.log.Info("auth.login.oauth", "user_id", u.ID, "provider", ext.Provider)
	return res, nil
}

func (s *Service) issueTokens(ctx context.Context, op string, u identity.User) (LoginResult, error) {
	now := s.now()

	access, exp, err := s.issuer.IssueAccessToken(u, now)
	if err != nil {
		return LoginResult{}, storeFault(op, err)
	}

	refresh, err := s.issuer.NewRefreshToken()
	if err != nil {
		return LoginResult{}, storeFault(op, err)
	}

	if err := s.store.CreateRefreshToken(ctx, u.ID, refresh, now.Add(s.cfg.RefreshTokenTTL), now); err != nil {
		return LoginResult{}, storeFault(op, err)
	}

	if err := s.store.RecordLoginSuccess(ctx, u.ID, now); err != nil {
		return LoginResult{}, storeFault(op, err)
	}
	u.LastLogin = &now

	return LoginResult{
		AccessToken:     access,
		AccessExpiresAt: exp,
		ExpiresIn:       int64(s.issuer.AccessTTL().Seconds()),
		RefreshToken:    refresh,
		User:            publicUser(u),
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token.
//
// The refresh token itself is not rotated: the same opaque token remains valid
// until its fixed expiry or explicit revocation, so concurrent refreshes with
// the same token are idempotent and each returns a fresh access token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResult, error) {
	const op = "session.Refresh"

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" || len(refreshToken) > maxTokenLen {
		refreshTotal.WithLabelValues(outcomeInvalid).Inc()
		return RefreshResult{}, ErrInvalidToken
	}

	now := s.now()

	t, err := s.store.GetValidRefreshToken(ctx, refreshToken, now)
	if err != nil {
		if identity.IsNotFound(err) {
			refreshTotal.WithLabelValues(outcomeInvalid).Inc()
			return RefreshResult{}, ErrInvalidToken
		}
		refreshTotal.WithLabelValues(outcomeError).Inc()
		return RefreshResult{}, storeFault(op, err)
	}

	u, err := s.store.GetUserByID(ctx, t.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			refreshTotal.WithLabelValues(outcomeInvalid).Inc()
			return RefreshResult{}, ErrInvalidToken
		}
		refreshTotal.WithLabelValues(outcomeError).Inc()
		return RefreshResult{}, storeFault(op, err)
	}
	if !u.Active {
		refreshTotal.WithLabelValues(outcomeInvalid).Inc()
		return RefreshResult{}, ErrInvalidToken
	}

	access, exp, err := s.issuer.IssueAccessToken(u, now)
	if err != nil {
		refreshTotal.WithLabelValues(outcomeError).Inc()
		return RefreshResult{}, storeFault(op, err)
	}

	refreshTotal.WithLabelValues(outcomeSuccess).Inc()
	return RefreshResult{
		AccessToken:     access,
		AccessExpiresAt: exp,
		ExpiresIn:       int64(s.issuer.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the supplied refresh token, if any.
//
// It is best-effort and always succeeds from the caller's perspective:
// revoking an already-revoked or unknown token is not an error, and downstream
// revocation failures are logged, never surfaced.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" || len(refreshToken) > maxTokenLen {
		return
	}
	if err := s.store.RevokeRefreshToken(ctx, refreshToken); err != nil {
		s.log.Error("auth.logout.revoke.fail", "err", err)
	}
}

// LogoutAll revokes every refresh token owned by the user.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.store.RevokeAllForUser(ctx, userID); err != nil {
		return storeFault("session.LogoutAll", err)
	}
	s.log.Info("auth.logout_all", "user_id", userID)
	return nil
}

// VerifyAccessToken validates an access token and returns its claims.
// Expiry is reported as ErrTokenExpired, distinct from other failures.
func (s *Service) VerifyAccessToken(token string) (Claims, error) {
	return s.issuer.VerifyAccessToken(token, s.now())
}

// User loads the public identity projection for an authenticated subject.
func (s *Service) User(ctx context.Context, userID string) (PublicUser, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if identity.IsNotFound(err) {
			return PublicUser{}, ErrInvalidToken
		}
		return PublicUser{}, storeFault("session.User", err)
	}
	return publicUser(u), nil
}

// Start launches the background refresh-token sweeper.
// Safe to call once; subsequent calls are no-ops.
func (s *Service) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.sweepLoop()
	})
}

// Stop terminates the sweeper and waits for it to exit.
// Safe to call even when Start was never invoked.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	if s.started.Load() {
		<-s.doneCh
	}
}

// sweepLoop purges expired/revoked refresh tokens on a fixed interval.
// Failures are logged and swallowed; the sweep must never affect foreground
// login or refresh operations.
func (s *Service) sweepLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Service) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.store.PurgeRefreshTokens(ctx, s.now())
	if err != nil {
		s.log.Error("auth.sweep.fail", "err", err)
		return
	}
	if n > 0 {
		sweepPurged.Add(float64(n))
		s.log.Info("auth.sweep", "purged", n)
	}
}
