package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and db-less development mode.
// All methods are safe for concurrent use; the mutex is the serialization
// point for the per-user counters.
type MemoryStore struct {
	mu     sync.Mutex
	users  map[string]*User         // by id
	emails map[string]string        // email -> id
	tokens map[string]*RefreshToken // by token
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]*User),
		emails: make(map[string]string),
		tokens: make(map[string]*RefreshToken),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	email := strings.TrimSpace(in.Email)
	if email == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email is required"}
	}
	if !in.HasCredential() {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "password hash or google id is required"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emails[email]; exists {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	id, err := NewID(now)
	if err != nil {
		return User{}, err
	}

	u := &User{
		ID:           id,
		Email:        email,
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		GoogleID:     in.GoogleID,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[id] = u
	s.emails[email] = id

	return *u, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[email]
	if !ok {
		return User{}, OpError{Op: "identity.GetUserByEmail", Kind: ErrNotFound}
	}
	return *s.users[id], nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, OpError{Op: "identity.GetUserByID", Kind: ErrNotFound}
	}
	return *u, nil
}

func (s *MemoryStore) LinkGoogleID(_ context.Context, userID, googleID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return OpError{Op: "identity.LinkGoogleID", Kind: ErrNotFound, Msg: "user"}
	}
	u.GoogleID = &googleID
	u.UpdatedAt = now
	return nil
}

func (s *MemoryStore) CreateRefreshToken(_ context.Context, userID, token string, expiresAt, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[token]; exists {
		return ConflictError{Op: "identity.CreateRefreshToken", Field: "refresh_token"}
	}
	s.tokens[token] = &RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	return nil
}

func (s *MemoryStore) GetValidRefreshToken(_ context.Context, token string, now time.Time) (RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok || !t.Valid(now) {
		return RefreshToken{}, OpError{Op: "identity.GetValidRefreshToken", Kind: ErrNotFound}
	}
	return *t, nil
}

func (s *MemoryStore) RevokeRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tokens[token]; ok {
		t.Revoked = true
	}
	return nil
}

func (s *MemoryStore) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (s *MemoryStore) PurgeRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, t := range s.tokens {
		if t.Revoked || !t.ExpiresAt.After(now) {
			delete(s.tokens, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) RecordLoginSuccess(_ context.Context, userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return OpError{Op: "identity.RecordLoginSuccess", Kind: ErrNotFound, Msg: "user"}
	}
	u.LastLogin = &now
	u.FailedAttempts = 0
	u.LockedUntil = nil
	u.UpdatedAt = now
	return nil
}

func (s *MemoryStore) IncrementFailedAttempts(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[email]
	if !ok {
		return 0, nil
	}
	u := s.users[id]
	u.FailedAttempts++
	return u.FailedAttempts, nil
}

func (s *MemoryStore) LockUntil(_ context.Context, email string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.emails[email]; ok {
		s.users[id].LockedUntil = &until
	}
	return nil
}

func (s *MemoryStore) IsLocked(_ context.Context, email string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[email]
	if !ok {
		return false, nil
	}
	return s.users[id].Locked(now), nil
}

func (s *MemoryStore) ClearLock(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.emails[email]; ok {
		u := s.users[id]
		u.FailedAttempts = 0
		u.LockedUntil = nil
	}
	return nil
}

// SetActive flips the active flag. Test/admin helper; deactivation is the only
// account state change this core performs besides lockout.
func (s *MemoryStore) SetActive(userID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[userID]; ok {
		u.Active = active
	}
}

var _ Store = (*MemoryStore)(nil)
