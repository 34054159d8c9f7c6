package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// Design notes:
//   - The pgx pool is owned by the caller; this store must NOT close it.
//   - Schema/table identifiers are safely quoted.
//   - Counter updates (failed attempts, lock expiry, login success) are single
//     UPDATE statements, so they are atomic per row without explicit
//     transactions.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the store (default "portal").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "portal",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) users() string  { return pgIdent(s.schema, "users") }
func (s *PostgresStore) tokens() string { return pgIdent(s.schema, "refresh_tokens") }

const userColumns = `
	id, email, password_hash, name, google_id,
	is_active, failed_attempts, locked_until,
	created_at, updated_at, last_login`

// CreateUser inserts a new user row.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
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

	id, err := NewID(now)
	if err != nil {
		return User{}, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.users()+` (
			id, email, password_hash, name, google_id,
			is_active, failed_attempts, locked_until,
			created_at, updated_at, last_login
		) VALUES ($1, $2, $3, $4, $5, TRUE, 0, NULL, $6, $6, NULL)
	`, id, email, in.PasswordHash, in.Name, in.GoogleID, now)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return User{
		ID:           id,
		Email:        email,
		PasswordHash: in.PasswordHash,
		Name:         in.Name,
		GoogleID:     in.GoogleID,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetUserByEmail loads a user by exact email match.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, "identity.GetUserByEmail", `WHERE email = $1`, email)
}

// GetUserByID loads a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx, "identity.GetUserByID", `WHERE id = $1`, id)
}

func (s *PostgresStore) getUser(ctx context.Context, op, where string, arg any) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM `+s.users()+` `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.GoogleID,
		&u.Active,
		&u.FailedAttempts,
		&u.LockedUntil,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastLogin,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// LinkGoogleID attaches an external identity to an existing user.
func (s *PostgresStore) LinkGoogleID(ctx context.Context, userID, googleID string, now time.Time) error {
	const op = "identity.LinkGoogleID"

	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.users()+`
		SET google_id = $2, updated_at = $3
		WHERE id = $1
	`, userID, googleID, now)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return ConflictError{Op: op, Field: field}
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: op, Kind: ErrNotFound, Msg: "user"}
	}
	return nil
}

// CreateRefreshToken inserts a refresh token row.
func (s *PostgresStore) CreateRefreshToken(ctx context.Context, userID, token string, expiresAt, now time.Time) error {
	const op = "identity.CreateRefreshToken"

	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.tokens()+` (token, user_id, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
	`, token, userID, expiresAt, now)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return ConflictError{Op: op, Field: field}
		}
		return err
	}
	return nil
}

// GetValidRefreshToken loads a token row that is non-revoked and non-expired.
func (s *PostgresStore) GetValidRefreshToken(ctx context.Context, token string, now time.Time) (RefreshToken, error) {
	const op = "identity.GetValidRefreshToken"

	var t RefreshToken
	err := s.pool.QueryRow(ctx, `
		SELECT token, user_id, expires_at, revoked, created_at
		FROM `+s.tokens()+`
		WHERE token = $1 AND revoked = FALSE AND expires_at > $2
	`, token, now).Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RefreshToken{}, OpError{Op: op, Kind: ErrNotFound}
	}
	if err != nil {
		return RefreshToken{}, err
	}
	return t, nil
}

// RevokeRefreshToken marks a token revoked. Idempotent; unknown tokens are fine.
func (s *PostgresStore) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE `+s.tokens()+` SET revoked = TRUE WHERE token = $1
	`, token)
	return err
}

// RevokeAllForUser marks every token owned by the user revoked.
func (s *PostgresStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE `+s.tokens()+` SET revoked = TRUE WHERE user_id = $1
	`, userID)
	return err
}

// PurgeRefreshTokens deletes expired-or-revoked token rows.
func (s *PostgresStore) PurgeRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM `+s.tokens()+` WHERE expires_at < $1 OR revoked = TRUE
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RecordLoginSuccess sets last_login and clears lockout state in one update.
func (s *PostgresStore) RecordLoginSuccess(ctx context.Context, userID string, now time.Time) error {
	const op = "identity.RecordLoginSuccess"

	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.users()+`
		SET last_login = $2, failed_attempts = 0, locked_until = NULL, updated_at = $2
		WHERE id = $1
	`, userID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return OpError{Op: op, Kind: ErrNotFound, Msg: "user"}
	}
	return nil
}

// IncrementFailedAttempts bumps the counter atomically and returns the new
// count. Unknown emails return 0 without error.
func (s *PostgresStore) IncrementFailedAttempts(ctx context.Context, email string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		UPDATE `+s.users()+`
		SET failed_attempts = failed_attempts + 1
		WHERE email = $1
		RETURNING failed_attempts
	`, email).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// LockUntil sets the lock expiry for the account with the given email.
func (s *PostgresStore) LockUntil(ctx context.Context, email string, until time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE `+s.users()+` SET locked_until = $2 WHERE email = $1
	`, email, until)
	return err
}

// IsLocked reports whether the account is locked at now.
// Unknown emails report unlocked.
func (s *PostgresStore) IsLocked(ctx context.Context, email string, now time.Time) (bool, error) {
	var locked bool
	err := s.pool.QueryRow(ctx, `
		SELECT locked_until IS NOT NULL AND locked_until > $2
		FROM `+s.users()+`
		WHERE email = $1
	`, email, now).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return locked, nil
}

// ClearLock zeroes the failed-attempt counter and removes any lock expiry.
func (s *PostgresStore) ClearLock(ctx context.Context, email string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE `+s.users()+`
		SET failed_attempts = 0, locked_until = NULL
		WHERE email = $1
	`, email)
	return err
}

// ---- helpers ----

func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_users_email":
		return "email", true
	case "uq_users_google_id":
		return "google_id", true
	case "uq_refresh_tokens_token":
		return "refresh_token", true
	default:
		switch {
		case strings.Contains(c, "email"):
			return "email", true
		case strings.Contains(c, "google"):
			return "google_id", true
		case strings.Contains(c, "token"):
			return "refresh_token", true
		default:
			return "unique", true
		}
	}
}
