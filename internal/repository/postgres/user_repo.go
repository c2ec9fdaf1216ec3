package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/authgate/internal/errs"
	"github.com/and161185/authgate/internal/model"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, uuid, username, email, firstname, lastname, password,
is_verified, email_verified_at, refresh_token, refresh_token_expires_at, last_login,
password_reset_requested_at, last_password_reset_email_sent_at, password_reset_at,
password_reset_token_hash, password_reset_attempts,
email_verification_requested_at, last_verification_email_sent_at,
verification_token_hash, verification_attempts, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.ExternalID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.IsVerified, &u.EmailVerifiedAt, &u.RefreshToken, &u.RefreshTokenExpiresAt, &u.LastLogin,
		&u.PasswordResetRequestedAt, &u.LastPasswordResetEmailSentAt, &u.PasswordResetAt,
		&u.PasswordResetTokenHash, &u.PasswordResetAttempts,
		&u.EmailVerificationRequestedAt, &u.LastVerificationEmailSentAt,
		&u.VerificationTokenHash, &u.VerificationAttempts, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// NormalizeEmail trims and lower-cases an address the way it is stored.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// FindByIdentifier selects a user by username or email.
func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	q := `SELECT ` + userColumns + `
FROM users WHERE username=$1 OR email=$2 ORDER BY id LIMIT 1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, strings.TrimSpace(identifier), NormalizeEmail(identifier)))
}

// FindConflict selects the first user holding username or email.
func (r *UserRepo) FindConflict(ctx context.Context, username, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + `
FROM users WHERE username=$1 OR email=$2 ORDER BY id LIMIT 1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, strings.TrimSpace(username), NormalizeEmail(email)))
}

// FindByEmail selects a user by email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + `
FROM users WHERE email=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, NormalizeEmail(email)))
}

// FindByExternalID selects a user by identity-provider subject.
func (r *UserRepo) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	q := `SELECT ` + userColumns + `
FROM users WHERE uuid=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, externalID))
}

// Create inserts a new user row and returns it.
func (r *UserRepo) Create(ctx context.Context, nu model.NewUser) (*model.User, error) {
	q := `
INSERT INTO users (uuid, username, email, firstname, lastname, password)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns
	u, err := scanUser(r.db.Pool.QueryRow(ctx, q,
		nu.ExternalID,
		strings.TrimSpace(nu.Username),
		NormalizeEmail(nu.Email),
		optional(nu.FirstName),
		optional(nu.LastName),
		optional(nu.PasswordHash),
	))
	if isUniqueViolation(err) {
		return nil, errs.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// UpdatePassword replaces the hash and consumes the outstanding reset token.
func (r *UserRepo) UpdatePassword(ctx context.Context, email, passwordHash, tokenHash string) (int64, error) {
	const q = `
UPDATE users
SET password = $2, password_reset_at = now(), password_reset_token_hash = NULL, updated_at = now()
WHERE email = $1 AND password_reset_token_hash = $3`
	tag, err := r.db.Pool.Exec(ctx, q, NormalizeEmail(email), passwordHash, tokenHash)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateRefreshToken stores refresh material and stamps last_login. An
// empty token clears the column.
func (r *UserRepo) UpdateRefreshToken(ctx context.Context, email, token string, expiresAt *time.Time) (int64, error) {
	const q = `
UPDATE users
SET refresh_token = $2, refresh_token_expires_at = $3, last_login = now(), updated_at = now()
WHERE email = $1`
	tag, err := r.db.Pool.Exec(ctx, q, NormalizeEmail(email), optional(token), expiresAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkVerified flips is_verified once, consuming the outstanding token.
func (r *UserRepo) MarkVerified(ctx context.Context, email, tokenHash string) (int64, error) {
	const q = `
UPDATE users
SET is_verified = true, email_verified_at = now(), verification_token_hash = NULL, updated_at = now()
WHERE email = $1 AND is_verified = false AND verification_token_hash = $2`
	tag, err := r.db.Pool.Exec(ctx, q, NormalizeEmail(email), tokenHash)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ReserveResetDispatch is a compare-and-set on last_password_reset_email_sent_at.
func (r *UserRepo) ReserveResetDispatch(ctx context.Context, email, tokenHash string, window time.Duration) (bool, error) {
	const q = `
UPDATE users
SET password_reset_requested_at = now(),
    last_password_reset_email_sent_at = now(),
    password_reset_token_hash = $2,
    password_reset_attempts = COALESCE(password_reset_attempts, 0) + 1,
    updated_at = now()
WHERE email = $1
  AND (last_password_reset_email_sent_at IS NULL OR last_password_reset_email_sent_at < now() - $3::interval)`
	tag, err := r.db.Pool.Exec(ctx, q, NormalizeEmail(email), tokenHash, window)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseResetDispatch undoes ReserveResetDispatch for tokenHash.
func (r *UserRepo) ReleaseResetDispatch(ctx context.Context, email, tokenHash string) error {
	const q = `
UPDATE users
SET last_password_reset_email_sent_at = NULL, password_reset_token_hash = NULL, updated_at = now()
WHERE email = $1 AND password_reset_token_hash = $2`
	_, err := r.db.Pool.Exec(ctx, q, NormalizeEmail(email), tokenHash)
	return err
}

// RecordVerificationDispatch stores the outstanding verification token hash.
func (r *UserRepo) RecordVerificationDispatch(ctx context.Context, email, tokenHash string) error {
	const q = `
UPDATE users
SET email_verification_requested_at = now(),
    last_verification_email_sent_at = now(),
    verification_token_hash = $2,
    verification_attempts = COALESCE(verification_attempts, 0) + 1,
    updated_at = now()
WHERE email = $1`
	tag, err := r.db.Pool.Exec(ctx, q, NormalizeEmail(email), tokenHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
