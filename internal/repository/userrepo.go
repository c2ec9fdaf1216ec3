// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/authgate/internal/model"
)

// UserRepository provides access to accounts and their token bookkeeping.
type UserRepository interface {
	// FindByIdentifier loads a user whose username or email equals identifier.
	FindByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	// FindConflict loads the first user holding either username or email.
	FindConflict(ctx context.Context, username, email string) (*model.User, error)
	// FindByEmail loads a user by normalized email.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// FindByExternalID loads a user by identity-provider subject.
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)

	// Create inserts a new unverified user; duplicates yield errs.ErrAlreadyExists.
	Create(ctx context.Context, u model.NewUser) (*model.User, error)

	// UpdatePassword stores a new hash if tokenHash is still the outstanding
	// reset token, and clears it. Returns rows affected.
	UpdatePassword(ctx context.Context, email, passwordHash, tokenHash string) (int64, error)
	// UpdateRefreshToken stores refresh material and stamps last_login.
	UpdateRefreshToken(ctx context.Context, email, token string, expiresAt *time.Time) (int64, error)
	// MarkVerified flips is_verified if tokenHash is the outstanding
	// verification token. Returns 0 when already verified or superseded.
	MarkVerified(ctx context.Context, email, tokenHash string) (int64, error)

	// ReserveResetDispatch atomically claims the reset-email slot for email
	// unless one was sent within window, recording tokenHash. Reports
	// whether the slot was claimed.
	ReserveResetDispatch(ctx context.Context, email, tokenHash string, window time.Duration) (bool, error)
	// ReleaseResetDispatch frees a slot claimed with tokenHash whose email
	// never went out. A slot already reclaimed by a newer token is kept.
	ReleaseResetDispatch(ctx context.Context, email, tokenHash string) error
	// RecordVerificationDispatch records the outstanding verification token.
	RecordVerificationDispatch(ctx context.Context, email, tokenHash string) error
}
