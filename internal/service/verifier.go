package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgcrypto "github.com/and161185/authgate/internal/crypto"
	"github.com/and161185/authgate/internal/errs"
	"github.com/and161185/authgate/internal/limiter"
	"github.com/and161185/authgate/internal/model"
	"github.com/and161185/authgate/internal/repository"
	"go.uber.org/zap"
)

// Credential modes selectable by configuration.
const (
	ModeLocal     = "local"
	ModeDelegated = "delegated"
)

// ErrInvalidCredentials is returned for unknown accounts and wrong passwords alike.
var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", errs.ErrUnauthorized)

// LockedError reports a temporary sign-in lockout.
type LockedError struct{ RetryAfter time.Duration }

func (e *LockedError) Error() string { return fmt.Sprintf("locked for %s", e.RetryAfter) }

func (e *LockedError) Unwrap() error { return errs.ErrRateLimited }

// CredentialVerifier decides whether a sign-in attempt proves ownership of
// an account.
type CredentialVerifier interface {
	Authenticate(ctx context.Context, identifier, password string, meta model.RequestMeta) (*model.User, error)
	// Mode is ModeLocal or ModeDelegated.
	Mode() string
}

// DelegatedIdentityVerifier trusts that the identity provider already
// authenticated the caller and only checks the account exists.
type DelegatedIdentityVerifier struct {
	users repository.UserRepository
}

// NewDelegatedIdentityVerifier returns a delegated verifier.
func NewDelegatedIdentityVerifier(users repository.UserRepository) *DelegatedIdentityVerifier {
	return &DelegatedIdentityVerifier{users: users}
}

func (v *DelegatedIdentityVerifier) Mode() string { return ModeDelegated }

func (v *DelegatedIdentityVerifier) Authenticate(ctx context.Context, identifier, _ string, _ model.RequestMeta) (*model.User, error) {
	u, err := v.users.FindByIdentifier(ctx, identifier)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	return u, err
}

// LocalPasswordVerifier compares the stored Argon2id hash and applies the
// per (identifier, ip) lockout.
type LocalPasswordVerifier struct {
	users repository.UserRepository
	lim   limiter.Limiter
	log   *zap.Logger
}

// NewLocalPasswordVerifier returns a local verifier. A nil limiter disables lockout.
func NewLocalPasswordVerifier(users repository.UserRepository, lim limiter.Limiter, log *zap.Logger) *LocalPasswordVerifier {
	if lim == nil {
		lim = limiter.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LocalPasswordVerifier{users: users, lim: lim, log: log}
}

func (v *LocalPasswordVerifier) Mode() string { return ModeLocal }

func (v *LocalPasswordVerifier) Authenticate(ctx context.Context, identifier, password string, meta model.RequestMeta) (*model.User, error) {
	ipHash := limiter.HashIP(meta.IP)

	allowed, wait, err := v.lim.Allow(ctx, identifier, ipHash)
	if err != nil {
		return nil, fmt.Errorf("limiter: %w", err)
	}
	if !allowed {
		return nil, &LockedError{RetryAfter: wait}
	}

	u, err := v.users.FindByIdentifier(ctx, identifier)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if err == nil && u.PasswordHash != nil && password != "" {
		ok, verr := pkgcrypto.VerifyPassword(password, *u.PasswordHash)
		if verr != nil {
			v.log.Error("stored password hash unreadable", zap.Int64("user_id", u.ID), zap.Error(verr))
		}
		if ok {
			if serr := v.lim.Success(ctx, identifier, ipHash); serr != nil {
				v.log.Warn("limiter reset failed", zap.Error(serr))
			}
			return u, nil
		}
	}

	// unknown user, missing hash and wrong password all count as a failure
	blocked, wait, ferr := v.lim.Failure(ctx, identifier, ipHash)
	if ferr != nil {
		v.log.Warn("limiter failure not recorded", zap.Error(ferr))
	}
	if blocked {
		return nil, &LockedError{RetryAfter: wait}
	}
	return nil, ErrInvalidCredentials
}
