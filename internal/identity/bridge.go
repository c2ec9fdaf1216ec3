package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/authgate/internal/errs"
	"github.com/and161185/authgate/internal/model"
	"go.uber.org/zap"
)

// Users is the slice of the user repository the bridge depends on.
type Users interface {
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)
	UpdateRefreshToken(ctx context.Context, email, token string, expiresAt *time.Time) (int64, error)
}

// Bridge turns an externally authenticated bearer into a local account.
type Bridge struct {
	provider Provider
	users    Users
	log      *zap.Logger
}

// NewBridge wires a provider to the user store.
func NewBridge(p Provider, users Users, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{provider: p, users: users, log: log}
}

// Reconcile verifies bearer, loads the linked user and, when refresh is
// complete, persists it before returning the updated user.
func (b *Bridge) Reconcile(ctx context.Context, bearer string, refresh *model.RefreshMaterial) (*model.User, Identity, error) {
	id, err := b.provider.Verify(ctx, bearer)
	if err != nil {
		return nil, Identity{}, err
	}

	u, err := b.users.FindByExternalID(ctx, id.ID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, id, ErrUserInactive
	}
	if err != nil {
		return nil, id, fmt.Errorf("load user: %w", err)
	}

	if refresh != nil && refresh.Complete() {
		exp := refresh.ExpiresAt.Ptr()
		if _, err := b.users.UpdateRefreshToken(ctx, u.Email, refresh.Token, exp); err != nil {
			return nil, id, fmt.Errorf("store refresh token: %w", err)
		}
		tok := refresh.Token
		u.RefreshToken = &tok
		u.RefreshTokenExpiresAt = exp
		b.log.Debug("refresh token synced", zap.Int64("user_id", u.ID))
	}
	return u, id, nil
}
