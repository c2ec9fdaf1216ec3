package service

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/authgate/internal/errs"
	"github.com/and161185/authgate/internal/identity"
	"github.com/and161185/authgate/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// SyncSessionToken stores the client's refresh material against the account
// named in the access token. The access token is decoded without
// verification and only selects the row.
func (s *AuthServiceImpl) SyncSessionToken(ctx context.Context, in SessionInput) error {
	if in.AccessToken == "" {
		return errs.BadRequest(CodeMissingSession, "Session with access_token is required")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(in.AccessToken, claims); err != nil {
		return errs.Unauthorized(CodeInvalidToken, "Invalid token format")
	}
	email, _ := claims["email"].(string)
	email = strings.TrimSpace(email)
	if email == "" {
		return errs.Unauthorized(CodeInvalidToken, "User email not found in token")
	}

	n, err := s.users.UpdateRefreshToken(ctx, email, in.Refresh.Token, in.Refresh.ExpiresAt.Ptr())
	if err != nil {
		return s.internal(CodeSyncFailed, "Failed to sync refresh token", err)
	}
	if n == 0 {
		s.log.Warn("refresh token sync matched no account")
	}
	return nil
}

// CheckLogin reconciles a bearer token with the local account, storing
// refresh material when supplied.
func (s *AuthServiceImpl) CheckLogin(ctx context.Context, bearer string, refresh *model.RefreshMaterial) (*Session, error) {
	if bearer == "" {
		return nil, errs.Unauthorized(CodeMissingToken, "Authorization token required")
	}
	u, id, err := s.bridge.Reconcile(ctx, bearer, refresh)
	switch {
	case err == nil:
		return &Session{User: u, Identity: id}, nil
	case errors.Is(err, identity.ErrInvalidAccessToken):
		return nil, errs.Unauthorized(CodeInvalidAccessToken, "Invalid access token")
	case errors.Is(err, identity.ErrUserInactive):
		return nil, errs.Unauthorized(CodeUserInactive, "User not found or inactive")
	case errors.Is(err, identity.ErrProviderUnavailable):
		s.log.Warn("identity provider unavailable", zap.Error(err))
		return nil, errs.Unauthorized(CodeTokenVerificationFailed, "Failed to verify access token")
	default:
		return nil, s.internal(CodeInternal, "Internal server error", err)
	}
}
