package service

import (
	"context"
	"errors"
	"strings"

	"github.com/and161185/authgate/internal/errs"
	"github.com/and161185/authgate/internal/model"
	"github.com/and161185/authgate/internal/tokens"
	"go.uber.org/zap"
)

const (
	msgVerified        = "Email verified successfully"
	msgAlreadyVerified = "Email was already verified"
	msgResent          = "Verification email sent successfully"
)

// ResendVerification issues a fresh verification token. The address comes
// from the request or, failing that, from a possibly expired token.
func (s *AuthServiceImpl) ResendVerification(ctx context.Context, in ResendInput) (*ResendResult, error) {
	email := strings.TrimSpace(in.Email)
	viaToken := false

	if email == "" && in.Token != "" {
		sub, expired, err := s.codec.DecodeUnverified(in.Token)
		if err != nil {
			return nil, errs.BadRequest(CodeInvalidTokenNoEmail, "Invalid token provided and no email specified")
		}
		s.log.Debug("resend address recovered from token", zap.Bool("expired", expired))
		email, viaToken = sub.Email, true
	}
	if email == "" {
		return nil, errs.BadRequest(CodeMissingEmail, "Email is required (either directly or via valid token)")
	}

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.NotFound(CodeUserNotFound, "User not found")
	}
	if err != nil {
		return nil, s.internal(CodeResendFailed, "Failed to resend verification email", err)
	}

	if err := s.dispatchVerification(ctx, u); err != nil {
		return nil, s.internal(CodeEmailSendFailed, "Failed to send verification email", err)
	}
	return &ResendResult{Email: u.Email, Username: u.Username, SentViaToken: viaToken, Message: msgResent}, nil
}

// VerifyEmail marks the account verified. Repeating it for a verified account
// succeeds without changes.
func (s *AuthServiceImpl) VerifyEmail(ctx context.Context, token string, meta model.RequestMeta) (*VerifyResult, error) {
	if token == "" {
		return nil, errs.BadRequest(CodeMissingToken, "Verification token is required")
	}
	sub, err := s.codec.Verify(tokens.PurposeEmailVerification, token)
	if err != nil {
		return nil, errs.BadRequest(CodeVerificationFailed, tokenFailureMessage(err, "email verification"))
	}

	u, err := s.users.FindByEmail(ctx, sub.Email)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.BadRequest(CodeVerificationFailed, "User not found")
	}
	if err != nil {
		return nil, s.internal(CodeVerificationError, "Failed to verify email", err)
	}
	if u.IsVerified {
		return verified(u, true), nil
	}

	n, err := s.users.MarkVerified(ctx, u.Email, tokens.HashToken(token))
	if err != nil {
		return nil, s.internal(CodeVerificationError, "Failed to verify email", err)
	}
	if n == 0 {
		// a concurrent request may have verified it first
		again, err := s.users.FindByEmail(ctx, u.Email)
		if err == nil && again.IsVerified {
			return verified(again, true), nil
		}
		return nil, errs.BadRequest(CodeVerificationFailed, "This verification link has been replaced by a newer one")
	}

	s.recordEvent(ctx, u, model.EventEmailVerified, meta, nil)
	u.IsVerified = true
	return verified(u, false), nil
}

func verified(u *model.User, already bool) *VerifyResult {
	msg := msgVerified
	if already {
		msg = msgAlreadyVerified
	}
	return &VerifyResult{Email: u.Email, Username: u.Username, AlreadyVerified: already, Message: msg}
}
