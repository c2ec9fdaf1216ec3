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
	msgForgotAccepted = "If an account with that email exists, a password reset link has been sent."
	msgResetDone      = "Password has been reset successfully. You can now sign in with your new password."
)

// ForgotPassword mails a reset link when the address belongs to an account.
// Known and unknown addresses get the same answer.
func (s *AuthServiceImpl) ForgotPassword(ctx context.Context, email string) (*ForgotResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errs.BadRequest(CodeMissingEmail, "Email address is required")
	}
	if !emailRe.MatchString(email) {
		return nil, errs.BadRequest(CodeInvalidEmail, "Invalid email format")
	}
	accepted := &ForgotResult{Email: email, Message: msgForgotAccepted}

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, errs.ErrNotFound) {
		return accepted, nil
	}
	if err != nil {
		return nil, s.internal(CodePasswordResetError, "Failed to process password reset request", err)
	}

	tok, err := s.codec.Issue(tokens.PurposePasswordReset, u.Email, u.Username)
	if err != nil {
		return nil, s.internal(CodePasswordResetError, "Failed to process password reset request", err)
	}
	reserved, err := s.users.ReserveResetDispatch(ctx, u.Email, tokens.HashToken(tok), ResetWindow)
	if err != nil {
		return nil, s.internal(CodePasswordResetError, "Failed to process password reset request", err)
	}
	if !reserved {
		return nil, errs.TooManyRequests(CodeRateLimited, "Password reset email was already sent recently. Please wait before requesting another.")
	}

	if err := s.mail.SendPasswordReset(ctx, u.Email, u.Username, tok); err != nil {
		if rerr := s.users.ReleaseResetDispatch(context.WithoutCancel(ctx), u.Email, tokens.HashToken(tok)); rerr != nil {
			s.log.Warn("reset slot not released", zap.Int64("user_id", u.ID), zap.Error(rerr))
		}
		return nil, s.internal(CodeEmailSendFailed, "Failed to send password reset email. Please try again later.", err)
	}
	s.log.Info("password reset email sent", zap.Int64("user_id", u.ID))
	return accepted, nil
}

// passwordPolicy validates a new password.
func passwordPolicy(pw string) *errs.Error {
	if len([]rune(pw)) < minPasswordLen {
		return errs.BadRequest(CodePasswordTooShort, "Password must be at least 6 characters long")
	}
	if c := CheckPassword(pw); !c.Strong() {
		e := errs.BadRequest(CodePasswordTooWeak,
			"Password must contain at least 3 of the following: lowercase letter, uppercase letter, number, special character")
		e.Details = c
		return e
	}
	return nil
}

// ResetPassword sets a new password using a reset token. The token is
// single-use: it must be the outstanding one recorded for the account.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, in ResetInput, meta model.RequestMeta) (*ResetResult, error) {
	switch {
	case in.Token == "":
		return nil, errs.BadRequest(CodeMissingToken, "Password reset token is required")
	case in.NewPassword == "":
		return nil, errs.BadRequest(CodeMissingPassword, "New password is required")
	case in.ConfirmPassword == "":
		return nil, errs.BadRequest(CodeMissingConfirmation, "Password confirmation is required")
	case in.NewPassword != in.ConfirmPassword:
		return nil, errs.BadRequest(CodePasswordMismatch, "Passwords do not match")
	}
	if e := passwordPolicy(in.NewPassword); e != nil {
		return nil, e
	}

	sub, err := s.codec.Verify(tokens.PurposePasswordReset, in.Token)
	if err != nil {
		return nil, errs.BadRequest(CodeTokenVerificationFailed, tokenFailureMessage(err, "password reset"))
	}

	u, err := s.users.FindByEmail(ctx, sub.Email)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.NotFound(CodeUserNotFound, "User account not found")
	}
	if err != nil {
		return nil, s.internal(CodeDatabaseError, "Failed to update password. Please try again.", err)
	}

	hash, err := s.hash(in.NewPassword)
	if err != nil {
		return nil, s.internal(CodePasswordResetError, "Failed to reset password", err)
	}
	n, err := s.users.UpdatePassword(ctx, u.Email, hash, tokens.HashToken(in.Token))
	if err != nil {
		return nil, s.internal(CodeDatabaseError, "Failed to update password. Please try again.", err)
	}
	if n == 0 {
		return nil, errs.BadRequest(CodeTokenVerificationFailed, "Password reset link has already been used or replaced by a newer one")
	}

	s.recordEvent(ctx, u, model.EventPasswordReset, meta, map[string]any{"reset_method": "email_token"})
	return &ResetResult{Email: u.Email, Username: u.Username, PasswordResetAt: s.now().UTC(), Message: msgResetDone}, nil
}

// tokenFailureMessage turns a codec error into a client message.
func tokenFailureMessage(err error, what string) string {
	switch {
	case errors.Is(err, tokens.ErrExpired):
		return "The " + what + " link has expired. Please request a new one."
	case errors.Is(err, tokens.ErrWrongPurpose), errors.Is(err, tokens.ErrWrongAudience), errors.Is(err, tokens.ErrWrongIssuer):
		return "This token is not valid for " + what + "."
	default:
		return "Invalid " + what + " token"
	}
}
