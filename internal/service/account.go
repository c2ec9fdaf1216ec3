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
	msgRegistered       = "User registered successfully. Please check your email to verify your account."
	msgRegisteredNoMail = "User registered successfully. Verification email could not be sent - please contact support."
	msgSignedIn         = "User signed in successfully"
	msgAuthFailed       = "Failed to process authentication"
)

// SignUp creates an unverified account and sends the first verification email.
// A failed email does not fail the registration.
func (s *AuthServiceImpl) SignUp(ctx context.Context, in SignUpInput) (*AccountResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" {
		return nil, errs.BadRequest(CodeMissingRequiredFields, "Username and email are required")
	}

	var pwHash string
	switch {
	case in.Password != "":
		if e := passwordPolicy(in.Password); e != nil {
			return nil, e
		}
		h, err := s.hash(in.Password)
		if err != nil {
			return nil, s.internal(CodeAuthFailed, msgAuthFailed, err)
		}
		pwHash = h
	case s.verifier.Mode() == ModeLocal:
		return nil, errs.BadRequest(CodeMissingRequiredFields, "Username, email and password are required")
	}

	return s.register(ctx, model.NewUser{
		ExternalID:   in.ExternalID,
		Username:     username,
		Email:        email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: pwHash,
	})
}

func (s *AuthServiceImpl) register(ctx context.Context, nu model.NewUser) (*AccountResult, error) {
	if e, err := s.checkConflict(ctx, nu.Username, nu.Email); err != nil {
		return nil, s.internal(CodeAuthFailed, msgAuthFailed, err)
	} else if e != nil {
		return nil, e
	}

	if nu.ExternalID == "" {
		id, err := s.newID()
		if err != nil {
			return nil, s.internal(CodeAuthFailed, msgAuthFailed, err)
		}
		nu.ExternalID = id
	}

	u, err := s.users.Create(ctx, nu)
	if errors.Is(err, errs.ErrAlreadyExists) {
		// lost a race with a concurrent sign-up
		if e, cerr := s.checkConflict(ctx, nu.Username, nu.Email); cerr == nil && e != nil {
			return nil, e
		}
		return nil, errs.Conflict(CodeUserExists, "An account with this username or email already exists", "")
	}
	if err != nil {
		return nil, s.internal(CodeAuthFailed, msgAuthFailed, err)
	}

	sent := s.sendVerification(ctx, u)
	msg := msgRegistered
	if !sent {
		msg = msgRegisteredNoMail
	}
	return &AccountResult{User: u, Created: true, EmailVerificationSent: sent, Message: msg}, nil
}

// checkConflict returns a USER_EXISTS error naming the taken field, or nil.
func (s *AuthServiceImpl) checkConflict(ctx context.Context, username, email string) (*errs.Error, error) {
	existing, err := s.users.FindConflict(ctx, username, email)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	field := "email"
	if existing.Username == strings.TrimSpace(username) {
		field = "username"
	}
	return errs.Conflict(CodeUserExists, "An account with this "+field+" already exists", field), nil
}

// sendVerification issues a token, records its hash and mails it. Failures
// are logged and reported as false.
func (s *AuthServiceImpl) sendVerification(ctx context.Context, u *model.User) bool {
	if err := s.dispatchVerification(ctx, u); err != nil {
		s.log.Warn("verification email not sent", zap.Int64("user_id", u.ID), zap.Error(err))
		return false
	}
	return true
}

func (s *AuthServiceImpl) dispatchVerification(ctx context.Context, u *model.User) error {
	tok, err := s.codec.Issue(tokens.PurposeEmailVerification, u.Email, u.Username)
	if err != nil {
		return err
	}
	if err := s.users.RecordVerificationDispatch(ctx, u.Email, tokens.HashToken(tok)); err != nil {
		return err
	}
	return s.mail.SendVerification(ctx, u.Email, u.Username, tok)
}

// SignIn authenticates by username or email through the configured verifier.
func (s *AuthServiceImpl) SignIn(ctx context.Context, in SignInInput, meta model.RequestMeta) (*AccountResult, error) {
	identifier := strings.TrimSpace(in.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(in.Email)
	}
	if identifier == "" {
		return nil, errs.BadRequest(CodeMissingIdentifier, "Username or email is required")
	}

	u, err := s.verifier.Authenticate(ctx, identifier, in.Password, meta)
	if err != nil {
		return nil, s.signInError(err)
	}
	return &AccountResult{User: u, Message: msgSignedIn}, nil
}

func (s *AuthServiceImpl) signInError(err error) error {
	var locked *LockedError
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		e := errs.Unauthorized(CodeInvalidCredentials, "Invalid username/email or password")
		e.Cause = err
		return e
	case errors.As(err, &locked):
		e := errs.TooManyRequests(CodeRateLimited, "Too many failed sign-in attempts. Please try again later.")
		e.Cause = err
		e.Details = map[string]any{"retryAfterSeconds": int(locked.RetryAfter.Seconds())}
		return e
	default:
		return s.internal(CodeAuthFailed, msgAuthFailed, err)
	}
}

// OAuthSignIn signs in an account asserted by the identity provider, creating
// it on first sight. Refresh material is only stored by the bearer-checked
// session flows.
func (s *AuthServiceImpl) OAuthSignIn(ctx context.Context, in OAuthInput) (*AccountResult, error) {
	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)
	if email == "" {
		return nil, errs.BadRequest(CodeMissingRequiredFields, "Email is required")
	}

	u, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		if username == "" {
			return nil, errs.BadRequest(CodeMissingRequiredFields, "Username and email are required")
		}
		return s.register(ctx, model.NewUser{ExternalID: in.ExternalID, Username: username, Email: email})
	case err != nil:
		return nil, s.internal(CodeAuthFailed, msgAuthFailed, err)
	}
	return &AccountResult{User: u, Message: msgSignedIn}, nil
}

// internal logs cause and returns a sanitized 500.
func (s *AuthServiceImpl) internal(code, msg string, cause error) *errs.Error {
	s.log.Error("request failed", zap.String("code", code), zap.Error(cause))
	return errs.Internal(code, msg, cause)
}
