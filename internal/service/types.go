package service

import (
	"time"

	"github.com/and161185/authgate/internal/identity"
	"github.com/and161185/authgate/internal/model"
)

// SignUpInput registers a new account.
type SignUpInput struct {
	ExternalID string
	Username   string
	Email      string
	Password   string
	FirstName  string
	LastName   string
}

// SignInInput identifies an account by username or email.
type SignInInput struct {
	Username string
	Email    string
	Password string
}

// OAuthInput is a sign-in asserted by the identity provider.
type OAuthInput struct {
	ExternalID string
	Username   string
	Email      string
}

// AccountResult is returned by the sign-up and sign-in flows.
type AccountResult struct {
	User    *model.User
	Created bool
	// EmailVerificationSent is meaningful only when Created is true.
	EmailVerificationSent bool
	Message               string
}

// ForgotResult is the answer to a reset request. It is identical for known
// and unknown addresses.
type ForgotResult struct {
	Email   string
	Message string
}

// ResetInput completes a password reset.
type ResetInput struct {
	Token           string
	NewPassword     string
	ConfirmPassword string
}

// ResetResult describes a completed reset.
type ResetResult struct {
	Email           string
	Username        string
	PasswordResetAt time.Time
	Message         string
}

// ResendInput names the account to re-send verification to. Token may be an
// expired verification token.
type ResendInput struct {
	Email    string
	Username string
	Token    string
}

// ResendResult describes a re-sent verification email.
type ResendResult struct {
	Email        string
	Username     string
	SentViaToken bool
	Message      string
}

// VerifyResult describes a verify-email call.
type VerifyResult struct {
	Email           string
	Username        string
	AlreadyVerified bool
	Message         string
}

// SessionInput is the client session forwarded to sync-token.
type SessionInput struct {
	AccessToken string
	Refresh     model.RefreshMaterial
}

// Session is an authenticated caller.
type Session struct {
	User     *model.User
	Identity identity.Identity
}
