// Package model defines domain entities used by services and repositories.
package model

import (
	"time"
)

// User represents one account stored in the users table.
type User struct {
	ID         int64  // PK
	ExternalID string // identity provider subject (users.uuid)
	Username   string // unique
	Email      string // unique, lower-cased
	FirstName  *string
	LastName   *string

	PasswordHash *string // nil when authentication is fully delegated

	IsVerified      bool
	EmailVerifiedAt *time.Time

	RefreshToken          *string
	RefreshTokenExpiresAt *time.Time
	LastLogin             *time.Time

	PasswordResetRequestedAt     *time.Time
	LastPasswordResetEmailSentAt *time.Time
	PasswordResetAt              *time.Time
	PasswordResetTokenHash       *string
	PasswordResetAttempts        int

	EmailVerificationRequestedAt *time.Time
	LastVerificationEmailSentAt  *time.Time
	VerificationTokenHash        *string
	VerificationAttempts         int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser is the input for account creation.
type NewUser struct {
	ExternalID string
	Username   string
	Email      string
	FirstName  string
	LastName   string
	// PasswordHash is an encoded Argon2id hash, empty for delegated accounts.
	PasswordHash string
}

// SecurityEvent is a row in user_security_logs.
type SecurityEvent struct {
	UserID    int64
	Type      string
	IP        string
	UserAgent string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Security event types.
const (
	EventPasswordReset = "password_reset"
	EventEmailVerified = "email_verified"
)

// RequestMeta carries per-request client data through the call chain.
type RequestMeta struct {
	IP        string
	UserAgent string
	RequestID string
}

// RefreshMaterial is refresh-token data supplied by the client alongside an
// access token.
type RefreshMaterial struct {
	Token     string `json:"refresh_token"`
	ExpiresAt Expiry `json:"expires_at"`
}

// Complete reports whether both token and expiry are present.
func (m *RefreshMaterial) Complete() bool {
	return m != nil && m.Token != "" && !m.ExpiresAt.IsZero()
}
