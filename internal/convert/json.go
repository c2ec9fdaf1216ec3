// Package convert maps domain values to their JSON wire shapes.
package convert

import (
	"time"

	"github.com/and161185/authgate/internal/identity"
	"github.com/and161185/authgate/internal/model"
	"github.com/and161185/authgate/internal/service"
)

// --- helpers ---

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ts(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// --- User ---

// User is the public profile of an account. Secrets (password hash, refresh
// token, token hashes) never appear here.
type User struct {
	ID                   int64      `json:"id"`
	UUID                 string     `json:"uuid"`
	Username             string     `json:"username"`
	Email                string     `json:"email"`
	FirstName            string     `json:"firstname,omitempty"`
	LastName             string     `json:"lastname,omitempty"`
	IsVerified           bool       `json:"isVerified"`
	RequiresVerification bool       `json:"requiresVerification"`
	EmailVerifiedAt      *time.Time `json:"emailVerifiedAt,omitempty"`
	LastLogin            *time.Time `json:"lastLogin,omitempty"`
}

// ToUser converts a domain user to its public profile.
func ToUser(u *model.User) *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:                   u.ID,
		UUID:                 u.ExternalID,
		Username:             u.Username,
		Email:                u.Email,
		FirstName:            deref(u.FirstName),
		LastName:             deref(u.LastName),
		IsVerified:           u.IsVerified,
		RequiresVerification: !u.IsVerified,
		EmailVerifiedAt:      ts(u.EmailVerifiedAt),
		LastLogin:            ts(u.LastLogin),
	}
}

// --- Flow payloads (server -> client) ---

// Account is the sign-in payload.
type Account struct {
	User *User `json:"user"`
	// EmailVerificationSent is only set for freshly created accounts.
	EmailVerificationSent *bool `json:"emailVerificationSent,omitempty"`
}

// ToAccount converts a sign-up or sign-in result.
func ToAccount(r *service.AccountResult) Account {
	out := Account{User: ToUser(r.User)}
	if r.Created {
		sent := r.EmailVerificationSent
		out.EmailVerificationSent = &sent
	}
	return out
}

// Forgot is the forgot-password payload.
type Forgot struct {
	Email string `json:"email"`
}

// ToForgot converts a forgot-password result.
func ToForgot(r *service.ForgotResult) Forgot { return Forgot{Email: r.Email} }

// Reset is the reset-password payload.
type Reset struct {
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	PasswordResetAt time.Time `json:"passwordResetAt"`
}

// ToReset converts a reset-password result.
func ToReset(r *service.ResetResult) Reset {
	return Reset{Email: r.Email, Username: r.Username, PasswordResetAt: r.PasswordResetAt.UTC()}
}

// Resend is the resend-verification payload.
type Resend struct {
	Email        string `json:"email"`
	Username     string `json:"username"`
	SentViaToken bool   `json:"sentViaToken"`
}

// ToResend converts a resend-verification result.
func ToResend(r *service.ResendResult) Resend {
	return Resend{Email: r.Email, Username: r.Username, SentViaToken: r.SentViaToken}
}

// Verified is the verify-email payload.
type Verified struct {
	VerifiedEmail   string `json:"verifiedEmail"`
	Username        string `json:"username"`
	AlreadyVerified bool   `json:"alreadyVerified"`
}

// ToVerified converts a verify-email result.
func ToVerified(r *service.VerifyResult) Verified {
	return Verified{VerifiedEmail: r.Email, Username: r.Username, AlreadyVerified: r.AlreadyVerified}
}

// Session is the check-login payload.
type Session struct {
	User         *User          `json:"user"`
	ProviderID   string         `json:"providerId"`
	UserMetadata map[string]any `json:"userMetadata,omitempty"`
}

// ToSession converts an authenticated caller.
func ToSession(s *service.Session) Session {
	return Session{User: ToUser(s.User), ProviderID: s.Identity.ID, UserMetadata: metadata(s.Identity)}
}

func metadata(id identity.Identity) map[string]any {
	if len(id.Metadata) == 0 {
		return nil
	}
	return id.Metadata
}

// --- System ---

// Health is the health-check payload.
type Health struct {
	Status       string    `json:"status"`
	Database     string    `json:"database"`
	Version      string    `json:"version"`
	ResponseTime string    `json:"responseTime"`
	Timestamp    time.Time `json:"timestamp"`
}

// ToHealth converts a health report.
func ToHealth(h service.HealthReport) Health {
	return Health{
		Status:       h.Status(),
		Database:     h.Database,
		Version:      h.Version,
		ResponseTime: h.ResponseTime.String(),
		Timestamp:    h.Timestamp.UTC(),
	}
}
