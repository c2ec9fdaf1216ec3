// Package service implements the account flows: sign-up, sign-in, password
// recovery, email verification and session reconciliation.
package service

import (
	"context"
	"regexp"
	"time"

	"github.com/and161185/authgate/internal/identity"
	"github.com/and161185/authgate/internal/model"
	"github.com/and161185/authgate/internal/repository"
	"github.com/and161185/authgate/internal/tokens"
	"go.uber.org/zap"
)

// ResetWindow is the minimum gap between two reset emails to one address.
const ResetWindow = time.Minute

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthService is the request-facing account API.
type AuthService interface {
	SignUp(ctx context.Context, in SignUpInput) (*AccountResult, error)
	SignIn(ctx context.Context, in SignInInput, meta model.RequestMeta) (*AccountResult, error)
	OAuthSignIn(ctx context.Context, in OAuthInput) (*AccountResult, error)
	ForgotPassword(ctx context.Context, email string) (*ForgotResult, error)
	ResetPassword(ctx context.Context, in ResetInput, meta model.RequestMeta) (*ResetResult, error)
	ResendVerification(ctx context.Context, in ResendInput) (*ResendResult, error)
	VerifyEmail(ctx context.Context, token string, meta model.RequestMeta) (*VerifyResult, error)
	SyncSessionToken(ctx context.Context, in SessionInput) error
	CheckLogin(ctx context.Context, bearer string, refresh *model.RefreshMaterial) (*Session, error)
}

// Notifier delivers account emails.
type Notifier interface {
	SendVerification(ctx context.Context, addr, username, token string) error
	SendPasswordReset(ctx context.Context, addr, username, token string) error
}

// Reconciler maps a bearer access token to a local user.
type Reconciler interface {
	Reconcile(ctx context.Context, bearer string, refresh *model.RefreshMaterial) (*model.User, identity.Identity, error)
}

// Deps are the collaborators of AuthServiceImpl.
type Deps struct {
	Users     repository.UserRepository
	Security  repository.SecurityLogRepository
	Codec     *tokens.Codec
	Mail      Notifier
	Bridge    Reconciler
	Verifier  CredentialVerifier
	Log       *zap.Logger
	Clock     func() time.Time
	HashFunc  func(password string) (string, error)
	NewUserID func() (string, error)
}

// AuthServiceImpl orchestrates the account flows.
type AuthServiceImpl struct {
	users    repository.UserRepository
	security repository.SecurityLogRepository
	codec    *tokens.Codec
	mail     Notifier
	bridge   Reconciler
	verifier CredentialVerifier
	log      *zap.Logger
	now      func() time.Time
	hash     func(string) (string, error)
	newID    func() (string, error)
}

var _ AuthService = (*AuthServiceImpl)(nil)

// NewAuthService constructs the service; zero-valued optional deps get defaults.
func NewAuthService(d Deps) *AuthServiceImpl {
	s := &AuthServiceImpl{
		users:    d.Users,
		security: d.Security,
		codec:    d.Codec,
		mail:     d.Mail,
		bridge:   d.Bridge,
		verifier: d.Verifier,
		log:      d.Log,
		now:      d.Clock,
		hash:     d.HashFunc,
		newID:    d.NewUserID,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.hash == nil {
		s.hash = hashPassword
	}
	if s.newID == nil {
		s.newID = newExternalID
	}
	if s.verifier == nil {
		s.verifier = NewDelegatedIdentityVerifier(d.Users)
	}
	return s
}

// recordEvent writes a security log row; failures are logged only.
func (s *AuthServiceImpl) recordEvent(ctx context.Context, u *model.User, typ string, meta model.RequestMeta, extra map[string]any) {
	if s.security == nil {
		return
	}
	md := map[string]any{"email": u.Email, "username": u.Username}
	for k, v := range extra {
		md[k] = v
	}
	ev := model.SecurityEvent{UserID: u.ID, Type: typ, IP: meta.IP, UserAgent: meta.UserAgent, Metadata: md}
	if err := s.security.Record(ctx, ev); err != nil {
		s.log.Warn("security event not recorded",
			zap.String("event", typ), zap.Int64("user_id", u.ID), zap.String("request_id", meta.RequestID), zap.Error(err))
	}
}
