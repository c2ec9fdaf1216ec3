package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/and161185/authgate/internal/errs"
	"github.com/and161185/authgate/internal/identity"
	"github.com/and161185/authgate/internal/limiter"
	"github.com/and161185/authgate/internal/model"
	"github.com/and161185/authgate/internal/repository"
	"github.com/and161185/authgate/internal/tokens"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.User
	now    func() time.Time

	findErr   error
	createErr error
	recordErr error
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers(now func() time.Time) *fakeUsers {
	return &fakeUsers{rows: map[int64]*model.User{}, now: now}
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (f *fakeUsers) find(match func(*model.User) bool) (*model.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for id := int64(1); id <= f.nextID; id++ {
		if u, ok := f.rows[id]; ok && match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeUsers) FindByIdentifier(_ context.Context, ident string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(u *model.User) bool { return u.Username == strings.TrimSpace(ident) || u.Email == norm(ident) })
}

func (f *fakeUsers) FindConflict(_ context.Context, username, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(u *model.User) bool { return u.Username == strings.TrimSpace(username) || u.Email == norm(email) })
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(u *model.User) bool { return u.Email == norm(email) })
}

func (f *fakeUsers) FindByExternalID(_ context.Context, ext string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.find(func(u *model.User) bool { return u.ExternalID == ext })
}

func (f *fakeUsers) Create(_ context.Context, nu model.NewUser) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, u := range f.rows {
		if u.Username == strings.TrimSpace(nu.Username) || u.Email == norm(nu.Email) {
			return nil, errs.ErrAlreadyExists
		}
	}
	f.nextID++
	u := &model.User{
		ID:         f.nextID,
		ExternalID: nu.ExternalID,
		Username:   strings.TrimSpace(nu.Username),
		Email:      norm(nu.Email),
		CreatedAt:  f.now(),
		UpdatedAt:  f.now(),
	}
	if nu.PasswordHash != "" {
		h := nu.PasswordHash
		u.PasswordHash = &h
	}
	f.rows[u.ID] = u
	c := *u
	return &c, nil
}

func (f *fakeUsers) byEmail(email string) *model.User {
	for _, u := range f.rows {
		if u.Email == norm(email) {
			return u
		}
	}
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, email, hash, tokenHash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byEmail(email)
	if u == nil || u.PasswordResetTokenHash == nil || *u.PasswordResetTokenHash != tokenHash {
		return 0, nil
	}
	now := f.now()
	u.PasswordHash = &hash
	u.PasswordResetAt = &now
	u.PasswordResetTokenHash = nil
	return 1, nil
}

func (f *fakeUsers) UpdateRefreshToken(_ context.Context, email, token string, exp *time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byEmail(email)
	if u == nil {
		return 0, nil
	}
	now := f.now()
	u.RefreshToken = &token
	u.RefreshTokenExpiresAt = exp
	u.LastLogin = &now
	return 1, nil
}

func (f *fakeUsers) MarkVerified(_ context.Context, email, tokenHash string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byEmail(email)
	if u == nil || u.IsVerified || u.VerificationTokenHash == nil || *u.VerificationTokenHash != tokenHash {
		return 0, nil
	}
	now := f.now()
	u.IsVerified = true
	u.EmailVerifiedAt = &now
	u.VerificationTokenHash = nil
	return 1, nil
}

func (f *fakeUsers) ReserveResetDispatch(_ context.Context, email, tokenHash string, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byEmail(email)
	now := f.now()
	if u == nil || (u.LastPasswordResetEmailSentAt != nil && !u.LastPasswordResetEmailSentAt.Before(now.Add(-window))) {
		return false, nil
	}
	u.LastPasswordResetEmailSentAt = &now
	u.PasswordResetRequestedAt = &now
	u.PasswordResetTokenHash = &tokenHash
	u.PasswordResetAttempts++
	return true, nil
}

func (f *fakeUsers) ReleaseResetDispatch(_ context.Context, email, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byEmail(email)
	if u == nil || u.PasswordResetTokenHash == nil || *u.PasswordResetTokenHash != tokenHash {
		return nil
	}
	u.LastPasswordResetEmailSentAt = nil
	u.PasswordResetTokenHash = nil
	return nil
}

func (f *fakeUsers) RecordVerificationDispatch(_ context.Context, email, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	u := f.byEmail(email)
	if u == nil {
		return errs.ErrNotFound
	}
	now := f.now()
	u.VerificationTokenHash = &tokenHash
	u.LastVerificationEmailSentAt = &now
	u.VerificationAttempts++
	return nil
}

type sentMail struct{ kind, to, username, token string }

type fakeMail struct {
	sent []sentMail
	err  error
}

func (m *fakeMail) SendVerification(_ context.Context, to, username, token string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{"verify", to, username, token})
	return nil
}

func (m *fakeMail) SendPasswordReset(_ context.Context, to, username, token string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{"reset", to, username, token})
	return nil
}

func (m *fakeMail) last(t *testing.T) sentMail {
	t.Helper()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type fakeSecurity struct {
	events []model.SecurityEvent
	err    error
}

func (s *fakeSecurity) Record(_ context.Context, ev model.SecurityEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

type fakeLimiter struct {
	allowOK     bool
	failBlocked bool

	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	if l.allowOK {
		return true, 0, nil
	}
	return false, time.Minute, nil
}

func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return nil
}

func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	if l.failBlocked {
		return true, 15 * time.Minute, nil
	}
	return false, 0, nil
}

type stubBridge struct {
	user *model.User
	err  error
	got  *model.RefreshMaterial
}

func (b *stubBridge) Reconcile(_ context.Context, _ string, rm *model.RefreshMaterial) (*model.User, identity.Identity, error) {
	b.got = rm
	if b.err != nil {
		return nil, identity.Identity{}, b.err
	}
	return b.user, identity.Identity{ID: b.user.ExternalID, Email: b.user.Email}, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	svc      *AuthServiceImpl
	users    *fakeUsers
	mail     *fakeMail
	security *fakeSecurity
	bridge   *stubBridge
	codec    *tokens.Codec
	clock    *fakeClock
}

func newHarness(t *testing.T, verifier func(*fakeUsers) CredentialVerifier) *harness {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	codec, err := tokens.NewCodec([]byte("test-secret"), tokens.WithClock(clock.Now))
	require.NoError(t, err)

	h := &harness{
		users:    newFakeUsers(clock.Now),
		mail:     &fakeMail{},
		security: &fakeSecurity{},
		bridge:   &stubBridge{},
		codec:    codec,
		clock:    clock,
	}
	var v CredentialVerifier
	if verifier != nil {
		v = verifier(h.users)
	}
	h.svc = NewAuthService(Deps{
		Users:     h.users,
		Security:  h.security,
		Codec:     codec,
		Mail:      h.mail,
		Bridge:    h.bridge,
		Verifier:  v,
		Log:       zaptest.NewLogger(t),
		Clock:     clock.Now,
		HashFunc:  func(pw string) (string, error) { return "hashed:" + pw, nil },
		NewUserID: func() (string, error) { return "generated-id", nil },
	})
	return h
}

func (h *harness) seed(t *testing.T, username, email string, verified bool) *model.User {
	t.Helper()
	u, err := h.users.Create(context.Background(), model.NewUser{ExternalID: "ext-" + username, Username: username, Email: email})
	require.NoError(t, err)
	h.users.rows[u.ID].IsVerified = verified
	u.IsVerified = verified
	return u
}

func requireCode(t *testing.T, err error, status int, code string) *errs.Error {
	t.Helper()
	require.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok, "want *errs.Error, got %T: %v", err, err)
	require.Equal(t, code, e.Code)
	require.Equal(t, status, e.Status)
	return e
}

var errBoom = errors.New("boom")
