package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newCodec(t *testing.T, opts ...Option) (*Codec, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	c, err := NewCodec([]byte("test-secret"), append([]Option{WithClock(clk.Now)}, opts...)...)
	require.NoError(t, err)
	return c, clk
}

func TestNewCodec_EmptySecret(t *testing.T) {
	t.Parallel()
	_, err := NewCodec(nil)
	require.Error(t, err)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()
	c, _ := newCodec(t)

	for _, p := range []Purpose{PurposeEmailVerification, PurposePasswordReset} {
		for _, in := range []Subject{
			{Email: "a@x.com", Username: "alice"},
			{Email: "bob+tag@example.org", Username: "Bob Smith"},
			{Email: "c@x.com", Username: ""},
		} {
			tok, err := c.Issue(p, in.Email, in.Username)
			require.NoError(t, err)
			got, err := c.Verify(p, tok)
			require.NoError(t, err, "purpose=%s", p)
			require.Equal(t, in, got)
		}
	}
}

func TestIssue_DistinctTokens(t *testing.T) {
	t.Parallel()
	c, _ := newCodec(t)

	a, err := c.Issue(PurposePasswordReset, "a@x.com", "alice")
	require.NoError(t, err)
	b, err := c.Issue(PurposePasswordReset, "a@x.com", "alice")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.NotEqual(t, HashToken(a), HashToken(b))
}

func TestIssue_UnknownPurpose(t *testing.T) {
	t.Parallel()
	c, _ := newCodec(t)
	_, err := c.Issue(Purpose("login"), "a@x.com", "alice")
	require.ErrorIs(t, err, ErrUnknownPurpose)
	_, err = c.Verify(Purpose("login"), "x.y.z")
	require.ErrorIs(t, err, ErrUnknownPurpose)
}

func TestVerify_CrossPurposeRejected(t *testing.T) {
	t.Parallel()
	c, _ := newCodec(t)

	ev, err := c.Issue(PurposeEmailVerification, "a@x.com", "alice")
	require.NoError(t, err)
	pr, err := c.Issue(PurposePasswordReset, "a@x.com", "alice")
	require.NoError(t, err)

	_, err = c.Verify(PurposePasswordReset, ev)
	require.ErrorIs(t, err, ErrWrongAudience)
	_, err = c.Verify(PurposeEmailVerification, pr)
	require.ErrorIs(t, err, ErrWrongAudience)

	_, _, err = c.DecodeUnverified(pr)
	require.ErrorIs(t, err, ErrWrongAudience)
}

func TestVerify_PurposeClaimMismatch(t *testing.T) {
	t.Parallel()
	c, clk := newCodec(t)

	// right audience, wrong purpose tag
	claims := Claims{
		Email:    "a@x.com",
		Username: "alice",
		Purpose:  PurposePasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			Audience:  jwt.ClaimStrings{"email-verification"},
			IssuedAt:  jwt.NewNumericDate(clk.Now()),
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = c.Verify(PurposeEmailVerification, tok)
	require.ErrorIs(t, err, ErrWrongPurpose)
}

func TestVerify_WrongIssuer(t *testing.T) {
	t.Parallel()
	other, _ := newCodec(t, WithIssuer("elsewhere.example"))
	c, _ := newCodec(t)

	tok, err := other.Issue(PurposeEmailVerification, "a@x.com", "alice")
	require.NoError(t, err)
	_, err = c.Verify(PurposeEmailVerification, tok)
	require.ErrorIs(t, err, ErrWrongIssuer)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()
	c, _ := newCodec(t)

	tok, err := c.Issue(PurposeEmailVerification, "a@x.com", "alice")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	otherSecret, err := NewCodec([]byte("another-secret"))
	require.NoError(t, err)
	foreign, err := otherSecret.Issue(PurposeEmailVerification, "a@x.com", "alice")
	require.NoError(t, err)

	for name, bad := range map[string]string{
		"empty":      "",
		"garbage":    "not-a-token",
		"tampered":   tampered,
		"foreignkey": foreign,
	} {
		_, err := c.Verify(PurposeEmailVerification, bad)
		require.ErrorIs(t, err, ErrMalformed, name)
		_, _, err = c.DecodeUnverified(bad)
		require.ErrorIs(t, err, ErrMalformed, name)
	}
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()
	c, clk := newCodec(t)

	claims := Claims{
		Email:   "a@x.com",
		Purpose: PurposeEmailVerification,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    DefaultIssuer,
			Audience:  jwt.ClaimStrings{"email-verification"},
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Verify(PurposeEmailVerification, tok)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_ExpiredButDecodable(t *testing.T) {
	t.Parallel()
	c, clk := newCodec(t)

	tok, err := c.Issue(PurposeEmailVerification, "a@x.com", "alice")
	require.NoError(t, err)

	clk.Advance(9 * time.Minute)
	_, err = c.Verify(PurposeEmailVerification, tok)
	require.NoError(t, err)

	sub, expired, err := c.DecodeUnverified(tok)
	require.NoError(t, err)
	require.False(t, expired)
	require.Equal(t, "a@x.com", sub.Email)

	clk.Advance(2 * time.Minute)
	_, err = c.Verify(PurposeEmailVerification, tok)
	require.ErrorIs(t, err, ErrExpired)

	sub, expired, err = c.DecodeUnverified(tok)
	require.NoError(t, err)
	require.True(t, expired)
	require.Equal(t, Subject{Email: "a@x.com", Username: "alice"}, sub)
}

func TestVerify_ResetTokenLivesFifteenMinutes(t *testing.T) {
	t.Parallel()
	c, clk := newCodec(t)

	tok, err := c.Issue(PurposePasswordReset, "a@x.com", "alice")
	require.NoError(t, err)

	clk.Advance(14*time.Minute + 59*time.Second)
	_, err = c.Verify(PurposePasswordReset, tok)
	require.NoError(t, err)

	clk.Advance(time.Second)
	_, err = c.Verify(PurposePasswordReset, tok)
	require.ErrorIs(t, err, ErrExpired)
	require.Equal(t, 15*time.Minute, TTL(PurposePasswordReset))
	require.Equal(t, 10*time.Minute, TTL(PurposeEmailVerification))
}

func TestHashToken(t *testing.T) {
	t.Parallel()
	h := HashToken("abc")
	require.Len(t, h, 64)
	require.Equal(t, h, HashToken("abc"))
	require.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)
}
