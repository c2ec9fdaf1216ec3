// Package tokens issues and validates purpose-scoped HS256 tokens used for
// email verification and password reset links.
package tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Purpose restricts a token to one operation.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// DefaultIssuer is the iss claim used when none is configured.
const DefaultIssuer = "testpapers.mu"

// Failure kinds reported by Verify and DecodeUnverified.
var (
	ErrMalformed      = errors.New("token malformed")
	ErrExpired        = errors.New("token expired")
	ErrWrongPurpose   = errors.New("token purpose mismatch")
	ErrWrongAudience  = errors.New("token audience mismatch")
	ErrWrongIssuer    = errors.New("token issuer mismatch")
	ErrUnknownPurpose = errors.New("unknown token purpose")
)

type purposeRule struct {
	audience string
	ttl      time.Duration
}

var purposes = map[Purpose]purposeRule{
	PurposeEmailVerification: {audience: "email-verification", ttl: 10 * time.Minute},
	PurposePasswordReset:     {audience: "password-reset", ttl: 15 * time.Minute},
}

// TTL returns the lifetime of tokens for p.
func TTL(p Purpose) time.Duration { return purposes[p].ttl }

// Subject is the trusted payload of a valid token.
type Subject struct {
	Email    string
	Username string
}

// Claims is the wire form of a purpose token.
type Claims struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Purpose  Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Codec signs and checks purpose tokens with a single HMAC secret.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithIssuer overrides the iss claim.
func WithIssuer(iss string) Option { return func(c *Codec) { c.issuer = iss } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(c *Codec) { c.now = now } }

// NewCodec constructs a Codec; secret must be non-empty.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("tokens: empty signing secret")
	}
	c := &Codec{secret: secret, issuer: DefaultIssuer, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Issue creates a signed token for purpose p. Every call yields a distinct
// token (random jti).
func (c *Codec) Issue(p Purpose, email, username string) (string, error) {
	rule, ok := purposes[p]
	if !ok {
		return "", ErrUnknownPurpose
	}
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	now := c.now()
	claims := Claims{
		Email:    email,
		Username: username,
		Purpose:  p,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{rule.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(rule.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks signature, audience, issuer, purpose and expiry, in that
// order, and returns the payload only when all of them hold.
func (c *Codec) Verify(p Purpose, token string) (Subject, error) {
	rule, ok := purposes[p]
	if !ok {
		return Subject{}, ErrUnknownPurpose
	}
	claims, err := c.parse(token)
	if err != nil {
		return Subject{}, err
	}
	if err := c.checkStructure(claims, p, rule); err != nil {
		return Subject{}, err
	}
	if claims.ExpiresAt == nil || !c.now().Before(claims.ExpiresAt.Time) {
		return Subject{}, ErrExpired
	}
	return Subject{Email: claims.Email, Username: claims.Username}, nil
}

// DecodeUnverified recovers the payload of an email verification token
// without enforcing expiry. The signature and the structural
// purpose/issuer/audience fields are still checked. The result must only be
// used to pick a destination for a fresh token, never to authorize a change.
func (c *Codec) DecodeUnverified(token string) (Subject, bool, error) {
	claims, err := c.parse(token)
	if err != nil {
		return Subject{}, false, err
	}
	if err := c.checkStructure(claims, PurposeEmailVerification, purposes[PurposeEmailVerification]); err != nil {
		return Subject{}, false, err
	}
	expired := claims.ExpiresAt == nil || !c.now().Before(claims.ExpiresAt.Time)
	return Subject{Email: claims.Email, Username: claims.Username}, expired, nil
}

// parse validates the signature only; registered claims are checked by the
// caller so each mismatch maps to its own failure kind.
func (c *Codec) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMalformed
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &claims, nil
}

func (c *Codec) checkStructure(claims *Claims, p Purpose, rule purposeRule) error {
	if !audienceContains(claims.Audience, rule.audience) {
		return ErrWrongAudience
	}
	if claims.Issuer != c.issuer {
		return ErrWrongIssuer
	}
	if claims.Purpose != p {
		return ErrWrongPurpose
	}
	return nil
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

// HashToken returns the hex SHA-256 digest stored alongside the user so a
// superseded token can be told apart from the outstanding one.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
