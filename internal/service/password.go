package service

import (
	"strings"
	"unicode"

	pkgcrypto "github.com/and161185/authgate/internal/crypto"
	"github.com/gofrs/uuid/v5"
)

const (
	minPasswordLen  = 6
	minStrength     = 3
	specialCharsSet = "!@#$%^&*"
)

// PasswordCheck lists which strength classes a password satisfies.
type PasswordCheck struct {
	HasLength  bool `json:"hasLength"`
	HasLower   bool `json:"hasLower"`
	HasUpper   bool `json:"hasUpper"`
	HasNumber  bool `json:"hasNumber"`
	HasSpecial bool `json:"hasSpecial"`
}

// Score counts satisfied classes.
func (c PasswordCheck) Score() int {
	n := 0
	for _, ok := range []bool{c.HasLength, c.HasLower, c.HasUpper, c.HasNumber, c.HasSpecial} {
		if ok {
			n++
		}
	}
	return n
}

// Strong reports whether the password meets the minimum score.
func (c PasswordCheck) Strong() bool { return c.Score() >= minStrength }

// CheckPassword evaluates pw against the strength classes. Only ASCII letters
// and digits count, matching the character classes the front-end shows.
func CheckPassword(pw string) PasswordCheck {
	c := PasswordCheck{HasLength: len([]rune(pw)) >= minPasswordLen}
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			c.HasLower = true
		case r >= 'A' && r <= 'Z':
			c.HasUpper = true
		case r < unicode.MaxASCII && unicode.IsDigit(r):
			c.HasNumber = true
		case strings.ContainsRune(specialCharsSet, r):
			c.HasSpecial = true
		}
	}
	return c
}

func hashPassword(pw string) (string, error) { return pkgcrypto.HashPassword(pw) }

func newExternalID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
