package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckPassword_Scores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pw     string
		score  int
		strong bool
	}{
		{"abc", 1, false},
		{"Abc123!", 5, true},
		{"aaaaaa", 2, false},
		{"ABCdef", 3, true},
		{"123456", 2, false},
		{"a1!", 3, true},
		{"", 0, false},
		{"пароль12", 2, false},
	}
	for _, tt := range tests {
		c := CheckPassword(tt.pw)
		require.Equal(t, tt.score, c.Score(), tt.pw)
		require.Equal(t, tt.strong, c.Strong(), tt.pw)
	}
}

func TestCheckPassword_Classes(t *testing.T) {
	t.Parallel()

	c := CheckPassword("Abc123!")
	require.Equal(t, PasswordCheck{HasLength: true, HasLower: true, HasUpper: true, HasNumber: true, HasSpecial: true}, c)

	c = CheckPassword("abc?")
	require.False(t, c.HasSpecial, "? is outside the special set")
}
