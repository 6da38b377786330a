package users

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  User@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "user@example.com", email)
}

func TestNormalizeEmail_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "not-an-email", "@example.com"} {
		_, err := NormalizeEmail(input)
		require.ErrorIs(t, err, ErrInvalidEmail, "input: %q", input)
	}
}
