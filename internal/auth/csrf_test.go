package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSRFTokenRoundTrip(t *testing.T) {
	secret, err := NewCSRFSecret()
	require.NoError(t, err)

	token := CreateCSRFToken(secret)
	require.True(t, VerifyCSRFToken(secret, token))
}

func TestCSRFTokensAreUnique(t *testing.T) {
	secret, err := NewCSRFSecret()
	require.NoError(t, err)

	require.NotEqual(t, CreateCSRFToken(secret), CreateCSRFToken(secret))
}

func TestCSRFTokenWrongSecret(t *testing.T) {
	secret, err := NewCSRFSecret()
	require.NoError(t, err)
	other, err := NewCSRFSecret()
	require.NoError(t, err)

	token := CreateCSRFToken(secret)
	require.False(t, VerifyCSRFToken(other, token))
}

func TestCSRFTokenTampered(t *testing.T) {
	secret, err := NewCSRFSecret()
	require.NoError(t, err)
	token := CreateCSRFToken(secret)

	salt, sig, ok := strings.Cut(token, ".")
	require.True(t, ok)

	require.False(t, VerifyCSRFToken(secret, "other-salt."+sig))
	require.False(t, VerifyCSRFToken(secret, salt+".forged"))
}

func TestCSRFTokenMalformed(t *testing.T) {
	secret, err := NewCSRFSecret()
	require.NoError(t, err)

	for _, token := range []string{"", "no-dot", ".sig", "salt.", "."} {
		require.False(t, VerifyCSRFToken(secret, token), "token %q", token)
	}
}
