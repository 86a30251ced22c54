package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("account-1", "applications/app-1/passport.jpg")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	owner, key, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "account-1", owner)
	require.Equal(t, "applications/app-1/passport.jpg", key)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("account-1", "doc.pdf")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, _, err = signer.Parse(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestSignedURLSignerTampered(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("account-1", "doc.pdf")
	require.NoError(t, err)

	forged := strings.Replace(token, "account-1", "account-2", 1)
	_, _, _, err = signer.Parse(forged)
	require.ErrorIs(t, err, ErrTokenInvalid)

	other := NewSignedURLSigner("other", time.Minute)
	_, _, _, err = other.Parse(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}
