package storage

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("doc-1", "https://files.example.com/f/abc.pdf", 0)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	docID, key, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "doc-1", docID)
	require.Equal(t, "https://files.example.com/f/abc.pdf", key)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	signer.now = func() time.Time { return base }
	token, _, err := signer.Generate("doc-1", "key", time.Minute)
	require.NoError(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	docID, _, _, err := signer.Parse(token)
	require.True(t, errors.Is(err, ErrTokenExpired))
	require.Equal(t, "doc-1", docID)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("doc-1", "key", 0)
	require.NoError(t, err)

	tampered := strings.Replace(token, "doc-1", "doc-2", 1)
	_, _, _, err = signer.Parse(tampered)
	require.True(t, errors.Is(err, ErrTokenInvalid))

	other := NewSignedURLSigner("different", time.Hour)
	_, _, _, err = other.Parse(token)
	require.True(t, errors.Is(err, ErrTokenInvalid))

	_, _, _, err = signer.Parse("garbage")
	require.True(t, errors.Is(err, ErrTokenInvalid))
}
