package auth

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerateAndValidate(t *testing.T) {
	v := NewValidator("test-secret", time.Hour, testLogger())

	token, err := v.Generate(42, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := v.Validate(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "parley", claims.Issuer)
}

func TestValidateMissingToken(t *testing.T) {
	v := NewValidator("test-secret", time.Hour, testLogger())

	_, err := v.Validate("")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestValidateExpiredToken(t *testing.T) {
	v := NewValidator("test-secret", -time.Minute, testLogger())

	token, err := v.Generate(1, "bob")
	require.NoError(t, err)

	_, err = v.Validate(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateWrongSecret(t *testing.T) {
	signer := NewValidator("secret-one", time.Hour, testLogger())
	verifier := NewValidator("secret-two", time.Hour, testLogger())

	token, err := signer.Generate(1, "bob")
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestValidateGarbageToken(t *testing.T) {
	v := NewValidator("test-secret", time.Hour, testLogger())

	_, err := v.Validate("not.a.jwt")
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestResetTokenRoundTrip(t *testing.T) {
	v := NewValidator("test-secret", time.Hour, testLogger())

	token, err := v.GenerateResetToken("alice@example.com", time.Hour)
	require.NoError(t, err)

	email, err := v.ValidateResetToken(token)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", email)
}

func TestResetTokenExpired(t *testing.T) {
	v := NewValidator("test-secret", time.Hour, testLogger())

	token, err := v.GenerateResetToken("alice@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = v.ValidateResetToken(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestResetRejectsAccessToken(t *testing.T) {
	// An access token carries no reset purpose and must not authorize a reset.
	v := NewValidator("test-secret", time.Hour, testLogger())

	access, err := v.Generate(7, "mallory")
	require.NoError(t, err)

	_, err = v.ValidateResetToken(access)
	require.ErrorIs(t, err, ErrMalformedToken)
}
