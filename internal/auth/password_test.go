package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("Sup3r$ecret")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := ComparePassword("Sup3r$ecret", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ComparePassword("wrong-password", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	first, err := HashPassword("Sup3r$ecret")
	require.NoError(t, err)
	second, err := HashPassword("Sup3r$ecret")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestComparePasswordBadHash(t *testing.T) {
	_, err := ComparePassword("anything", "not-an-encoded-hash")
	require.Error(t, err)
}
