package security_test

import (
	"testing"

	"github.com/altitrek/tourhub/internal/security"
	"github.com/stretchr/testify/require"
)

// bcrypt.MinCost keeps these tests fast; production uses DefaultCost.
func newTestHasher() *security.Hasher {
	return security.NewHasher(4)
}

func TestHashDiffersFromPlaintext(t *testing.T) {
	h := newTestHasher()

	digest, err := h.Hash("Pass1234")
	require.NoError(t, err)
	require.NotEqual(t, "Pass1234", digest)
	require.True(t, h.Verify(digest, "Pass1234"))
}

func TestVerifyRejectsWrongPassword(t *testing.T) {
	h := newTestHasher()

	digest, err := h.Hash("Pass1234")
	require.NoError(t, err)
	require.False(t, h.Verify(digest, "pass1234"))
}

func TestHashIsSalted(t *testing.T) {
	h := newTestHasher()

	first, err := h.Hash("Pass1234")
	require.NoError(t, err)
	second, err := h.Hash("Pass1234")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestOutOfRangeCostFallsBack(t *testing.T) {
	h := security.NewHasher(99)

	digest, err := h.Hash("x")
	require.NoError(t, err)
	require.True(t, h.Verify(digest, "x"))
}

func TestResetTokenRoundTrip(t *testing.T) {
	plain, digest, err := security.NewResetToken()
	require.NoError(t, err)
	require.Len(t, plain, 64)
	require.NotEqual(t, plain, digest)
	require.Equal(t, digest, security.HashResetToken(plain))
}

func TestResetTokensAreUnique(t *testing.T) {
	a, _, err := security.NewResetToken()
	require.NoError(t, err)
	b, _, err := security.NewResetToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
