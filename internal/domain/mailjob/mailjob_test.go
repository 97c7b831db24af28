package mailjob_test

import (
	"testing"
	"time"

	"github.com/altitrek/tourhub/internal/domain/mailjob"
	"github.com/stretchr/testify/require"
)

func TestNewValidJob(t *testing.T) {
	j, err := mailjob.New(mailjob.TypeWelcome, mailjob.WelcomePayload{
		Email: "user@example.com",
		Name:  "User",
	})
	require.NoError(t, err)
	require.Equal(t, mailjob.StatusPending, j.Status)
	require.Equal(t, 5, j.MaxAttempts)
	require.NotEmpty(t, j.ID)
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := mailjob.New(mailjob.Type("mail.spam"), mailjob.WelcomePayload{})
	require.ErrorIs(t, err, mailjob.ErrInvalidType)
}

func TestNewRejectsMismatchedPayload(t *testing.T) {
	_, err := mailjob.New(mailjob.TypePasswordReset, mailjob.WelcomePayload{Email: "x@y.z"})
	require.ErrorIs(t, err, mailjob.ErrInvalidPayload)
}

func TestDecodeRoundTrip(t *testing.T) {
	in := mailjob.PasswordResetPayload{
		Email:      "user@example.com",
		Name:       "User",
		ResetToken: "plaintext-token",
		ExpiresAt:  time.Now().UTC().Add(10 * time.Minute).Truncate(time.Second),
	}
	j, err := mailjob.New(mailjob.TypePasswordReset, in)
	require.NoError(t, err)

	decoded, err := mailjob.DecodePayload(j)
	require.NoError(t, err)

	got, ok := decoded.(mailjob.PasswordResetPayload)
	require.True(t, ok)
	require.Equal(t, in.Email, got.Email)
	require.Equal(t, in.ResetToken, got.ResetToken)
}

func TestDecodeRejectsEmptyPayload(t *testing.T) {
	_, err := mailjob.DecodePayload(mailjob.Job{Type: mailjob.TypeWelcome})
	require.ErrorIs(t, err, mailjob.ErrInvalidPayload)
}
