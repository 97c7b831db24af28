package notifications_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/altitrek/tourhub/internal/notifications"
	"github.com/stretchr/testify/require"
)

type scriptedNotifier struct {
	err   error
	calls int
}

func (s *scriptedNotifier) SendWelcome(context.Context, notifications.SendWelcomeInput) error {
	s.calls++
	return s.err
}

func (s *scriptedNotifier) SendPasswordReset(context.Context, notifications.SendPasswordResetInput) error {
	s.calls++
	return s.err
}

func TestProtectedNotifierPassesThroughWhenHealthy(t *testing.T) {
	inner := &scriptedNotifier{}
	pn := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{})

	for i := 0; i < 5; i++ {
		require.NoError(t, pn.SendWelcome(t.Context(), notifications.SendWelcomeInput{Email: "a@b.c"}))
	}
	require.Equal(t, 5, inner.calls)
}

func TestProtectedNotifierOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &scriptedNotifier{err: errors.New("smtp down")}
	pn := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		FailureThreshold: 3,
		Cooldown:         time.Hour,
	})

	for i := 0; i < 3; i++ {
		require.Error(t, pn.SendWelcome(t.Context(), notifications.SendWelcomeInput{}))
	}
	require.Equal(t, 3, inner.calls)

	// circuit is open now, the inner notifier is no longer reached
	err := pn.SendWelcome(t.Context(), notifications.SendWelcomeInput{})
	require.ErrorIs(t, err, notifications.ErrCircuitOpen)
	require.Equal(t, 3, inner.calls)
}

func TestProtectedNotifierRecoversThroughHalfOpen(t *testing.T) {
	inner := &scriptedNotifier{err: errors.New("smtp down")}
	pn := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
	})

	require.Error(t, pn.SendWelcome(t.Context(), notifications.SendWelcomeInput{}))

	// provider comes back while the circuit cools down
	inner.err = nil
	time.Sleep(20 * time.Millisecond)

	// trial call succeeds and closes the circuit again
	require.NoError(t, pn.SendWelcome(t.Context(), notifications.SendWelcomeInput{}))
	require.NoError(t, pn.SendPasswordReset(t.Context(), notifications.SendPasswordResetInput{}))
	require.Equal(t, 3, inner.calls)
}

func TestProtectedNotifierReopensOnHalfOpenFailure(t *testing.T) {
	inner := &scriptedNotifier{err: errors.New("smtp down")}
	pn := notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
	})

	require.Error(t, pn.SendWelcome(t.Context(), notifications.SendWelcomeInput{}))
	time.Sleep(20 * time.Millisecond)

	// the half-open trial fails, so the circuit snaps shut immediately
	require.Error(t, pn.SendWelcome(t.Context(), notifications.SendWelcomeInput{}))
	err := pn.SendWelcome(t.Context(), notifications.SendWelcomeInput{})
	require.ErrorIs(t, err, notifications.ErrCircuitOpen)
	require.Equal(t, 2, inner.calls)
}
