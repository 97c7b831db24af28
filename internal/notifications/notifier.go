package notifications

import (
	"context"
	"time"
)

type SendWelcomeInput struct {
	Email string
	Name  string
}

// SendPasswordResetInput carries the plaintext token to the mail channel.
// The token is never logged in full and never stored anywhere in plaintext.
type SendPasswordResetInput struct {
	Email      string
	Name       string
	ResetToken string
	ExpiresAt  time.Time
}

type Notifier interface {
	SendWelcome(ctx context.Context, input SendWelcomeInput) error
	SendPasswordReset(ctx context.Context, input SendPasswordResetInput) error
}
