package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// LogNotifier writes the mail to the log instead of a provider. This is the
// dev/test delivery channel.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) simulate(ctx context.Context) error {
	// Optional: simulate slow provider
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Optional: simulate provider outage
	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}
	return nil
}

func (n *LogNotifier) SendWelcome(ctx context.Context, in SendWelcomeInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "mail.welcome",
		"email", in.Email,
		"name", in.Name,
	)
	return nil
}

func (n *LogNotifier) SendPasswordReset(ctx context.Context, in SendPasswordResetInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	// Log a prefix only; the full token reaches the recipient, not the logs.
	tokenHint := in.ResetToken
	if len(tokenHint) > 8 {
		tokenHint = tokenHint[:8]
	}

	n.logger.InfoContext(ctx, "mail.password_reset",
		"email", in.Email,
		"name", in.Name,
		"token_prefix", tokenHint,
		"expires_at", in.ExpiresAt,
	)
	return nil
}
