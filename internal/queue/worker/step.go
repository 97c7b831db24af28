package worker

import (
	"context"
	"errors"
	"time"

	"github.com/altitrek/tourhub/internal/domain/mailjob"
	"github.com/altitrek/tourhub/internal/notifications"
)

// ProcessOne claims and executes a single job. It reports whether a job was
// available; execution failures are absorbed into retry bookkeeping and do
// not bubble up.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, mailjob.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}

	start := time.Now()

	if w.prom != nil {
		w.prom.MailJobsInFlight.Inc()
	}

	err = w.execute(ctx, j)

	if w.prom != nil {
		w.prom.MailJobsInFlight.Dec()
	}

	if err != nil {
		w.handleFailure(ctx, j, err)
		w.observeResultFor(j, start, resultFor(j))
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		return true, err
	}

	w.observeResultFor(j, start, "done")

	w.logger.Info("mail job done",
		"job_id", j.ID,
		"type", j.Type,
		"attempts", j.Attempts,
	)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j mailjob.Job) error {
	payload, err := mailjob.DecodePayload(j)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case mailjob.WelcomePayload:
		return w.notifier.SendWelcome(ctx, notifications.SendWelcomeInput{
			Email: p.Email,
			Name:  p.Name,
		})
	case mailjob.PasswordResetPayload:
		return w.notifier.SendPasswordReset(ctx, notifications.SendPasswordResetInput{
			Email:      p.Email,
			Name:       p.Name,
			ResetToken: p.ResetToken,
			ExpiresAt:  p.ExpiresAt,
		})
	default:
		return mailjob.ErrInvalidType
	}
}

// handleFailure decides between retry and terminal failure. Malformed jobs
// never retry; everything else backs off until attempts run out.
func (w *Worker) handleFailure(ctx context.Context, j mailjob.Job, execErr error) {
	if errors.Is(execErr, mailjob.ErrInvalidPayload) || errors.Is(execErr, mailjob.ErrInvalidType) {
		_ = w.repo.MarkFailed(ctx, j.ID, execErr.Error())
		w.logger.Error("mail job dropped, malformed", "job_id", j.ID, "error", execErr)
		return
	}

	// attempts counts completed tries; the claim we just consumed is one more
	if j.Attempts+1 >= j.MaxAttempts {
		_ = w.repo.MarkFailed(ctx, j.ID, execErr.Error())
		w.logger.Error("mail job failed permanently",
			"job_id", j.ID,
			"attempts", j.Attempts+1,
			"error", execErr,
		)
		return
	}

	delay := ExponentialBackoff(j.Attempts)
	runAt := time.Now().UTC().Add(delay)

	if err := w.repo.Reschedule(ctx, j.ID, runAt, execErr.Error()); err != nil {
		w.logger.Error("reschedule mail job", "job_id", j.ID, "error", err)
		return
	}

	w.logger.Warn("mail job rescheduled",
		"job_id", j.ID,
		"attempt", j.Attempts+1,
		"retry_in", delay,
		"error", execErr,
	)
}

func resultFor(j mailjob.Job) string {
	if j.Attempts+1 >= j.MaxAttempts {
		return "failed"
	}
	return "retry"
}

func (w *Worker) observeResultFor(j mailjob.Job, start time.Time, result string) {
	if w.prom == nil {
		return
	}
	w.prom.MailJobResults.WithLabelValues(string(j.Type), result).Inc()
	w.prom.MailJobDuration.WithLabelValues(string(j.Type), result).Observe(time.Since(start).Seconds())
}
