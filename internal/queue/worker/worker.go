package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/altitrek/tourhub/internal/domain/mailjob"
	"github.com/altitrek/tourhub/internal/notifications"
	"github.com/altitrek/tourhub/internal/observability"
)

// MailOutboxRepository is the slice of the outbox store the worker needs.
type MailOutboxRepository interface {
	ClaimNext(ctx context.Context, workerID string) (mailjob.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type Config struct {
	WorkerID     string
	PollInterval time.Duration
	LockTTL      time.Duration
}

type Worker struct {
	cfg      Config
	repo     MailOutboxRepository
	notifier notifications.Notifier
	logger   *slog.Logger
	prom     *observability.Prom

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo MailOutboxRepository, notifier notifications.Notifier, logger *slog.Logger, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		logger:   logger,
		prom:     prom,
	}
}

func (w *Worker) setReady(ready bool) {
	w.readyMu.Lock()
	w.ready = ready
	w.readyMu.Unlock()
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	staleTicker := time.NewTicker(w.cfg.LockTTL)
	defer staleTicker.Stop()

	w.setReady(true)
	defer w.setReady(false)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker received shutdown signal")
			return nil

		case <-staleTicker.C:
			n, err := w.repo.RequeueStaleProcessing(ctx, w.cfg.LockTTL)
			if err != nil {
				w.logger.Error("requeue stale jobs", "error", err)
				continue
			}
			if n > 0 {
				w.logger.Warn("requeued stale jobs", "count", n)
			}

		case <-ticker.C:
			// Drain everything currently due before sleeping again.
			for {
				processed, err := w.ProcessOne(ctx)
				if err != nil {
					w.logger.Error("process job", "error", err)
					break
				}
				if !processed {
					break
				}
			}
		}
	}
}
