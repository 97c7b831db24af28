package memory

import (
	"context"
	"sync"
	"time"

	"github.com/altitrek/tourhub/internal/domain/mailjob"
)

// MailOutbox mirrors the SQL outbox semantics: single claimer per job,
// retry bookkeeping, stale-lock recovery.
type MailOutbox struct {
	mu    sync.Mutex
	items map[string]mailjob.Job
	order []string
}

func NewMailOutbox() *MailOutbox {
	return &MailOutbox{
		items: make(map[string]mailjob.Job),
	}
}

func (r *MailOutbox) Enqueue(ctx context.Context, j mailjob.Job) (mailjob.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[j.ID] = j
	r.order = append(r.order, j.ID)
	return j, nil
}

func (r *MailOutbox) ClaimNext(ctx context.Context, workerID string) (mailjob.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	for _, id := range r.order {
		j := r.items[id]
		if j.Status != mailjob.StatusPending || j.RunAt.After(now) || j.Attempts >= j.MaxAttempts {
			continue
		}

		j.Status = mailjob.StatusProcessing
		j.LockedAt = &now
		j.LockedBy = &workerID
		j.UpdatedAt = now
		r.items[id] = j
		return j, nil
	}

	return mailjob.Job{}, mailjob.ErrJobNotFound
}

func (r *MailOutbox) MarkDone(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.items[id]
	if !ok {
		return mailjob.ErrJobNotFound
	}

	j.Status = mailjob.StatusDone
	j.LockedAt = nil
	j.LockedBy = nil
	j.LastError = nil
	j.UpdatedAt = time.Now().UTC()
	r.items[id] = j
	return nil
}

func (r *MailOutbox) MarkFailed(ctx context.Context, id string, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.items[id]
	if !ok {
		return mailjob.ErrJobNotFound
	}

	j.Status = mailjob.StatusFailed
	j.LockedAt = nil
	j.LockedBy = nil
	j.LastError = &errMsg
	j.UpdatedAt = time.Now().UTC()
	r.items[id] = j
	return nil
}

func (r *MailOutbox) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.items[id]
	if !ok {
		return mailjob.ErrJobNotFound
	}

	j.Status = mailjob.StatusPending
	j.Attempts++
	j.RunAt = runAt
	j.LockedAt = nil
	j.LockedBy = nil
	j.LastError = &errMsg
	j.UpdatedAt = time.Now().UTC()
	r.items[id] = j
	return nil
}

func (r *MailOutbox) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-lockTTL)
	var n int64

	for id, j := range r.items {
		if j.Status != mailjob.StatusProcessing || j.LockedAt == nil || !j.LockedAt.Before(cutoff) {
			continue
		}
		j.Status = mailjob.StatusPending
		j.LockedAt = nil
		j.LockedBy = nil
		j.UpdatedAt = time.Now().UTC()
		r.items[id] = j
		n++
	}
	return n, nil
}

func (r *MailOutbox) GetByID(ctx context.Context, id string) (mailjob.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.items[id]
	if !ok {
		return mailjob.Job{}, mailjob.ErrJobNotFound
	}
	return j, nil
}

// Jobs returns a snapshot in insertion order.
func (r *MailOutbox) Jobs() []mailjob.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]mailjob.Job, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}
