package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/altitrek/tourhub/internal/domain/mailjob"
	"github.com/altitrek/tourhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const mailJobColumns = `id, type, payload, status, attempts, max_attempts,
	run_at, locked_at, locked_by, last_error, created_at, updated_at`

type MailOutboxRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewMailOutboxRepo(pool *pgxpool.Pool, prom *observability.Prom) *MailOutboxRepo {
	return &MailOutboxRepo{pool: pool, prom: prom}
}

func (r *MailOutboxRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanMailJob(row pgx.Row) (mailjob.Job, error) {
	var j mailjob.Job
	var status string

	err := row.Scan(
		&j.ID, &j.Type, &j.Payload, &status,
		&j.Attempts, &j.MaxAttempts,
		&j.RunAt, &j.LockedAt, &j.LockedBy,
		&j.LastError, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return mailjob.Job{}, err
	}

	j.Status = mailjob.Status(status)
	return j, nil
}

func (r *MailOutboxRepo) Enqueue(ctx context.Context, j mailjob.Job) (mailjob.Job, error) {
	err := r.observe("mail_outbox.enqueue", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO mail_outbox (
			id, type, payload, status, attempts, max_attempts,
			run_at, locked_at, locked_by, last_error, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts,
			j.RunAt, j.LockedAt, j.LockedBy, j.LastError, j.CreatedAt, j.UpdatedAt)
		return err
	})

	if err != nil {
		return mailjob.Job{}, err
	}
	return j, nil
}

// ClaimNext is a single-statement claim using the SKIP LOCKED pattern, so
// concurrent workers never grab the same job. Only jobs ready to run are
// claimed: pending, run_at due, attempts left.
func (r *MailOutboxRepo) ClaimNext(ctx context.Context, workerID string) (mailjob.Job, error) {
	var j mailjob.Job
	var err error

	err = r.observe("mail_outbox.claim_next", func() error {
		j, err = scanMailJob(r.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id
			FROM mail_outbox
			WHERE status = 'pending'
			  AND run_at <= NOW()
			  AND attempts < max_attempts
			ORDER BY run_at ASC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE mail_outbox
		SET status = 'processing',
		    locked_at = NOW(),
		    locked_by = $1,
		    updated_at = NOW()
		WHERE id = (SELECT id FROM next)
		RETURNING `+mailJobColumns, workerID))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mailjob.Job{}, mailjob.ErrJobNotFound // no job available
		}
		return mailjob.Job{}, err
	}
	return j, nil
}

func (r *MailOutboxRepo) MarkDone(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("mail_outbox.mark_done", func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE mail_outbox
		SET status = 'done',
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mailjob.ErrJobNotFound
	}
	return nil
}

func (r *MailOutboxRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("mail_outbox.mark_failed", func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE mail_outbox
		SET status = 'failed',
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, errMsg)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mailjob.ErrJobNotFound
	}
	return nil
}

// Reschedule bumps attempts and pushes run_at forward for the retry/backoff
// path.
func (r *MailOutboxRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("mail_outbox.reschedule", func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE mail_outbox
		SET status = 'pending',
		    attempts = attempts + 1,
		    run_at = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, id, runAt, errMsg)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mailjob.ErrJobNotFound
	}
	return nil
}

// RequeueStaleProcessing returns jobs whose worker died mid-flight to the
// pending pool once their lock outlives the TTL.
func (r *MailOutboxRepo) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	var tag pgconn.CommandTag
	var err error

	err = r.observe("mail_outbox.requeue_stale", func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE mail_outbox
		SET status = 'pending',
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE status = 'processing'
		  AND locked_at IS NOT NULL
		  AND locked_at < NOW() - $1::interval
	`, lockTTL.String())
		return err
	})

	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MailOutboxRepo) GetByID(ctx context.Context, id string) (mailjob.Job, error) {
	var j mailjob.Job
	var err error

	err = r.observe("mail_outbox.get_by_id", func() error {
		j, err = scanMailJob(r.pool.QueryRow(ctx,
			`SELECT `+mailJobColumns+` FROM mail_outbox WHERE id = $1`, id))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return mailjob.Job{}, mailjob.ErrJobNotFound
		}
		return mailjob.Job{}, err
	}
	return j, nil
}
