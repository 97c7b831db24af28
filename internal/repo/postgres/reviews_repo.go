package postgres

import (
	"context"
	"slices"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/domain/review"
	"github.com/altitrek/tourhub/internal/observability"
	"github.com/altitrek/tourhub/internal/query"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reviewColumns = `id, rating, text, tour_id, author_id, created_at, updated_at`

var reviewQueryColumns = columnMap{
	"rating":    "rating",
	"tourId":    "tour_id",
	"authorId":  "author_id",
	"createdAt": "created_at",
}

type ReviewsRepo struct {
	pool  *pgxpool.Pool
	prom  *observability.Prom
	tours *ToursRepo
}

func NewReviewsRepo(pool *pgxpool.Pool, prom *observability.Prom, tours *ToursRepo) *ReviewsRepo {
	return &ReviewsRepo{pool: pool, prom: prom, tours: tours}
}

func (r *ReviewsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanReview(row pgx.Row) (review.Review, error) {
	var rv review.Review

	err := row.Scan(
		&rv.ID, &rv.Rating, &rv.Text, &rv.TourID, &rv.AuthorID,
		&rv.CreatedAt, &rv.UpdatedAt,
	)
	return rv, err
}

func (r *ReviewsRepo) Create(ctx context.Context, req review.CreateReviewRequest) (review.Review, error) {
	rv := review.NewFromCreateRequest(req)

	err := r.observe("reviews.create", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO reviews (id, rating, text, tour_id, author_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rv.ID, rv.Rating, rv.Text, rv.TourID, rv.AuthorID, rv.CreatedAt, rv.UpdatedAt)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return review.Review{}, apperr.DuplicateKey("You have already reviewed this tour")
		}
		return review.Review{}, mapPgError(err, "tour")
	}

	if err := r.tours.RecalcRatings(ctx, rv.TourID); err != nil {
		return review.Review{}, err
	}
	return rv, nil
}

func (r *ReviewsRepo) GetByID(ctx context.Context, id string, expand []string) (review.Review, error) {
	var rv review.Review
	var err error

	err = r.observe("reviews.get_by_id", func() error {
		rv, err = scanReview(r.pool.QueryRow(ctx,
			`SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
		return err
	})

	if err != nil {
		return review.Review{}, mapPgError(err, "review")
	}

	if slices.Contains(expand, "tour") {
		t, err := r.tours.GetByID(ctx, rv.TourID, nil)
		if err == nil {
			rv.Tour = &t
		}
	}
	return rv, nil
}

func (r *ReviewsRepo) Update(ctx context.Context, id string, req review.UpdateReviewRequest) (review.Review, error) {
	var rv review.Review
	var err error

	err = r.observe("reviews.update", func() error {
		rv, err = scanReview(r.pool.QueryRow(ctx, `
		UPDATE reviews
		SET rating = COALESCE($2, rating),
		    text = COALESCE($3, text),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+reviewColumns,
			id, req.Rating, req.Text))
		return err
	})

	if err != nil {
		return review.Review{}, mapPgError(err, "review")
	}

	if req.Rating != nil {
		if err := r.tours.RecalcRatings(ctx, rv.TourID); err != nil {
			return review.Review{}, err
		}
	}
	return rv, nil
}

func (r *ReviewsRepo) Delete(ctx context.Context, id string) error {
	var tourID string
	var err error

	err = r.observe("reviews.delete", func() error {
		return r.pool.QueryRow(ctx,
			`DELETE FROM reviews WHERE id = $1 RETURNING tour_id`, id).Scan(&tourID)
	})

	if err != nil {
		return mapPgError(err, "review")
	}
	return r.tours.RecalcRatings(ctx, tourID)
}

func (r *ReviewsRepo) List(ctx context.Context, f query.Features) ([]review.Review, error) {
	sql, args, err := buildListQuery(
		`SELECT `+reviewColumns+` FROM reviews`, reviewQueryColumns, f)
	if err != nil {
		return nil, err
	}

	var out []review.Review

	err = r.observe("reviews.list", func() error {
		rows, err := r.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]review.Review, 0, f.Limit)
		for rows.Next() {
			rv, err := scanReview(rows)
			if err != nil {
				return err
			}
			out = append(out, rv)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, mapPgError(err, "review")
	}
	return out, nil
}
