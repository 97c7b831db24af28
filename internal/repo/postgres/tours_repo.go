package postgres

import (
	"context"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/domain/tour"
	"github.com/altitrek/tourhub/internal/observability"
	"github.com/altitrek/tourhub/internal/query"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tourColumns = `id, name, duration, max_group_size, difficulty, price,
	ratings_average, ratings_quantity, summary, description,
	created_at, updated_at`

var tourQueryColumns = columnMap{
	"name":            "name",
	"duration":        "duration",
	"maxGroupSize":    "max_group_size",
	"difficulty":      "difficulty",
	"price":           "price",
	"ratingsAverage":  "ratings_average",
	"ratingsQuantity": "ratings_quantity",
	"createdAt":       "created_at",
}

type ToursRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewToursRepo(pool *pgxpool.Pool, prom *observability.Prom) *ToursRepo {
	return &ToursRepo{pool: pool, prom: prom}
}

func (r *ToursRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanTour(row pgx.Row) (tour.Tour, error) {
	var t tour.Tour

	err := row.Scan(
		&t.ID, &t.Name, &t.Duration, &t.MaxGroupSize, &t.Difficulty, &t.Price,
		&t.RatingsAverage, &t.RatingsQuantity, &t.Summary, &t.Description,
		&t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func (r *ToursRepo) Create(ctx context.Context, req tour.CreateTourRequest) (tour.Tour, error) {
	t := tour.NewFromCreateRequest(req)

	err := r.observe("tours.create", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO tours (
			id, name, duration, max_group_size, difficulty, price,
			ratings_average, ratings_quantity, summary, description,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, t.ID, t.Name, t.Duration, t.MaxGroupSize, t.Difficulty, t.Price,
			t.RatingsAverage, t.RatingsQuantity, t.Summary, t.Description,
			t.CreatedAt, t.UpdatedAt)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return tour.Tour{}, apperr.DuplicateKey("A tour with this name already exists")
		}
		return tour.Tour{}, mapPgError(err, "tour")
	}
	return t, nil
}

func (r *ToursRepo) GetByID(ctx context.Context, id string, _ []string) (tour.Tour, error) {
	var t tour.Tour
	var err error

	err = r.observe("tours.get_by_id", func() error {
		t, err = scanTour(r.pool.QueryRow(ctx,
			`SELECT `+tourColumns+` FROM tours WHERE id = $1`, id))
		return err
	})

	if err != nil {
		return tour.Tour{}, mapPgError(err, "tour")
	}
	return t, nil
}

func (r *ToursRepo) Update(ctx context.Context, id string, req tour.UpdateTourRequest) (tour.Tour, error) {
	var t tour.Tour
	var err error

	err = r.observe("tours.update", func() error {
		t, err = scanTour(r.pool.QueryRow(ctx, `
		UPDATE tours
		SET name = COALESCE($2, name),
		    duration = COALESCE($3, duration),
		    max_group_size = COALESCE($4, max_group_size),
		    difficulty = COALESCE($5, difficulty),
		    price = COALESCE($6, price),
		    summary = COALESCE($7, summary),
		    description = COALESCE($8, description),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+tourColumns,
			id, req.Name, req.Duration, req.MaxGroupSize, req.Difficulty,
			req.Price, req.Summary, req.Description))
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return tour.Tour{}, apperr.DuplicateKey("A tour with this name already exists")
		}
		return tour.Tour{}, mapPgError(err, "tour")
	}
	return t, nil
}

func (r *ToursRepo) Delete(ctx context.Context, id string) error {
	var affected int64

	err := r.observe("tours.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM tours WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return mapPgError(err, "tour")
	}
	if affected == 0 {
		return apperr.NotFound("No tour was found with this id")
	}
	return nil
}

func (r *ToursRepo) List(ctx context.Context, f query.Features) ([]tour.Tour, error) {
	sql, args, err := buildListQuery(
		`SELECT `+tourColumns+` FROM tours`, tourQueryColumns, f)
	if err != nil {
		return nil, err
	}

	var out []tour.Tour

	err = r.observe("tours.list", func() error {
		rows, err := r.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]tour.Tour, 0, f.Limit)
		for rows.Next() {
			t, err := scanTour(rows)
			if err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, mapPgError(err, "tour")
	}
	return out, nil
}

func (r *ToursRepo) Stats(ctx context.Context) ([]tour.DifficultyStats, error) {
	var out []tour.DifficultyStats

	err := r.observe("tours.stats", func() error {
		rows, err := r.pool.Query(ctx, `
		SELECT difficulty,
		       COUNT(*) AS num_tours,
		       COALESCE(SUM(ratings_quantity), 0) AS num_ratings,
		       COALESCE(AVG(ratings_average), 0) AS avg_rating,
		       COALESCE(AVG(price), 0) AS avg_price,
		       COALESCE(MIN(price), 0) AS min_price,
		       COALESCE(MAX(price), 0) AS max_price
		FROM tours
		GROUP BY difficulty
		ORDER BY avg_price ASC
	`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s tour.DifficultyStats
			if err := rows.Scan(&s.Difficulty, &s.NumTours, &s.NumRatings,
				&s.AvgRating, &s.AvgPrice, &s.MinPrice, &s.MaxPrice); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecalcRatings refreshes a tour's denormalized rating fields from its
// reviews. Called after any review write touching that tour.
func (r *ToursRepo) RecalcRatings(ctx context.Context, tourID string) error {
	return r.observe("tours.recalc_ratings", func() error {
		_, err := r.pool.Exec(ctx, `
		UPDATE tours t
		SET ratings_quantity = agg.qty,
		    ratings_average = agg.avg,
		    updated_at = NOW()
		FROM (
			SELECT COUNT(*) AS qty, COALESCE(AVG(rating), 4.5) AS avg
			FROM reviews WHERE tour_id = $1
		) agg
		WHERE t.id = $1
	`, tourID)
		return err
	})
}
