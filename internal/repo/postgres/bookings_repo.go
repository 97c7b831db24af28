package postgres

import (
	"context"
	"slices"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/domain/booking"
	"github.com/altitrek/tourhub/internal/observability"
	"github.com/altitrek/tourhub/internal/query"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, tour_id, user_id, price, paid, created_at, updated_at`

var bookingQueryColumns = columnMap{
	"tourId":    "tour_id",
	"userId":    "user_id",
	"price":     "price",
	"paid":      "paid",
	"createdAt": "created_at",
}

type BookingsRepo struct {
	pool  *pgxpool.Pool
	prom  *observability.Prom
	tours *ToursRepo
}

func NewBookingsRepo(pool *pgxpool.Pool, prom *observability.Prom, tours *ToursRepo) *BookingsRepo {
	return &BookingsRepo{pool: pool, prom: prom, tours: tours}
}

func (r *BookingsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanBooking(row pgx.Row) (booking.Booking, error) {
	var b booking.Booking

	err := row.Scan(
		&b.ID, &b.TourID, &b.UserID, &b.Price, &b.Paid,
		&b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

func (r *BookingsRepo) Create(ctx context.Context, req booking.CreateBookingRequest) (booking.Booking, error) {
	b := booking.NewFromCreateRequest(req)

	err := r.observe("bookings.create", func() error {
		_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (id, tour_id, user_id, price, paid, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, b.ID, b.TourID, b.UserID, b.Price, b.Paid, b.CreatedAt, b.UpdatedAt)
		return err
	})

	if err != nil {
		return booking.Booking{}, mapPgError(err, "tour")
	}
	return b, nil
}

func (r *BookingsRepo) GetByID(ctx context.Context, id string, expand []string) (booking.Booking, error) {
	var b booking.Booking
	var err error

	err = r.observe("bookings.get_by_id", func() error {
		b, err = scanBooking(r.pool.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
		return err
	})

	if err != nil {
		return booking.Booking{}, mapPgError(err, "booking")
	}

	if slices.Contains(expand, "tour") {
		t, err := r.tours.GetByID(ctx, b.TourID, nil)
		if err == nil {
			b.Tour = &t
		}
	}
	return b, nil
}

func (r *BookingsRepo) Update(ctx context.Context, id string, req booking.UpdateBookingRequest) (booking.Booking, error) {
	var b booking.Booking
	var err error

	err = r.observe("bookings.update", func() error {
		b, err = scanBooking(r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET price = COALESCE($2, price),
		    paid = COALESCE($3, paid),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+bookingColumns,
			id, req.Price, req.Paid))
		return err
	})

	if err != nil {
		return booking.Booking{}, mapPgError(err, "booking")
	}
	return b, nil
}

func (r *BookingsRepo) Delete(ctx context.Context, id string) error {
	var affected int64

	err := r.observe("bookings.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})

	if err != nil {
		return mapPgError(err, "booking")
	}
	if affected == 0 {
		return apperr.NotFound("No booking was found with this id")
	}
	return nil
}

func (r *BookingsRepo) List(ctx context.Context, f query.Features) ([]booking.Booking, error) {
	sql, args, err := buildListQuery(
		`SELECT `+bookingColumns+` FROM bookings`, bookingQueryColumns, f)
	if err != nil {
		return nil, err
	}

	var out []booking.Booking

	err = r.observe("bookings.list", func() error {
		rows, err := r.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]booking.Booking, 0, f.Limit)
		for rows.Next() {
			b, err := scanBooking(rows)
			if err != nil {
				return err
			}
			out = append(out, b)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, mapPgError(err, "booking")
	}
	return out, nil
}
