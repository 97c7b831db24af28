package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/domain/principal"
	"github.com/altitrek/tourhub/internal/observability"
	"github.com/altitrek/tourhub/internal/query"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, name, photo, role,
	password_changed_at, reset_token_hash, reset_token_expires,
	active, created_at, updated_at`

// UsersRepo is the credential store. Every lookup scopes out soft-deleted
// principals explicitly; there is no implicit query rewriting.
type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanPrincipal(row pgx.Row) (principal.Principal, error) {
	var p principal.Principal

	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.PasswordHash,
		&p.Name,
		&p.Photo,
		&p.Role,
		&p.PasswordChangedAt,
		&p.ResetTokenHash,
		&p.ResetTokenExpires,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (r *UsersRepo) Create(ctx context.Context, p principal.Principal) (principal.Principal, error) {
	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (id, email, password_hash, name, photo, role, active, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, p.Email, p.PasswordHash, p.Name, p.Photo, p.Role, p.Active, p.CreatedAt, p.UpdatedAt,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return principal.Principal{}, apperr.DuplicateKey("Email is already in use")
		}
		return principal.Principal{}, err
	}

	return p, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (principal.Principal, error) {
	var p principal.Principal
	var err error

	err = r.observe("users.get_by_id", func() error {
		p, err = scanPrincipal(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1 AND active = TRUE`, id))
		return err
	})

	if err != nil {
		return principal.Principal{}, mapPgError(err, "user")
	}
	return p, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (principal.Principal, error) {
	var p principal.Principal
	var err error

	err = r.observe("users.get_by_email", func() error {
		p, err = scanPrincipal(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1 AND active = TRUE`,
			principal.NormalizeEmail(email)))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return principal.Principal{}, apperr.NotFound("No user was found with this email")
		}
		return principal.Principal{}, err
	}
	return p, nil
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, req principal.UpdateProfileRequest) (principal.Principal, error) {
	var email *string
	if req.Email != nil {
		normalized := principal.NormalizeEmail(*req.Email)
		email = &normalized
	}

	var p principal.Principal
	var err error

	err = r.observe("users.update_profile", func() error {
		p, err = scanPrincipal(r.pool.QueryRow(ctx,
			`UPDATE users
			 SET name = COALESCE($2, name),
			     email = COALESCE($3, email),
			     photo = COALESCE($4, photo),
			     updated_at = NOW()
			 WHERE id = $1 AND active = TRUE
			 RETURNING `+userColumns,
			id, req.Name, email, req.Photo))
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return principal.Principal{}, apperr.DuplicateKey("Email is already in use")
		}
		return principal.Principal{}, mapPgError(err, "user")
	}
	return p, nil
}

// Deactivate soft-deletes: the row stays, default lookups stop seeing it.
func (r *UsersRepo) Deactivate(ctx context.Context, id string) error {
	var tag int64

	err := r.observe("users.deactivate", func() error {
		res, err := r.pool.Exec(ctx,
			`UPDATE users SET active = FALSE, updated_at = NOW()
			 WHERE id = $1 AND active = TRUE`, id)
		tag = res.RowsAffected()
		return err
	})

	if err != nil {
		return mapPgError(err, "user")
	}
	if tag == 0 {
		return apperr.NotFound("No user was found with this id")
	}
	return nil
}

// UpdatePassword stores the new hash and sets password-changed-at in the
// same statement. Token issuance happens only after this returns, so any
// token minted before the change carries an earlier iat and gets rejected.
func (r *UsersRepo) UpdatePassword(ctx context.Context, id string, newHash string) (principal.Principal, error) {
	var p principal.Principal
	var err error

	err = r.observe("users.update_password", func() error {
		p, err = scanPrincipal(r.pool.QueryRow(ctx,
			`UPDATE users
			 SET password_hash = $2,
			     password_changed_at = NOW(),
			     updated_at = NOW()
			 WHERE id = $1 AND active = TRUE
			 RETURNING `+userColumns,
			id, newHash))
		return err
	})

	if err != nil {
		return principal.Principal{}, mapPgError(err, "user")
	}
	return p, nil
}

func (r *UsersRepo) SetResetToken(ctx context.Context, id string, digest string, expires time.Time) error {
	var affected int64

	err := r.observe("users.set_reset_token", func() error {
		res, err := r.pool.Exec(ctx,
			`UPDATE users
			 SET reset_token_hash = $2,
			     reset_token_expires = $3,
			     updated_at = NOW()
			 WHERE id = $1 AND active = TRUE`,
			id, digest, expires)
		affected = res.RowsAffected()
		return err
	})

	if err != nil {
		return mapPgError(err, "user")
	}
	if affected == 0 {
		return apperr.NotFound("No user was found with this id")
	}
	return nil
}

// ConsumeResetToken performs the match-and-clear in a single conditional
// UPDATE so two racing consumers cannot both succeed. Zero rows means the
// token never existed, expired, or was already consumed.
func (r *UsersRepo) ConsumeResetToken(ctx context.Context, digest string, newHash string) (principal.Principal, error) {
	var p principal.Principal
	var err error

	err = r.observe("users.consume_reset_token", func() error {
		p, err = scanPrincipal(r.pool.QueryRow(ctx,
			`UPDATE users
			 SET password_hash = $2,
			     reset_token_hash = NULL,
			     reset_token_expires = NULL,
			     password_changed_at = NOW(),
			     updated_at = NOW()
			 WHERE reset_token_hash = $1
			   AND reset_token_expires > NOW()
			   AND active = TRUE
			 RETURNING `+userColumns,
			digest, newHash))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return principal.Principal{}, apperr.InvalidOrExpiredToken()
		}
		return principal.Principal{}, err
	}
	return p, nil
}

var userQueryColumns = columnMap{
	"name":      "name",
	"email":     "email",
	"role":      "role",
	"createdAt": "created_at",
}

func (r *UsersRepo) List(ctx context.Context, f query.Features) ([]principal.Principal, error) {
	sql, args, err := buildListQuery(
		`SELECT `+userColumns+` FROM users WHERE active = TRUE`,
		userQueryColumns, f)
	if err != nil {
		return nil, err
	}

	var out []principal.Principal

	err = r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]principal.Principal, 0, f.Limit)
		for rows.Next() {
			p, err := scanPrincipal(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, mapPgError(err, "user")
	}
	return out, nil
}

func (r *UsersRepo) AdminUpdate(ctx context.Context, id string, req principal.AdminUpdateUserRequest) (principal.Principal, error) {
	if req.Role != nil && !principal.ValidRole(*req.Role) {
		return principal.Principal{}, apperr.Validation("Unknown role")
	}

	var email *string
	if req.Email != nil {
		normalized := principal.NormalizeEmail(*req.Email)
		email = &normalized
	}

	var p principal.Principal
	var err error

	err = r.observe("users.admin_update", func() error {
		p, err = scanPrincipal(r.pool.QueryRow(ctx,
			`UPDATE users
			 SET name = COALESCE($2, name),
			     email = COALESCE($3, email),
			     role = COALESCE($4, role),
			     updated_at = NOW()
			 WHERE id = $1 AND active = TRUE
			 RETURNING `+userColumns,
			id, req.Name, email, req.Role))
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return principal.Principal{}, apperr.DuplicateKey("Email is already in use")
		}
		return principal.Principal{}, mapPgError(err, "user")
	}
	return p, nil
}
