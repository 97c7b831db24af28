package db

import (
	"context"
	"errors"

	"github.com/altitrek/tourhub/internal/config"
	"github.com/altitrek/tourhub/internal/domain/principal"
	"github.com/altitrek/tourhub/internal/security"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAdminUser seeds the bootstrap admin on startup when configured.
// A no-op if the email already exists.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	email := principal.NormalizeEmail(cfg.AdminEmail)

	var dummy string

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hasher := security.NewHasher(cfg.BcryptCost)

	hash, err := hasher.Hash(cfg.AdminPassword)

	if err != nil {
		return err
	}

	p := principal.New(email, hash, cfg.AdminName, principal.RoleAdmin)

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
		p.ID, p.Email, p.PasswordHash, p.Name, p.Role, p.Active, p.CreatedAt, p.UpdatedAt,
	)

	return err
}
