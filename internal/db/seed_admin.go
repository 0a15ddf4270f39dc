package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/domain/user"
	"github.com/taskforge/taskforge/internal/security"
)

// EnsureAdminUser seeds the configured admin account once. A no-op when
// the account exists or no admin credentials were configured.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the user exists

	var dummy int64

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (email, password_hash, full_name, role)
		 VALUES ($1, $2, $3, $4)`,
		cfg.AdminEmail, hash, cfg.AdminName, user.RoleAdmin,
	)

	return err
}
