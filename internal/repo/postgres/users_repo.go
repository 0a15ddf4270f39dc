package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskforge/taskforge/internal/domain/user"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

const uniqueViolation = "23505"

type UsersRepo struct {
	pool *pgxpool.Pool
}

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepo {
	return &UsersRepo{pool: pool}
}

const userColumns = `id, email, password_hash, full_name, role, is_active, created_at, updated_at`

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, fullName string, role user.Role) (user.User, error) {
	var u user.User

	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO users (email, password_hash, full_name, role)
         VALUES ($1, $2, $3, $4)
         RETURNING `+userColumns,
		email, passwordHash, fullName, role,
	).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FullName,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.User{}, ErrEmailTaken
		}

		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getBy(ctx, `WHERE email = $1`, email)
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

func (r *UsersRepo) getBy(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var u user.User

	err := r.pool.QueryRow(
		ctx,
		`SELECT `+userColumns+` FROM users `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FullName,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, ErrUserNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) List(ctx context.Context, offset, limit int) ([]user.User, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT `+userColumns+`
         FROM users
         ORDER BY id ASC
         LIMIT $1 OFFSET $2`,
		limit, offset,
	)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	out := make([]user.User, 0, limit)

	for rows.Next() {
		var u user.User

		err = rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)

		if err != nil {
			return nil, err
		}

		out = append(out, u)
	}

	return out, rows.Err()
}

func (r *UsersRepo) Count(ctx context.Context) (int, error) {
	var total int

	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total)

	if err != nil {
		return 0, err
	}

	return total, nil
}
