package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskforge/taskforge/internal/domain/task"
	"github.com/taskforge/taskforge/internal/observability"
)

type TasksRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{
		pool: pool,
		prom: prom,
	}
}

func (r *TasksRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const taskColumns = `id, title, description, owner_id, created_at, updated_at`

func (r *TasksRepo) Create(ctx context.Context, ownerID int64, req task.CreateTaskRequest) (task.Task, error) {
	var t task.Task

	err := r.observe("tasks.create", func() error {
		return r.pool.QueryRow(
			ctx,
			`INSERT INTO tasks (title, description, owner_id)
             VALUES ($1, $2, $3)
             RETURNING `+taskColumns,
			req.Title, req.Description, ownerID,
		).Scan(&t.ID, &t.Title, &t.Description, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	})

	if err != nil {
		return task.Task{}, err
	}

	return t, nil
}

func (r *TasksRepo) GetByID(ctx context.Context, id int64) (task.Task, error) {
	var t task.Task

	err := r.observe("tasks.get_by_id", func() error {
		return r.pool.QueryRow(
			ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1`,
			id,
		).Scan(&t.ID, &t.Title, &t.Description, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}

		return task.Task{}, err
	}

	return t, nil
}

func (r *TasksRepo) List(ctx context.Context, filter task.ListFilter) ([]task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := []interface{}{}

	if filter.OwnerID != nil {
		query += ` WHERE owner_id = $1`
		args = append(args, *filter.OwnerID)
	}

	// stable ordering for pagination
	query += ` ORDER BY id ASC`

	if filter.OwnerID != nil {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}

	args = append(args, filter.Limit, filter.Offset)

	out := make([]task.Task, 0, filter.Limit)

	err := r.observe("tasks.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)

		if err != nil {
			return err
		}

		defer rows.Close()

		for rows.Next() {
			var t task.Task

			err = rows.Scan(&t.ID, &t.Title, &t.Description, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)

			if err != nil {
				return err
			}

			out = append(out, t)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

// Count uses the same filter as List so pagination metadata can never
// disagree with the result scope.
func (r *TasksRepo) Count(ctx context.Context, filter task.ListFilter) (int, error) {
	var total int

	err := r.observe("tasks.count", func() error {
		if filter.OwnerID != nil {
			return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE owner_id = $1`, *filter.OwnerID).Scan(&total)
		}
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&total)
	})

	if err != nil {
		return 0, err
	}

	return total, nil
}

func (r *TasksRepo) Update(ctx context.Context, id int64, req task.UpdateTaskRequest) (task.Task, error) {
	var t task.Task

	err := r.observe("tasks.update", func() error {
		return r.pool.QueryRow(
			ctx,
			`UPDATE tasks
                SET title = COALESCE($2, title),
                    description = COALESCE($3, description),
                    updated_at = NOW()
              WHERE id = $1
              RETURNING `+taskColumns,
			id,
			req.Title,
			req.Description,
		).Scan(&t.ID, &t.Title, &t.Description, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt)
	})

	if err != nil {
		// if there are no rows matching the id
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		// if it is any other type of error
		return task.Task{}, err
	}

	return t, nil
}

func (r *TasksRepo) Delete(ctx context.Context, id int64) error {
	var tag pgconn.CommandTag

	err := r.observe("tasks.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return err
	}

	// if no rows were deleted as a result return a not found error
	if tag.RowsAffected() == 0 {
		return task.ErrNotFound
	}

	return nil
}
