package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ObserveDB times a single database operation and records its outcome
// under the given op label.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	start := time.Now()
	err := fn()

	status := "ok"
	if err != nil {
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, classifyDBErr(err)).Inc()
	}
	p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

var pgErrClasses = map[string]string{
	"23505": "unique_violation",
	"23503": "foreign_key_violation",
	"40001": "serialization_failure",
	"40P01": "deadlock",
	"57014": "query_canceled",
}

func classifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if class, ok := pgErrClasses[pgErr.Code]; ok {
			return class
		}
		return "pg_" + pgErr.Code
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case strings.Contains(strings.ToLower(err.Error()), "connection"):
		return "connection"
	default:
		return "unknown"
	}
}
