// Package executor runs a generated plan against the sales database and
// returns its rows as an ordered result set.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/salesiq/internal/metrics"
	"github.com/kalambet/salesiq/internal/resultset"
)

// Executor runs one read query.
type Executor interface {
	Execute(ctx context.Context, query string) (resultset.Set, error)
}

// ExecutionError wraps any failure while running a query. Message is safe
// to show to the person who asked the question.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string { return e.Message }

func (e *ExecutionError) Unwrap() error { return e.Err }

// SQLExecutor executes plans over a database/sql handle.
type SQLExecutor struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLExecutor returns an executor bounded by timeout per query. A zero
// timeout means no bound beyond the caller's context.
func NewSQLExecutor(db *sql.DB, timeout time.Duration) *SQLExecutor {
	return &SQLExecutor{db: db, timeout: timeout}
}

// Execute runs query and returns every row in database order, with each
// value normalized to a float64, string or nil.
func (e *SQLExecutor) Execute(ctx context.Context, query string) (resultset.Set, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	set, err := e.query(ctx, query)
	metrics.QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &ExecutionError{Message: "query timed out", Err: err}
		}
		return nil, &ExecutionError{Message: err.Error(), Err: err}
	}
	metrics.QueriesTotal.WithLabelValues("ok").Inc()
	metrics.QueryRows.Observe(float64(len(set)))
	return set, nil
}

func (e *SQLExecutor) query(ctx context.Context, query string) (resultset.Set, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	set := resultset.Set{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(resultset.Row, len(cols))
		for i, c := range cols {
			row[c] = resultset.Normalize(vals[i])
		}
		set = append(set, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}
