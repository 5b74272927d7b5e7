package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Fixed-width UTC timestamps keep created_at ordering lexical.
const askTimeLayout = "2006-01-02T15:04:05.000000Z"

// SaveAsk appends a to the audit log.
func (s *Store) SaveAsk(ctx context.Context, a Ask) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO asks (id, created_at, question, intent, plan, outcome, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.CreatedAt.UTC().Format(askTimeLayout), a.Question, a.Intent, a.Plan, a.Outcome, a.Error, a.DurationMS,
	)
	return err
}

// GetAsk returns the ask with id, or ErrNotFound.
func (s *Store) GetAsk(ctx context.Context, id string) (Ask, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, created_at, question, intent, plan, outcome, error, duration_ms
		FROM asks WHERE id = ?`), id)
	a, err := scanAsk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Ask{}, ErrNotFound
	}
	return a, err
}

// RecentAsks returns up to limit asks, newest first.
func (s *Store) RecentAsks(ctx context.Context, limit int) ([]Ask, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, created_at, question, intent, plan, outcome, error, duration_ms
		FROM asks ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ask
	for rows.Next() {
		a, err := scanAsk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsk(sc scanner) (Ask, error) {
	var a Ask
	var createdAt string
	if err := sc.Scan(&a.ID, &createdAt, &a.Question, &a.Intent, &a.Plan, &a.Outcome, &a.Error, &a.DurationMS); err != nil {
		return Ask{}, err
	}
	t, err := time.Parse(askTimeLayout, createdAt)
	if err != nil {
		return Ask{}, fmt.Errorf("parsing created_at for ask %s: %w", a.ID, err)
	}
	a.CreatedAt = t
	return a, nil
}

// PruneAsks deletes asks created before cutoff and reports how many went.
func (s *Store) PruneAsks(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM asks WHERE created_at < ?"),
		cutoff.UTC().Format(askTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning asks: %w", err)
	}
	return res.RowsAffected()
}
