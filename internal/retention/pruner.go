// Package retention trims the ask log to a configured age.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/salesiq/internal/metrics"
)

// AskPruner deletes ask log entries older than a cutoff.
type AskPruner interface {
	PruneAsks(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner periodically deletes asks older than maxAge.
type Pruner struct {
	store  AskPruner
	maxAge time.Duration
	every  time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewPruner creates a Pruner. If every is <= 0, it defaults to one hour.
func NewPruner(store AskPruner, maxAge, every time.Duration) *Pruner {
	if every <= 0 {
		every = time.Hour
	}
	return &Pruner{
		store:  store,
		maxAge: maxAge,
		every:  every,
		now:    time.Now,
		logger: slog.Default(),
	}
}

// Run prunes once immediately and then every interval until ctx is
// cancelled. A zero maxAge disables pruning and Run returns at once.
func (p *Pruner) Run(ctx context.Context) {
	if p.maxAge <= 0 {
		return
	}
	for {
		if _, err := p.RunOnce(ctx); err != nil {
			p.logger.Error("ask retention pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.every):
		}
	}
}

// RunOnce deletes asks older than maxAge and returns how many were removed.
func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.maxAge)
	n, err := p.store.PruneAsks(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning asks before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		metrics.AsksPruned.Add(float64(n))
		p.logger.Info("pruned ask log", "deleted", n, "cutoff", cutoff)
	}
	return n, nil
}
