package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/openstatushq/pulse/internal/infra/storage"
)

// Pruner deletes check results older than the retention period.
type Pruner struct {
	retention time.Duration
	checks    storage.CheckRepository
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, checks storage.CheckRepository) *Pruner {
	return &Pruner{
		retention: retention,
		checks:    checks,
		now:       time.Now,
	}
}

// Interval is how often Start prunes: 10% of retention, between 1m and 1h.
func (p *Pruner) Interval() time.Duration {
	interval := min(p.retention/10, 1*time.Hour)
	return max(interval, 1*time.Minute)
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune deletes expired results once and returns how many were removed.
func (p *Pruner) Prune(ctx context.Context) int64 {
	cutoff := p.now().Add(-p.retention)

	deleted, err := p.checks.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to prune check results", "cutoff", cutoff, "error", err)
		return 0
	}
	if deleted > 0 {
		slog.Info("Pruned check results", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted
}
