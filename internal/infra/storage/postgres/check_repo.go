package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/storage"
)

type checkRow struct {
	ID          string    `db:"id"`
	MonitorID   string    `db:"monitor_id"`
	Status      string    `db:"status"`
	StatusCode  int       `db:"status_code"`
	LatencyMS   int64     `db:"latency_ms"`
	Attempts    int       `db:"attempts"`
	FailureKind string    `db:"failure_kind"`
	Error       string    `db:"error"`
	CheckedAt   time.Time `db:"checked_at"`
}

func (r checkRow) toDomain() *domain.CheckResult {
	return &domain.CheckResult{
		ID:          r.ID,
		MonitorID:   r.MonitorID,
		Status:      domain.MonitorStatus(r.Status),
		StatusCode:  r.StatusCode,
		Latency:     time.Duration(r.LatencyMS) * time.Millisecond,
		Attempts:    r.Attempts,
		FailureKind: r.FailureKind,
		Error:       r.Error,
		CheckedAt:   r.CheckedAt,
	}
}

// CheckRepo implements storage.CheckRepository using PostgreSQL.
type CheckRepo struct {
	db *DB
}

// NewCheckRepo creates a new PostgreSQL check result repository.
func NewCheckRepo(db *DB) *CheckRepo {
	return &CheckRepo{db: db}
}

func (r *CheckRepo) Save(ctx context.Context, res *domain.CheckResult) error {
	row := checkRow{
		ID:          res.ID,
		MonitorID:   res.MonitorID,
		Status:      string(res.Status),
		StatusCode:  res.StatusCode,
		LatencyMS:   res.Latency.Milliseconds(),
		Attempts:    res.Attempts,
		FailureKind: res.FailureKind,
		Error:       res.Error,
		CheckedAt:   res.CheckedAt,
	}

	// ON CONFLICT keeps a retried insert idempotent.
	err := r.db.run(ctx, func(ctx context.Context) error {
		_, err := r.db.NamedExecContext(ctx, `
			INSERT INTO check_results
				(id, monitor_id, status, status_code, latency_ms, attempts, failure_kind, error, checked_at)
			VALUES
				(:id, :monitor_id, :status, :status_code, :latency_ms, :attempts, :failure_kind, :error, :checked_at)
			ON CONFLICT (id) DO NOTHING`, row)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save check result: %w", err)
	}
	return nil
}

func (r *CheckRepo) Latest(ctx context.Context, monitorID string) (*domain.CheckResult, error) {
	results, err := r.ListRecent(ctx, monitorID, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, storage.ErrNotFound
	}
	return results[0], nil
}

func (r *CheckRepo) ListRecent(ctx context.Context, monitorID string, limit int) ([]*domain.CheckResult, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []checkRow
	err := r.db.run(ctx, func(ctx context.Context) error {
		rows = rows[:0]
		return r.db.SelectContext(ctx, &rows, `
			SELECT id, monitor_id, status, status_code, latency_ms, attempts, failure_kind, error, checked_at
			FROM check_results
			WHERE monitor_id = $1
			ORDER BY checked_at DESC
			LIMIT $2`, monitorID, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list check results: %w", err)
	}

	results := make([]*domain.CheckResult, len(rows))
	for i, row := range rows {
		results[i] = row.toDomain()
	}
	return results, nil
}

func (r *CheckRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.run(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM check_results WHERE checked_at < $1`, cutoff)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune check results: %w", err)
	}
	return deleted, nil
}
