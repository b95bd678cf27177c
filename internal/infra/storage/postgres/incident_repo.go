package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/storage"
)

type incidentRow struct {
	ID         string       `db:"id"`
	MonitorID  string       `db:"monitor_id"`
	Cause      string       `db:"cause"`
	StartedAt  time.Time    `db:"started_at"`
	ResolvedAt sql.NullTime `db:"resolved_at"`
}

// IncidentRepo implements storage.IncidentRepository using PostgreSQL.
type IncidentRepo struct {
	db *DB
}

// NewIncidentRepo creates a new PostgreSQL incident repository.
func NewIncidentRepo(db *DB) *IncidentRepo {
	return &IncidentRepo{db: db}
}

func (r *IncidentRepo) GetOpen(ctx context.Context, monitorID string) (*domain.Incident, error) {
	var (
		row   incidentRow
		found bool
	)
	err := r.db.run(ctx, func(ctx context.Context) error {
		err := r.db.GetContext(ctx, &row, `
			SELECT id, monitor_id, cause, started_at, resolved_at
			FROM incidents
			WHERE monitor_id = $1 AND resolved_at IS NULL`, monitorID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get open incident: %w", err)
	}
	if !found {
		return nil, storage.ErrNotFound
	}

	inc := &domain.Incident{
		ID:        row.ID,
		MonitorID: row.MonitorID,
		Cause:     row.Cause,
		StartedAt: row.StartedAt,
	}
	if row.ResolvedAt.Valid {
		t := row.ResolvedAt.Time
		inc.ResolvedAt = &t
	}
	return inc, nil
}

func (r *IncidentRepo) Open(ctx context.Context, inc *domain.Incident) error {
	err := r.db.run(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO incidents (id, monitor_id, cause, started_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING`,
			inc.ID, inc.MonitorID, inc.Cause, inc.StartedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to open incident: %w", err)
	}
	return nil
}

func (r *IncidentRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	var affected int64
	err := r.db.run(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx,
			`UPDATE incidents SET resolved_at = $2 WHERE id = $1 AND resolved_at IS NULL`, id, at)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to resolve incident: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// NewStore builds a storage.Store backed by db.
func NewStore(db *DB) *storage.Store {
	return &storage.Store{
		Monitors:  NewMonitorRepo(db),
		Checks:    NewCheckRepo(db),
		Incidents: NewIncidentRepo(db),
	}
}
