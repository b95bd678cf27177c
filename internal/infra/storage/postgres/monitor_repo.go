package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/storage"
)

type monitorRow struct {
	ID              string `db:"id"`
	Name            string `db:"name"`
	Kind            string `db:"kind"`
	URL             string `db:"url"`
	Method          string `db:"method"`
	Headers         []byte `db:"headers"`
	Body            string `db:"body"`
	GRPCService     string `db:"grpc_service"`
	ExpectedStatus  int    `db:"expected_status"`
	IntervalMS      int64  `db:"interval_ms"`
	TimeoutMS       int64  `db:"timeout_ms"`
	DegradedAfterMS int64  `db:"degraded_after_ms"`
	Active          bool   `db:"active"`
}

func (r monitorRow) toDomain() (*domain.Monitor, error) {
	m := &domain.Monitor{
		ID:             r.ID,
		Name:           r.Name,
		Kind:           domain.MonitorKind(r.Kind),
		URL:            r.URL,
		Method:         r.Method,
		Body:           r.Body,
		GRPCService:    r.GRPCService,
		ExpectedStatus: r.ExpectedStatus,
		Interval:       time.Duration(r.IntervalMS) * time.Millisecond,
		Timeout:        time.Duration(r.TimeoutMS) * time.Millisecond,
		DegradedAfter:  time.Duration(r.DegradedAfterMS) * time.Millisecond,
		Active:         r.Active,
	}
	if len(r.Headers) > 0 {
		if err := json.Unmarshal(r.Headers, &m.Headers); err != nil {
			return nil, fmt.Errorf("monitor %s: invalid headers: %w", r.ID, err)
		}
	}
	return m, nil
}

const monitorColumns = `id, name, kind, url, method, headers, body, grpc_service,
	expected_status, interval_ms, timeout_ms, degraded_after_ms, active`

// MonitorRepo implements storage.MonitorRepository using PostgreSQL.
type MonitorRepo struct {
	db *DB
}

// NewMonitorRepo creates a new PostgreSQL monitor repository.
func NewMonitorRepo(db *DB) *MonitorRepo {
	return &MonitorRepo{db: db}
}

func (r *MonitorRepo) List(ctx context.Context, activeOnly bool) ([]*domain.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name`

	var rows []monitorRow
	err := r.db.run(ctx, func(ctx context.Context) error {
		rows = rows[:0]
		return r.db.SelectContext(ctx, &rows, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list monitors: %w", err)
	}

	monitors := make([]*domain.Monitor, 0, len(rows))
	for _, row := range rows {
		m, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, m)
	}
	return monitors, nil
}

func (r *MonitorRepo) Get(ctx context.Context, id string) (*domain.Monitor, error) {
	var (
		row   monitorRow
		found bool
	)
	err := r.db.run(ctx, func(ctx context.Context) error {
		err := r.db.GetContext(ctx, &row, `SELECT `+monitorColumns+` FROM monitors WHERE id = $1`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get monitor: %w", err)
	}
	if !found {
		return nil, storage.ErrNotFound
	}
	return row.toDomain()
}

func (r *MonitorRepo) Save(ctx context.Context, m *domain.Monitor) error {
	headers, err := json.Marshal(m.Headers)
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}
	if m.Headers == nil {
		headers = []byte("{}")
	}

	row := monitorRow{
		ID:              m.ID,
		Name:            m.Name,
		Kind:            string(m.Kind),
		URL:             m.URL,
		Method:          m.Method,
		Headers:         headers,
		Body:            m.Body,
		GRPCService:     m.GRPCService,
		ExpectedStatus:  m.ExpectedStatus,
		IntervalMS:      m.Interval.Milliseconds(),
		TimeoutMS:       m.Timeout.Milliseconds(),
		DegradedAfterMS: m.DegradedAfter.Milliseconds(),
		Active:          m.Active,
	}

	err = r.db.run(ctx, func(ctx context.Context) error {
		_, err := r.db.NamedExecContext(ctx, `
			INSERT INTO monitors (`+monitorColumns+`)
			VALUES (:id, :name, :kind, :url, :method, :headers, :body, :grpc_service,
				:expected_status, :interval_ms, :timeout_ms, :degraded_after_ms, :active)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				kind = EXCLUDED.kind,
				url = EXCLUDED.url,
				method = EXCLUDED.method,
				headers = EXCLUDED.headers,
				body = EXCLUDED.body,
				grpc_service = EXCLUDED.grpc_service,
				expected_status = EXCLUDED.expected_status,
				interval_ms = EXCLUDED.interval_ms,
				timeout_ms = EXCLUDED.timeout_ms,
				degraded_after_ms = EXCLUDED.degraded_after_ms,
				active = EXCLUDED.active,
				updated_at = NOW()`, row)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save monitor: %w", err)
	}
	return nil
}

func (r *MonitorRepo) Delete(ctx context.Context, id string) error {
	err := r.db.run(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `DELETE FROM monitors WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete monitor: %w", err)
	}
	return nil
}
