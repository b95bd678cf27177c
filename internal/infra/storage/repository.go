package storage

import (
	"context"
	"errors"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
)

var (
	// ErrNotFound is returned when a record doesn't exist
	ErrNotFound = errors.New("not found")
)

// MonitorRepository handles monitor storage operations
type MonitorRepository interface {
	// List returns monitors ordered by name, optionally only active ones
	List(ctx context.Context, activeOnly bool) ([]*domain.Monitor, error)

	// Get retrieves a monitor by ID
	Get(ctx context.Context, id string) (*domain.Monitor, error)

	// Save inserts or updates a monitor
	Save(ctx context.Context, m *domain.Monitor) error

	// Delete removes a monitor
	Delete(ctx context.Context, id string) error
}

// CheckRepository handles check result storage operations
type CheckRepository interface {
	// Save saves a check result
	Save(ctx context.Context, r *domain.CheckResult) error

	// Latest retrieves the most recent result for a monitor
	Latest(ctx context.Context, monitorID string) (*domain.CheckResult, error)

	// ListRecent retrieves up to limit results, newest first
	ListRecent(ctx context.Context, monitorID string, limit int) ([]*domain.CheckResult, error)

	// DeleteOlderThan deletes results checked before the cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// IncidentRepository handles incident storage operations
type IncidentRepository interface {
	// GetOpen retrieves the unresolved incident for a monitor
	GetOpen(ctx context.Context, monitorID string) (*domain.Incident, error)

	// Open records a new incident
	Open(ctx context.Context, inc *domain.Incident) error

	// Resolve marks an incident resolved at the given time
	Resolve(ctx context.Context, id string, at time.Time) error
}

// Store groups the repositories used by the checker.
type Store struct {
	Monitors  MonitorRepository
	Checks    CheckRepository
	Incidents IncidentRepository
}
