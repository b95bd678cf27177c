package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/storage"
)

// newTestDB connects to DATABASE_URL and migrates, or skips.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, Config{URL: url}, nil)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return db
}

func TestRepositories(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	m := &domain.Monitor{
		ID:       "test-" + uuid.NewString(),
		Name:     "api",
		Kind:     domain.MonitorKindHTTP,
		URL:      "https://api.example.com/health",
		Headers:  map[string]string{"Accept": "application/json"},
		Interval: time.Minute,
		Timeout:  5 * time.Second,
		Active:   true,
	}
	if err := store.Monitors.Save(ctx, m); err != nil {
		t.Fatalf("Save monitor failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Monitors.Delete(ctx, m.ID) })

	got, err := store.Monitors.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("Get monitor failed: %v", err)
	}
	if got.Interval != time.Minute || got.Headers["Accept"] != "application/json" {
		t.Errorf("unexpected monitor %+v", got)
	}

	if _, err := store.Monitors.Get(ctx, "missing-"+uuid.NewString()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	old := &domain.CheckResult{
		ID: uuid.NewString(), MonitorID: m.ID, Status: domain.MonitorStatusUp,
		CheckedAt: time.Now().Add(-48 * time.Hour),
	}
	recent := &domain.CheckResult{
		ID: uuid.NewString(), MonitorID: m.ID, Status: domain.MonitorStatusDown,
		Attempts: 3, FailureKind: "exhausted", CheckedAt: time.Now(),
	}
	for _, r := range []*domain.CheckResult{old, recent, recent} {
		if err := store.Checks.Save(ctx, r); err != nil {
			t.Fatalf("Save check failed: %v", err)
		}
	}

	latest, err := store.Checks.Latest(ctx, m.ID)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != recent.ID || latest.Attempts != 3 {
		t.Errorf("unexpected latest %+v", latest)
	}

	if _, err := store.Checks.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour)); err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	list, err := store.Checks.ListRecent(ctx, m.ID, 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 result after prune, got %d", len(list))
	}

	inc := &domain.Incident{ID: uuid.NewString(), MonitorID: m.ID, Cause: "timeout", StartedAt: time.Now()}
	if err := store.Incidents.Open(ctx, inc); err != nil {
		t.Fatalf("Open incident failed: %v", err)
	}
	open, err := store.Incidents.GetOpen(ctx, m.ID)
	if err != nil || open.ID != inc.ID {
		t.Fatalf("GetOpen = %+v, %v", open, err)
	}
	if err := store.Incidents.Resolve(ctx, inc.ID, time.Now()); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if _, err := store.Incidents.GetOpen(ctx, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected no open incident, got %v", err)
	}
}
