package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/storage"
)

func TestMonitorRepo(t *testing.T) {
	store := NewMemoryStorage().Store()
	ctx := context.Background()

	for _, m := range []*domain.Monitor{
		{ID: "b", Name: "billing", Active: true},
		{ID: "a", Name: "api", Active: true},
		{ID: "c", Name: "cron", Active: false},
	} {
		if err := store.Monitors.Save(ctx, m); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	active, _ := store.Monitors.List(ctx, true)
	if len(active) != 2 || active[0].Name != "api" {
		t.Errorf("expected 2 active monitors sorted by name, got %v", active)
	}
	all, _ := store.Monitors.List(ctx, false)
	if len(all) != 3 {
		t.Errorf("expected 3 monitors, got %d", len(all))
	}

	if _, err := store.Monitors.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	m, _ := store.Monitors.Get(ctx, "a")
	m.Name = "mutated"
	again, _ := store.Monitors.Get(ctx, "a")
	if again.Name != "api" {
		t.Error("Get should return a copy")
	}
}

func TestCheckRepo(t *testing.T) {
	store := NewMemoryStorage().Store()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Saved out of order on purpose.
	for _, r := range []*domain.CheckResult{
		{ID: "2", MonitorID: "m1", CheckedAt: base.Add(2 * time.Minute)},
		{ID: "0", MonitorID: "m1", CheckedAt: base},
		{ID: "1", MonitorID: "m1", CheckedAt: base.Add(time.Minute)},
		{ID: "1", MonitorID: "m1", CheckedAt: base.Add(time.Minute)},
	} {
		if err := store.Checks.Save(ctx, r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	latest, err := store.Checks.Latest(ctx, "m1")
	if err != nil || latest.ID != "2" {
		t.Fatalf("Latest = %v, %v", latest, err)
	}

	recent, _ := store.Checks.ListRecent(ctx, "m1", 2)
	if len(recent) != 2 || recent[0].ID != "2" || recent[1].ID != "1" {
		t.Errorf("unexpected recent results %v", recent)
	}

	deleted, err := store.Checks.DeleteOlderThan(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}

	if _, err := store.Checks.Latest(ctx, "other"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIncidentRepo(t *testing.T) {
	store := NewMemoryStorage().Store()
	ctx := context.Background()

	if _, err := store.Incidents.GetOpen(ctx, "m1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no open incident, got %v", err)
	}

	inc := &domain.Incident{ID: "i1", MonitorID: "m1", Cause: "timeout", StartedAt: time.Now()}
	if err := store.Incidents.Open(ctx, inc); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	open, err := store.Incidents.GetOpen(ctx, "m1")
	if err != nil || open.ID != "i1" {
		t.Fatalf("GetOpen = %v, %v", open, err)
	}

	if err := store.Incidents.Resolve(ctx, "i1", time.Now()); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := store.Incidents.Resolve(ctx, "i1", time.Now()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected second resolve to fail, got %v", err)
	}
	if _, err := store.Incidents.GetOpen(ctx, "m1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected incident to be resolved, got %v", err)
	}
}
