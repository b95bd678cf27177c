package worker

import (
	"context"
	"testing"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/storage/memory"
)

func TestPruner_Interval(t *testing.T) {
	tests := []struct {
		retention time.Duration
		expect    time.Duration
	}{
		{30 * 24 * time.Hour, time.Hour},
		{5 * time.Hour, 30 * time.Minute},
		{5 * time.Minute, time.Minute},
	}

	for _, tt := range tests {
		if got := NewPruner(tt.retention, nil).Interval(); got != tt.expect {
			t.Errorf("Interval(%v) = %v, want %v", tt.retention, got, tt.expect)
		}
	}
}

func TestPruner_Prune(t *testing.T) {
	checks := memory.NewCheckRepo(memory.NewMemoryStorage())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, age := range []time.Duration{72 * time.Hour, 30 * time.Hour, time.Hour} {
		_ = checks.Save(ctx, &domain.CheckResult{
			ID:        string(rune('a' + i)),
			MonitorID: "m1",
			CheckedAt: now.Add(-age),
		})
	}

	p := NewPruner(24*time.Hour, checks)
	p.now = func() time.Time { return now }

	if deleted := p.Prune(ctx); deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}
	remaining, _ := checks.ListRecent(ctx, "m1", 10)
	if len(remaining) != 1 {
		t.Errorf("expected 1 remaining result, got %d", len(remaining))
	}
}

func TestPruner_DisabledReturnsImmediately(t *testing.T) {
	done := make(chan struct{})
	go func() {
		NewPruner(0, nil).Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return when retention is disabled")
	}
}
