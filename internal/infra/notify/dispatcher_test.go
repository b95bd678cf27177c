package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/openstatushq/pulse/internal/checking/metrics"
	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/retry"
)

type mockNotifier struct {
	name string
	mu   sync.Mutex
	errs []error // returned in order, then nil
	sent int
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return err
	}
	return nil
}

func (m *mockNotifier) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

type mockDeduper struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (m *mockDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

func (m *mockDeduper) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}

func testExecutor() *retry.Executor {
	return retry.New(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 10 * time.Millisecond},
		retry.WithName("notify"),
		retry.WithClassifier(retry.HTTPClassifier),
		retry.WithSleep(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	)
}

func TestDispatcher_RetriesPerChannel(t *testing.T) {
	flaky := &mockNotifier{name: "dispatch_flaky", errs: []error{&HTTPError{Code: 503}, &HTTPError{Code: 502}}}
	broken := &mockNotifier{name: "dispatch_broken", errs: []error{&HTTPError{Code: 404}}}
	healthy := &mockNotifier{name: "dispatch_healthy"}

	d := NewDispatcher(testExecutor())
	d.Add(flaky, 0)
	d.Add(broken, 0)
	d.Add(healthy, 0)

	err := d.Dispatch(context.Background(), testNotification())

	var te *retry.TerminalError
	if !errors.As(err, &te) {
		t.Fatalf("expected terminal error from broken channel, got %v", err)
	}
	if flaky.calls() != 3 {
		t.Errorf("expected flaky channel to be tried 3 times, got %d", flaky.calls())
	}
	if broken.calls() != 1 {
		t.Errorf("expected broken channel to be tried once, got %d", broken.calls())
	}
	if healthy.calls() != 1 {
		t.Errorf("expected healthy channel to be tried once, got %d", healthy.calls())
	}

	if got := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("dispatch_flaky", "success")); got != 1 {
		t.Errorf("expected flaky success metric 1, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.NotificationsTotal.WithLabelValues("dispatch_broken", "terminal")); got != 1 {
		t.Errorf("expected broken terminal metric 1, got %v", got)
	}
}

func TestDispatcher_Dedup(t *testing.T) {
	n := &mockNotifier{name: "dedup"}
	dd := &mockDeduper{held: make(map[string]bool)}

	d := NewDispatcher(testExecutor(), WithDeduper(dd, time.Minute))
	d.Add(n, 0)

	for i := 0; i < 3; i++ {
		if err := d.Dispatch(context.Background(), testNotification()); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
	}
	if n.calls() != 1 {
		t.Errorf("expected 1 delivery, got %d", n.calls())
	}
}

func TestDispatcher_DedupAllowsRepeatOutage(t *testing.T) {
	n := &mockNotifier{name: "dedup_repeat"}
	dd := &mockDeduper{held: make(map[string]bool)}

	d := NewDispatcher(testExecutor(), WithDeduper(dd, time.Minute))
	d.Add(n, 0)

	transitions := []struct {
		prev, cur domain.MonitorStatus
	}{
		{domain.MonitorStatusUp, domain.MonitorStatusDown},
		{domain.MonitorStatusDown, domain.MonitorStatusUp},
		{domain.MonitorStatusUp, domain.MonitorStatusDown},
	}
	for i, tr := range transitions {
		note := testNotification()
		note.ID = ""
		note.Previous = tr.prev
		note.Current = tr.cur
		note.At = note.At.Add(time.Duration(i) * time.Minute)
		if err := d.Dispatch(context.Background(), note); err != nil {
			t.Fatalf("Dispatch %d failed: %v", i, err)
		}
	}

	if n.calls() != 3 {
		t.Errorf("expected 3 deliveries for down, up, down, got %d", n.calls())
	}

	// A second replica seeing the same outage is still suppressed.
	if err := d.Dispatch(context.Background(), testNotification()); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if n.calls() != 3 {
		t.Errorf("expected duplicate outage to be skipped, got %d deliveries", n.calls())
	}
}

func TestDispatcher_DedupErrorStillSends(t *testing.T) {
	n := &mockNotifier{name: "dedup_err"}
	d := NewDispatcher(testExecutor(), WithDeduper(&mockDeduper{err: errors.New("redis down")}, time.Minute))
	d.Add(n, 0)

	if err := d.Dispatch(context.Background(), testNotification()); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if n.calls() != 1 {
		t.Errorf("expected 1 delivery, got %d", n.calls())
	}
}

func TestDispatcher_RateLimited(t *testing.T) {
	n := &mockNotifier{name: "limited"}
	d := NewDispatcher(testExecutor())
	d.Add(n, 1) // one per minute, burst 1

	if err := d.Dispatch(context.Background(), testNotification()); err != nil {
		t.Fatalf("first Dispatch failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Dispatch(ctx, testNotification()); err == nil {
		t.Fatal("expected second dispatch to be rate limited")
	}
	if n.calls() != 1 {
		t.Errorf("expected 1 delivery, got %d", n.calls())
	}
}

func TestDispatcher_AssignsID(t *testing.T) {
	d := NewDispatcher(testExecutor())
	d.Add(&mockNotifier{name: "ids"}, 0)

	n := testNotification()
	n.ID = ""
	if err := d.Dispatch(context.Background(), n); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if n.ID == "" {
		t.Error("expected dispatcher to assign an id")
	}
}
