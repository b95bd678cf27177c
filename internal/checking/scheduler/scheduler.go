// Package scheduler runs monitor checks on their intervals and turns status
// changes into incidents and notifications.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openstatushq/pulse/internal/checking/metrics"
	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/retry"
	"github.com/openstatushq/pulse/internal/infra/storage"
)

// Checker performs one (retried) check of a monitor.
type Checker interface {
	Check(ctx context.Context, m *domain.Monitor) *domain.CheckResult
}

// Dispatcher delivers notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *domain.Notification) error
}

// StatusCache shares the latest result between replicas.
type StatusCache interface {
	Get(ctx context.Context, monitorID string) (*domain.CheckResult, bool, error)
	Set(ctx context.Context, r *domain.CheckResult) error
}

// Config holds scheduler settings.
type Config struct {
	// RefreshInterval is how often the monitor list is reloaded.
	RefreshInterval time.Duration
	// DefaultInterval applies to monitors without an interval.
	DefaultInterval time.Duration
}

// Scheduler runs checks for every active monitor.
type Scheduler struct {
	cfg        Config
	checker    Checker
	store      *storage.Store
	dispatcher Dispatcher
	cache      StatusCache
	cacheExec  *retry.Executor
	log        *slog.Logger

	mu   sync.Mutex
	last map[string]*domain.CheckResult

	running map[string]runningMonitor
}

type runningMonitor struct {
	monitor domain.Monitor
	cancel  context.CancelFunc
}

// Option configures a Scheduler.
type Option func(s *Scheduler)

// WithDispatcher enables notifications on status changes.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Scheduler) { s.dispatcher = d }
}

// WithStatusCache shares status through cache; writes run under exec.
func WithStatusCache(c StatusCache, exec *retry.Executor) Option {
	return func(s *Scheduler) {
		s.cache = c
		s.cacheExec = exec
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New creates a scheduler.
func New(cfg Config, checker Checker, store *storage.Store, opts ...Option) *Scheduler {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = time.Minute
	}

	s := &Scheduler{
		cfg:     cfg,
		checker: checker,
		store:   store,
		log:     slog.Default(),
		last:    make(map[string]*domain.CheckResult),
		running: make(map[string]runningMonitor),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache != nil && s.cacheExec == nil {
		s.cacheExec = retry.New(retry.DefaultPolicy(), retry.WithName("status_cache"))
	}
	return s
}

// Start runs until ctx is done. Monitors added, changed or removed in storage
// are picked up on the next refresh.
func (s *Scheduler) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := s.refresh(gctx, g); err != nil {
		return fmt.Errorf("failed to load monitors: %w", err)
	}

	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.RefreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := s.refresh(gctx, g); err != nil {
					s.log.Warn("Failed to refresh monitors", "error", err)
				}
			}
		}
	})

	return g.Wait()
}

// refresh reconciles running loops with the stored monitor list.
func (s *Scheduler) refresh(ctx context.Context, g *errgroup.Group) error {
	monitors, err := s.store.Monitors.List(ctx, true)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(monitors))
	for _, m := range monitors {
		seen[m.ID] = true
		if r, ok := s.running[m.ID]; ok {
			if sameSchedule(r.monitor, *m) {
				continue
			}
			r.cancel()
		}

		mctx, cancel := context.WithCancel(ctx)
		s.running[m.ID] = runningMonitor{monitor: *m, cancel: cancel}
		g.Go(func() error {
			s.loop(mctx, m)
			return nil
		})
		s.log.Info("Scheduled monitor", "monitor", m.Name, "interval", s.interval(m))
	}

	for id, r := range s.running {
		if !seen[id] {
			r.cancel()
			delete(s.running, id)
			s.log.Info("Unscheduled monitor", "monitor", r.monitor.Name)
		}
	}
	return nil
}

func sameSchedule(a, b domain.Monitor) bool {
	return a.Name == b.Name &&
		a.URL == b.URL &&
		a.Kind == b.Kind &&
		a.Method == b.Method &&
		a.Body == b.Body &&
		a.GRPCService == b.GRPCService &&
		a.ExpectedStatus == b.ExpectedStatus &&
		a.Interval == b.Interval &&
		a.Timeout == b.Timeout &&
		a.DegradedAfter == b.DegradedAfter &&
		maps.Equal(a.Headers, b.Headers)
}

func (s *Scheduler) interval(m *domain.Monitor) time.Duration {
	if m.Interval > 0 {
		return m.Interval
	}
	return s.cfg.DefaultInterval
}

func (s *Scheduler) loop(ctx context.Context, m *domain.Monitor) {
	ticker := time.NewTicker(s.interval(m))
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx, m); err != nil && ctx.Err() == nil {
			s.log.Warn("Check run failed", "monitor", m.Name, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunByID loads a monitor and checks it immediately.
func (s *Scheduler) RunByID(ctx context.Context, id string) (*domain.CheckResult, error) {
	m, err := s.store.Monitors.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.RunOnce(ctx, m)
}

// RunOnce checks m, persists the result and handles status transitions. The
// result is returned even when persisting it fails.
func (s *Scheduler) RunOnce(ctx context.Context, m *domain.Monitor) (*domain.CheckResult, error) {
	prev := s.previous(ctx, m.ID)

	res := s.checker.Check(ctx, m)
	if ctx.Err() != nil && res.FailureKind == string(retry.KindCancelled) {
		// Shutdown interrupted the check; the endpoint was not observed.
		return res, ctx.Err()
	}

	metrics.ChecksTotal.WithLabelValues(m.Name, string(res.Status)).Inc()
	metrics.CheckLatency.WithLabelValues(m.Name).Observe(res.Latency.Seconds())
	if res.Status == domain.MonitorStatusDown {
		metrics.MonitorUp.WithLabelValues(m.Name).Set(0)
	} else {
		metrics.MonitorUp.WithLabelValues(m.Name).Set(1)
	}

	if res.Status == domain.MonitorStatusDown {
		s.log.Warn("Monitor check failed",
			"monitor", m.Name,
			"attempts", res.Attempts,
			"failure", res.FailureKind,
			"error", res.Error,
		)
	} else {
		s.log.Debug("Monitor checked", "monitor", m.Name, "status", res.Status, "latency", res.Latency)
	}

	s.mu.Lock()
	s.last[m.ID] = res
	s.mu.Unlock()

	var errs []error
	if err := s.store.Checks.Save(ctx, res); err != nil {
		errs = append(errs, err)
	}
	if s.cache != nil {
		err := s.cacheExec.Run(ctx, func(ctx context.Context) error {
			return s.cache.Set(ctx, res)
		})
		if err != nil {
			s.log.Warn("Failed to cache status", "monitor", m.Name, "result", retry.Describe(err))
		}
	}

	if prev != res.Status {
		if err := s.transition(ctx, m, prev, res); err != nil {
			errs = append(errs, err)
		}
	}

	return res, errors.Join(errs...)
}

// previous returns the last known status, looking in memory, then the shared
// cache, then storage.
func (s *Scheduler) previous(ctx context.Context, monitorID string) domain.MonitorStatus {
	s.mu.Lock()
	last, ok := s.last[monitorID]
	s.mu.Unlock()
	if ok {
		return last.Status
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, monitorID)
		if err != nil {
			s.log.Debug("Status cache lookup failed", "monitor", monitorID, "error", err)
		} else if ok {
			return cached.Status
		}
	}

	latest, err := s.store.Checks.Latest(ctx, monitorID)
	if err == nil {
		return latest.Status
	}
	return domain.MonitorStatusUnknown
}

func (s *Scheduler) transition(
	ctx context.Context,
	m *domain.Monitor,
	prev domain.MonitorStatus,
	res *domain.CheckResult,
) error {
	if err := s.updateIncident(ctx, m, res); err != nil {
		return err
	}

	// A monitor seen for the first time is only announced when it is down.
	if prev == domain.MonitorStatusUnknown && res.Status != domain.MonitorStatusDown {
		return nil
	}
	if s.dispatcher == nil {
		return nil
	}

	n := &domain.Notification{
		ID:          uuid.NewString(),
		MonitorID:   m.ID,
		MonitorName: m.Name,
		URL:         m.URL,
		Previous:    prev,
		Current:     res.Status,
		Message:     message(m, prev, res),
		At:          res.CheckedAt,
	}
	if err := s.dispatcher.Dispatch(ctx, n); err != nil {
		s.log.Warn("Failed to dispatch notification", "monitor", m.Name, "error", err)
		return fmt.Errorf("dispatch notification: %w", err)
	}
	return nil
}

// updateIncident opens an incident when a monitor goes down and resolves it
// once the monitor is reachable again.
func (s *Scheduler) updateIncident(ctx context.Context, m *domain.Monitor, res *domain.CheckResult) error {
	open, err := s.store.Incidents.GetOpen(ctx, m.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get open incident: %w", err)
	}

	switch {
	case res.Status == domain.MonitorStatusDown && open == nil:
		inc := &domain.Incident{
			ID:        uuid.NewString(),
			MonitorID: m.ID,
			Cause:     res.Error,
			StartedAt: res.CheckedAt,
		}
		if err := s.store.Incidents.Open(ctx, inc); err != nil {
			return fmt.Errorf("open incident: %w", err)
		}
		s.log.Warn("Incident opened", "monitor", m.Name, "incident", inc.ID, "cause", inc.Cause)

	case res.Status != domain.MonitorStatusDown && open != nil:
		if err := s.store.Incidents.Resolve(ctx, open.ID, res.CheckedAt); err != nil {
			return fmt.Errorf("resolve incident: %w", err)
		}
		s.log.Info("Incident resolved",
			"monitor", m.Name,
			"incident", open.ID,
			"duration", res.CheckedAt.Sub(open.StartedAt),
		)
	}
	return nil
}

func message(m *domain.Monitor, prev domain.MonitorStatus, res *domain.CheckResult) string {
	switch res.Status {
	case domain.MonitorStatusDown:
		return fmt.Sprintf("%s is down after %d attempt(s): %s", m.Name, res.Attempts, res.Error)
	case domain.MonitorStatusDegraded:
		return fmt.Sprintf("%s is degraded (latency %s, %d attempt(s))", m.Name, res.Latency.Round(time.Millisecond), res.Attempts)
	default:
		return fmt.Sprintf("%s is up again (was %s)", m.Name, prev)
	}
}

// Statuses returns the last result of every monitor checked by this process.
func (s *Scheduler) Statuses() map[string]*domain.CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*domain.CheckResult, len(s.last))
	for id, r := range s.last {
		out[id] = r
	}
	return out
}
