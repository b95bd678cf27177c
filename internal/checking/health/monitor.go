package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/probe"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// StatusSource exposes the last result per monitor.
type StatusSource interface {
	Statuses() map[string]*domain.CheckResult
}

// StatsSource exposes rolling endpoint statistics per monitor.
type StatsSource interface {
	Stats() map[string]probe.EndpointStats
}

// Monitor aggregates health status from the checker's components.
type Monitor struct {
	components map[string]Pinger
	statuses   StatusSource
	stats      StatsSource
	cacheFor   time.Duration
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. stats may be nil.
func NewMonitor(statuses StatusSource, stats StatsSource) *Monitor {
	return &Monitor{
		components: make(map[string]Pinger),
		statuses:   statuses,
		stats:      stats,
		cacheFor:   10 * time.Second,
	}
}

// AddComponent registers a dependency check.
func (m *Monitor) AddComponent(name string, ping Pinger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = ping
	m.lastCheck = time.Time{}
}

// CheckHealth builds a report, reusing the previous one for up to 10s so
// that frequent probes don't hammer the database.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastCheck.IsZero() && time.Since(m.lastCheck) < m.cacheFor {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Monitors:     make(map[string]MonitorHealth),
	}

	names := make([]string, 0, len(m.components))
	for name := range m.components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := ComponentHealth{Name: name, Status: StatusHealthy}

		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := m.components[name](pctx)
		cancel()

		if err != nil {
			c.Status = StatusCritical
			c.Error = err.Error()
			report.SystemStatus = StatusCritical
		}
		report.Components = append(report.Components, c)
	}

	var stats map[string]probe.EndpointStats
	if m.stats != nil {
		stats = m.stats.Stats()
	}

	if m.statuses != nil {
		for id, r := range m.statuses.Statuses() {
			h := MonitorHealth{
				MonitorID:   id,
				Status:      r.Status,
				Attempts:    r.Attempts,
				FailureKind: r.FailureKind,
				CheckedAt:   r.CheckedAt,
			}
			if s, ok := stats[id]; ok {
				h.Uptime24h = s.UptimePercentage
				h.AvgLatency = s.AverageLatency
			}
			report.Monitors[id] = h

			// Down endpoints are the monitored services' problem, not ours.
			if r.Status == domain.MonitorStatusDown && report.SystemStatus == StatusHealthy {
				report.SystemStatus = StatusDegraded
			}
		}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
