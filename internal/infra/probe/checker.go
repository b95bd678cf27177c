package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/retry"
)

// Checker runs a monitor's prober under a retry executor and turns the
// execution into a CheckResult.
type Checker struct {
	probers   map[domain.MonitorKind]Prober
	executors map[domain.MonitorKind]*retry.Executor

	mu       sync.Mutex
	monitors map[string]*EndpointMonitor

	now func() time.Time
}

// NewChecker creates a checker for HTTP and gRPC monitors. opts are applied to
// both executors after the per-kind name and classifier.
func NewChecker(policy retry.Policy, opts ...retry.Option) *Checker {
	return NewCheckerWith(map[domain.MonitorKind]Prober{
		domain.MonitorKindHTTP: NewHTTPProber(60 * time.Second),
		domain.MonitorKindGRPC: NewGRPCProber(),
	}, policy, opts...)
}

// NewCheckerWith creates a checker with explicit probers.
func NewCheckerWith(probers map[domain.MonitorKind]Prober, policy retry.Policy, opts ...retry.Option) *Checker {
	classifiers := map[domain.MonitorKind]retry.Classifier{
		domain.MonitorKindHTTP: retry.HTTPClassifier,
		domain.MonitorKindGRPC: retry.GRPCClassifier,
	}

	executors := make(map[domain.MonitorKind]*retry.Executor, len(probers))
	for kind := range probers {
		base := []retry.Option{
			retry.WithName("probe_" + string(kind)),
			retry.WithClassifier(classifiers[kind]),
		}
		executors[kind] = retry.New(policy, append(base, opts...)...)
	}

	return &Checker{
		probers:   probers,
		executors: executors,
		monitors:  make(map[string]*EndpointMonitor),
		now:       time.Now,
	}
}

// Check probes m, retrying per the checker's policy. It never returns nil; a
// failure of any kind produces a down result.
func (c *Checker) Check(ctx context.Context, m *domain.Monitor) *domain.CheckResult {
	result := &domain.CheckResult{
		ID:        uuid.NewString(),
		MonitorID: m.ID,
		CheckedAt: c.now(),
	}

	prober, ok := c.probers[m.Kind]
	if !ok {
		result.Status = domain.MonitorStatusDown
		result.FailureKind = string(retry.KindTerminal)
		result.Error = fmt.Sprintf("unsupported monitor kind %q", m.Kind)
		return result
	}

	em := c.monitor(m.ID)
	start := time.Now()

	res := retry.Execute(ctx, c.executors[m.Kind], func(ctx context.Context) (Response, error) {
		if m.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.Timeout)
			defer cancel()
		}
		resp, err := prober.Probe(ctx, m)

		var se *StatusError
		if errors.As(err, &se) && se.Code == 429 {
			em.RecordThrottle(se.Code)
		}
		return resp, err
	})

	result.Attempts = res.Attempts
	result.Latency = time.Since(start)
	result.StatusCode = res.Value.StatusCode

	if res.Err != nil {
		report := retry.Describe(res.Err)
		result.Status = domain.MonitorStatusDown
		result.FailureKind = string(report.Kind)
		result.Error = res.Err.Error()

		var se *StatusError
		if errors.As(res.Err, &se) {
			result.StatusCode = se.Code
		}
		em.RecordFailure(result.Error)
		return result
	}

	em.RecordSuccess(res.Value.Latency)
	result.Status = statusFor(m, res.Value.Latency, res.Attempts)
	return result
}

func statusFor(m *domain.Monitor, latency time.Duration, attempts int) domain.MonitorStatus {
	if attempts > 1 {
		return domain.MonitorStatusDegraded
	}
	if m.DegradedAfter > 0 && latency > m.DegradedAfter {
		return domain.MonitorStatusDegraded
	}
	return domain.MonitorStatusUp
}

func (c *Checker) monitor(id string) *EndpointMonitor {
	c.mu.Lock()
	defer c.mu.Unlock()

	em, ok := c.monitors[id]
	if !ok {
		em = NewEndpointMonitor()
		c.monitors[id] = em
	}
	return em
}

// Stats returns endpoint statistics for every monitor checked so far.
func (c *Checker) Stats() map[string]EndpointStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]EndpointStats, len(c.monitors))
	for id, em := range c.monitors {
		out[id] = em.Stats()
	}
	return out
}

// Close closes every prober.
func (c *Checker) Close() error {
	var errs []error
	for kind, p := range c.probers {
		if err := p.Close(); err != nil {
			slog.Warn("Failed to close prober", "kind", kind, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
