package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/openstatushq/pulse/internal/checking/metrics"
	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/retry"
)

// Deduper claims a key for ttl. It returns false when the key is already
// held, meaning another process sent the same notification.
type Deduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

var dedupStatuses = []domain.MonitorStatus{
	domain.MonitorStatusUp,
	domain.MonitorStatusDegraded,
	domain.MonitorStatusDown,
}

// Dispatcher fans a notification out to every channel. Each channel is rate
// limited and retried independently, so one failing channel never blocks the
// others.
type Dispatcher struct {
	channels []channel
	exec     *retry.Executor
	dedup    Deduper
	dedupTTL time.Duration
	log      *slog.Logger
}

type channel struct {
	notifier Notifier
	limiter  *rate.Limiter // nil = unlimited
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(d *Dispatcher)

// WithDeduper enables cross-process deduplication for ttl.
func WithDeduper(dd Deduper, ttl time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.dedup = dd
		d.dedupTTL = ttl
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher creates a dispatcher. exec should classify HTTP status codes;
// see retry.HTTPClassifier.
func NewDispatcher(exec *retry.Executor, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		exec:     exec,
		dedupTTL: 10 * time.Minute,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Add registers a notifier. ratePerMinute of 0 disables rate limiting.
func (d *Dispatcher) Add(n Notifier, ratePerMinute int) {
	ch := channel{notifier: n}
	if ratePerMinute > 0 {
		ch.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), 1)
	}
	d.channels = append(d.channels, ch)
}

// Len returns the number of registered channels.
func (d *Dispatcher) Len() int { return len(d.channels) }

// Dispatch delivers n to every channel and returns the joined channel errors.
func (d *Dispatcher) Dispatch(ctx context.Context, n *domain.Notification) error {
	if len(d.channels) == 0 {
		return nil
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	if d.dedup != nil {
		ok, err := d.dedup.Claim(ctx, dedupKey(n.MonitorID, n.Current), d.dedupTTL)
		switch {
		case err != nil:
			d.log.Warn("Dedup check failed, sending anyway", "monitor", n.MonitorID, "error", err)
		case !ok:
			d.log.Debug("Skipping duplicate notification", "monitor", n.MonitorID, "status", n.Current)
			return nil
		default:
			d.releaseOthers(ctx, n)
		}
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(4)

	for _, ch := range d.channels {
		g.Go(func() error {
			if err := d.send(ctx, ch, n); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func dedupKey(monitorID string, status domain.MonitorStatus) string {
	return fmt.Sprintf("notify:%s:%s", monitorID, status)
}

// releaseOthers frees the keys of every other status of the monitor, so the
// next transition into one of them is announced again.
func (d *Dispatcher) releaseOthers(ctx context.Context, n *domain.Notification) {
	for _, st := range dedupStatuses {
		if st == n.Current {
			continue
		}
		if err := d.dedup.Release(ctx, dedupKey(n.MonitorID, st)); err != nil {
			d.log.Warn("Failed to release dedup key", "monitor", n.MonitorID, "status", st, "error", err)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, ch channel, n *domain.Notification) error {
	name := ch.notifier.Name()

	if ch.limiter != nil {
		if err := ch.limiter.Wait(ctx); err != nil {
			metrics.NotificationsTotal.WithLabelValues(name, "rate_limited").Inc()
			return fmt.Errorf("%s: rate limiter: %w", name, err)
		}
	}

	err := d.exec.Run(ctx, func(ctx context.Context) error {
		return ch.notifier.Notify(ctx, n)
	})
	if err != nil {
		report := retry.Describe(err)
		metrics.NotificationsTotal.WithLabelValues(name, string(report.Kind)).Inc()
		d.log.Warn("Notification failed",
			"channel", name,
			"monitor", n.MonitorID,
			"result", report,
		)
		return fmt.Errorf("%s: %w", name, err)
	}

	metrics.NotificationsTotal.WithLabelValues(name, "success").Inc()
	return nil
}
