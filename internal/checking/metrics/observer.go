package metrics

import (
	"time"

	"github.com/openstatushq/pulse/internal/infra/retry"
)

// RetryObserver exports retry executor events to Prometheus.
type RetryObserver struct{}

// NewRetryObserver creates a RetryObserver.
func NewRetryObserver() *RetryObserver {
	return &RetryObserver{}
}

func (o *RetryObserver) OnAttempt(name string, a retry.Attempt) {
	RetryAttemptsTotal.WithLabelValues(name, a.Outcome.Kind.String()).Inc()
}

func (o *RetryObserver) OnRetry(name string, next int, delay time.Duration) {
	RetryDelaySeconds.WithLabelValues(name).Observe(delay.Seconds())
}

func (o *RetryObserver) OnFinish(name string, attempts int, err error) {
	RetryExecutionsTotal.WithLabelValues(name, string(retry.Describe(err).Kind)).Inc()
}
