// Package probe checks monitored endpoints.
//
// This package contains:
//   - Prober interface: a single check attempt against an endpoint
//   - HTTPProber: HTTP(S) request/response checks
//   - GRPCProber: gRPC health protocol checks
//   - EndpointMonitor: rolling latency, uptime and throttle tracking
//   - Checker: runs probers under a retry executor and builds check results
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
)

// Response is what one successful probe attempt observed.
type Response struct {
	StatusCode int
	Latency    time.Duration
}

// Prober performs a single check attempt. Retrying is the caller's concern.
type Prober interface {
	Probe(ctx context.Context, m *domain.Monitor) (Response, error)
	Close() error
}

// StatusError is returned when an endpoint answers with an unexpected status.
type StatusError struct {
	Code       int
	Expected   int
	RetryAfter string
}

func (e *StatusError) Error() string {
	if e.Expected > 0 {
		return fmt.Sprintf("unexpected status %d (expected %d)", e.Code, e.Expected)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// StatusCode implements retry.StatusCoder.
func (e *StatusError) StatusCode() int {
	return e.Code
}
