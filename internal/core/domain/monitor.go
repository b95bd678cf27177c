package domain

import "time"

type MonitorKind string

const (
	MonitorKindHTTP MonitorKind = "http"
	MonitorKindGRPC MonitorKind = "grpc"
)

// Monitor describes an endpoint that is checked periodically.
type Monitor struct {
	ID             string
	Name           string
	Kind           MonitorKind
	URL            string
	Method         string
	Headers        map[string]string
	Body           string
	GRPCService    string        // service name for gRPC health checks, empty = server
	ExpectedStatus int           // 0 = any 2xx
	Interval       time.Duration // time between checks
	Timeout        time.Duration // per-attempt timeout
	DegradedAfter  time.Duration // latency above this marks the check degraded, 0 = disabled
	Active         bool
}
