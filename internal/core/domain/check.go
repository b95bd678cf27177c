package domain

import "time"

type MonitorStatus string

const (
	MonitorStatusUnknown  MonitorStatus = "unknown"
	MonitorStatusUp       MonitorStatus = "up"
	MonitorStatusDegraded MonitorStatus = "degraded"
	MonitorStatusDown     MonitorStatus = "down"
)

// CheckResult is the outcome of one scheduled or on-demand check.
type CheckResult struct {
	ID          string        `json:"id"`
	MonitorID   string        `json:"monitor_id"`
	Status      MonitorStatus `json:"status"`
	StatusCode  int           `json:"status_code,omitempty"`
	Latency     time.Duration `json:"latency"`
	Attempts    int           `json:"attempts"`
	FailureKind string        `json:"failure_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	CheckedAt   time.Time     `json:"checked_at"`
}
