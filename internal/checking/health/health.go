// Package health provides checker health monitoring and the HTTP API.
package health

import (
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
)

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ComponentHealth describes a dependency such as the database or Redis.
type ComponentHealth struct {
	Name   string       `json:"name"`
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// MonitorHealth summarises one monitor as seen by this process.
type MonitorHealth struct {
	MonitorID   string               `json:"monitor_id"`
	Status      domain.MonitorStatus `json:"status"`
	Attempts    int                  `json:"attempts"`
	FailureKind string               `json:"failure_kind,omitempty"`
	CheckedAt   time.Time            `json:"checked_at"`
	Uptime24h   float64              `json:"uptime_24h"`
	AvgLatency  time.Duration        `json:"avg_latency"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus             `json:"system_status"`
	Components   []ComponentHealth        `json:"components"`
	Monitors     map[string]MonitorHealth `json:"monitors"`
}
