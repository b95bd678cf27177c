package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChecksTotal tracks completed checks per monitor and resulting status
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_checks_total",
			Help: "Total number of monitor checks",
		},
		[]string{"monitor", "status"},
	)

	// CheckLatency tracks end-to-end check latency, retries included
	CheckLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_check_latency_seconds",
			Help:    "Monitor check latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"monitor"},
	)

	// MonitorUp is 1 when the last check was up or degraded, 0 when down
	MonitorUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulse_monitor_up",
			Help: "Whether the monitor was reachable on its last check",
		},
		[]string{"monitor"},
	)

	// RetryAttemptsTotal tracks attempts made by retry executors
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_retry_attempts_total",
			Help: "Total number of attempts made by retry executors",
		},
		[]string{"op", "outcome"},
	)

	// RetryDelaySeconds tracks waits scheduled between attempts
	RetryDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_retry_delay_seconds",
			Help:    "Backoff delay scheduled before a retry",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op"},
	)

	// RetryExecutionsTotal tracks finished executions by how they ended
	RetryExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_retry_executions_total",
			Help: "Total number of retry executions by result",
		},
		[]string{"op", "result"},
	)

	// NotificationsTotal tracks notification dispatches per channel
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_notifications_total",
			Help: "Total number of notifications sent",
		},
		[]string{"channel", "result"},
	)

	// DBConnectionPoolUsage tracks the percentage of open connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
