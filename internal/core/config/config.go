package config

import (
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/notify"
	redisclient "github.com/openstatushq/pulse/internal/infra/redis"
	"github.com/openstatushq/pulse/internal/infra/retry"
	"github.com/openstatushq/pulse/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
	Retry     RetryConfig        `yaml:"retry"`
	Scheduler SchedulerConfig    `yaml:"scheduler"`
	Monitors  []MonitorConfig    `yaml:"monitors"`
	Notifiers []notify.Config    `yaml:"notifiers"`
	Retention time.Duration      `yaml:"retention"` // 0 = keep forever
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RetryConfig holds one policy per kind of outbound call.
type RetryConfig struct {
	Probe   retry.Policy `yaml:"probe"`
	Notify  retry.Policy `yaml:"notify"`
	Storage retry.Policy `yaml:"storage"`
	// CheckTimeout bounds a whole check, retries and waits included. 0 = none.
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// SchedulerConfig holds scheduling settings.
type SchedulerConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	DefaultInterval time.Duration `yaml:"default_interval"`
}

// MonitorConfig declares a monitor in the config file.
type MonitorConfig struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	Kind           string            `yaml:"kind"` // http, grpc
	URL            string            `yaml:"url"`
	Method         string            `yaml:"method"`
	Headers        map[string]string `yaml:"headers"`
	Body           string            `yaml:"body"`
	GRPCService    string            `yaml:"grpc_service"`
	ExpectedStatus int               `yaml:"expected_status"`
	Interval       time.Duration     `yaml:"interval"`
	Timeout        time.Duration     `yaml:"timeout"`
	DegradedAfter  time.Duration     `yaml:"degraded_after"`
	Disabled       bool              `yaml:"disabled"`
}

// ToDomain converts the config entry to a domain monitor.
func (c MonitorConfig) ToDomain() *domain.Monitor {
	return &domain.Monitor{
		ID:             c.ID,
		Name:           c.Name,
		Kind:           domain.MonitorKind(c.Kind),
		URL:            c.URL,
		Method:         c.Method,
		Headers:        c.Headers,
		Body:           c.Body,
		GRPCService:    c.GRPCService,
		ExpectedStatus: c.ExpectedStatus,
		Interval:       c.Interval,
		Timeout:        c.Timeout,
		DegradedAfter:  c.DegradedAfter,
		Active:         !c.Disabled,
	}
}
