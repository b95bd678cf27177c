package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/retry"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unset policy fields keep their defaults.
	cfg := AppConfig{
		Retry: RetryConfig{
			Probe:   retry.DefaultPolicy(),
			Notify:  retry.DefaultPolicy(),
			Storage: retry.DefaultPolicy(),
		},
	}
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *AppConfig) applyDefaults() error {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Scheduler.RefreshInterval == 0 {
		cfg.Scheduler.RefreshInterval = 30 * time.Second
	}
	if cfg.Scheduler.DefaultInterval == 0 {
		cfg.Scheduler.DefaultInterval = time.Minute
	}

	policies := []struct {
		name   string
		policy *retry.Policy
	}{
		{"probe", &cfg.Retry.Probe},
		{"notify", &cfg.Retry.Notify},
		{"storage", &cfg.Retry.Storage},
	}
	for _, p := range policies {
		if err := p.policy.Validate(); err != nil {
			return fmt.Errorf("retry.%s: %w", p.name, err)
		}
	}

	seen := make(map[string]bool, len(cfg.Monitors))
	for i := range cfg.Monitors {
		m := &cfg.Monitors[i]
		if m.URL == "" {
			return fmt.Errorf("monitors[%d]: url is required", i)
		}
		if m.Name == "" {
			m.Name = m.URL
		}
		if m.ID == "" {
			m.ID = strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(m.Name), "-"), "-")
		}
		if seen[m.ID] {
			return fmt.Errorf("monitors[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true

		if m.Kind == "" {
			m.Kind = string(domain.MonitorKindHTTP)
		}
		if m.Kind != string(domain.MonitorKindHTTP) && m.Kind != string(domain.MonitorKindGRPC) {
			return fmt.Errorf("monitors[%d]: unknown kind %q", i, m.Kind)
		}
		if m.Interval == 0 {
			m.Interval = cfg.Scheduler.DefaultInterval
		}
		if m.Timeout == 0 {
			m.Timeout = 10 * time.Second
		}
	}

	return nil
}
