// Package notify delivers monitor status changes to external channels.
//
// Adapters (webhook, Slack, Discord) make a single delivery attempt; the
// Dispatcher adds rate limiting, retries and deduplication on top.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/retry"
)

// Notifier delivers a notification to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n *domain.Notification) error
}

// Config describes one notification channel.
type Config struct {
	Name          string            `yaml:"name"`
	Type          string            `yaml:"type"` // webhook, slack, discord
	URL           string            `yaml:"url"`
	Headers       map[string]string `yaml:"headers"`
	RatePerMinute int               `yaml:"rate_per_minute"` // 0 = unlimited
}

// New builds a notifier from its config.
func New(cfg Config, client *http.Client) (Notifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("notifier %q: url is required", cfg.Name)
	}
	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}

	switch cfg.Type {
	case "webhook", "":
		return NewWebhook(name, cfg.URL, cfg.Headers, client), nil
	case "slack":
		return NewSlack(name, cfg.URL, client), nil
	case "discord":
		return NewDiscord(name, cfg.URL, client), nil
	default:
		return nil, fmt.Errorf("notifier %q: unknown type %q", cfg.Name, cfg.Type)
	}
}

// HTTPError is returned when a channel answers with a non-2xx status.
type HTTPError struct {
	Channel string
	Code    int
	Body    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Channel, e.Code, e.Body)
}

// StatusCode implements retry.StatusCoder.
func (e *HTTPError) StatusCode() int {
	return e.Code
}

// DefaultHTTPClient returns the client used by adapters when none is given.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// postJSON sends payload and maps the response to an error. The idempotency
// key lets receivers drop duplicate deliveries caused by retries.
func postJSON(
	ctx context.Context,
	client *http.Client,
	channel, url, idempotencyKey string,
	headers map[string]string,
	payload any,
) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("%s: marshal payload: %w", channel, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("%s: create request: %w", channel, err))
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	req.Header.Set("Idempotency-Key", idempotencyKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return retry.Op(channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{Channel: channel, Code: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	return nil
}

// summary renders a one-line human readable message.
func summary(n *domain.Notification) string {
	if n.Message != "" {
		return n.Message
	}
	return fmt.Sprintf("%s is %s (was %s)", n.MonitorName, n.Current, n.Previous)
}
