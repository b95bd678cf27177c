package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/retry"
)

func testNotification() *domain.Notification {
	return &domain.Notification{
		ID:          "3f1c2b1e-0000-4000-8000-000000000001",
		MonitorID:   "m1",
		MonitorName: "api",
		URL:         "https://api.example.com/health",
		Previous:    domain.MonitorStatusUp,
		Current:     domain.MonitorStatusDown,
		At:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestWebhook_Notify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Idempotency-Key"); got != testNotification().ID {
			t.Errorf("expected idempotency key to be the notification id, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("expected custom header, got %q", got)
		}

		var n domain.Notification
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if n.MonitorID != "m1" || n.Current != domain.MonitorStatusDown {
			t.Errorf("unexpected payload %+v", n)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	w := NewWebhook("ops", server.URL, map[string]string{"Authorization": "Bearer token"}, nil)
	if err := w.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
}

func TestSlack_Notify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p slackPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if p.Text != "api is down (was up)" {
			t.Errorf("unexpected text %q", p.Text)
		}
		if len(p.Blocks) != 1 || p.Blocks[0].Text == nil {
			t.Errorf("expected one section block, got %+v", p.Blocks)
		}
	}))
	defer server.Close()

	if err := NewSlack("slack", server.URL, nil).Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
}

func TestDiscord_Notify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p discordPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		if len(p.Embeds) != 1 || p.Embeds[0].Color != 0xe74c3c {
			t.Errorf("expected red embed, got %+v", p.Embeds)
		}
		if p.Embeds[0].Timestamp != "2026-01-02T03:04:05Z" {
			t.Errorf("unexpected timestamp %q", p.Embeds[0].Timestamp)
		}
	}))
	defer server.Close()

	if err := NewDiscord("discord", server.URL, nil).Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
}

func TestNotify_StatusClassification(t *testing.T) {
	tests := []struct {
		code   int
		expect retry.OutcomeKind
	}{
		{http.StatusBadRequest, retry.OutcomeTerminal},
		{http.StatusNotFound, retry.OutcomeTerminal},
		{http.StatusTooManyRequests, retry.OutcomeRetryable},
		{http.StatusInternalServerError, retry.OutcomeRetryable},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.code)
		}))

		err := NewWebhook("ops", server.URL, nil, nil).Notify(context.Background(), testNotification())
		server.Close()

		var he *HTTPError
		if !errors.As(err, &he) || he.Code != tt.code {
			t.Errorf("status %d: expected HTTPError, got %v", tt.code, err)
			continue
		}
		if got := retry.HTTPClassifier(err).Kind; got != tt.expect {
			t.Errorf("status %d: classified %v, want %v", tt.code, got, tt.expect)
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		cfg     Config
		want    string
		wantErr bool
	}{
		{Config{Type: "slack", URL: "http://x"}, "slack", false},
		{Config{Name: "team", Type: "discord", URL: "http://x"}, "team", false},
		{Config{Name: "hook", URL: "http://x"}, "hook", false},
		{Config{Type: "pager", URL: "http://x"}, "", true},
		{Config{Type: "slack"}, "", true},
	}

	for _, tt := range tests {
		n, err := New(tt.cfg, nil)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			continue
		}
		if err == nil && n.Name() != tt.want {
			t.Errorf("New(%+v) name = %q, want %q", tt.cfg, n.Name(), tt.want)
		}
	}
}
