package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/retry"
)

func TestHTTPProber_Probe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected method POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("expected X-Api-Key header, got %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != defaultUserAgent {
			t.Errorf("expected user agent %q, got %q", defaultUserAgent, got)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	p := NewHTTPProber(5 * time.Second)
	defer p.Close()

	resp, err := p.Probe(context.Background(), &domain.Monitor{
		URL:     server.URL,
		Method:  http.MethodPost,
		Body:    `{"ping":1}`,
		Headers: map[string]string{"X-Api-Key": "secret"},
	})
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", resp.StatusCode)
	}
}

func TestHTTPProber_UnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewHTTPProber(5 * time.Second)
	_, err := p.Probe(context.Background(), &domain.Monitor{URL: server.URL})

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusTooManyRequests || se.RetryAfter != "30" {
		t.Errorf("unexpected status error: %+v", se)
	}
	if got := retry.HTTPClassifier(err).Kind; got != retry.OutcomeRetryable {
		t.Errorf("429 should classify as retryable, got %v", got)
	}
}

func TestHTTPProber_ExpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewHTTPProber(5 * time.Second)
	_, err := p.Probe(context.Background(), &domain.Monitor{URL: server.URL, ExpectedStatus: http.StatusNoContent})
	if err == nil {
		t.Fatal("expected error for mismatched status")
	}
}

func TestHTTPProber_BadURLIsPermanent(t *testing.T) {
	p := NewHTTPProber(5 * time.Second)
	_, err := p.Probe(context.Background(), &domain.Monitor{URL: "://missing-scheme"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !retry.IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
}
