package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
)

func TestKeys(t *testing.T) {
	if got := statusKey("pulse", "m1"); got != "pulse:status:m1" {
		t.Errorf("unexpected status key %q", got)
	}
	if got := lockKey("pulse", "notify:m1:down"); got != "pulse:lock:notify:m1:down" {
		t.Errorf("unexpected lock key %q", got)
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "not a url"}); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

// newTestClient connects to REDIS_URL or skips.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	c, err := NewClient(Config{URL: url, KeyPrefix: "pulse_test_" + t.Name()})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClaim(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	defer c.Release(ctx, "k")

	ok, err := c.Claim(ctx, "k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first claim to succeed, got %v %v", ok, err)
	}
	ok, err = c.Claim(ctx, "k", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second claim to fail, got %v %v", ok, err)
	}

	if err := c.Release(ctx, "k"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if ok, _ := c.Claim(ctx, "k", time.Minute); !ok {
		t.Error("expected claim after release to succeed")
	}
}

func TestStatusCache(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	cache := NewStatusCache(c, time.Minute)
	defer cache.Delete(ctx, "m1")

	if _, ok, err := cache.Get(ctx, "m1"); err != nil || ok {
		t.Fatalf("expected miss, got %v %v", ok, err)
	}

	want := &domain.CheckResult{ID: "r1", MonitorID: "m1", Status: domain.MonitorStatusDown, Attempts: 3}
	if err := cache.Set(ctx, want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := cache.Get(ctx, "m1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got %v %v", ok, err)
	}
	if got.Status != want.Status || got.Attempts != want.Attempts {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
