package probe

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/openstatushq/pulse/internal/core/domain"
)

const bufTarget = "passthrough:///bufnet"

// startHealthServer serves the gRPC health service over an in-memory listener.
func startHealthServer(t *testing.T) (*health.Server, *GRPCProber) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	p := NewGRPCProber(WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})))
	t.Cleanup(func() { _ = p.Close() })

	return hs, p
}

func TestGRPCProber_Serving(t *testing.T) {
	hs, p := startHealthServer(t)
	hs.SetServingStatus("pulse.Echo", healthpb.HealthCheckResponse_SERVING)

	_, err := p.Probe(context.Background(), &domain.Monitor{
		Kind:        domain.MonitorKindGRPC,
		URL:         bufTarget,
		GRPCService: "pulse.Echo",
	})
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
}

func TestGRPCProber_NotServing(t *testing.T) {
	hs, p := startHealthServer(t)
	hs.SetServingStatus("pulse.Echo", healthpb.HealthCheckResponse_NOT_SERVING)

	_, err := p.Probe(context.Background(), &domain.Monitor{
		Kind:        domain.MonitorKindGRPC,
		URL:         bufTarget,
		GRPCService: "pulse.Echo",
	})
	if status.Code(err) != codes.Unavailable {
		t.Errorf("expected Unavailable, got %v", err)
	}
}

func TestGRPCProber_UnknownService(t *testing.T) {
	_, p := startHealthServer(t)

	_, err := p.Probe(context.Background(), &domain.Monitor{
		Kind:        domain.MonitorKindGRPC,
		URL:         bufTarget,
		GRPCService: "pulse.Missing",
	})
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestGRPCProber_ReusesConnections(t *testing.T) {
	hs, p := startHealthServer(t)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	m := &domain.Monitor{Kind: domain.MonitorKindGRPC, URL: bufTarget}
	for i := 0; i < 3; i++ {
		if _, err := p.Probe(context.Background(), m); err != nil {
			t.Fatalf("Probe %d failed: %v", i, err)
		}
	}

	p.mu.Lock()
	n := len(p.conns)
	p.mu.Unlock()
	if n != 1 {
		t.Errorf("expected 1 cached connection, got %d", n)
	}
}

func TestDialTarget(t *testing.T) {
	tests := []struct {
		endpoint string
		target   string
	}{
		{"https://api.example.com", "api.example.com"},
		{"api.example.com:443", "api.example.com:443"},
		{"http://localhost:50051", "localhost:50051"},
		{"localhost:50051", "localhost:50051"},
	}

	for _, tt := range tests {
		target, opts := dialTarget(tt.endpoint)
		if target != tt.target {
			t.Errorf("dialTarget(%q) target = %q, want %q", tt.endpoint, target, tt.target)
		}
		if len(opts) != 1 {
			t.Errorf("dialTarget(%q) returned %d options, want 1", tt.endpoint, len(opts))
		}
	}
}
