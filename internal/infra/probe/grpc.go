package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/retry"
)

// GRPCProber checks gRPC endpoints using the standard health protocol.
// Client connections are created lazily and reused per target.
type GRPCProber struct {
	mu       sync.Mutex
	conns    map[string]*grpc.ClientConn
	dialOpts []grpc.DialOption
}

// GRPCOption configures a GRPCProber.
type GRPCOption func(p *GRPCProber)

// WithDialOptions appends dial options to every connection, replacing the
// TLS selection when they carry transport credentials.
func WithDialOptions(opts ...grpc.DialOption) GRPCOption {
	return func(p *GRPCProber) { p.dialOpts = append(p.dialOpts, opts...) }
}

// NewGRPCProber creates a new gRPC prober.
func NewGRPCProber(opts ...GRPCOption) *GRPCProber {
	p := &GRPCProber{conns: make(map[string]*grpc.ClientConn)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe calls grpc.health.v1.Health/Check on the monitor's target.
func (p *GRPCProber) Probe(ctx context.Context, m *domain.Monitor) (Response, error) {
	conn, err := p.conn(m.URL)
	if err != nil {
		return Response{}, retry.Permanent(err)
	}

	start := time.Now()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: m.GRPCService,
	})
	latency := time.Since(start)
	if err != nil {
		return Response{Latency: latency}, fmt.Errorf("grpc probe: %w", err)
	}

	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return Response{Latency: latency}, status.Errorf(codes.Unavailable,
			"service %q is %s", m.GRPCService, resp.GetStatus())
	}

	return Response{Latency: latency}, nil
}

func (p *GRPCProber) conn(endpoint string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[endpoint]; ok {
		return conn, nil
	}

	target, opts := dialTarget(endpoint)
	opts = append(opts, p.dialOpts...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	p.conns[endpoint] = conn
	return conn, nil
}

// dialTarget picks TLS for https:// and :443 endpoints, plaintext otherwise.
func dialTarget(endpoint string) (string, []grpc.DialOption) {
	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
		return strings.TrimPrefix(endpoint, "https://"),
			[]grpc.DialOption{grpc.WithTransportCredentials(creds)}
	}
	return strings.TrimPrefix(endpoint, "http://"),
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
}

// Close closes every cached connection.
func (p *GRPCProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for target, conn := range p.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, target)
	}
	return firstErr
}
