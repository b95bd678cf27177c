package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openstatushq/pulse/internal/core/domain"
	"github.com/openstatushq/pulse/internal/infra/retry"
)

const (
	defaultUserAgent = "pulse-checker/1.0"
	maxBodyDrain     = 1 << 20
)

// HTTPProber checks HTTP endpoints.
type HTTPProber struct {
	httpClient *http.Client
	userAgent  string
}

// NewHTTPProber creates a new HTTP prober. The timeout is a hard ceiling on
// any single request; monitors usually set a tighter per-attempt timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: defaultUserAgent,
	}
}

// Probe sends one request and checks the response status.
func (p *HTTPProber) Probe(ctx context.Context, m *domain.Monitor) (Response, error) {
	method := m.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if m.Body != "" {
		body = strings.NewReader(m.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.URL, body)
	if err != nil {
		// A malformed request cannot succeed on retry.
		return Response{}, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", p.userAgent)
	for k, v := range m.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("http probe: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))
	latency := time.Since(start)

	if !statusMatches(m.ExpectedStatus, resp.StatusCode) {
		return Response{StatusCode: resp.StatusCode, Latency: latency}, &StatusError{
			Code:       resp.StatusCode,
			Expected:   m.ExpectedStatus,
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}

	return Response{StatusCode: resp.StatusCode, Latency: latency}, nil
}

// Close cleans up resources.
func (p *HTTPProber) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func statusMatches(expected, got int) bool {
	if expected > 0 {
		return got == expected
	}
	return got >= 200 && got < 300
}
