// Package retry wraps unreliable remote calls with outcome classification,
// bounded exponential backoff and structured failure reporting.
//
// # Quick Start
//
//	exec := retry.New(retry.DefaultPolicy(),
//	    retry.WithName("probe"),
//	    retry.WithClassifier(retry.HTTPClassifier),
//	)
//
//	resp, err := retry.Do(ctx, exec, func(ctx context.Context) (*http.Response, error) {
//	    return client.Do(req.WithContext(ctx))
//	})
//	if err != nil {
//	    slog.Warn("probe failed", "result", retry.Describe(err))
//	}
//
// # Package Structure
//
//   - policy.go   - Policy definition, defaults and validation
//   - backoff.go  - Delay computation (exponential, capped, optional full jitter)
//   - classify.go - Outcome kinds and built-in classifiers
//   - executor.go - Attempt loop, cancellation and deadlines
//   - errors.go   - Failure taxonomy returned to callers
//   - report.go   - Result summaries for logs and metrics
package retry

import (
	"errors"
	"fmt"
	"time"
)

// Policy defines retry behavior. A Policy is a plain value and is never
// mutated after construction, so one instance can be shared by any number of
// concurrent executions.
type Policy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Jitter      bool          `yaml:"jitter"`
}

// DefaultPolicy provides sensible defaults for outbound calls.
// 100ms, 200ms (3 attempts, max 1s)
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    1 * time.Second,
		Jitter:      false,
	}
}

// NewPolicy builds a validated Policy.
func NewPolicy(
	maxAttempts int,
	baseDelay time.Duration,
	multiplier float64,
	maxDelay time.Duration,
	jitter bool,
) (Policy, error) {
	p := Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Multiplier:  multiplier,
		MaxDelay:    maxDelay,
		Jitter:      jitter,
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

var errInvalidPolicy = errors.New("invalid retry policy")

// Validate checks policy values.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be >= 1, got %d", errInvalidPolicy, p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("%w: base delay must not be negative", errInvalidPolicy)
	}
	if p.Multiplier <= 1 {
		return fmt.Errorf("%w: multiplier must be > 1, got %v", errInvalidPolicy, p.Multiplier)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf(
			"%w: max delay %v is below base delay %v",
			errInvalidPolicy, p.MaxDelay, p.BaseDelay,
		)
	}
	return nil
}

// WithDefaults fills zero fields, typically after decoding from config.
func (p Policy) WithDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts == 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Multiplier == 0 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxDelay == 0 {
		switch {
		case p.BaseDelay > 0:
			p.MaxDelay = p.BaseDelay
		default:
			p.MaxDelay = 30 * time.Second
		}
	}
	return p
}
