package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Delay returns the wait before attempt n (1-based).
//
//	delay = min(BaseDelay * Multiplier^(n-2), MaxDelay)
//
// The first attempt never waits, so n <= 1 yields 0. With Jitter enabled the
// result is drawn uniformly from [0, delay].
func (p Policy) Delay(n int) time.Duration {
	d := p.ceiling(n)
	if d <= 0 || !p.Jitter {
		return d
	}
	if d == math.MaxInt64 {
		// [0, d] would overflow the bound; the top value is dropped.
		return time.Duration(rand.Int64N(int64(d)))
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

// ceiling is the deterministic part of Delay.
func (p Policy) ceiling(n int) time.Duration {
	if n <= 1 || p.BaseDelay <= 0 {
		return 0
	}

	// Computed in float64 and capped before converting back, so large
	// exponents saturate at MaxDelay instead of overflowing.
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(n-2))
	if math.IsInf(delay, 0) || math.IsNaN(delay) || delay >= float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}
