package probe

import (
	"strings"
	"sync"
	"time"
)

// EndpointStats is a snapshot of an endpoint's recent behaviour.
type EndpointStats struct {
	AverageLatency   time.Duration
	Checks24Hours    int
	Failures24Hours  int
	UptimePercentage float64
	ThrottleCount429 int
	LastThrottle     time.Time
	LastFailure      string
}

type record struct {
	at time.Time
	ok bool
}

// EndpointMonitor tracks latency, availability and throttling for one
// endpoint across checks.
type EndpointMonitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int

	status429Count   int
	lastThrottleTime time.Time
	throttlePatterns []string

	records        []record
	windowDuration time.Duration
	lastFailure    string
}

// NewEndpointMonitor creates a new monitor with default settings.
func NewEndpointMonitor() *EndpointMonitor {
	return &EndpointMonitor{
		recentLatencies:  make([]time.Duration, 0, 100),
		maxLatencyWindow: 100,
		throttlePatterns: []string{
			"rate limit exceeded",
			"too many requests",
			"resource_exhausted",
			"quota exceeded",
		},
		windowDuration: 24 * time.Hour,
	}
}

// RecordSuccess records a successful check with its latency.
func (em *EndpointMonitor) RecordSuccess(latency time.Duration) {
	em.mu.Lock()
	defer em.mu.Unlock()

	em.recentLatencies = append(em.recentLatencies, latency)
	if len(em.recentLatencies) > em.maxLatencyWindow {
		em.recentLatencies = em.recentLatencies[1:]
	}
	em.appendRecord(true)
}

// RecordFailure records a failed check.
func (em *EndpointMonitor) RecordFailure(msg string) {
	em.mu.Lock()
	defer em.mu.Unlock()

	em.lastFailure = msg
	if em.matchesThrottle(msg) {
		em.lastThrottleTime = time.Now()
	}
	em.appendRecord(false)
}

// RecordThrottle records a 429 response seen during a check.
func (em *EndpointMonitor) RecordThrottle(statusCode int) {
	em.mu.Lock()
	defer em.mu.Unlock()

	if statusCode == 429 {
		em.status429Count++
		em.lastThrottleTime = time.Now()
	}
}

// appendRecord must be called with mu held.
func (em *EndpointMonitor) appendRecord(ok bool) {
	now := time.Now()
	em.records = append(em.records, record{at: now, ok: ok})

	cutoff := now.Add(-em.windowDuration)
	i := 0
	for i < len(em.records) && !em.records[i].at.After(cutoff) {
		i++
	}
	if i > 0 {
		em.records = append(em.records[:0], em.records[i:]...)
	}
}

func (em *EndpointMonitor) matchesThrottle(msg string) bool {
	lower := strings.ToLower(msg)
	for _, pattern := range em.throttlePatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// Stats returns current monitoring statistics.
func (em *EndpointMonitor) Stats() EndpointStats {
	em.mu.RLock()
	defer em.mu.RUnlock()

	stats := EndpointStats{
		Checks24Hours:    len(em.records),
		ThrottleCount429: em.status429Count,
		LastThrottle:     em.lastThrottleTime,
		LastFailure:      em.lastFailure,
	}

	if len(em.recentLatencies) > 0 {
		var total time.Duration
		for _, lat := range em.recentLatencies {
			total += lat
		}
		stats.AverageLatency = total / time.Duration(len(em.recentLatencies))
	}

	for _, r := range em.records {
		if !r.ok {
			stats.Failures24Hours++
		}
	}
	if stats.Checks24Hours > 0 {
		up := stats.Checks24Hours - stats.Failures24Hours
		stats.UptimePercentage = float64(up) / float64(stats.Checks24Hours) * 100
	}

	return stats
}
