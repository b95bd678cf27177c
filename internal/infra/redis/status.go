package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openstatushq/pulse/internal/core/domain"
)

// StatusCache keeps the latest check result per monitor so every replica
// sees the same previous status when deciding on transitions.
type StatusCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStatusCache creates a cache whose entries expire after ttl.
func NewStatusCache(client *Client, ttl time.Duration) *StatusCache {
	return &StatusCache{
		rdb:    client.rdb,
		prefix: client.prefix,
		ttl:    ttl,
	}
}

// Set stores r as the latest result for its monitor.
func (s *StatusCache) Set(ctx context.Context, r *domain.CheckResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal check result: %w", err)
	}
	if err := s.rdb.Set(ctx, statusKey(s.prefix, r.MonitorID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Get returns the latest cached result, or false when none is cached.
func (s *StatusCache) Get(ctx context.Context, monitorID string) (*domain.CheckResult, bool, error) {
	data, err := s.rdb.Get(ctx, statusKey(s.prefix, monitorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get failed: %w", err)
	}

	var r domain.CheckResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal check result: %w", err)
	}
	return &r, true, nil
}

// Delete removes the cached result for a monitor.
func (s *StatusCache) Delete(ctx context.Context, monitorID string) error {
	return s.rdb.Del(ctx, statusKey(s.prefix, monitorID)).Err()
}
