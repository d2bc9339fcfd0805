// Package cache provides the short-TTL market data cache that fronts the
// persistent stores. A cache outage degrades latency, never correctness:
// callers treat any cache error as a miss.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Default TTLs. Market snapshots go stale quickly; chart ranges are
// heavier to rebuild and tolerate more staleness.
const (
	SnapshotTTL = 60 * time.Second
	ChartTTL    = 5 * time.Minute
)

// MarketCache caches per-token market snapshots and chart ranges.
type MarketCache interface {
	// GetSnapshot returns the cached snapshot or ErrMiss.
	GetSnapshot(ctx context.Context, tokenID string) (*domain.MarketSnapshot, error)

	// SetSnapshot caches the snapshot under the snapshot TTL.
	SetSnapshot(ctx context.Context, snap *domain.MarketSnapshot) error

	// GetChart returns the cached chart range for a timeframe or ErrMiss.
	GetChart(ctx context.Context, tokenID, timeframe string) ([]domain.PricePoint, error)

	// SetChart caches the chart range under the chart TTL.
	SetChart(ctx context.Context, tokenID, timeframe string, points []domain.PricePoint) error

	// Close releases the underlying connection.
	Close() error
}

// keyPrefix namespaces all cache keys so the Redis instance can be shared.
const keyPrefix = "stxfun"

// SnapshotKey is the cache key for a token's market snapshot.
func SnapshotKey(tokenID string) string {
	return fmt.Sprintf("%s:token:%s:market", keyPrefix, tokenID)
}

// ChartKey is the cache key for a token's chart range at a timeframe.
func ChartKey(tokenID, timeframe string) string {
	return fmt.Sprintf("%s:token:%s:chart:%s", keyPrefix, tokenID, timeframe)
}
