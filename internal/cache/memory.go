package cache

import (
	"context"
	"sync"
	"time"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
)

// entry is a cached value with its expiry.
type entry struct {
	snap      *domain.MarketSnapshot
	points    []domain.PricePoint
	expiresAt time.Time
}

// MemoryCache implements MarketCache with an expiring in-process map.
// Used for --use-memory runs and in tests.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

// Compile-time interface check.
var _ MarketCache = (*MemoryCache)(nil)

// GetSnapshot returns the cached snapshot or ErrMiss.
func (c *MemoryCache) GetSnapshot(_ context.Context, tokenID string) (*domain.MarketSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[SnapshotKey(tokenID)]
	if !ok || c.now().After(e.expiresAt) || e.snap == nil {
		return nil, ErrMiss
	}

	copy := *e.snap
	copy.PriceHistory = append([]domain.PricePoint(nil), e.snap.PriceHistory...)
	return &copy, nil
}

// SetSnapshot caches the snapshot under the snapshot TTL.
func (c *MemoryCache) SetSnapshot(_ context.Context, snap *domain.MarketSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	copy := *snap
	copy.PriceHistory = append([]domain.PricePoint(nil), snap.PriceHistory...)
	c.data[SnapshotKey(snap.TokenID)] = entry{snap: &copy, expiresAt: c.now().Add(SnapshotTTL)}
	return nil
}

// GetChart returns the cached chart range or ErrMiss.
func (c *MemoryCache) GetChart(_ context.Context, tokenID, timeframe string) ([]domain.PricePoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[ChartKey(tokenID, timeframe)]
	if !ok || c.now().After(e.expiresAt) || e.points == nil {
		return nil, ErrMiss
	}
	return append([]domain.PricePoint(nil), e.points...), nil
}

// SetChart caches the chart range under the chart TTL.
func (c *MemoryCache) SetChart(_ context.Context, tokenID, timeframe string, points []domain.PricePoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[ChartKey(tokenID, timeframe)] = entry{
		points:    append([]domain.PricePoint(nil), points...),
		expiresAt: c.now().Add(ChartTTL),
	}
	return nil
}

// Close is a no-op for the in-process cache.
func (c *MemoryCache) Close() error {
	return nil
}
