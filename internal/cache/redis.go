package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
)

// RedisCache implements MarketCache on Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheWithClient wraps an existing client, used when the cache and
// the trade queue share one connection pool.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Compile-time interface check.
var _ MarketCache = (*RedisCache)(nil)

// GetSnapshot returns the cached snapshot or ErrMiss.
func (c *RedisCache) GetSnapshot(ctx context.Context, tokenID string) (*domain.MarketSnapshot, error) {
	data, err := c.client.Get(ctx, SnapshotKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var snap domain.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt entry behaves like a miss; the writer will replace it.
		return nil, ErrMiss
	}
	return &snap, nil
}

// SetSnapshot caches the snapshot under the snapshot TTL.
func (c *RedisCache) SetSnapshot(ctx context.Context, snap *domain.MarketSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, SnapshotKey(snap.TokenID), data, SnapshotTTL).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// GetChart returns the cached chart range or ErrMiss.
func (c *RedisCache) GetChart(ctx context.Context, tokenID, timeframe string) ([]domain.PricePoint, error) {
	data, err := c.client.Get(ctx, ChartKey(tokenID, timeframe)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("get chart: %w", err)
	}

	var points []domain.PricePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, ErrMiss
	}
	return points, nil
}

// SetChart caches the chart range under the chart TTL.
func (c *RedisCache) SetChart(ctx context.Context, tokenID, timeframe string, points []domain.PricePoint) error {
	data, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("marshal chart: %w", err)
	}
	if err := c.client.Set(ctx, ChartKey(tokenID, timeframe), data, ChartTTL).Err(); err != nil {
		return fmt.Errorf("set chart: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
