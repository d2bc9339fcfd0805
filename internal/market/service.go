// Package market serves read-side market data queries. Reads fall through
// cache -> persistent store -> chain, backfilling the faster layers on the
// way out so the next reader stays cheap.
package market

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/konstantinos193/stacksdotfun/internal/cache"
	"github.com/konstantinos193/stacksdotfun/internal/chain"
	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/observability"
	"github.com/konstantinos193/stacksdotfun/internal/storage"
)

// ErrTokenNotFound is returned for token ids outside the registry.
var ErrTokenNotFound = errors.New("token not found")

// ErrUnavailable is returned when every data layer failed to produce a
// snapshot: nothing cached, nothing stored, chain unreachable.
var ErrUnavailable = errors.New("market data unavailable")

// Service answers market data queries.
type Service struct {
	tokens    storage.TokenStore
	snapshots storage.MarketSnapshotStore
	prices    storage.PriceTimeseriesStore
	cache     cache.MarketCache
	gateway   chain.Gateway
	logger    *zap.Logger
}

// Options configures a Service.
type Options struct {
	Tokens    storage.TokenStore
	Snapshots storage.MarketSnapshotStore
	Prices    storage.PriceTimeseriesStore
	Cache     cache.MarketCache
	Gateway   chain.Gateway
	Logger    *zap.Logger
}

// NewService creates a market query service.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tokens:    opts.Tokens,
		snapshots: opts.Snapshots,
		prices:    opts.Prices,
		cache:     opts.Cache,
		gateway:   opts.Gateway,
		logger:    logger,
	}
}

// token resolves a token id against the registry.
func (s *Service) token(ctx context.Context, tokenID string) (*domain.Token, error) {
	t, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return t, nil
}

// Snapshot returns the current market state for a token. Layers are tried
// in order: cache, snapshot store, chain. A cache outage is treated as a
// miss; a store outage is an error (it means writes may be lost too).
func (s *Service) Snapshot(ctx context.Context, tokenID string) (*domain.MarketSnapshot, error) {
	token, err := s.token(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	snap, err := s.cache.GetSnapshot(ctx, tokenID)
	if err == nil {
		observability.RecordCacheHit("snapshot")
		return snap, nil
	}
	observability.RecordCacheMiss("snapshot")
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("snapshot cache read failed", zap.String("token", tokenID), zap.Error(err))
	}

	snap, err = s.snapshots.GetByTokenID(ctx, tokenID)
	if err == nil {
		s.backfillCache(ctx, snap)
		return snap, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("read snapshot store: %w", err)
	}

	// Never polled: read the chain directly and seed both layers.
	snap, err = s.gateway.ReadMarketData(ctx, token)
	if err != nil {
		s.logger.Warn("chain fallback failed", zap.String("token", tokenID), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, tokenID)
	}

	if err := s.snapshots.Upsert(ctx, snap); err != nil {
		s.logger.Error("backfill snapshot store failed", zap.String("token", tokenID), zap.Error(err))
	}
	s.backfillCache(ctx, snap)
	return snap, nil
}

// backfillCache writes a snapshot to the cache, logging but not failing on
// cache errors.
func (s *Service) backfillCache(ctx context.Context, snap *domain.MarketSnapshot) {
	if err := s.cache.SetSnapshot(ctx, snap); err != nil {
		s.logger.Warn("snapshot cache write failed", zap.String("token", snap.TokenID), zap.Error(err))
	}
}

// Chart returns price points for a token with block heights in
// [startBlock, endBlock]; endBlock 0 means up to the latest observed block.
// Layers are tried in order: cache, timeseries store, chain contract.
func (s *Service) Chart(ctx context.Context, tokenID string, timeframe, startBlock, endBlock uint64) ([]domain.PricePoint, error) {
	token, err := s.token(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("%d:%d:%d", timeframe, startBlock, endBlock)
	points, err := s.cache.GetChart(ctx, tokenID, cacheKey)
	if err == nil {
		observability.RecordCacheHit("chart")
		return points, nil
	}
	observability.RecordCacheMiss("chart")

	points, err = s.prices.GetBlockRange(ctx, tokenID, int64(startBlock), int64(endBlock))
	if err != nil {
		return nil, fmt.Errorf("read price timeseries: %w", err)
	}
	if len(points) > 0 {
		s.cacheChart(ctx, tokenID, cacheKey, points)
		return points, nil
	}

	// Empty store: ask the contract for the range directly.
	chainPoints, err := s.chartFromChain(ctx, token, timeframe, startBlock, endBlock)
	if err != nil {
		return nil, err
	}
	if len(chainPoints) > 0 {
		if err := s.prices.Append(ctx, tokenID, chainPoints); err != nil {
			s.logger.Error("backfill price timeseries failed", zap.String("token", tokenID), zap.Error(err))
		}
		s.cacheChart(ctx, tokenID, cacheKey, chainPoints)
	}
	return chainPoints, nil
}

// chartFromChain reads the contract's tradingview range. An open-ended
// request is bounded by the latest observed block height, so the contract
// never sees endBlock 0.
func (s *Service) chartFromChain(ctx context.Context, token *domain.Token, timeframe, startBlock, endBlock uint64) ([]domain.PricePoint, error) {
	if endBlock == 0 {
		snap, err := s.snapshots.GetByTokenID(ctx, token.ID)
		switch {
		case err == nil && snap.BlockHeight > 0:
			endBlock = uint64(snap.BlockHeight)
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("read snapshot store: %w", err)
		}
	}

	points, err := s.gateway.GetTradingViewData(ctx, token, timeframe, startBlock, endBlock)
	if err != nil {
		s.logger.Warn("chart chain fallback failed", zap.String("token", token.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, token.ID)
	}
	return points, nil
}

// cacheChart writes a chart range to the cache, logging but not failing on
// cache errors.
func (s *Service) cacheChart(ctx context.Context, tokenID, cacheKey string, points []domain.PricePoint) {
	if err := s.cache.SetChart(ctx, tokenID, cacheKey, points); err != nil {
		s.logger.Warn("chart cache write failed", zap.String("token", tokenID), zap.Error(err))
	}
}

// PriceHistory returns up to limit most recent observed prices.
func (s *Service) PriceHistory(ctx context.Context, tokenID string, limit int) ([]domain.PricePoint, error) {
	if _, err := s.token(ctx, tokenID); err != nil {
		return nil, err
	}

	snap, err := s.snapshots.GetByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot store: %w", err)
	}

	history := snap.PriceHistory
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

// TokenCount returns the number of tokens known to the contract.
func (s *Service) TokenCount(ctx context.Context) (uint64, error) {
	count, err := s.gateway.GetTokenCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: token count", ErrUnavailable)
	}
	return count, nil
}
