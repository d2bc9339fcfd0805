// Package feed runs the market data poll loop: every interval, read each
// active token's market state from the chain and fan it out to the store,
// the timeseries, the cache and subscribed clients.
package feed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/konstantinos193/stacksdotfun/internal/broadcast"
	"github.com/konstantinos193/stacksdotfun/internal/cache"
	"github.com/konstantinos193/stacksdotfun/internal/chain"
	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/observability"
	"github.com/konstantinos193/stacksdotfun/internal/storage"
)

// Defaults.
const (
	DefaultInterval    = 5 * time.Minute
	DefaultConcurrency = 4
)

// Scheduler polls active tokens on a fixed cadence. One cycle is in flight
// at a time: if a cycle overruns the interval, the next tick is skipped.
type Scheduler struct {
	tokens    storage.TokenStore
	snapshots storage.MarketSnapshotStore
	prices    storage.PriceTimeseriesStore
	cache     cache.MarketCache
	gateway   chain.Gateway
	hub       *broadcast.Hub
	logger    *zap.Logger

	interval    time.Duration
	concurrency int

	cycleMu sync.Mutex
}

// Options configures a Scheduler.
type Options struct {
	Tokens    storage.TokenStore
	Snapshots storage.MarketSnapshotStore
	Prices    storage.PriceTimeseriesStore
	Cache     cache.MarketCache
	Gateway   chain.Gateway
	Hub       *broadcast.Hub
	Logger    *zap.Logger

	// Interval between poll cycles. Defaults to DefaultInterval.
	Interval time.Duration
	// Concurrency bounds simultaneous per-token chain reads. Defaults to
	// DefaultConcurrency.
	Concurrency int
}

// NewScheduler creates a poll scheduler.
func NewScheduler(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Scheduler{
		tokens:      opts.Tokens,
		snapshots:   opts.Snapshots,
		prices:      opts.Prices,
		cache:       opts.Cache,
		gateway:     opts.Gateway,
		hub:         opts.Hub,
		logger:      logger,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Run polls immediately, then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("feed scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("concurrency", s.concurrency),
	)

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("feed scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle polls every active token once. Skips entirely if the previous
// cycle is still in flight.
func (s *Scheduler) runCycle(ctx context.Context) {
	if !s.cycleMu.TryLock() {
		s.logger.Warn("poll cycle still running, skipping tick")
		return
	}
	defer s.cycleMu.Unlock()

	start := time.Now()

	tokens, err := s.tokens.ListActive(ctx)
	if err != nil {
		s.logger.Error("list active tokens failed", zap.Error(err))
		observability.RecordPollTokenError("list")
		return
	}
	observability.DefaultMetrics.ActiveTokens.Set(float64(len(tokens)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, token := range tokens {
		token := token
		g.Go(func() error {
			// One token's failure never aborts the cycle.
			s.pollToken(gctx, token)
			return nil
		})
	}
	g.Wait()

	observability.RecordPollCycle(time.Since(start).Seconds(), time.Now().Unix())
	s.logger.Debug("poll cycle finished",
		zap.Int("tokens", len(tokens)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// pollToken reads one token's market state and fans it out.
func (s *Scheduler) pollToken(ctx context.Context, token *domain.Token) {
	snap, err := s.gateway.ReadMarketData(ctx, token)
	if err != nil {
		s.logger.Warn("poll token failed",
			zap.String("token", token.ID),
			zap.Bool("transient", chain.IsTransient(err)),
			zap.Error(err),
		)
		observability.RecordPollTokenError("read")
		return
	}

	if err := s.snapshots.Upsert(ctx, snap); err != nil {
		s.logger.Error("store snapshot failed", zap.String("token", token.ID), zap.Error(err))
		observability.RecordPollTokenError("store")
		return
	}

	if err := s.prices.Append(ctx, token.ID, []domain.PricePoint{snap.Point()}); err != nil {
		s.logger.Error("append price point failed", zap.String("token", token.ID), zap.Error(err))
		observability.RecordPollTokenError("timeseries")
	}

	if err := s.cache.SetSnapshot(ctx, snap); err != nil {
		s.logger.Warn("cache snapshot failed", zap.String("token", token.ID), zap.Error(err))
	}

	if s.hub != nil {
		s.hub.Publish(token.ID, broadcast.Event{
			Type:    domain.EventMarketUpdate,
			TokenID: token.ID,
			Data:    snap,
		})
		observability.RecordEventPublished(domain.EventMarketUpdate)
	}
}
