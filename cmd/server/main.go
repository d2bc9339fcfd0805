// Package main runs the unified stacks.fun backend:
// - Feed (scheduled): polls the bonding curve contract for every active token
// - Trading (continuous): trade intent queue and execution workers
// - API (continuous): HTTP market data queries, trade intake, websocket push
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/konstantinos193/stacksdotfun/internal/api"
	"github.com/konstantinos193/stacksdotfun/internal/broadcast"
	"github.com/konstantinos193/stacksdotfun/internal/cache"
	"github.com/konstantinos193/stacksdotfun/internal/chain"
	"github.com/konstantinos193/stacksdotfun/internal/config"
	"github.com/konstantinos193/stacksdotfun/internal/feed"
	"github.com/konstantinos193/stacksdotfun/internal/market"
	"github.com/konstantinos193/stacksdotfun/internal/observability"
	"github.com/konstantinos193/stacksdotfun/internal/queue"
	"github.com/konstantinos193/stacksdotfun/internal/storage"
	chstore "github.com/konstantinos193/stacksdotfun/internal/storage/clickhouse"
	"github.com/konstantinos193/stacksdotfun/internal/storage/memory"
	"github.com/konstantinos193/stacksdotfun/internal/storage/migrations"
	pgstore "github.com/konstantinos193/stacksdotfun/internal/storage/postgres"
	"github.com/konstantinos193/stacksdotfun/internal/trading"
)

// backend bundles the storage, cache and queue implementations selected at
// startup.
type backend struct {
	tokens    storage.TokenStore
	snapshots storage.MarketSnapshotStore
	trades    storage.TradeStore
	prices    storage.PriceTimeseriesStore
	cache     cache.MarketCache
	queue     queue.TradeQueue
}

func main() {
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage, cache and queue instead of Postgres/ClickHouse/Redis")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logger := newLogger(*debug)
	defer logger.Sync()

	cfg, err := config.Load(*useMemory)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, cleanup, err := createBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("backend setup failed", zap.Error(err))
	}
	defer cleanup()

	// Re-queue intents a previous process left in flight, before any worker
	// starts consuming.
	recovered, err := be.queue.Recover(ctx)
	if err != nil {
		logger.Fatal("queue recovery failed", zap.Error(err))
	}
	if recovered > 0 {
		logger.Info("recovered in-flight trade intents", zap.Int("count", recovered))
	}

	gateway := newGateway(cfg, logger)
	hub := broadcast.NewHub(
		broadcast.WithLogger(logger.Named("broadcast")),
		broadcast.WithDropHandler(observability.RecordEventDropped),
	)

	marketSvc := market.NewService(market.Options{
		Tokens:    be.tokens,
		Snapshots: be.snapshots,
		Prices:    be.prices,
		Cache:     be.cache,
		Gateway:   gateway,
		Logger:    logger.Named("market"),
	})
	tradingSvc := trading.NewService(be.queue, be.trades, logger.Named("trading"))

	scheduler := feed.NewScheduler(feed.Options{
		Tokens:      be.tokens,
		Snapshots:   be.snapshots,
		Prices:      be.prices,
		Cache:       be.cache,
		Gateway:     gateway,
		Hub:         hub,
		Logger:      logger.Named("feed"),
		Interval:    cfg.PollInterval,
		Concurrency: cfg.PollConcurrency,
	})

	server := api.NewServer(api.Options{
		Market:  marketSvc,
		Trading: tradingSvc,
		Hub:     hub,
		Logger:  logger.Named("api"),
	})

	// Shutdown on SIGINT/SIGTERM; a second signal forces exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn("forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out")
			os.Exit(1)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	for i := 0; i < cfg.TradeWorkers; i++ {
		worker := trading.NewWorker(trading.WorkerOptions{
			Queue:   be.queue,
			Trades:  be.trades,
			Tokens:  be.tokens,
			Gateway: gateway,
			Hub:     hub,
			Logger:  logger.Named(fmt.Sprintf("worker-%d", i)),
			Timeout: cfg.TradeTimeout,
		})
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}
	g.Go(func() error {
		return api.Run(gctx, cfg.HTTPAddr, server, logger.Named("http"))
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

// createBackend wires storage, cache and queue for the selected mode and
// runs migrations in db mode.
func createBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, func(), error) {
	if cfg.UseMemory {
		logger.Info("using in-memory storage")
		q := queue.NewMemoryQueue()
		be := &backend{
			tokens:    memory.NewTokenStore(),
			snapshots: memory.NewMarketSnapshotStore(),
			trades:    memory.NewTradeStore(),
			prices:    memory.NewPriceTimeseriesStore(),
			cache:     cache.NewMemoryCache(),
			queue:     q,
		}
		return be, func() { q.Close() }, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	marketCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	tradeQueue, err := queue.NewRedisQueue(ctx, cfg.RedisURL)
	if err != nil {
		marketCache.Close()
		chConn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("connect to redis queue: %w", err)
	}

	be := &backend{
		tokens:    pgstore.NewTokenStore(pool),
		snapshots: pgstore.NewMarketSnapshotStore(pool),
		trades:    pgstore.NewTradeStore(pool),
		prices:    chstore.NewPriceTimeseriesStore(chConn),
		cache:     marketCache,
		queue:     tradeQueue,
	}
	cleanup := func() {
		tradeQueue.Close()
		marketCache.Close()
		chConn.Close()
		pool.Close()
	}
	return be, cleanup, nil
}

// newGateway builds the Stacks client, with trade submission enabled only
// when a signer is configured.
func newGateway(cfg *config.Config, logger *zap.Logger) chain.Gateway {
	opts := []chain.ClientOption{
		chain.WithLogger(logger.Named("chain")),
	}
	if cfg.SignerURL != "" {
		senderKey := os.Getenv("SERVER_PRIVATE_KEY")
		opts = append(opts, chain.WithSubmitter(chain.NewHTTPSubmitter(cfg.SignerURL, senderKey)))
	}
	return chain.NewStacksClient(cfg.StacksAPIURL, cfg.ContractAddress, cfg.ContractName, opts...)
}
