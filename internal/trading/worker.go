package trading

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/konstantinos193/stacksdotfun/internal/broadcast"
	"github.com/konstantinos193/stacksdotfun/internal/chain"
	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/observability"
	"github.com/konstantinos193/stacksdotfun/internal/queue"
	"github.com/konstantinos193/stacksdotfun/internal/storage"
)

// DefaultTradeTimeout bounds one trade's chain execution.
const DefaultTradeTimeout = 2 * time.Minute

// Trade processing outcomes, recorded per trade.
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeDiscarded = "discarded"
)

// Worker consumes trade intents from the queue and executes them one at a
// time. A trade is acked only after its pending record is durable, so a
// crash between dequeue and persist redelivers the intent. Execution itself
// is never retried: a trade whose submission fails is marked failed.
type Worker struct {
	queue   queue.TradeQueue
	trades  storage.TradeStore
	tokens  storage.TokenStore
	gateway chain.Gateway
	hub     *broadcast.Hub
	logger  *zap.Logger
	timeout time.Duration
}

// WorkerOptions configures a trade worker.
type WorkerOptions struct {
	Queue   queue.TradeQueue
	Trades  storage.TradeStore
	Tokens  storage.TokenStore
	Gateway chain.Gateway
	Hub     *broadcast.Hub
	Logger  *zap.Logger

	// Timeout bounds a single trade's chain execution. Defaults to
	// DefaultTradeTimeout.
	Timeout time.Duration
}

// NewWorker creates a trade worker.
func NewWorker(opts WorkerOptions) *Worker {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTradeTimeout
	}
	return &Worker{
		queue:   opts.Queue,
		trades:  opts.Trades,
		tokens:  opts.Tokens,
		gateway: opts.Gateway,
		hub:     opts.Hub,
		logger:  logger,
		timeout: timeout,
	}
}

// Run consumes the queue until ctx is done or the queue is closed. No
// processing error stops the loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		delivery, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		w.process(ctx, delivery)
	}
}

func (w *Worker) process(ctx context.Context, delivery *queue.Delivery) {
	// Poison payloads are acked and dropped: redelivering them can never
	// succeed and would wedge the queue.
	if delivery.DecodeErr != nil {
		w.logger.Error("discarding undecodable trade payload", zap.Error(delivery.DecodeErr))
		if err := delivery.Ack(ctx); err != nil {
			w.logger.Error("ack failed", zap.Error(err))
		}
		observability.RecordTradeProcessed(outcomeDiscarded)
		return
	}

	intent := delivery.Intent
	trade := domain.NewTrade(intent.ID, intent, time.Now().UTC())

	if err := w.trades.Create(ctx, trade); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Redelivery after a crash: the record exists, pick up from it.
			existing, getErr := w.trades.GetByID(ctx, trade.ID)
			if getErr == nil && existing.Terminal() {
				w.ack(ctx, delivery)
				return
			}
		} else {
			// The record is not durable, leave the intent in the processing
			// list for recovery.
			w.logger.Error("create trade record failed",
				zap.String("trade", trade.ID), zap.Error(err))
			return
		}
	}

	// Record is durable, the at-least-once contract is satisfied.
	w.ack(ctx, delivery)

	start := time.Now()
	txID, execErr := w.execute(ctx, trade)
	observability.DefaultMetrics.TradeDuration.Observe(time.Since(start).Seconds())

	now := time.Now().UTC()
	update := domain.TradeUpdate{TradeID: trade.ID, TokenID: trade.TokenID}

	if execErr != nil {
		update.Status = domain.TradeFailed
		update.Error = execErr.Error()
		if err := w.trades.UpdateStatus(ctx, trade.ID, domain.TradeFailed, "", execErr.Error()); err != nil {
			w.logger.Error("record trade failure failed",
				zap.String("trade", trade.ID), zap.Error(err))
		}
		observability.RecordTradeProcessed(outcomeFailed)
		w.logger.Warn("trade failed",
			zap.String("trade", trade.ID),
			zap.String("token", trade.TokenID),
			zap.Bool("transient", chain.IsTransient(execErr)),
			zap.Error(execErr),
		)
	} else {
		update.Status = domain.TradeCompleted
		update.TxID = txID
		if err := w.trades.UpdateStatus(ctx, trade.ID, domain.TradeCompleted, txID, ""); err != nil {
			w.logger.Error("record trade completion failed",
				zap.String("trade", trade.ID), zap.Error(err))
		}
		observability.RecordTradeProcessed(outcomeCompleted)
		w.logger.Info("trade completed",
			zap.String("trade", trade.ID),
			zap.String("token", trade.TokenID),
			zap.String("txid", txID),
			zap.Duration("elapsed", now.Sub(start)),
		)
	}

	if w.hub != nil {
		w.hub.Publish(trade.TokenID, broadcast.Event{
			Type:    domain.EventTradeUpdate,
			TokenID: trade.TokenID,
			Data:    update,
		})
		observability.RecordEventPublished(domain.EventTradeUpdate)
	}
}

// execute resolves the token and submits the trade, bounded by the trade
// timeout.
func (w *Worker) execute(ctx context.Context, trade *domain.Trade) (string, error) {
	token, err := w.tokens.GetByID(ctx, trade.TokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", errors.New("unknown token")
		}
		return "", err
	}

	execCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.gateway.ExecuteTrade(execCtx, token, trade.Amount, trade.Direction, trade.WalletAddress)
}

func (w *Worker) ack(ctx context.Context, delivery *queue.Delivery) {
	if err := delivery.Ack(ctx); err != nil {
		w.logger.Error("ack failed", zap.Error(err))
	}
	if depth, err := w.queue.Depth(ctx); err == nil {
		observability.RecordQueueDepth(depth)
	}
}
