// Package trading accepts trade intents over the API surface and executes
// them asynchronously against the bonding curve contract. Intents flow
// through a FIFO queue to a pool of workers; the HTTP handler never waits
// on the chain.
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/observability"
	"github.com/konstantinos193/stacksdotfun/internal/queue"
	"github.com/konstantinos193/stacksdotfun/internal/storage"
)

// Service accepts trade intents and answers trade status queries.
type Service struct {
	queue  queue.TradeQueue
	trades storage.TradeStore
	logger *zap.Logger
}

// NewService creates a trade intake service.
func NewService(q queue.TradeQueue, trades storage.TradeStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{queue: q, trades: trades, logger: logger}
}

// Submit validates an intent, assigns it an id and enqueues it. The returned
// id can be polled for status immediately, though the record only appears
// once a worker picks the intent up.
func (s *Service) Submit(ctx context.Context, intent *domain.TradeIntent) (string, error) {
	if err := intent.Validate(); err != nil {
		return "", fmt.Errorf("invalid trade intent: %w", err)
	}

	intent.ID = uuid.NewString()
	if intent.SubmittedAt.IsZero() {
		intent.SubmittedAt = time.Now().UTC()
	}

	if err := s.queue.Enqueue(ctx, intent); err != nil {
		return "", fmt.Errorf("enqueue trade: %w", err)
	}
	observability.RecordTradeEnqueued()
	if depth, err := s.queue.Depth(ctx); err == nil {
		observability.RecordQueueDepth(depth)
	}

	s.logger.Info("trade intent accepted",
		zap.String("trade", intent.ID),
		zap.String("token", intent.TokenID),
		zap.String("direction", string(intent.Direction)),
		zap.String("amount", intent.Amount.String()),
	)
	return intent.ID, nil
}

// Get returns the trade record for an id. Returns storage.ErrNotFound for
// unknown ids, including intents still waiting on the queue.
func (s *Service) Get(ctx context.Context, tradeID string) (*domain.Trade, error) {
	return s.trades.GetByID(ctx, tradeID)
}

// ListByToken returns the most recent trades for a token, newest first.
func (s *Service) ListByToken(ctx context.Context, tokenID string, limit int) ([]*domain.Trade, error) {
	return s.trades.ListByToken(ctx, tokenID, limit)
}
