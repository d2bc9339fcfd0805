package storage

import (
	"context"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
)

// TokenStore provides access to the token registry.
type TokenStore interface {
	// Insert adds a new token. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, t *domain.Token) error

	// GetByID retrieves a token by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tokenID string) (*domain.Token, error)

	// ListActive retrieves all tokens the feed should poll, ordered by
	// chain index ASC.
	ListActive(ctx context.Context) ([]*domain.Token, error)

	// SetActive flips a token in or out of the polling set. Returns
	// ErrNotFound if the token does not exist.
	SetActive(ctx context.Context, tokenID string, active bool) error
}

// MarketSnapshotStore provides access to the durable per-token market state.
type MarketSnapshotStore interface {
	// Upsert replaces the token's snapshot and appends the snapshot's
	// point to its bounded price history. Re-upserting a snapshot with
	// an unchanged timestamp must not grow the history.
	Upsert(ctx context.Context, snap *domain.MarketSnapshot) error

	// GetByTokenID retrieves the latest snapshot, history included.
	// Returns ErrNotFound if the token has never been polled.
	GetByTokenID(ctx context.Context, tokenID string) (*domain.MarketSnapshot, error)
}

// TradeStore provides access to trade records.
type TradeStore interface {
	// Create adds a new trade in pending status. Returns ErrDuplicateKey
	// if the trade id exists.
	Create(ctx context.Context, t *domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// UpdateStatus moves a pending trade to completed or failed, recording
	// the txid or error message. Returns ErrNotFound if the trade does not
	// exist and ErrInvalidTransition if it already reached a terminal
	// status or the new status is not terminal.
	UpdateStatus(ctx context.Context, tradeID string, status domain.TradeStatus, txID, errMsg string) error

	// ListByToken retrieves all trades for a token, newest first.
	ListByToken(ctx context.Context, tokenID string, limit int) ([]*domain.Trade, error)
}

// PriceTimeseriesStore provides access to the price history used for charting.
type PriceTimeseriesStore interface {
	// Append adds price points for a token. Duplicate (token, timestamp)
	// pairs are absorbed, not errors: the feed may re-observe a block.
	Append(ctx context.Context, tokenID string, points []domain.PricePoint) error

	// GetBlockRange retrieves points for a token with block heights in
	// [startBlock, endBlock] (inclusive), ordered by timestamp ASC.
	// endBlock 0 means no upper bound.
	GetBlockRange(ctx context.Context, tokenID string, startBlock, endBlock int64) ([]domain.PricePoint, error)

	// Latest retrieves up to limit most recent points, ordered by
	// timestamp ASC.
	Latest(ctx context.Context, tokenID string, limit int) ([]domain.PricePoint, error)
}
