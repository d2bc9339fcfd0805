package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Create adds a new trade in pending status. Returns ErrDuplicateKey if the
// trade id exists.
func (s *TradeStore) Create(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trades (
			id, token_id, amount, direction, wallet_address,
			status, tx_id, error, submitted_at, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.TokenID, t.Amount, string(t.Direction), t.WalletAddress,
		string(t.Status), t.TxID, t.Error, t.SubmittedAt, t.CreatedAt, t.CompletedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `
		SELECT id, token_id, amount, direction, wallet_address,
			status, tx_id, error, submitted_at, created_at, completed_at
		FROM trades
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// UpdateStatus moves a pending trade to completed or failed. The WHERE clause
// enforces the single-transition invariant at the database level.
func (s *TradeStore) UpdateStatus(ctx context.Context, tradeID string, status domain.TradeStatus, txID, errMsg string) error {
	if status != domain.TradeCompleted && status != domain.TradeFailed {
		return storage.ErrInvalidTransition
	}

	query := `
		UPDATE trades
		SET status = $2, tx_id = $3, error = $4, completed_at = $5
		WHERE id = $1 AND status = 'pending'
	`

	tag, err := s.pool.Exec(ctx, query, tradeID, string(status), txID, errMsg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update trade status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// No pending row matched: distinguish missing from already terminal.
	if _, err := s.GetByID(ctx, tradeID); err != nil {
		return err
	}
	return storage.ErrInvalidTransition
}

// ListByToken retrieves trades for a token, newest first.
func (s *TradeStore) ListByToken(ctx context.Context, tokenID string, limit int) ([]*domain.Trade, error) {
	query := `
		SELECT id, token_id, amount, direction, wallet_address,
			status, tx_id, error, submitted_at, created_at, completed_at
		FROM trades
		WHERE token_id = $1
		ORDER BY created_at DESC, id DESC
	`
	args := []any{tokenID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades by token: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var (
		t         domain.Trade
		direction string
		status    string
	)

	err := row.Scan(
		&t.ID, &t.TokenID, &t.Amount, &direction, &t.WalletAddress,
		&status, &t.TxID, &t.Error, &t.SubmittedAt, &t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Direction = domain.Direction(direction)
	t.Status = domain.TradeStatus(status)
	return &t, nil
}
