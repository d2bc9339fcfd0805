package postgres

import (
	"context"
	"fmt"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/storage"
)

// MarketSnapshotStore implements storage.MarketSnapshotStore using PostgreSQL.
// The latest state lives in market_snapshots; the bounded per-token history
// lives in market_price_history and is trimmed on every upsert.
type MarketSnapshotStore struct {
	pool       *Pool
	historyCap int
}

// NewMarketSnapshotStore creates a new MarketSnapshotStore.
func NewMarketSnapshotStore(pool *Pool) *MarketSnapshotStore {
	return &MarketSnapshotStore{pool: pool, historyCap: domain.DefaultHistoryCap}
}

// Compile-time interface check.
var _ storage.MarketSnapshotStore = (*MarketSnapshotStore)(nil)

// Upsert replaces the token's snapshot and appends its point to the bounded
// price history. Re-upserting the same timestamp is absorbed by the history
// primary key, so retries do not duplicate points.
func (s *MarketSnapshotStore) Upsert(ctx context.Context, snap *domain.MarketSnapshot) error {
	if snap == nil || snap.TokenID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO market_snapshots (token_id, price, volume_24h, holders, market_cap, block_height, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (token_id) DO UPDATE SET
			price = EXCLUDED.price,
			volume_24h = EXCLUDED.volume_24h,
			holders = EXCLUDED.holders,
			market_cap = EXCLUDED.market_cap,
			block_height = EXCLUDED.block_height,
			last_updated = EXCLUDED.last_updated
	`, snap.TokenID, snap.Price, snap.Volume24h, snap.Holders, snap.MarketCap, snap.BlockHeight, snap.LastUpdated)
	if err != nil {
		return fmt.Errorf("upsert market snapshot: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO market_price_history (token_id, price, block_height, observed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_id, observed_at) DO NOTHING
	`, snap.TokenID, snap.Price, snap.BlockHeight, snap.LastUpdated)
	if err != nil {
		return fmt.Errorf("append price history: %w", err)
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM market_price_history
		WHERE token_id = $1 AND observed_at NOT IN (
			SELECT observed_at FROM market_price_history
			WHERE token_id = $1
			ORDER BY observed_at DESC
			LIMIT $2
		)
	`, snap.TokenID, s.historyCap)
	if err != nil {
		return fmt.Errorf("trim price history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByTokenID retrieves the latest snapshot, history included.
func (s *MarketSnapshotStore) GetByTokenID(ctx context.Context, tokenID string) (*domain.MarketSnapshot, error) {
	var snap domain.MarketSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT token_id, price, volume_24h, holders, market_cap, block_height, last_updated
		FROM market_snapshots
		WHERE token_id = $1
	`, tokenID).Scan(
		&snap.TokenID, &snap.Price, &snap.Volume24h, &snap.Holders,
		&snap.MarketCap, &snap.BlockHeight, &snap.LastUpdated,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get market snapshot: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT price, block_height, observed_at
		FROM market_price_history
		WHERE token_id = $1
		ORDER BY observed_at ASC
	`, tokenID)
	if err != nil {
		return nil, fmt.Errorf("get price history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.Price, &p.BlockHeight, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan price history row: %w", err)
		}
		snap.PriceHistory = append(snap.PriceHistory, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history rows: %w", err)
	}

	return &snap, nil
}
