package clickhouse

import (
	"context"
	"fmt"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/storage"
)

// PriceTimeseriesStore implements storage.PriceTimeseriesStore using ClickHouse.
// The table uses ReplacingMergeTree keyed on (token_id, observed_at), so
// re-observed points collapse into one row instead of erroring.
type PriceTimeseriesStore struct {
	conn *Conn
}

// NewPriceTimeseriesStore creates a new PriceTimeseriesStore.
func NewPriceTimeseriesStore(conn *Conn) *PriceTimeseriesStore {
	return &PriceTimeseriesStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceTimeseriesStore = (*PriceTimeseriesStore)(nil)

// Append adds price points for a token. Duplicate (token, timestamp) pairs
// are absorbed by the merge engine.
func (s *PriceTimeseriesStore) Append(ctx context.Context, tokenID string, points []domain.PricePoint) error {
	if tokenID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_timeseries (token_id, observed_at, block_height, price)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(tokenID, p.Timestamp, uint64(p.BlockHeight), p.Price)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBlockRange retrieves points with block heights in [startBlock, endBlock]
// inclusive, ordered by timestamp ASC. endBlock 0 means no upper bound.
// FINAL collapses not-yet-merged duplicate observations.
func (s *PriceTimeseriesStore) GetBlockRange(ctx context.Context, tokenID string, startBlock, endBlock int64) ([]domain.PricePoint, error) {
	query := `
		SELECT observed_at, block_height, price
		FROM price_timeseries FINAL
		WHERE token_id = ? AND block_height >= ? AND (? = 0 OR block_height <= ?)
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenID, uint64(startBlock), uint64(endBlock), uint64(endBlock))
	if err != nil {
		return nil, fmt.Errorf("query price block range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// Latest retrieves up to limit most recent points, ordered by timestamp ASC.
func (s *PriceTimeseriesStore) Latest(ctx context.Context, tokenID string, limit int) ([]domain.PricePoint, error) {
	query := `
		SELECT observed_at, block_height, price
		FROM (
			SELECT observed_at, block_height, price
			FROM price_timeseries FINAL
			WHERE token_id = ?
			ORDER BY observed_at DESC
			LIMIT ?
		)
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenID, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query latest prices: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanPricePoints scans multiple rows.
func scanPricePoints(rows chRows) ([]domain.PricePoint, error) {
	var points []domain.PricePoint

	for rows.Next() {
		var (
			p      domain.PricePoint
			height uint64
		)
		if err := rows.Scan(&p.Timestamp, &height, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price point row: %w", err)
		}
		p.BlockHeight = int64(height)
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price point rows: %w", err)
	}
	return points, nil
}
