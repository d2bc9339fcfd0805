package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultHistoryCap bounds the per-token price history kept on a snapshot.
// 288 points is one day at the default 5-minute poll cadence.
const DefaultHistoryCap = 288

// PricePoint is a single observed price for a token.
type PricePoint struct {
	Price       decimal.Decimal `json:"price"`
	BlockHeight int64           `json:"blockHeight"`
	Timestamp   time.Time       `json:"timestamp"`
}

// MarketSnapshot is the per-token market state at a point in time.
// At most one snapshot exists per token; LastUpdated is monotonically
// non-decreasing under correct operation because only one poll cycle
// is ever in flight.
type MarketSnapshot struct {
	TokenID      string          `json:"tokenId"`
	Price        decimal.Decimal `json:"price"`
	Volume24h    decimal.Decimal `json:"volume24h"`
	Holders      int64           `json:"holders"`
	MarketCap    decimal.Decimal `json:"marketCap"`
	BlockHeight  int64           `json:"blockHeight"`
	LastUpdated  time.Time       `json:"lastUpdated"`
	PriceHistory []PricePoint    `json:"priceHistory"`
}

// Point returns the price point this snapshot contributes to the history.
func (s *MarketSnapshot) Point() PricePoint {
	return PricePoint{
		Price:       s.Price,
		BlockHeight: s.BlockHeight,
		Timestamp:   s.LastUpdated,
	}
}

// AppendPoint appends p to history, dropping the oldest points beyond limit.
// A point with the same timestamp as the current tail is ignored so that
// retried upserts do not duplicate history entries.
func AppendPoint(history []PricePoint, p PricePoint, limit int) []PricePoint {
	if n := len(history); n > 0 && history[n-1].Timestamp.Equal(p.Timestamp) {
		return history
	}
	history = append(history, p)
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}
