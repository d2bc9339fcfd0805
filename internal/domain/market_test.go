package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAppendPoint_DedupesByTimestamp(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := PricePoint{Price: decimal.RequireFromString("0.00012"), Timestamp: ts}

	history := AppendPoint(nil, p, DefaultHistoryCap)
	history = AppendPoint(history, p, DefaultHistoryCap)

	if len(history) != 1 {
		t.Fatalf("duplicate timestamp appended: len=%d", len(history))
	}
}

func TestAppendPoint_TrimsToCap(t *testing.T) {
	var history []PricePoint
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		p := PricePoint{Price: decimal.NewFromInt(int64(i)), Timestamp: base.Add(time.Duration(i) * time.Minute)}
		history = AppendPoint(history, p, 4)
	}

	if len(history) != 4 {
		t.Fatalf("history len = %d, want 4", len(history))
	}
	// Oldest points were dropped, newest kept in order.
	if !history[0].Price.Equal(decimal.NewFromInt(6)) || !history[3].Price.Equal(decimal.NewFromInt(9)) {
		t.Errorf("unexpected retained window: first=%s last=%s", history[0].Price, history[3].Price)
	}
}

func TestSnapshotPoint(t *testing.T) {
	snap := &MarketSnapshot{
		TokenID:     "sats",
		Price:       decimal.RequireFromString("0.00012"),
		BlockHeight: 150000,
		LastUpdated: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	p := snap.Point()
	if !p.Price.Equal(snap.Price) || p.BlockHeight != 150000 || !p.Timestamp.Equal(snap.LastUpdated) {
		t.Errorf("Point() = %+v", p)
	}
}
