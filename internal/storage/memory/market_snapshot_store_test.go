package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/storage"
)

func snapshotAt(tokenID string, price string, at time.Time) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		TokenID:     tokenID,
		Price:       decimal.RequireFromString(price),
		Volume24h:   decimal.NewFromInt(1000),
		Holders:     10,
		MarketCap:   decimal.NewFromInt(50000),
		BlockHeight: 100,
		LastUpdated: at,
	}
}

func TestMarketSnapshotStore_UpsertAndGet(t *testing.T) {
	store := NewMarketSnapshotStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Upsert(ctx, snapshotAt("sats", "0.00012", now)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByTokenID(ctx, "sats")
	if err != nil {
		t.Fatalf("GetByTokenID failed: %v", err)
	}
	if got.Price.String() != "0.00012" {
		t.Errorf("price = %s", got.Price)
	}
	if len(got.PriceHistory) != 1 {
		t.Errorf("history len = %d, want 1", len(got.PriceHistory))
	}
}

func TestMarketSnapshotStore_GetNotFound(t *testing.T) {
	store := NewMarketSnapshotStore()
	if _, err := store.GetByTokenID(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMarketSnapshotStore_HistoryGrowsAcrossUpserts(t *testing.T) {
	store := NewMarketSnapshotStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		snap := snapshotAt("sats", "0.0001", base.Add(time.Duration(i)*5*time.Minute))
		if err := store.Upsert(ctx, snap); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, _ := store.GetByTokenID(ctx, "sats")
	if len(got.PriceHistory) != 3 {
		t.Errorf("history len = %d, want 3", len(got.PriceHistory))
	}
}

func TestMarketSnapshotStore_UpsertSameTimestampIdempotent(t *testing.T) {
	store := NewMarketSnapshotStore()
	ctx := context.Background()
	now := time.Now().UTC()

	snap := snapshotAt("sats", "0.0001", now)
	store.Upsert(ctx, snap)
	store.Upsert(ctx, snap)

	got, _ := store.GetByTokenID(ctx, "sats")
	if len(got.PriceHistory) != 1 {
		t.Errorf("history len = %d, want 1 after repeated upsert", len(got.PriceHistory))
	}
}

func TestMarketSnapshotStore_HistoryBounded(t *testing.T) {
	store := NewMarketSnapshotStore()
	store.historyCap = 5
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 10; i++ {
		store.Upsert(ctx, snapshotAt("sats", "0.0001", base.Add(time.Duration(i)*time.Minute)))
	}

	got, _ := store.GetByTokenID(ctx, "sats")
	if len(got.PriceHistory) != 5 {
		t.Fatalf("history len = %d, want 5", len(got.PriceHistory))
	}
	// Oldest points are evicted first.
	if !got.PriceHistory[0].Timestamp.Equal(base.Add(5 * time.Minute)) {
		t.Errorf("oldest kept point at %v", got.PriceHistory[0].Timestamp)
	}
}
