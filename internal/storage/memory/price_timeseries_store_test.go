package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
)

func point(price string, height int64, at time.Time) domain.PricePoint {
	return domain.PricePoint{
		Price:       decimal.RequireFromString(price),
		BlockHeight: height,
		Timestamp:   at,
	}
}

func TestPriceTimeseriesStore_AppendAndGetBlockRange(t *testing.T) {
	store := NewPriceTimeseriesStore()
	ctx := context.Background()
	base := time.Unix(1756339200, 0).UTC()

	err := store.Append(ctx, "sats", []domain.PricePoint{
		point("0.00011", 123400, base),
		point("0.00012", 123410, base.Add(5*time.Minute)),
		point("0.00013", 123420, base.Add(10*time.Minute)),
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	result, err := store.GetBlockRange(ctx, "sats", 123400, 123410)
	if err != nil {
		t.Fatalf("GetBlockRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("result = %d points, want 2", len(result))
	}
	if result[0].Price.String() != "0.00011" || result[1].Price.String() != "0.00012" {
		t.Errorf("unexpected order: %v, %v", result[0].Price, result[1].Price)
	}
}

func TestPriceTimeseriesStore_GetBlockRangeOpenEnded(t *testing.T) {
	store := NewPriceTimeseriesStore()
	ctx := context.Background()
	base := time.Unix(1756339200, 0).UTC()

	store.Append(ctx, "sats", []domain.PricePoint{
		point("0.00011", 123400, base),
		point("0.00012", 123410, base.Add(5*time.Minute)),
		point("0.00013", 123420, base.Add(10*time.Minute)),
	})

	// endBlock 0 means no upper bound.
	result, err := store.GetBlockRange(ctx, "sats", 123410, 0)
	if err != nil {
		t.Fatalf("GetBlockRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("result = %d points, want 2", len(result))
	}
	if result[0].BlockHeight != 123410 || result[1].BlockHeight != 123420 {
		t.Errorf("unexpected blocks: %d, %d", result[0].BlockHeight, result[1].BlockHeight)
	}
}

func TestPriceTimeseriesStore_AppendAbsorbsDuplicates(t *testing.T) {
	store := NewPriceTimeseriesStore()
	ctx := context.Background()
	base := time.Unix(1756339200, 0).UTC()

	p := point("0.00011", 123400, base)
	store.Append(ctx, "sats", []domain.PricePoint{p})
	// Re-observing the same block must not duplicate the point.
	if err := store.Append(ctx, "sats", []domain.PricePoint{p}); err != nil {
		t.Fatalf("duplicate Append failed: %v", err)
	}

	result, _ := store.GetBlockRange(ctx, "sats", 0, 0)
	if len(result) != 1 {
		t.Errorf("result = %d points, want 1", len(result))
	}
}

func TestPriceTimeseriesStore_AppendUnorderedSorts(t *testing.T) {
	store := NewPriceTimeseriesStore()
	ctx := context.Background()
	base := time.Unix(1756339200, 0).UTC()

	store.Append(ctx, "sats", []domain.PricePoint{
		point("0.00013", 123420, base.Add(10*time.Minute)),
		point("0.00011", 123400, base),
	})

	result, _ := store.GetBlockRange(ctx, "sats", 0, 0)
	if len(result) != 2 || !result[0].Timestamp.Before(result[1].Timestamp) {
		t.Errorf("points not sorted: %+v", result)
	}
}

func TestPriceTimeseriesStore_Latest(t *testing.T) {
	store := NewPriceTimeseriesStore()
	ctx := context.Background()
	base := time.Unix(1756339200, 0).UTC()

	for i := 0; i < 5; i++ {
		store.Append(ctx, "sats", []domain.PricePoint{
			point("0.0001", int64(123400+i), base.Add(time.Duration(i)*5*time.Minute)),
		})
	}

	result, err := store.Latest(ctx, "sats", 2)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("result = %d points, want 2", len(result))
	}
	if !result[0].Timestamp.Equal(base.Add(15 * time.Minute)) {
		t.Errorf("wrong window start: %v", result[0].Timestamp)
	}
}

func TestPriceTimeseriesStore_EmptyToken(t *testing.T) {
	store := NewPriceTimeseriesStore()
	result, err := store.GetBlockRange(context.Background(), "missing", 0, 0)
	if err != nil {
		t.Fatalf("GetBlockRange failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected no points")
	}
}
