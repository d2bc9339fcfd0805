package trading

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/queue"
	"github.com/konstantinos193/stacksdotfun/internal/storage/memory"
)

func validIntent() *domain.TradeIntent {
	return &domain.TradeIntent{
		TokenID:       "sats",
		Amount:        decimal.RequireFromString("1.5"),
		Direction:     domain.DirectionBuy,
		WalletAddress: "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7",
	}
}

func TestSubmit_AssignsIDAndEnqueues(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	svc := NewService(q, memory.NewTradeStore(), nil)
	ctx := context.Background()

	id, err := svc.Submit(ctx, validIntent())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if id == "" {
		t.Fatal("empty trade id")
	}

	depth, _ := q.Depth(ctx)
	if depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}

	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if delivery.Intent.ID != id {
		t.Errorf("queued intent id = %q, want %q", delivery.Intent.ID, id)
	}
	if delivery.Intent.SubmittedAt.IsZero() {
		t.Error("SubmittedAt not stamped")
	}
}

func TestSubmit_RejectsInvalidIntent(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	svc := NewService(q, memory.NewTradeStore(), nil)
	ctx := context.Background()

	cases := map[string]func(*domain.TradeIntent){
		"missing token": func(i *domain.TradeIntent) { i.TokenID = "" },
		"zero amount":   func(i *domain.TradeIntent) { i.Amount = decimal.Zero },
		"bad direction": func(i *domain.TradeIntent) { i.Direction = "hold" },
		"no wallet":     func(i *domain.TradeIntent) { i.WalletAddress = "  " },
	}
	for name, mutate := range cases {
		intent := validIntent()
		mutate(intent)
		if _, err := svc.Submit(ctx, intent); err == nil {
			t.Errorf("%s: accepted invalid intent", name)
		}
	}

	depth, _ := q.Depth(ctx)
	if depth != 0 {
		t.Errorf("invalid intents reached the queue: depth %d", depth)
	}
}

func TestGet_UnknownTrade(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	svc := NewService(q, memory.NewTradeStore(), nil)

	if _, err := svc.Get(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown trade id")
	}
}

// A freshly submitted intent has no record until a worker picks it up.
func TestSubmit_RecordAppearsOnlyAfterProcessing(t *testing.T) {
	q := queue.NewMemoryQueue()
	defer q.Close()
	trades := memory.NewTradeStore()
	svc := NewService(q, trades, nil)
	ctx := context.Background()

	id, err := svc.Submit(ctx, validIntent())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := svc.Get(ctx, id); err == nil {
		t.Error("record visible before any worker ran")
	}

	delivery, _ := q.Dequeue(ctx)
	trade := domain.NewTrade(delivery.Intent.ID, delivery.Intent, time.Now().UTC())
	if err := trades.Create(ctx, trade); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != domain.TradePending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}
