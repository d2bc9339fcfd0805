package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
)

func intent(tokenID string, n int) *domain.TradeIntent {
	return &domain.TradeIntent{
		TokenID:       tokenID,
		Amount:        decimal.NewFromInt(int64(n)),
		Direction:     domain.DirectionBuy,
		WalletAddress: fmt.Sprintf("SP2WALLET%d", n),
		SubmittedAt:   time.Now().UTC(),
	}
}

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if err := q.Enqueue(ctx, intent("sats", i)); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
	}

	for i := 1; i <= 5; i++ {
		d, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue %d failed: %v", i, err)
		}
		if !d.Intent.Amount.Equal(decimal.NewFromInt(int64(i))) {
			t.Errorf("dequeue %d got amount %s", i, d.Intent.Amount)
		}
		if err := d.Ack(ctx); err != nil {
			t.Errorf("Ack failed: %v", err)
		}
	}
}

func TestMemoryQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	done := make(chan *Delivery, 1)
	go func() {
		d, err := q.Dequeue(ctx)
		if err != nil {
			t.Errorf("Dequeue failed: %v", err)
			return
		}
		done <- d
	}()

	time.Sleep(10 * time.Millisecond)
	if err := q.Enqueue(ctx, intent("sats", 1)); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	select {
	case d := <-done:
		if d.Intent.TokenID != "sats" {
			t.Errorf("got %+v", d.Intent)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake")
	}
}

func TestMemoryQueue_DequeueRespectsContext(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestMemoryQueue_Depth(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	q.Enqueue(ctx, intent("sats", 1))
	q.Enqueue(ctx, intent("sats", 2))

	n, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if n != 2 {
		t.Errorf("depth = %d, want 2", n)
	}
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := q.Enqueue(ctx, intent("sats", 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := q.Dequeue(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Double close is safe.
	if err := q.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestMemoryQueue_EnqueueCopiesIntent(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	in := intent("sats", 1)
	q.Enqueue(ctx, in)
	in.TokenID = "mutated"

	d, _ := q.Dequeue(ctx)
	if d.Intent.TokenID != "sats" {
		t.Error("queue shared the caller's intent")
	}
}
