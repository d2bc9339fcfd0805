package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
)

// memoryQueueCap bounds the in-process queue. Redis mode has no such bound;
// in memory mode a full queue rejects new intents instead of blocking the
// HTTP handler.
const memoryQueueCap = 1024

// MemoryQueue implements TradeQueue with an in-process channel. Intents are
// lost on restart, matching the rest of --use-memory mode.
type MemoryQueue struct {
	mu     sync.Mutex
	ch     chan *domain.TradeIntent
	closed bool
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		ch: make(chan *domain.TradeIntent, memoryQueueCap),
	}
}

// Compile-time interface check.
var _ TradeQueue = (*MemoryQueue)(nil)

// Enqueue appends an intent to the tail of the queue.
func (q *MemoryQueue) Enqueue(ctx context.Context, intent *domain.TradeIntent) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.mu.Unlock()

	copy := *intent
	select {
	case q.ch <- &copy:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("queue full")
	}
}

// Dequeue blocks until an intent is available or ctx is done.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case intent, ok := <-q.ch:
		if !ok {
			return nil, ErrClosed
		}
		return &Delivery{Intent: intent}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Recover is a no-op: nothing survives a restart in memory mode.
func (q *MemoryQueue) Recover(context.Context) (int, error) {
	return 0, nil
}

// Depth returns the number of queued intents.
func (q *MemoryQueue) Depth(context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}

// Close rejects further enqueues and wakes blocked consumers.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}
