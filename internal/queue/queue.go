// Package queue provides the FIFO trade intent queue between the HTTP
// surface and the trade workers. Delivery is at-least-once: an intent is
// acknowledged only after the worker has durably recorded it, and intents
// stuck in the processing list are recovered at startup.
package queue

import (
	"context"
	"errors"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
)

// ErrClosed is returned when operating on a closed queue.
var ErrClosed = errors.New("queue closed")

// Redis list names.
const (
	QueueKey      = "stxfun:trade:queue"
	ProcessingKey = "stxfun:trade:processing"
)

// Delivery is one dequeued intent. The consumer must call Ack exactly once
// after the intent is durably recorded; unacked deliveries reappear on the
// next Recover.
type Delivery struct {
	// Intent is nil when the payload could not be decoded; DecodeErr
	// carries the reason. Malformed payloads must still be acked or they
	// would wedge the queue forever.
	Intent    *domain.TradeIntent
	DecodeErr error

	raw string
	ack func(ctx context.Context) error
}

// Ack removes the delivery from the processing list.
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// TradeQueue is the FIFO intent queue.
type TradeQueue interface {
	// Enqueue appends an intent to the tail of the queue.
	Enqueue(ctx context.Context, intent *domain.TradeIntent) error

	// Dequeue blocks until an intent is available or ctx is done. The
	// intent is moved to the processing list until acked.
	Dequeue(ctx context.Context) (*Delivery, error)

	// Recover moves intents abandoned in the processing list back onto
	// the queue. Called once at startup, before workers begin.
	Recover(ctx context.Context) (int, error)

	// Depth returns the number of queued (not in-flight) intents.
	Depth(ctx context.Context) (int64, error)

	// Close releases the underlying connection.
	Close() error
}
