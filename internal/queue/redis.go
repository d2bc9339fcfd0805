package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
)

// blockTimeout bounds each BLMOVE so Dequeue can observe ctx cancellation.
const blockTimeout = time.Second

// RedisQueue implements TradeQueue on two Redis lists: QueueKey holds
// waiting intents, ProcessingKey holds intents handed to a worker but not
// yet acked.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(ctx context.Context, redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisQueue{client: client}, nil
}

// NewRedisQueueWithClient wraps an existing client.
func NewRedisQueueWithClient(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// Compile-time interface check.
var _ TradeQueue = (*RedisQueue)(nil)

// Enqueue appends an intent to the tail of the queue.
func (q *RedisQueue) Enqueue(ctx context.Context, intent *domain.TradeIntent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	if err := q.client.LPush(ctx, QueueKey, data).Err(); err != nil {
		return fmt.Errorf("enqueue intent: %w", err)
	}
	return nil
}

// Dequeue blocks until an intent is available or ctx is done. BLMOVE
// atomically shifts the intent into the processing list, so a worker crash
// between dequeue and ack leaves it recoverable.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := q.client.BLMove(ctx, QueueKey, ProcessingKey, "RIGHT", "LEFT", blockTimeout).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("dequeue intent: %w", err)
		}

		d := &Delivery{
			raw: raw,
			ack: func(ctx context.Context) error {
				if err := q.client.LRem(ctx, ProcessingKey, 1, raw).Err(); err != nil {
					return fmt.Errorf("ack intent: %w", err)
				}
				return nil
			},
		}

		var intent domain.TradeIntent
		if err := json.Unmarshal([]byte(raw), &intent); err != nil {
			d.DecodeErr = fmt.Errorf("decode intent: %w", err)
			return d, nil
		}
		d.Intent = &intent
		return d, nil
	}
}

// Recover moves intents abandoned in the processing list back to the front
// of the queue, oldest first, so they run before newly accepted intents.
// Only safe while no workers are running.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	recovered := 0
	for {
		err := q.client.LMove(ctx, ProcessingKey, QueueKey, "LEFT", "RIGHT").Err()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return recovered, nil
			}
			return recovered, fmt.Errorf("recover intents: %w", err)
		}
		recovered++
	}
}

// Depth returns the number of queued intents.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, QueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

// Close releases the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
