// Package broadcast fans market and trade events out to subscribed clients.
// Delivery is best-effort: a slow client loses events rather than slowing
// the pipeline.
package broadcast

import (
	"sync"

	"go.uber.org/zap"
)

// clientBuffer is the per-client outbound queue. A client that falls this
// far behind starts losing events.
const clientBuffer = 64

// Event is one push message. Data carries the snapshot or trade update.
type Event struct {
	Type    string `json:"type"`
	TokenID string `json:"tokenId"`
	Data    any    `json:"data"`
}

// Client is one connected subscriber.
type Client struct {
	send      chan Event
	closeOnce sync.Once
}

// Events returns the client's outbound event stream. The channel is closed
// when the client is detached from the hub.
func (c *Client) Events() <-chan Event {
	return c.send
}

// Hub tracks per-token rooms and delivers events to their members.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{} // token id -> members

	logger *zap.Logger
	onDrop func()
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) { h.logger = logger }
}

// WithDropHandler registers a callback invoked per dropped event, used for
// metrics.
func WithDropHandler(fn func()) HubOption {
	return func(h *Hub) { h.onDrop = fn }
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register creates a new client. The caller owns its lifecycle and must
// call Detach when the connection ends.
func (h *Hub) Register() *Client {
	return &Client{send: make(chan Event, clientBuffer)}
}

// Subscribe adds the client to a token's room. Subscribing twice is the
// same as subscribing once.
func (h *Hub) Subscribe(c *Client, tokenID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[tokenID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[tokenID] = room
	}
	room[c] = struct{}{}
}

// Unsubscribe removes the client from a token's room. Removing an absent
// membership is a no-op.
func (h *Hub) Unsubscribe(c *Client, tokenID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[tokenID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, tokenID)
	}
}

// Detach removes the client from every room and closes its event stream.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for tokenID, room := range h.rooms {
		if _, ok := room[c]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, tokenID)
			}
		}
	}
	c.closeOnce.Do(func() { close(c.send) })
}

// Publish delivers an event to every member of the token's room. Never
// blocks: members with a full buffer drop the event.
func (h *Hub) Publish(tokenID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[tokenID] {
		select {
		case c.send <- event:
		default:
			if h.onDrop != nil {
				h.onDrop()
			}
			h.logger.Debug("dropped event for slow client",
				zap.String("token", tokenID),
				zap.String("type", event.Type),
			)
		}
	}
}

// Subscribers returns the member count of a token's room.
func (h *Hub) Subscribers(tokenID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[tokenID])
}
