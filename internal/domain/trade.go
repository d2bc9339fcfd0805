package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a trade.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// ParseDirection validates and normalizes a direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionBuy:
		return DirectionBuy, nil
	case DirectionSell:
		return DirectionSell, nil
	default:
		return "", fmt.Errorf("invalid direction %q", s)
	}
}

// TradeStatus is the lifecycle state of a trade.
type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeCompleted TradeStatus = "completed"
	TradeFailed    TradeStatus = "failed"
)

// ErrNotPending is returned when a terminal trade is transitioned again.
// Terminal states are never revisited.
var ErrNotPending = errors.New("trade is not pending")

// TradeIntent is a client's request to buy or sell. Immutable once enqueued.
// ID is assigned when the intent is accepted and becomes the trade record's id.
type TradeIntent struct {
	ID            string          `json:"id"`
	TokenID       string          `json:"tokenId"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     Direction       `json:"direction"`
	WalletAddress string          `json:"walletAddress"`
	SubmittedAt   time.Time       `json:"submittedAt"`
}

// Validate checks the intent fields before it is accepted onto the queue.
func (i *TradeIntent) Validate() error {
	if strings.TrimSpace(i.TokenID) == "" {
		return errors.New("tokenId is required")
	}
	if !i.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if _, err := ParseDirection(string(i.Direction)); err != nil {
		return err
	}
	if strings.TrimSpace(i.WalletAddress) == "" {
		return errors.New("walletAddress is required")
	}
	return nil
}

// Trade is the durable record of a TradeIntent's processing. It is created
// in pending state when the intent is dequeued and transitions exactly once
// to completed or failed. The trade worker is the sole writer after creation.
type Trade struct {
	ID            string          `json:"id"`
	TokenID       string          `json:"tokenId"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     Direction       `json:"direction"`
	WalletAddress string          `json:"walletAddress"`
	Status        TradeStatus     `json:"status"`
	TxID          string          `json:"txId,omitempty"`
	Error         string          `json:"error,omitempty"`
	SubmittedAt   time.Time       `json:"submittedAt"`
	CreatedAt     time.Time       `json:"createdAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
}

// NewTrade creates a pending trade from an intent.
func NewTrade(id string, intent *TradeIntent, now time.Time) *Trade {
	return &Trade{
		ID:            id,
		TokenID:       intent.TokenID,
		Amount:        intent.Amount,
		Direction:     intent.Direction,
		WalletAddress: intent.WalletAddress,
		Status:        TradePending,
		SubmittedAt:   intent.SubmittedAt,
		CreatedAt:     now,
	}
}

// Complete marks the trade completed with the transaction id.
func (t *Trade) Complete(txID string, at time.Time) error {
	if t.Status != TradePending {
		return ErrNotPending
	}
	t.Status = TradeCompleted
	t.TxID = txID
	t.CompletedAt = &at
	return nil
}

// Fail marks the trade failed with the recorded error message.
func (t *Trade) Fail(msg string, at time.Time) error {
	if t.Status != TradePending {
		return ErrNotPending
	}
	t.Status = TradeFailed
	t.Error = msg
	t.CompletedAt = &at
	return nil
}

// Terminal reports whether the trade has reached a terminal state.
func (t *Trade) Terminal() bool {
	return t.Status == TradeCompleted || t.Status == TradeFailed
}
