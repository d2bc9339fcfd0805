// Package stub provides a scripted chain.Gateway for testing.
package stub

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/konstantinos193/stacksdotfun/internal/chain"
	"github.com/konstantinos193/stacksdotfun/internal/domain"
)

// Gateway implements chain.Gateway with canned per-token responses.
type Gateway struct {
	mu sync.Mutex

	Snapshots  map[string]*domain.MarketSnapshot // keyed by token id
	ReadErrs   map[string]error                  // per-token read failures
	TokenCount uint64
	ChartData  map[string][]domain.PricePoint

	// TradeTxID is returned from ExecuteTrade when TradeErr is nil.
	TradeTxID string
	TradeErr  error

	readCalls  map[string]int
	tradeCalls []TradeCall
	chartCalls []ChartCall
}

// TradeCall records one ExecuteTrade invocation.
type TradeCall struct {
	TokenID   string
	Amount    decimal.Decimal
	Direction domain.Direction
	Wallet    string
}

// ChartCall records one GetTradingViewData invocation.
type ChartCall struct {
	TokenID    string
	Timeframe  uint64
	StartBlock uint64
	EndBlock   uint64
}

// NewGateway creates an empty stub gateway.
func NewGateway() *Gateway {
	return &Gateway{
		Snapshots: make(map[string]*domain.MarketSnapshot),
		ReadErrs:  make(map[string]error),
		ChartData: make(map[string][]domain.PricePoint),
		TradeTxID: "0xdeadbeefcafe0001",
		readCalls: make(map[string]int),
	}
}

// Compile-time interface check.
var _ chain.Gateway = (*Gateway)(nil)

// ReadMarketData returns the scripted snapshot or error for the token.
func (g *Gateway) ReadMarketData(_ context.Context, token *domain.Token) (*domain.MarketSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.readCalls[token.ID]++

	if err, ok := g.ReadErrs[token.ID]; ok {
		return nil, err
	}
	snap, ok := g.Snapshots[token.ID]
	if !ok {
		return nil, chain.Permanent("read market data", fmt.Errorf("unknown token %s", token.ID))
	}
	copy := *snap
	return &copy, nil
}

// GetTokenCount returns the scripted token count.
func (g *Gateway) GetTokenCount(context.Context) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.TokenCount, nil
}

// GetTradingViewData records the call and returns the scripted chart points.
func (g *Gateway) GetTradingViewData(_ context.Context, token *domain.Token, timeframe, startBlock, endBlock uint64) ([]domain.PricePoint, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.chartCalls = append(g.chartCalls, ChartCall{
		TokenID:    token.ID,
		Timeframe:  timeframe,
		StartBlock: startBlock,
		EndBlock:   endBlock,
	})
	return g.ChartData[token.ID], nil
}

// ExecuteTrade records the call and returns the scripted result.
func (g *Gateway) ExecuteTrade(_ context.Context, token *domain.Token, amount decimal.Decimal, direction domain.Direction, wallet string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.tradeCalls = append(g.tradeCalls, TradeCall{
		TokenID:   token.ID,
		Amount:    amount,
		Direction: direction,
		Wallet:    wallet,
	})

	if g.TradeErr != nil {
		return "", g.TradeErr
	}
	return g.TradeTxID, nil
}

// ReadCalls returns how many times ReadMarketData was called for a token.
func (g *Gateway) ReadCalls(tokenID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readCalls[tokenID]
}

// TradeCalls returns all recorded ExecuteTrade invocations.
func (g *Gateway) TradeCalls() []TradeCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]TradeCall(nil), g.tradeCalls...)
}

// ChartCalls returns all recorded GetTradingViewData invocations.
func (g *Gateway) ChartCalls() []ChartCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ChartCall(nil), g.chartCalls...)
}
