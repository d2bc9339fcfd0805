package domain

// Push event types delivered to subscribed clients.
const (
	EventMarketUpdate = "marketUpdate"
	EventTradeUpdate  = "tradeUpdate"
)

// TradeUpdate is the payload published when a trade reaches a terminal state.
type TradeUpdate struct {
	TradeID string      `json:"tradeId"`
	TokenID string      `json:"tokenId"`
	Status  TradeStatus `json:"status"`
	TxID    string      `json:"txId,omitempty"`
	Error   string      `json:"error,omitempty"`
}
