package chain

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
)

// Gateway wraps read-only contract queries and transaction submission.
// Read-only calls may be retried internally; trade execution is never
// retried (double-submission risk).
type Gateway interface {
	// ReadMarketData reads the current market state for a token.
	ReadMarketData(ctx context.Context, token *domain.Token) (*domain.MarketSnapshot, error)

	// GetTokenCount returns the number of tokens known to the contract.
	GetTokenCount(ctx context.Context) (uint64, error)

	// GetTradingViewData reads a historical price range from the contract.
	// Used only as the last-resort fallback for charting queries.
	GetTradingViewData(ctx context.Context, token *domain.Token, timeframe, startBlock, endBlock uint64) ([]domain.PricePoint, error)

	// ExecuteTrade submits a buy or sell against the bonding curve and
	// returns the transaction id.
	ExecuteTrade(ctx context.Context, token *domain.Token, amount decimal.Decimal, direction domain.Direction, wallet string) (string, error)
}

// ContractCall is the payload handed to a TxSubmitter. Building and signing
// the actual transaction is the submitter's concern.
type ContractCall struct {
	ContractAddress string   `json:"contractAddress"`
	ContractName    string   `json:"contractName"`
	FunctionName    string   `json:"functionName"`
	FunctionArgs    []string `json:"functionArgs"` // hex-encoded Clarity values
	SenderAddress   string   `json:"senderAddress"`
}

// TxSubmitter signs and broadcasts a contract call, returning the txid.
type TxSubmitter interface {
	Submit(ctx context.Context, call *ContractCall) (string, error)
}
