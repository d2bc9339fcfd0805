package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/observability"
)

// Default client configuration.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 10 * time.Second
)

// Contract call function names.
const (
	fnGetMarketData      = "get-token-market-data"
	fnGetTokenCount      = "get-token-count"
	fnGetTradingViewData = "get-tradingview-data-range"
	fnBuy                = "buy"
	fnSell               = "sell"
)

// microUnitExp is the decimal exponent of contract integer amounts.
// The bonding curve stores prices and volumes in micro-units (10^6).
const microUnitExp = 6

// StacksClient implements Gateway against a Stacks node core API.
type StacksClient struct {
	apiURL          string
	contractAddress string
	contractName    string
	client          *http.Client
	submitter       TxSubmitter
	maxRetries      uint64
	retryDelay      time.Duration
	maxDelay        time.Duration
	logger          *zap.Logger
}

// ClientOption configures StacksClient.
type ClientOption func(*StacksClient)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *StacksClient) { c.client = client }
}

// WithMaxRetries sets maximum retry attempts for read-only calls.
func WithMaxRetries(n uint64) ClientOption {
	return func(c *StacksClient) { c.maxRetries = n }
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *StacksClient) { c.retryDelay = d }
}

// WithSubmitter sets the transaction submitter used for trade execution.
func WithSubmitter(s TxSubmitter) ClientOption {
	return func(c *StacksClient) { c.submitter = s }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *StacksClient) { c.logger = logger }
}

// NewStacksClient creates a gateway client for the given node API and contract.
func NewStacksClient(apiURL, contractAddress, contractName string, opts ...ClientOption) *StacksClient {
	c := &StacksClient{
		apiURL:          apiURL,
		contractAddress: contractAddress,
		contractName:    contractName,
		client:          &http.Client{Timeout: DefaultTimeout},
		maxRetries:      DefaultMaxRetries,
		retryDelay:      DefaultRetryDelay,
		maxDelay:        DefaultMaxDelay,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Gateway = (*StacksClient)(nil)

// observeCall records one gateway call's latency and, on failure, its error
// kind. Meant to be deferred with the method's named error.
func observeCall(method string, start time.Time, errp *error) {
	observability.RecordChainCall(method, time.Since(start).Seconds())
	if err := *errp; err != nil {
		kind := "permanent"
		if IsTransient(err) {
			kind = "transient"
		}
		observability.RecordChainCallError(method, kind)
	}
}

// readOnlyRequest is the body of a /v2/contracts/call-read request.
type readOnlyRequest struct {
	Sender    string   `json:"sender"`
	Arguments []string `json:"arguments"`
}

// readOnlyResponse is the node's response to a read-only call.
type readOnlyResponse struct {
	Okay   bool   `json:"okay"`
	Result string `json:"result"` // hex-encoded Clarity value
	Cause  string `json:"cause"`
}

// coreInfoResponse is the subset of /v2/info the gateway needs.
type coreInfoResponse struct {
	StacksTipHeight int64 `json:"stacks_tip_height"`
}

// callReadOnly performs a read-only contract call with bounded retries and
// exponential backoff. Only transient failures are retried.
func (c *StacksClient) callReadOnly(ctx context.Context, fn string, args []string) (*ClarityValue, error) {
	var result *ClarityValue

	operation := func() error {
		v, err := c.doReadOnly(ctx, fn, args)
		if err != nil {
			if IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = v
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryDelay
	bo.MaxInterval = c.maxDelay
	bo.MaxElapsedTime = 0 // bounded by retry count, not wall clock

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

// doReadOnly performs a single read-only call attempt.
func (c *StacksClient) doReadOnly(ctx context.Context, fn string, args []string) (*ClarityValue, error) {
	op := fmt.Sprintf("call-read %s", fn)

	url := fmt.Sprintf("%s/v2/contracts/call-read/%s/%s/%s", c.apiURL, c.contractAddress, c.contractName, fn)
	body, err := json.Marshal(readOnlyRequest{Sender: c.contractAddress, Arguments: args})
	if err != nil {
		return nil, Permanent(op, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, Permanent(op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, Transient(op, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient(op, fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, Transient(op, fmt.Errorf("rate limited (429)"))
	case resp.StatusCode >= 500:
		return nil, Transient(op, fmt.Errorf("node error %d: %s", resp.StatusCode, respBody))
	case resp.StatusCode != http.StatusOK:
		return nil, Permanent(op, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, respBody))
	}

	var ro readOnlyResponse
	if err := json.Unmarshal(respBody, &ro); err != nil {
		return nil, Transient(op, fmt.Errorf("unmarshal response: %w", err))
	}

	if !ro.Okay {
		return nil, Permanent(op, fmt.Errorf("call rejected: %s", ro.Cause))
	}

	v, err := DecodeClarityHex(ro.Result)
	if err != nil {
		return nil, Permanent(op, err)
	}

	inner, err := v.ExpectOk()
	if err != nil {
		return nil, Permanent(op, err)
	}
	return inner, nil
}

// tipHeight reads the current chain tip height.
func (c *StacksClient) tipHeight(ctx context.Context) (int64, error) {
	const op = "get-info"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/v2/info", nil)
	if err != nil {
		return 0, Permanent(op, fmt.Errorf("create request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, Transient(op, fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, Transient(op, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var info coreInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return 0, Transient(op, fmt.Errorf("decode response: %w", err))
	}
	return info.StacksTipHeight, nil
}

// ReadMarketData reads the current market state for a token.
func (c *StacksClient) ReadMarketData(ctx context.Context, token *domain.Token) (_ *domain.MarketSnapshot, err error) {
	defer observeCall(fnGetMarketData, time.Now(), &err)

	height, err := c.tipHeight(ctx)
	if err != nil {
		return nil, err
	}

	v, err := c.callReadOnly(ctx, fnGetMarketData, []string{EncodeUint(token.ChainID)})
	if err != nil {
		return nil, err
	}

	snap := &domain.MarketSnapshot{
		TokenID:     token.ID,
		BlockHeight: height,
		LastUpdated: time.Now().UTC(),
	}

	fields := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"price", &snap.Price},
		{"volume-24h", &snap.Volume24h},
		{"market-cap", &snap.MarketCap},
	}
	for _, f := range fields {
		raw, err := v.TupleUint(f.key)
		if err != nil {
			return nil, Permanent("read market data", err)
		}
		*f.dst = decimal.NewFromBigInt(raw, -microUnitExp)
	}

	holders, err := v.TupleUint("holders")
	if err != nil {
		return nil, Permanent("read market data", err)
	}
	snap.Holders = holders.Int64()

	return snap, nil
}

// GetTokenCount returns the number of tokens known to the contract.
func (c *StacksClient) GetTokenCount(ctx context.Context) (_ uint64, err error) {
	defer observeCall(fnGetTokenCount, time.Now(), &err)

	v, err := c.callReadOnly(ctx, fnGetTokenCount, nil)
	if err != nil {
		return 0, err
	}
	if v.Int == nil {
		return 0, Permanent("get token count", fmt.Errorf("expected uint result, got type 0x%02x", v.Type))
	}
	return v.Int.Uint64(), nil
}

// GetTradingViewData reads a historical price range from the contract.
func (c *StacksClient) GetTradingViewData(ctx context.Context, token *domain.Token, timeframe, startBlock, endBlock uint64) (_ []domain.PricePoint, err error) {
	defer observeCall(fnGetTradingViewData, time.Now(), &err)

	args := []string{
		EncodeUint(token.ChainID),
		EncodeUint(timeframe),
		EncodeUint(startBlock),
		EncodeUint(endBlock),
	}

	v, err := c.callReadOnly(ctx, fnGetTradingViewData, args)
	if err != nil {
		return nil, err
	}
	if v.List == nil {
		return nil, Permanent("get tradingview data", fmt.Errorf("expected list result, got type 0x%02x", v.Type))
	}

	points := make([]domain.PricePoint, 0, len(v.List))
	for i := range v.List {
		item := &v.List[i]

		price, err := item.TupleUint("price")
		if err != nil {
			return nil, Permanent("get tradingview data", err)
		}
		block, err := item.TupleUint("block")
		if err != nil {
			return nil, Permanent("get tradingview data", err)
		}
		ts, err := item.TupleUint("timestamp")
		if err != nil {
			return nil, Permanent("get tradingview data", err)
		}

		points = append(points, domain.PricePoint{
			Price:       decimal.NewFromBigInt(price, -microUnitExp),
			BlockHeight: block.Int64(),
			Timestamp:   time.Unix(ts.Int64(), 0).UTC(),
		})
	}
	return points, nil
}

// ExecuteTrade submits a buy or sell against the bonding curve. The call is
// handed to the configured TxSubmitter and never retried here.
func (c *StacksClient) ExecuteTrade(ctx context.Context, token *domain.Token, amount decimal.Decimal, direction domain.Direction, wallet string) (_ string, err error) {
	fn := fnBuy
	if direction == domain.DirectionSell {
		fn = fnSell
	}
	defer observeCall(fn, time.Now(), &err)

	if c.submitter == nil {
		return "", Permanent("execute trade", fmt.Errorf("no transaction submitter configured"))
	}

	micro := amount.Shift(microUnitExp).Truncate(0).BigInt()
	call := &ContractCall{
		ContractAddress: c.contractAddress,
		ContractName:    c.contractName,
		FunctionName:    fn,
		FunctionArgs: []string{
			EncodeUint(token.ChainID),
			EncodeUint(micro.Uint64()),
		},
		SenderAddress: wallet,
	}

	txID, err := c.submitter.Submit(ctx, call)
	if err != nil {
		return "", err
	}

	c.logger.Info("trade submitted",
		zap.String("token", token.ID),
		zap.String("direction", string(direction)),
		zap.String("txId", txID),
	)
	return txID, nil
}
