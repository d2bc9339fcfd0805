package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/konstantinos193/stacksdotfun/internal/broadcast"
	"github.com/konstantinos193/stacksdotfun/internal/cache"
	"github.com/konstantinos193/stacksdotfun/internal/chain"
	chainstub "github.com/konstantinos193/stacksdotfun/internal/chain/stub"
	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/market"
	"github.com/konstantinos193/stacksdotfun/internal/queue"
	"github.com/konstantinos193/stacksdotfun/internal/storage/memory"
	"github.com/konstantinos193/stacksdotfun/internal/trading"
)

type apiFixture struct {
	server  *httptest.Server
	gateway *chainstub.Gateway
	queue   *queue.MemoryQueue
	trades  *memory.TradeStore
	snaps   *memory.MarketSnapshotStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	tokens := memory.NewTokenStore()
	f := &apiFixture{
		gateway: chainstub.NewGateway(),
		queue:   queue.NewMemoryQueue(),
		trades:  memory.NewTradeStore(),
		snaps:   memory.NewMarketSnapshotStore(),
	}

	marketSvc := market.NewService(market.Options{
		Tokens:    tokens,
		Snapshots: f.snaps,
		Prices:    memory.NewPriceTimeseriesStore(),
		Cache:     cache.NewMemoryCache(),
		Gateway:   f.gateway,
	})
	tradingSvc := trading.NewService(f.queue, f.trades, nil)

	srv := NewServer(Options{
		Market:  marketSvc,
		Trading: tradingSvc,
		Hub:     broadcast.NewHub(),
	})
	f.server = httptest.NewServer(srv)
	t.Cleanup(f.server.Close)
	t.Cleanup(func() { f.queue.Close() })

	err := tokens.Insert(context.Background(), &domain.Token{
		ID: "sats", Symbol: "SATS", ChainID: 3, IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed token: %v", err)
	}
	return f
}

func (f *apiFixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func (f *apiFixture) postJSON(t *testing.T, path string, body any) (*http.Response, []byte) {
	t.Helper()
	payload, _ := json.Marshal(body)
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestMarketEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.gateway.Snapshots["sats"] = &domain.MarketSnapshot{
		TokenID:     "sats",
		Price:       decimal.RequireFromString("0.00012"),
		Volume24h:   decimal.NewFromInt(780000),
		Holders:     514,
		BlockHeight: 123456,
		LastUpdated: time.Now().UTC(),
	}

	resp, body := f.get(t, "/market/sats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var snap domain.MarketSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Price.String() != "0.00012" || snap.Holders != 514 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestMarketEndpoint_UnknownToken(t *testing.T) {
	f := newAPIFixture(t)
	resp, _ := f.get(t, "/market/ghost")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMarketEndpoint_ChainDown(t *testing.T) {
	f := newAPIFixture(t)
	f.gateway.ReadErrs["sats"] = chain.Transient("call-read", errors.New("node down"))

	resp, _ := f.get(t, "/market/sats")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestSubmitTradeEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	resp, body := f.postJSON(t, "/trade", map[string]any{
		"tokenId":       "sats",
		"amount":        "1.5",
		"direction":     "buy",
		"walletAddress": "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}

	var out struct {
		TradeID string `json:"tradeId"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.TradeID == "" || out.Status != "pending" {
		t.Errorf("unexpected response %+v", out)
	}

	depth, _ := f.queue.Depth(context.Background())
	if depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}
}

func TestSubmitTradeEndpoint_Invalid(t *testing.T) {
	f := newAPIFixture(t)

	cases := []map[string]any{
		{"tokenId": "", "amount": "1", "direction": "buy", "walletAddress": "SP1"},
		{"tokenId": "sats", "amount": "0", "direction": "buy", "walletAddress": "SP1"},
		{"tokenId": "sats", "amount": "1", "direction": "hold", "walletAddress": "SP1"},
	}
	for i, body := range cases {
		resp, _ := f.postJSON(t, "/trade", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("case %d: status = %d, want 400", i, resp.StatusCode)
		}
	}

	resp, _ := http.Post(f.server.URL+"/trade", "application/json", bytes.NewReader([]byte("{not json")))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTradeStatusEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	resp, _ := f.get(t, "/trade/unknown")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	trade := domain.NewTrade("t-1", &domain.TradeIntent{
		TokenID:       "sats",
		Amount:        decimal.NewFromInt(1),
		Direction:     domain.DirectionBuy,
		WalletAddress: "SP1",
	}, time.Now().UTC())
	if err := f.trades.Create(ctx, trade); err != nil {
		t.Fatalf("seed trade: %v", err)
	}

	resp, body := f.get(t, "/trade/t-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got domain.Trade
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != domain.TradePending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func TestTokenCountEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.gateway.TokenCount = 7

	resp, body := f.get(t, "/token/count")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out map[string]uint64
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["count"] != 7 {
		t.Errorf("count = %d, want 7", out["count"])
	}
}

func TestHistoryEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 4; i++ {
		f.snaps.Upsert(ctx, &domain.MarketSnapshot{
			TokenID:     "sats",
			Price:       decimal.NewFromInt(int64(i + 1)),
			LastUpdated: base.Add(time.Duration(i) * 5 * time.Minute),
		})
	}

	resp, body := f.get(t, "/token/sats/history?limit=2")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var points []domain.PricePoint
	if err := json.Unmarshal(body, &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2", len(points))
	}
	if points[1].Price.String() != "4" {
		t.Errorf("last price = %s, want 4", points[1].Price)
	}
}

func TestTradingViewEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	base := time.Now().UTC().Add(-time.Hour)
	f.gateway.ChartData["sats"] = []domain.PricePoint{
		{Price: decimal.RequireFromString("0.00011"), BlockHeight: 123400, Timestamp: base},
		{Price: decimal.RequireFromString("0.00012"), BlockHeight: 123410, Timestamp: base.Add(5 * time.Minute)},
	}

	resp, body := f.get(t, "/tradingview/sats?timeframe=5&startBlock=123400&endBlock=123410")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var points []domain.PricePoint
	if err := json.Unmarshal(body, &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 2 {
		t.Errorf("points = %d, want 2", len(points))
	}

	// The block range reaches the contract as given.
	calls := f.gateway.ChartCalls()
	if len(calls) != 1 {
		t.Fatalf("chart calls = %d, want 1", len(calls))
	}
	if calls[0].Timeframe != 5 || calls[0].StartBlock != 123400 || calls[0].EndBlock != 123410 {
		t.Errorf("chart call = %+v", calls[0])
	}
}

func TestTradingViewEndpoint_DefaultsOpenEnded(t *testing.T) {
	f := newAPIFixture(t)
	f.gateway.ChartData["sats"] = []domain.PricePoint{
		{Price: decimal.RequireFromString("0.00011"), BlockHeight: 123400, Timestamp: time.Now().UTC()},
	}

	resp, body := f.get(t, "/tradingview/sats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var points []domain.PricePoint
	if err := json.Unmarshal(body, &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 1 {
		t.Errorf("points = %d, want 1", len(points))
	}
}

func TestTradingViewEndpoint_BadParams(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{
		"/tradingview/sats?timeframe=0",
		"/tradingview/sats?timeframe=abc",
		"/tradingview/sats?startBlock=xyz",
		"/tradingview/sats?endBlock=xyz",
		"/tradingview/sats?startBlock=200&endBlock=100",
	} {
		resp, _ := f.get(t, path)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	resp, _ := f.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
