// Package api exposes the HTTP surface: market data queries, trade intake
// and status, the websocket upgrade endpoint, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/konstantinos193/stacksdotfun/internal/broadcast"
	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/market"
	"github.com/konstantinos193/stacksdotfun/internal/observability"
	"github.com/konstantinos193/stacksdotfun/internal/storage"
	"github.com/konstantinos193/stacksdotfun/internal/trading"
)

// Defaults for chart queries.
const (
	defaultTimeframe  = 5 // minutes
	defaultTradeLimit = 50
)

// Server is the HTTP API server.
type Server struct {
	market  *market.Service
	trading *trading.Service
	ws      *broadcast.WSHandler
	logger  *zap.Logger
	mux     *http.ServeMux
}

// Options configures a Server.
type Options struct {
	Market  *market.Service
	Trading *trading.Service
	Hub     *broadcast.Hub
	Logger  *zap.Logger
}

// NewServer creates the API server and registers all routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		market:  opts.Market,
		trading: opts.Trading,
		ws:      broadcast.NewWSHandler(opts.Hub, logger),
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /market/{tokenId}", s.handleMarket)
	s.mux.HandleFunc("GET /tradingview/{tokenId}", s.handleTradingView)
	s.mux.HandleFunc("POST /trade", s.handleSubmitTrade)
	s.mux.HandleFunc("GET /trade/{tradeId}", s.handleTradeStatus)
	s.mux.HandleFunc("GET /token/count", s.handleTokenCount)
	s.mux.HandleFunc("GET /token/{tokenId}/history", s.handleHistory)
	s.mux.HandleFunc("GET /token/{tokenId}/trades", s.handleTokenTrades)
	s.mux.Handle("GET /ws", s.ws)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", observability.Handler())
}

// ServeHTTP dispatches to the route table.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	tokenID := r.PathValue("tokenId")

	snap, err := s.market.Snapshot(r.Context(), tokenID)
	if err != nil {
		s.marketError(w, tokenID, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTradingView(w http.ResponseWriter, r *http.Request) {
	tokenID := r.PathValue("tokenId")
	q := r.URL.Query()

	timeframe := uint64(defaultTimeframe)
	if v := q.Get("timeframe"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil || parsed == 0 {
			s.writeError(w, http.StatusBadRequest, "invalid timeframe")
			return
		}
		timeframe = parsed
	}

	// startBlock defaults to 0 (from genesis), endBlock to 0 (up to the
	// latest observed block).
	var startBlock, endBlock uint64
	if v := q.Get("startBlock"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid startBlock")
			return
		}
		startBlock = parsed
	}
	if v := q.Get("endBlock"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid endBlock")
			return
		}
		endBlock = parsed
	}
	if endBlock > 0 && endBlock < startBlock {
		s.writeError(w, http.StatusBadRequest, "endBlock must not precede startBlock")
		return
	}

	points, err := s.market.Chart(r.Context(), tokenID, timeframe, startBlock, endBlock)
	if err != nil {
		s.marketError(w, tokenID, err)
		return
	}
	if points == nil {
		points = []domain.PricePoint{}
	}
	s.writeJSON(w, http.StatusOK, points)
}

// submitTradeRequest is the POST /trade body.
type submitTradeRequest struct {
	TokenID       string          `json:"tokenId"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     string          `json:"direction"`
	WalletAddress string          `json:"walletAddress"`
}

func (s *Server) handleSubmitTrade(w http.ResponseWriter, r *http.Request) {
	var req submitTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	intent := &domain.TradeIntent{
		TokenID:       req.TokenID,
		Amount:        req.Amount,
		Direction:     domain.Direction(req.Direction),
		WalletAddress: req.WalletAddress,
		SubmittedAt:   time.Now().UTC(),
	}

	id, err := s.trading.Submit(r.Context(), intent)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"tradeId": id,
		"status":  domain.TradePending,
	})
}

func (s *Server) handleTradeStatus(w http.ResponseWriter, r *http.Request) {
	tradeID := r.PathValue("tradeId")

	trade, err := s.trading.Get(r.Context(), tradeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "trade not found")
			return
		}
		s.internalError(w, "get trade", err)
		return
	}
	s.writeJSON(w, http.StatusOK, trade)
}

func (s *Server) handleTokenCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.market.TokenCount(r.Context())
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "chain unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"count": count})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	tokenID := r.PathValue("tokenId")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	history, err := s.market.PriceHistory(r.Context(), tokenID, limit)
	if err != nil {
		s.marketError(w, tokenID, err)
		return
	}
	if history == nil {
		history = []domain.PricePoint{}
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleTokenTrades(w http.ResponseWriter, r *http.Request) {
	tokenID := r.PathValue("tokenId")

	limit := defaultTradeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	trades, err := s.trading.ListByToken(r.Context(), tokenID, limit)
	if err != nil {
		s.internalError(w, "list trades", err)
		return
	}
	if trades == nil {
		trades = []*domain.Trade{}
	}
	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// marketError maps market service errors to status codes.
func (s *Server) marketError(w http.ResponseWriter, tokenID string, err error) {
	switch {
	case errors.Is(err, market.ErrTokenNotFound):
		s.writeError(w, http.StatusNotFound, "token not found")
	case errors.Is(err, market.ErrUnavailable):
		s.logger.Warn("market data unavailable", zap.String("token", tokenID), zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "market data unavailable")
	default:
		s.internalError(w, "market query", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Run serves until ctx is done, then drains in-flight requests.
func Run(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
