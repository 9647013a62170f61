// Package server exposes the dashboard HTTP API: chain lookups, strategy
// construction, P&L projection, exposure analysis, and backtests.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jcallahan4/optiondesk/internal/backtest"
	"github.com/jcallahan4/optiondesk/internal/builder"
	"github.com/jcallahan4/optiondesk/internal/catalog"
	"github.com/jcallahan4/optiondesk/internal/chain"
	"github.com/jcallahan4/optiondesk/internal/exposure"
	"github.com/jcallahan4/optiondesk/internal/feed"
	"github.com/jcallahan4/optiondesk/internal/pnl"
	"github.com/jcallahan4/optiondesk/internal/storage"
)

// Config holds server settings.
type Config struct {
	ListenAddr     string
	AuthToken      string
	RequestTimeout time.Duration
	PnLRangePct    float64
	// DefaultSymbol fills in for requests that omit a symbol.
	DefaultSymbol string
	// NearestStrikes is the size of the at-the-money selection the chain
	// endpoint returns alongside the full matrix.
	NearestStrikes int
}

// Server is the dashboard HTTP API.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	provider feed.Provider
	store    storage.Interface
	logger   *logrus.Logger
	cfg      Config
}

// NewServer wires the API against a market data provider and trade store.
func NewServer(cfg Config, provider feed.Provider, store storage.Interface, logger *logrus.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.PnLRangePct <= 0 {
		cfg.PnLRangePct = pnl.DefaultRangePct
	}
	if cfg.NearestStrikes <= 0 {
		cfg.NearestStrikes = chain.DefaultNearestCount
	}
	s := &Server{
		router:   chi.NewRouter(),
		provider: provider,
		store:    store,
		logger:   logger,
		cfg:      cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))

	if s.cfg.AuthToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleRoot)
		r.Get("/strategies", s.handleStrategies)
		r.Get("/options/{symbol}", s.handleOptionsChain)
		r.Get("/market/{symbol}", s.handleMarketData)
		r.Get("/quotes", s.handleQuotes)
		r.Get("/analysis/gex/{symbol}", s.handleGEX)
		r.Get("/analysis/dex/{symbol}", s.handleDEX)
		r.Post("/build", s.handleBuild)
		r.Post("/calculate-strategy-pnl", s.handleCalculatePnL)
		r.Post("/submit-trade", s.handleSubmitTrade)
		r.Get("/trades", s.handleTrades)
		r.Post("/backtest/{strategyID}", s.handleBacktest)
		r.Get("/backtest/results", s.handleBacktestResults)
	})
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if token != s.cfg.AuthToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting API server on %s", s.cfg.ListenAddr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Options Trading Dashboard API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, catalog.All())
}

// resolveExpiration falls back to the nearest listed expiration when the
// request does not pin one.
func (s *Server) resolveExpiration(ctx context.Context, symbol, expiration string) (string, error) {
	if expiration != "" {
		return expiration, nil
	}
	dates, err := s.provider.GetExpirations(ctx, symbol)
	if err != nil {
		return "", err
	}
	if len(dates) == 0 {
		return "", fmt.Errorf("no expirations found for %s", symbol)
	}
	return dates[0], nil
}

type nearestQuotes struct {
	Calls []chain.Quote `json:"calls"`
	Puts  []chain.Quote `json:"puts"`
}

type chainResponse struct {
	Symbol          string        `json:"symbol"`
	Expiration      string        `json:"expiration"`
	UnderlyingPrice float64       `json:"underlying_price"`
	Strikes         []float64     `json:"strikes"`
	Entries         []chain.Entry `json:"entries"`
	Nearest         nearestQuotes `json:"nearest"`
}

func (s *Server) handleOptionsChain(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	quote, err := s.provider.GetQuote(r.Context(), symbol)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch quote")
		s.respondError(w, http.StatusBadGateway, "Failed to fetch quote")
		return
	}
	price := quote.Last
	if price <= 0 {
		price = quote.Close
	}

	expiration, err := s.resolveExpiration(r.Context(), symbol, r.URL.Query().Get("expiration"))
	if err != nil {
		s.logger.WithError(err).Error("Failed to resolve expiration")
		s.respondError(w, http.StatusBadGateway, "Failed to fetch expirations")
		return
	}

	options, err := s.provider.GetOptionChain(r.Context(), symbol, expiration, true)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch options chain")
		s.respondError(w, http.StatusBadGateway, "Failed to fetch options chain")
		return
	}

	quotes, err := feed.Normalize(options)
	if err != nil {
		s.logger.WithError(err).Error("Malformed options chain")
		s.respondError(w, http.StatusBadGateway, "Malformed options chain")
		return
	}
	matrix := chain.BuildMatrix(quotes)

	s.respondJSON(w, http.StatusOK, chainResponse{
		Symbol:          symbol,
		Expiration:      expiration,
		UnderlyingPrice: price,
		Strikes:         matrix.Strikes(),
		Entries:         matrix.Entries(),
		Nearest: nearestQuotes{
			Calls: chain.NearestToPrice(quotes, chain.Call, price, s.cfg.NearestStrikes),
			Puts:  chain.NearestToPrice(quotes, chain.Put, price, s.cfg.NearestStrikes),
		},
	})
}

func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "daily"
	}

	start, end, err := historyWindow(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	candles, err := s.provider.GetHistory(r.Context(), symbol, interval, start, end)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch market data")
		s.respondError(w, http.StatusBadGateway, "Failed to fetch market data")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":  symbol,
		"history": candles,
	})
}

// historyWindow defaults to the trailing month when dates are omitted.
func historyWindow(startStr, endStr string) (time.Time, time.Time, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -30)
	end := now

	var err error
	if startStr != "" {
		if start, err = time.Parse("2006-01-02", startStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date: %v", err)
		}
	}
	if endStr != "" {
		if end, err = time.Parse("2006-01-02", endStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date: %v", err)
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date before start_date")
	}
	return start, end, nil
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	symbolsParam := r.URL.Query().Get("symbols")
	if symbolsParam == "" {
		symbolsParam = s.cfg.DefaultSymbol
	}
	if symbolsParam == "" {
		s.respondError(w, http.StatusBadRequest, "symbols query parameter is required")
		return
	}

	var quotes []feed.Quote
	for _, symbol := range strings.Split(symbolsParam, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}
		quote, err := s.provider.GetQuote(r.Context(), symbol)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", symbol).Error("Failed to fetch quote")
			s.respondError(w, http.StatusBadGateway, "Failed to fetch quotes")
			return
		}
		quotes = append(quotes, *quote)
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"quotes": quotes})
}

// exposureRecords keeps only contracts that carry greeks, matching how the
// analysis treats chains with partial greek coverage.
func exposureRecords(options []feed.Option) []exposure.Record {
	records := make([]exposure.Record, 0, len(options))
	for _, o := range options {
		if o.Greeks == nil {
			continue
		}
		side := chain.Side(o.OptionType)
		if side != chain.Call && side != chain.Put {
			continue
		}
		records = append(records, exposure.Record{
			Strike:       o.Strike,
			Side:         side,
			Gamma:        o.Greeks.Gamma,
			Delta:        o.Greeks.Delta,
			OpenInterest: o.OpenInterest,
		})
	}
	return records
}

func (s *Server) handleExposure(w http.ResponseWriter, r *http.Request, compute func([]exposure.Record) exposure.Profile, valueKey, totalKey string) {
	symbol := chi.URLParam(r, "symbol")

	expiration, err := s.resolveExpiration(r.Context(), symbol, r.URL.Query().Get("expiration"))
	if err != nil {
		s.logger.WithError(err).Error("Failed to resolve expiration")
		s.respondError(w, http.StatusBadGateway, "Failed to fetch expirations")
		return
	}

	options, err := s.provider.GetOptionChain(r.Context(), symbol, expiration, true)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch options chain")
		s.respondError(w, http.StatusBadGateway, "Failed to fetch options chain")
		return
	}

	records := exposureRecords(options)
	if len(records) == 0 {
		s.respondError(w, http.StatusBadGateway, "No valid options with Greeks found")
		return
	}

	profile := compute(records)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"strikes": profile.Strikes,
		valueKey:  profile.Values,
		totalKey:  profile.Total,
	})
}

func (s *Server) handleGEX(w http.ResponseWriter, r *http.Request) {
	s.handleExposure(w, r, exposure.GEX, "gex_values", "total_gex")
}

func (s *Server) handleDEX(w http.ResponseWriter, r *http.Request) {
	s.handleExposure(w, r, exposure.DEX, "dex_values", "total_dex")
}

type buildRequest struct {
	Symbol     string `json:"symbol"`
	StrategyID string `json:"strategy_id"`
	Expiration string `json:"expiration,omitempty"`
}

type buildResponse struct {
	Symbol       string        `json:"symbol"`
	StrategyID   string        `json:"strategy_id"`
	Expiration   string        `json:"expiration"`
	CurrentPrice float64       `json:"current_price"`
	Legs         []builder.Leg `json:"legs"`
	Unresolved   []int         `json:"unresolved_leg_ids,omitempty"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Symbol == "" || req.StrategyID == "" {
		s.respondError(w, http.StatusBadRequest, "symbol and strategy_id are required")
		return
	}

	tpl, ok := catalog.Lookup(req.StrategyID)
	if !ok {
		s.respondError(w, http.StatusNotFound, "Strategy not found")
		return
	}

	quote, err := s.provider.GetQuote(r.Context(), req.Symbol)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch quote")
		s.respondError(w, http.StatusBadGateway, "Failed to fetch quote")
		return
	}
	price := quote.Last
	if price <= 0 {
		price = quote.Close
	}

	expiration, err := s.resolveExpiration(r.Context(), req.Symbol, req.Expiration)
	if err != nil {
		s.logger.WithError(err).Error("Failed to resolve expiration")
		s.respondError(w, http.StatusBadGateway, "Failed to fetch expirations")
		return
	}

	options, err := s.provider.GetOptionChain(r.Context(), req.Symbol, expiration, false)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch options chain")
		s.respondError(w, http.StatusBadGateway, "Failed to fetch options chain")
		return
	}
	quotes, err := feed.Normalize(options)
	if err != nil {
		s.logger.WithError(err).Error("Malformed options chain")
		s.respondError(w, http.StatusBadGateway, "Malformed options chain")
		return
	}

	session := builder.NewSession(req.Symbol)
	if err := session.SetPrice(price); err != nil {
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := session.SelectTemplate(tpl); err != nil {
		s.logger.WithError(err).Error("Template synthesis failed")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := session.SetChain(expiration, quotes); err != nil {
		s.logger.WithError(err).Error("Chain pricing failed")
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, buildResponse{
		Symbol:       req.Symbol,
		StrategyID:   req.StrategyID,
		Expiration:   expiration,
		CurrentPrice: price,
		Legs:         session.Legs(),
		Unresolved:   session.Unresolved(),
	})
}

type pnlRequest struct {
	UnderlyingPrice float64   `json:"underlying_price"`
	Legs            []pnl.Leg `json:"legs"`
	RangePct        float64   `json:"range_pct,omitempty"`
}

func (s *Server) handleCalculatePnL(w http.ResponseWriter, r *http.Request) {
	var req pnlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rangePct := req.RangePct
	if rangePct <= 0 {
		rangePct = s.cfg.PnLRangePct
	}

	result, err := pnl.Compute(req.UnderlyingPrice, req.Legs, rangePct)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type submitTradeRequest struct {
	StrategyID string        `json:"strategy_id"`
	Symbol     string        `json:"symbol"`
	Legs       []builder.Leg `json:"legs"`
}

func (s *Server) handleSubmitTrade(w http.ResponseWriter, r *http.Request) {
	var req submitTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Symbol == "" || req.StrategyID == "" || len(req.Legs) == 0 {
		s.respondError(w, http.StatusBadRequest, "symbol, strategy_id, and legs are required")
		return
	}
	if _, ok := catalog.Lookup(req.StrategyID); !ok {
		s.respondError(w, http.StatusNotFound, "Strategy not found")
		return
	}

	trade := storage.Trade{
		ID:         uuid.New().String(),
		StrategyID: req.StrategyID,
		Symbol:     req.Symbol,
		Legs:       req.Legs,
		Status:     "simulated",
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.AddTrade(trade); err != nil {
		s.logger.WithError(err).Error("Failed to persist trade")
		s.respondError(w, http.StatusInternalServerError, "Failed to save trade")
		return
	}

	s.respondJSON(w, http.StatusOK, trade)
}

func (s *Server) handleTrades(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.Trades(0))
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	strategyID := chi.URLParam(r, "strategyID")
	tpl, ok := catalog.Lookup(strategyID)
	if !ok {
		s.respondError(w, http.StatusNotFound, "Strategy not found")
		return
	}

	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		symbol = s.cfg.DefaultSymbol
	}
	if symbol == "" {
		s.respondError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}

	start, end, err := historyWindow(q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	initialCapital := 10000.0
	if raw := q.Get("initial_capital"); raw != "" {
		if initialCapital, err = strconv.ParseFloat(raw, 64); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid initial_capital")
			return
		}
	}

	candles, err := s.provider.GetHistory(r.Context(), symbol, "daily", start, end)
	if err != nil {
		s.logger.WithError(err).Error("Failed to fetch market data")
		s.respondError(w, http.StatusBadGateway, "Failed to fetch market data")
		return
	}
	if len(candles) == 0 {
		s.respondError(w, http.StatusBadGateway, "No historical data available for backtest period")
		return
	}

	result, err := backtest.Run(tpl, symbol, candles, initialCapital)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.AddBacktestResult(*result); err != nil {
		s.logger.WithError(err).Error("Failed to persist backtest result")
		s.respondError(w, http.StatusInternalServerError, "Failed to save backtest result")
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleBacktestResults(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.store.BacktestResults(0))
}
