package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bikeshrana/pi5-trading-system-go/internal/backtest"
	"github.com/bikeshrana/pi5-trading-system-go/internal/config"
	"github.com/bikeshrana/pi5-trading-system-go/internal/metrics"
	"github.com/bikeshrana/pi5-trading-system-go/internal/store"
	"github.com/bikeshrana/pi5-trading-system-go/internal/strategies"
)

// RunsHandler serves the /runs collection: submit a run, fetch a result,
// or stream per-bar progress over a WebSocket.
type RunsHandler struct {
	store    *store.Store
	metrics  *metrics.RunMetrics
	defaults *config.BacktestConfig
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewRunsHandler builds a handler backed by st, instrumented with m, using
// defaults for any run request field left unset.
func NewRunsHandler(st *store.Store, m *metrics.RunMetrics, defaults *config.BacktestConfig, logger zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		store:    st,
		metrics:  m,
		defaults: defaults,
		logger:   logger.With().Str("component", "runs_handler").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RunRequest is the POST /runs body: a symbol, CSV-shaped bar rows
// (test/demo data entry — production market-data loading is out of scope),
// and the strategy parameters to run.
type RunRequest struct {
	Symbol    string            `json:"symbol"`
	Bars      []backtest.BarRow `json:"bars"`
	Benchmark []backtest.BarRow `json:"benchmark,omitempty"`
	Capital   float64           `json:"capital,omitempty"`
	Strategy  StrategyParams    `json:"strategy"`
}

// StrategyParams selects and configures one of the built-in strategies.
// Name is "sma" (default) or "bollinger"; unused fields for the chosen
// strategy are ignored.
type StrategyParams struct {
	Name string `json:"name,omitempty"`

	// sma
	ShortPeriod         int     `json:"short_period,omitempty"`
	LongPeriod          int     `json:"long_period,omitempty"`
	RSIPeriod           int     `json:"rsi_period,omitempty"`
	OverboughtThreshold float64 `json:"overbought_threshold,omitempty"`

	// bollinger
	BandPeriod      int     `json:"band_period,omitempty"`
	BandStdDev      float64 `json:"band_std_dev,omitempty"`
	ATRPeriod       int     `json:"atr_period,omitempty"`
	MACDFast        int     `json:"macd_fast,omitempty"`
	MACDSlow        int     `json:"macd_slow,omitempty"`
	MACDSignal      int     `json:"macd_signal,omitempty"`
	RiskPerTrade    float64 `json:"risk_per_trade,omitempty"`
	VolatilityLimit float64 `json:"volatility_limit,omitempty"`
}

// buildStrategy constructs the strategy named by p.Name (default "sma").
func buildStrategy(symbol string, p StrategyParams, logger zerolog.Logger) (backtest.Strategy, error) {
	switch p.Name {
	case "", "sma":
		return strategies.NewSMACrossover([]string{symbol}, p.ShortPeriod, p.LongPeriod, p.RSIPeriod, p.OverboughtThreshold, logger), nil
	case "bollinger":
		return strategies.NewBollingerBreakout([]string{symbol}, p.BandPeriod, p.BandStdDev, p.ATRPeriod, p.MACDFast, p.MACDSlow, p.MACDSignal, p.RiskPerTrade, p.VolatilityLimit, logger), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q: expected sma or bollinger", p.Name)
	}
}

// indicatorRegistrar is implemented by strategies that register builtin
// timeline-precomputed indicators ahead of a run.
type indicatorRegistrar interface {
	Register(ind *backtest.IndicatorEngine) error
}

// buildDriver constructs a Driver from req. wrap, if non-nil, lets the
// caller substitute the strategy passed to NewDriver (used by Stream to
// inject progress reporting) while still registering the real strategy's
// indicators.
func (h *RunsHandler) buildDriver(req RunRequest, wrap func(backtest.Strategy) backtest.Strategy) (*backtest.Driver, error) {
	btCfg := backtest.DefaultConfig()
	if h.defaults != nil {
		cash, commission, minCommission, slippage, stampTax := h.defaults.Defaults()
		btCfg.Cash = cash
		btCfg.CommissionRate = commission
		btCfg.MinCommission = minCommission
		btCfg.SlippageBps = slippage
		btCfg.StampTaxRate = stampTax
	}
	if req.Capital > 0 {
		btCfg.Cash = req.Capital
	}
	if err := btCfg.Validate(); err != nil {
		return nil, err
	}

	if err := backtest.ValidateSymbol(req.Symbol); err != nil {
		return nil, err
	}

	bars, err := backtest.ParseBars(req.Bars)
	if err != nil {
		return nil, err
	}
	benchRows := req.Benchmark
	if len(benchRows) == 0 {
		benchRows = req.Bars
	}
	benchBars, err := backtest.ParseBars(benchRows)
	if err != nil {
		return nil, err
	}

	strat, err := buildStrategy(req.Symbol, req.Strategy, h.logger)
	if err != nil {
		return nil, err
	}

	var driven backtest.Strategy = strat
	if wrap != nil {
		driven = wrap(strat)
	}

	driver := backtest.NewDriver(btCfg, driven, h.logger)
	driver.Feed().AddMarketData(req.Symbol, bars)
	driver.Feed().SetBenchmark(benchBars)
	if registrar, ok := strat.(indicatorRegistrar); ok {
		if err := registrar.Register(driver.Indicators()); err != nil {
			return nil, err
		}
	}

	return driver, nil
}

// Create runs a backtest synchronously and persists its result.
func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	driver, err := h.buildDriver(req, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runID := uuid.New().String()
	ctx := r.Context()
	if err := h.store.CreateRun(ctx, runID); err != nil {
		h.metrics.StoreErrors.WithLabelValues("create").Inc()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	start := time.Now()
	result, err := driver.Run()
	h.metrics.RunDuration.Observe(time.Since(start).Seconds())
	h.metrics.BarsProcessedTotal.Add(float64(len(result.EquityCurve)))

	if err != nil {
		h.metrics.RunsTotal.WithLabelValues("failed").Inc()
		if ferr := h.store.FailRun(ctx, runID, err); ferr != nil {
			h.logger.Error().Err(ferr).Msg("failed to record run failure")
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	h.metrics.RunsTotal.WithLabelValues("completed").Inc()
	for _, f := range result.Fills {
		h.metrics.FillsTotal.WithLabelValues(string(f.Side)).Inc()
	}

	if err := h.store.CompleteRun(ctx, runID, result); err != nil {
		h.metrics.StoreErrors.WithLabelValues("complete").Inc()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info().Str("run_id", runID).Str("symbol", req.Symbol).Int("fills", len(result.Fills)).Msg("run completed")
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": runID, "result": result})
}

// Get fetches a persisted run by ID.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	rec, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// progressMessage is one frame streamed per driven bar.
type progressMessage struct {
	Type     string    `json:"type"`
	BarIndex int       `json:"bar_index,omitempty"`
	Datetime time.Time `json:"datetime,omitempty"`
	Equity   float64   `json:"equity,omitempty"`
}

// streamingStrategy wraps a backtest.Strategy, pushing a progress message
// over conn after every on_bar callback.
type streamingStrategy struct {
	backtest.Strategy
	conn *websocket.Conn
	i    int
}

func (s *streamingStrategy) OnBar(ctx *backtest.Context) error {
	if err := s.Strategy.OnBar(ctx); err != nil {
		return err
	}
	now, _ := ctx.Now()
	msg := progressMessage{Type: "bar", BarIndex: s.i, Datetime: now}
	s.i++
	return s.conn.WriteJSON(msg)
}

// Stream upgrades to a WebSocket connection and streams one JSON progress
// message per driven bar while the run executes, then a final "done"
// message carrying the result.
func (h *RunsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade websocket connection")
		return
	}
	defer conn.Close()

	var req RunRequest
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(map[string]string{"type": "error", "message": "invalid request: " + err.Error()})
		return
	}

	driver, err := h.buildDriver(req, func(strat backtest.Strategy) backtest.Strategy {
		return &streamingStrategy{Strategy: strat, conn: conn}
	})
	if err != nil {
		conn.WriteJSON(map[string]string{"type": "error", "message": err.Error()})
		return
	}

	result, err := driver.Run()
	if err != nil {
		conn.WriteJSON(map[string]string{"type": "error", "message": err.Error()})
		return
	}

	conn.WriteJSON(map[string]interface{}{"type": "done", "result": result})
}
