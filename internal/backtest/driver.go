package backtest

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Strategy is the narrow callback surface a backtest driver invokes. The
// engine never holds a mutable reference into a strategy; strategies may
// only affect core state through Context.Order.
type Strategy interface {
	OnStart(ctx *Context) error
	OnBar(ctx *Context) error
	OnTrade(fill Fill, ctx *Context) error
	OnStop(ctx *Context) error
}

// BaseStrategy gives strategy implementations no-op defaults for every
// callback so they can override only the ones they need.
type BaseStrategy struct{}

func (BaseStrategy) OnStart(*Context) error         { return nil }
func (BaseStrategy) OnBar(*Context) error            { return nil }
func (BaseStrategy) OnTrade(Fill, *Context) error    { return nil }
func (BaseStrategy) OnStop(*Context) error           { return nil }

// PositionView is the read-only position snapshot exposed to a strategy.
type PositionView struct {
	Symbol      string
	Quantity    float64
	Available   float64
	AvgCost     float64
	MarketValue float64
}

// Context exposes narrow, read-only operations on market, indicator, and
// portfolio state to a running strategy, plus the single Order command.
// Strategies hold no mutable references into the core; every query here
// returns a value, never a pointer into engine-owned state.
type Context struct {
	feed       *DataFeed
	indicators *IndicatorEngine
	portfolio  *Portfolio
	executor   *ExecutionEngine
}

// Now returns the current timeline instant.
func (c *Context) Now() (time.Time, bool) {
	return c.feed.CurrentDatetime()
}

// Bar returns the current bar for symbol, if tradable.
func (c *Context) Bar(symbol string) (Bar, bool) {
	return c.feed.CurrentBar(symbol)
}

// History returns the count most recent bars of symbol, all-or-nothing.
func (c *Context) History(symbol string, count int) []Bar {
	return c.feed.History(symbol, count)
}

// Indicator returns a single indicator value for symbol at the current
// step.
func (c *Context) Indicator(name, symbol string) (float64, bool) {
	return c.indicators.Value(name, symbol)
}

// IndicatorWindow returns the last count values of an indicator for symbol.
func (c *Context) IndicatorWindow(name, symbol string, count int) []float64 {
	return c.indicators.Window(name, symbol, count)
}

// Cash returns current cash on hand.
func (c *Context) Cash() float64 {
	return c.portfolio.Cash
}

// Position returns a read-only snapshot of symbol's position.
func (c *Context) Position(symbol string) (PositionView, bool) {
	pos, ok := c.portfolio.Positions[symbol]
	if !ok {
		return PositionView{}, false
	}
	now, _ := c.feed.CurrentDatetime()
	return PositionView{
		Symbol:      pos.Symbol,
		Quantity:    pos.Quantity,
		Available:   c.portfolio.Available(symbol, now),
		AvgCost:     pos.AvgCost,
		MarketValue: pos.MarketValue,
	}, true
}

// Order queues an order for execution against the next bar.
func (c *Context) Order(symbol string, side OrderSide, quantity float64, qtyType QuantityType) {
	now, _ := c.feed.CurrentDatetime()
	c.executor.AddOrder(Order{
		Symbol:       symbol,
		Side:         side,
		QuantityType: qtyType,
		Quantity:     quantity,
		Timestamp:    now,
	})
}

// Driver runs the per-bar loop: execute queued orders, invoke the strategy,
// record equity, then advance the timeline.
type Driver struct {
	logger     zerolog.Logger
	config     *Config
	feed       *DataFeed
	indicators *IndicatorEngine
	portfolio  *Portfolio
	executor   *ExecutionEngine
	metrics    *MetricsRecorder
	strategy   Strategy

	initialBenchmarkClose float64
}

// NewDriver wires the kernel components for a single run.
func NewDriver(cfg *Config, strategy Strategy, logger zerolog.Logger) *Driver {
	feed := NewDataFeed(logger)
	return &Driver{
		logger:     logger.With().Str("component", "driver").Logger(),
		config:     cfg,
		feed:       feed,
		indicators: NewIndicatorEngine(logger),
		portfolio:  NewPortfolio(cfg),
		executor:   NewExecutionEngine(cfg, logger),
		metrics:    NewMetricsRecorder(),
		strategy:   strategy,
	}
}

// Feed exposes the driver's DataFeed so a caller can load market data
// before Run.
func (d *Driver) Feed() *DataFeed { return d.feed }

// Indicators exposes the driver's IndicatorEngine for registrations
// performed inside OnStart.
func (d *Driver) Indicators() *IndicatorEngine { return d.indicators }

func (d *Driver) context() *Context {
	return &Context{feed: d.feed, indicators: d.indicators, portfolio: d.portfolio, executor: d.executor}
}

// Run executes the full lifecycle: on_start, indicator precomputation,
// reset, the per-bar loop, then on_stop. Returns the run's PerformanceStats
// and equity curve.
func (d *Driver) Run() (Result, error) {
	runID := uuid.New()
	log := d.logger.With().Str("run_id", runID.String()).Logger()
	log.Info().Msg("backtest run starting")

	if d.feed.Len() == 0 {
		return Result{}, ErrNoBenchmark
	}

	ctx := d.context()
	if err := d.strategy.OnStart(ctx); err != nil {
		return Result{}, err
	}

	if d.indicators.HasIndicators() {
		if err := d.indicators.PrecomputeAll(d.feed); err != nil {
			return Result{}, err
		}
	}

	d.feed.Reset()
	d.indicators.UpdateIndex(d.feed.CurrentIndex())

	if bar, ok := d.feed.InitialBenchmarkBar(); ok {
		d.initialBenchmarkClose = bar.Close
	}

	barsDriven := 0
	for d.feed.HasNext() {
		if err := d.step(ctx); err != nil {
			return Result{}, err
		}
		barsDriven++
	}

	if err := d.strategy.OnStop(ctx); err != nil {
		return Result{}, err
	}

	log.Info().Int("bars_driven", barsDriven).Msg("backtest run complete")

	return Result{
		Stats:       d.metrics.Stats(),
		EquityCurve: d.metrics.EquityCurve(),
		Fills:       d.metrics.Fills(),
	}, nil
}

// step drives a single timeline instant: execute, callback, record, then
// advance. Orders submitted from on_bar are never matched against the same
// bar; ExecutionEngine only sees orders queued up to this point, which were
// all enqueued during the previous bar's on_bar.
func (d *Driver) step(ctx *Context) error {
	currentBars := d.feed.CurrentBars()

	fills := d.executor.ExecuteAll(currentBars, d.portfolio)
	for _, f := range fills {
		d.metrics.RecordFill(f)
	}

	if err := d.strategy.OnBar(ctx); err != nil {
		return err
	}
	for _, f := range fills {
		if err := d.strategy.OnTrade(f, ctx); err != nil {
			return err
		}
	}

	now, ok := d.feed.CurrentDatetime()
	if ok {
		prices := make(map[string]float64, len(currentBars))
		for symbol, bar := range currentBars {
			prices[symbol] = bar.Close
		}
		d.metrics.RecordEquity(now, d.portfolio.Equity(prices))

		if bench, ok := d.feed.CurrentBenchmarkBar(); ok && d.initialBenchmarkClose > 0 {
			benchEquity := d.config.Cash * (bench.Close / d.initialBenchmarkClose)
			d.metrics.RecordBenchmark(now, benchEquity)
		}
	}

	d.feed.Next()
	if nextDate, ok := d.feed.CurrentDatetime(); ok {
		d.portfolio.SweepT1(nextDate)
	}
	d.indicators.UpdateIndex(d.feed.CurrentIndex())

	return nil
}
