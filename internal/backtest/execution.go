package backtest

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
)

// ExecutionEngine queues orders from strategy callbacks and, at the start
// of the next bar, matches them against that bar's close. Sells are
// matched before Buys so a same-tick rebalance can free cash for a
// co-scheduled purchase.
type ExecutionEngine struct {
	logger zerolog.Logger
	config *Config
	orders []Order
}

// NewExecutionEngine builds an engine using the run's commission, slippage,
// and stamp tax parameters.
func NewExecutionEngine(cfg *Config, logger zerolog.Logger) *ExecutionEngine {
	return &ExecutionEngine{
		logger: logger.With().Str("component", "execution_engine").Logger(),
		config: cfg,
	}
}

// AddOrder queues an order for the next execution batch.
func (e *ExecutionEngine) AddOrder(o Order) {
	e.orders = append(e.orders, o)
}

// ClearOrders drops any queued orders without executing them.
func (e *ExecutionEngine) ClearOrders() {
	e.orders = nil
}

// ExecuteAll partitions the queued orders into Sells then Buys (stable
// within each group), executes Sells against currentBars, then Buys, and
// clears the queue regardless of individual outcomes. The returned Fill
// order is deterministic given identical queued orders and current bars.
func (e *ExecutionEngine) ExecuteAll(currentBars map[string]Bar, portfolio *Portfolio) []Fill {
	ordered := make([]Order, len(e.orders))
	copy(ordered, e.orders)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Side == Sell && ordered[j].Side == Buy
	})

	var fills []Fill
	for _, o := range ordered {
		if o.Side != Sell {
			continue
		}
		if fill, ok := e.executeOrder(o, currentBars, portfolio); ok {
			fills = append(fills, fill)
		}
	}
	for _, o := range ordered {
		if o.Side == Sell {
			continue
		}
		// Anything that isn't a Sell (a Buy, or an invalid side) is routed
		// through executeOrder so its side guard is the single place that
		// rejects malformed orders.
		if fill, ok := e.executeOrder(o, currentBars, portfolio); ok {
			fills = append(fills, fill)
		}
	}

	e.orders = nil
	return fills
}

func (e *ExecutionEngine) executeOrder(o Order, currentBars map[string]Bar, portfolio *Portfolio) (Fill, bool) {
	if o.Side != Buy && o.Side != Sell {
		e.logger.Debug().Str("symbol", o.Symbol).Str("side", string(o.Side)).Err(ErrInvalidSide).Msg("order rejected: invalid side")
		return Fill{}, false
	}

	bar, ok := currentBars[o.Symbol]
	if !ok {
		e.logger.Debug().Str("symbol", o.Symbol).Msg("order rejected: no current bar")
		return Fill{}, false
	}

	fillPrice := e.fillPrice(o.Side, bar.Close)

	lots, err := e.lotsFor(o, fillPrice, currentBars, portfolio)
	if err != nil || lots <= 0 {
		e.logger.Debug().Str("symbol", o.Symbol).Float64("lots", lots).Msg("order rejected: non-positive computed quantity")
		return Fill{}, false
	}

	tradeAmount := lots * fillPrice * 100
	commission := e.commission(tradeAmount, o.Side)

	switch o.Side {
	case Sell:
		available := portfolio.Available(o.Symbol, o.Timestamp)
		if lots > available {
			e.logger.Debug().Str("symbol", o.Symbol).Float64("lots", lots).Float64("available", available).Msg("order rejected: insufficient availability")
			return Fill{}, false
		}
	case Buy:
		if tradeAmount+commission > portfolio.Cash {
			e.logger.Debug().Str("symbol", o.Symbol).Float64("needed", tradeAmount+commission).Float64("cash", portfolio.Cash).Msg("order rejected: insufficient cash")
			return Fill{}, false
		}
	}

	switch o.Side {
	case Buy:
		portfolio.Cash -= tradeAmount + commission
		portfolio.AddPosition(o.Symbol, lots, fillPrice, o.Timestamp)
	case Sell:
		released := portfolio.ReducePosition(o.Symbol, lots, fillPrice)
		portfolio.Cash += released - commission
	}

	fill := Fill{
		Symbol:     o.Symbol,
		Side:       o.Side,
		Quantity:   lots,
		Price:      fillPrice,
		Commission: commission,
		Timestamp:  o.Timestamp,
	}
	e.logger.Info().Str("symbol", o.Symbol).Str("side", string(o.Side)).Float64("lots", lots).Float64("price", fillPrice).Msg("order filled")
	return fill, true
}

func (e *ExecutionEngine) fillPrice(side OrderSide, basePrice float64) float64 {
	switch side {
	case Buy:
		return basePrice * (1 + e.config.SlippageBps/10000.0)
	case Sell:
		return basePrice * (1 - e.config.SlippageBps/10000.0)
	default:
		return basePrice
	}
}

func roundToLot(shares float64) float64 {
	return math.Floor(shares / 100.0)
}

func (e *ExecutionEngine) lotsFor(o Order, fillPrice float64, currentBars map[string]Bar, portfolio *Portfolio) (float64, error) {
	switch o.QuantityType {
	case QuantityCount:
		return o.Quantity, nil
	case QuantityCash:
		return roundToLot(o.Quantity / fillPrice), nil
	case QuantityWeight:
		prices := make(map[string]float64, len(currentBars))
		for symbol, bar := range currentBars {
			prices[symbol] = bar.Close
		}
		equity := portfolio.Equity(prices)
		target := equity * o.Quantity
		var currentValue float64
		if pos, ok := portfolio.Positions[o.Symbol]; ok {
			currentValue = pos.MarketValue
		}
		delta := target - currentValue
		return roundToLot(delta / fillPrice), nil
	default:
		return 0, ErrInvalidQuantityType
	}
}

func (e *ExecutionEngine) commission(tradeAmount float64, side OrderSide) float64 {
	base := math.Max(tradeAmount*e.config.CommissionRate, e.config.MinCommission)
	if side == Sell {
		return base + tradeAmount*e.config.StampTaxRate
	}
	return base
}
