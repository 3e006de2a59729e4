package backtest

import (
	"time"
)

// OrderSide is the direction of an order or fill.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// QuantityType controls how Order.Quantity is interpreted.
type QuantityType string

const (
	// QuantityCount is a number of lots (1 lot = 100 shares).
	QuantityCount QuantityType = "COUNT"
	// QuantityCash is an amount of cash to spend, converted to lots at fill price.
	QuantityCash QuantityType = "CASH"
	// QuantityWeight is a target portfolio weight in [0, 1], converted to a
	// delta against the symbol's current market value.
	QuantityWeight QuantityType = "WEIGHT"
)

// Bar is an OHLCV record for a symbol at a discrete instant, UTC.
type Bar struct {
	Datetime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Order is queued by a strategy during bar i and executed at the start of
// bar i+1 against that bar's close.
type Order struct {
	Symbol       string
	Side         OrderSide
	QuantityType QuantityType
	Quantity     float64
	Timestamp    time.Time
}

// Fill is a realized execution, produced only by ExecutionEngine.
// Quantity is denominated in lots (1 lot = 100 shares).
type Fill struct {
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	Timestamp  time.Time `json:"timestamp"`
}

// Position is an open holding in a single symbol, denominated in lots.
// AvgCost is per-share so that AvgCost * Quantity * 100 is the cost basis.
type Position struct {
	Symbol      string
	Quantity    float64
	AvgCost     float64
	MarketValue float64
}

// BuyRecord is appended on every Buy fill for symbols outside the T+0 set,
// and used to compute the same-day-unavailable portion of a position.
type BuyRecord struct {
	Date     time.Time // truncated to the calendar day, UTC
	Quantity float64
	Price    float64
}

// EquityPoint is one sample of an equity or benchmark curve.
type EquityPoint struct {
	Datetime time.Time `json:"datetime"`
	Equity   float64   `json:"equity"`
}

// DrawdownPeriod is the peak-to-trough window realizing a maximum drawdown.
// Start and End are zero when the curve never entered a drawdown.
type DrawdownPeriod struct {
	Drawdown float64   `json:"drawdown"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// PerformanceStats summarizes a completed run's equity curve, optionally
// mirrored over a benchmark curve.
type PerformanceStats struct {
	TotalReturn      float64        `json:"total_return"`
	AnnualizedReturn float64        `json:"annualized_return"`
	MaxDrawdown      DrawdownPeriod `json:"max_drawdown"`
	SharpeRatio      float64        `json:"sharpe_ratio"`
	WinRate          float64        `json:"win_rate"`
	ProfitLossRatio  float64        `json:"profit_loss_ratio"`
	OpenCount        int            `json:"open_count"`
	CloseCount       int            `json:"close_count"`

	// Benchmark mirrors the same statistics computed over the benchmark
	// curve. Nil when no benchmark data was supplied.
	Benchmark *PerformanceStats `json:"benchmark,omitempty"`
}

// Result is what a completed Driver.Run returns: the statistics and the
// raw equity curve driving them.
type Result struct {
	Stats       PerformanceStats `json:"stats"`
	EquityCurve []EquityPoint    `json:"equity_curve"`
	Fills       []Fill           `json:"fills"`
}
