package backtest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutionEngine(cfg *Config) *ExecutionEngine {
	return NewExecutionEngine(cfg, zerolog.Nop())
}

func TestExecuteAllFillsBuyOrder(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPortfolio(cfg)
	e := newTestExecutionEngine(cfg)

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	e.AddOrder(Order{Symbol: "AAPL", Side: Buy, QuantityType: QuantityCount, Quantity: 5, Timestamp: day})

	bars := map[string]Bar{"AAPL": {Datetime: day, Close: 100}}
	fills := e.ExecuteAll(bars, p)

	require.Len(t, fills, 1)
	fill := fills[0]
	assert.Equal(t, Buy, fill.Side)
	assert.Equal(t, 5.0, fill.Quantity)
	assert.InDelta(t, 100.01, fill.Price, 1e-9)
	assert.InDelta(t, 25.0025, fill.Commission, 1e-9)

	assert.InDelta(t, 49969.9975, p.Cash, 1e-6)
	pos := p.Positions["AAPL"]
	require.NotNil(t, pos)
	assert.Equal(t, 5.0, pos.Quantity)
	assert.InDelta(t, 100.01, pos.AvgCost, 1e-9)
}

func TestExecuteAllOrdersSellsBeforeBuys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cash = 1000
	p := NewPortfolio(cfg)
	e := newTestExecutionEngine(cfg)

	day0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p.AddPosition("MSFT", 5, 50, day0)

	// Queued Buy-before-Sell; ExecuteAll must still settle the Sell first so
	// its proceeds are available to fund the Buy within the same batch.
	e.AddOrder(Order{Symbol: "AAPL", Side: Buy, QuantityType: QuantityCount, Quantity: 2, Timestamp: day1})
	e.AddOrder(Order{Symbol: "MSFT", Side: Sell, QuantityType: QuantityCount, Quantity: 5, Timestamp: day1})

	bars := map[string]Bar{
		"AAPL": {Datetime: day1, Close: 100},
		"MSFT": {Datetime: day1, Close: 60},
	}
	fills := e.ExecuteAll(bars, p)

	require.Len(t, fills, 2)
	assert.Equal(t, Sell, fills[0].Side, "sells are filled before buys regardless of queue order")
	assert.Equal(t, "MSFT", fills[0].Symbol)
	assert.Equal(t, Buy, fills[1].Side)
	assert.Equal(t, "AAPL", fills[1].Symbol)

	_, stillHeld := p.Positions["MSFT"]
	assert.False(t, stillHeld, "the full MSFT position was sold")

	aapl := p.Positions["AAPL"]
	require.NotNil(t, aapl)
	assert.Equal(t, 2.0, aapl.Quantity)

	assert.InDelta(t, 10940.0035, p.Cash, 1e-4)
}

func TestExecuteAllRejectsInsufficientCash(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cash = 100
	p := NewPortfolio(cfg)
	e := newTestExecutionEngine(cfg)

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	e.AddOrder(Order{Symbol: "AAPL", Side: Buy, QuantityType: QuantityCount, Quantity: 5, Timestamp: day})

	bars := map[string]Bar{"AAPL": {Datetime: day, Close: 100}}
	fills := e.ExecuteAll(bars, p)

	assert.Empty(t, fills)
	assert.Equal(t, 100.0, p.Cash)
	assert.Nil(t, p.Positions["AAPL"])
}

func TestExecuteAllRejectsSameDayBuyAvailability(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPortfolio(cfg)
	e := newTestExecutionEngine(cfg)

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	p.AddPosition("AAPL", 5, 100, day)

	e.AddOrder(Order{Symbol: "AAPL", Side: Sell, QuantityType: QuantityCount, Quantity: 5, Timestamp: day})

	bars := map[string]Bar{"AAPL": {Datetime: day, Close: 100}}
	fills := e.ExecuteAll(bars, p)

	assert.Empty(t, fills, "shares bought on day also cannot be sold until T+1")
	assert.Equal(t, 5.0, p.Positions["AAPL"].Quantity)
}

func TestExecuteAllRejectsNoCurrentBar(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPortfolio(cfg)
	e := newTestExecutionEngine(cfg)

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	e.AddOrder(Order{Symbol: "GOOG", Side: Buy, QuantityType: QuantityCount, Quantity: 1, Timestamp: day})

	fills := e.ExecuteAll(map[string]Bar{}, p)
	assert.Empty(t, fills)
}

func TestExecuteAllRejectsInvalidSide(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPortfolio(cfg)
	e := newTestExecutionEngine(cfg)

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	e.AddOrder(Order{Symbol: "AAPL", Side: "short", QuantityType: QuantityCount, Quantity: 1, Timestamp: day})

	fills := e.ExecuteAll(map[string]Bar{"AAPL": {Datetime: day, Close: 100}}, p)
	assert.Empty(t, fills, "an order with neither Buy nor Sell side is rejected, not filled")
}

func TestClearOrdersDropsQueue(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPortfolio(cfg)
	e := newTestExecutionEngine(cfg)

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	e.AddOrder(Order{Symbol: "AAPL", Side: Buy, QuantityType: QuantityCount, Quantity: 1, Timestamp: day})
	e.ClearOrders()

	fills := e.ExecuteAll(map[string]Bar{"AAPL": {Datetime: day, Close: 100}}, p)
	assert.Empty(t, fills)
}
