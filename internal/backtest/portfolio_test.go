package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioAddPositionBlendsAverageCost(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPortfolio(cfg)

	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	p.AddPosition("AAPL", 2, 100, day1)
	pos := p.Positions["AAPL"]
	require.NotNil(t, pos)
	assert.Equal(t, 2.0, pos.Quantity)
	assert.Equal(t, 100.0, pos.AvgCost)
	assert.Equal(t, 20000.0, pos.MarketValue)

	p.AddPosition("AAPL", 1, 130, day2)
	pos = p.Positions["AAPL"]
	assert.Equal(t, 3.0, pos.Quantity)
	assert.InDelta(t, 110.0, pos.AvgCost, 1e-9)
	assert.Equal(t, 39000.0, pos.MarketValue)
}

func TestPortfolioAvailableEnforcesT1Settlement(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPortfolio(cfg)

	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	day3 := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	p.AddPosition("AAPL", 2, 100, day1)
	p.AddPosition("AAPL", 1, 130, day2)

	assert.Equal(t, 2.0, p.Available("AAPL", day2), "day2's own buy is withheld")

	p.SweepT1(day2)
	assert.Equal(t, 2.0, p.Available("AAPL", day2), "day2's buy record survives a sweep to its own date")

	p.SweepT1(day3)
	assert.Equal(t, 3.0, p.Available("AAPL", day3), "day2's buy record is dropped once day3 arrives")
}

func TestPortfolioAvailableT0SymbolIgnoresSettlement(t *testing.T) {
	cfg := DefaultConfig()
	cfg.T0Symbols = []string{"ETF"}
	p := NewPortfolio(cfg)

	today := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.AddPosition("ETF", 5, 50, today)

	assert.Equal(t, 5.0, p.Available("ETF", today))
	assert.Empty(t, p.BuyRecords["ETF"], "T0 symbols never accrue buy records")
}

func TestPortfolioReducePosition(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPortfolio(cfg)
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.AddPosition("AAPL", 3, 110, day1)

	released := p.ReducePosition("AAPL", 2, 140)
	assert.Equal(t, 28000.0, released)

	pos := p.Positions["AAPL"]
	require.NotNil(t, pos)
	assert.Equal(t, 1.0, pos.Quantity)
	assert.InDelta(t, 110.0, pos.AvgCost, 1e-9, "avg cost is unchanged by a partial sell")
	assert.Equal(t, 14000.0, pos.MarketValue)

	released = p.ReducePosition("AAPL", 1, 150)
	assert.Equal(t, 15000.0, released)
	_, stillOpen := p.Positions["AAPL"]
	assert.False(t, stillOpen, "position is removed once fully sold")
}

func TestPortfolioReducePositionRejectsOversell(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPortfolio(cfg)
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.AddPosition("AAPL", 1, 100, day1)

	released := p.ReducePosition("AAPL", 2, 100)
	assert.Equal(t, 0.0, released)
	assert.Equal(t, 1.0, p.Positions["AAPL"].Quantity, "caller's job to pre-validate; position is untouched")
}

func TestPortfolioEquity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cash = 10000
	p := NewPortfolio(cfg)
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.AddPosition("AAPL", 1, 100, day1)
	p.Cash -= 1 * 100 * 100

	equity := p.Equity(map[string]float64{"AAPL": 120})
	assert.Equal(t, 0.0+12000.0, equity)

	// Falls back to the stored MarketValue when no quote is supplied.
	equity = p.Equity(map[string]float64{})
	assert.Equal(t, 0.0+10000.0, equity)
}
