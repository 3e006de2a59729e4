package strategies

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshrana/pi5-trading-system-go/internal/backtest"
)

func TestNewBollingerBreakoutAppliesDefaults(t *testing.T) {
	strat := NewBollingerBreakout([]string{"AAPL"}, 0, 0, 0, 12, 26, 9, 0, 0, zerolog.Nop())
	assert.Equal(t, 20, strat.BandPeriod)
	assert.Equal(t, 2.0, strat.BandStdDev)
	assert.Equal(t, 14, strat.ATRPeriod)
	assert.Equal(t, 0.01, strat.RiskPerTrade)
	assert.Equal(t, 3.0, strat.VolatilityLimit)
}

func TestBollingerBreakoutRunsFullLifecycleWithoutError(t *testing.T) {
	symbol := "AAPL"
	strat := NewBollingerBreakout([]string{symbol}, 3, 2.0, 3, 2, 4, 2, 0.02, 5.0, zerolog.Nop())

	cfg := backtest.DefaultConfig()
	d := backtest.NewDriver(cfg, strat, zerolog.Nop())

	closes := []float64{
		50, 50, 50, 48, 30, 25, 20, 35, 50, 60,
		70, 80, 90, 90, 90, 90, 90, 90, 90, 90,
	}
	bars := barsOn(closes)
	d.Feed().AddMarketData(symbol, bars)
	d.Feed().SetBenchmark(bars)

	result, err := d.Run()
	require.NoError(t, err)
	assert.Len(t, result.EquityCurve, len(closes))

	// Every fill produced must be attributable to the strategy's own sizing
	// and availability rules; a sell can never exceed what a prior buy made
	// available.
	var openLots float64
	for _, f := range result.Fills {
		switch f.Side {
		case backtest.Buy:
			openLots += f.Quantity
		case backtest.Sell:
			assert.LessOrEqual(t, f.Quantity, openLots)
			openLots -= f.Quantity
		}
	}
}

func TestBollingerBreakoutHasNoIndicatorRegistrar(t *testing.T) {
	strat := NewBollingerBreakout([]string{"AAPL"}, 20, 2.0, 14, 12, 26, 9, 0.01, 3.0, zerolog.Nop())
	_, ok := interface{}(strat).(interface {
		Register(ind *backtest.IndicatorEngine) error
	})
	assert.False(t, ok, "BollingerBreakout drives all its indicators as streaming state, not builtin series")
}
