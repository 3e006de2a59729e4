package strategies

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshrana/pi5-trading-system-go/internal/backtest"
)

func barsOn(closes []float64) []backtest.Bar {
	bars := make([]backtest.Bar, len(closes))
	for i, c := range closes {
		bars[i] = backtest.Bar{
			Datetime: time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC),
			Open:     c, High: c, Low: c, Close: c, Volume: 1000,
		}
	}
	return bars
}

func TestSMACrossoverGoldenCrossBuysAndDeathCrossSells(t *testing.T) {
	// A flat run, then a sharp rally pushes the short SMA above the long
	// one, then a sharp decline reverses it. The RSI guard is disabled
	// (threshold 100: RSI never exceeds 100, and the all-gains rally
	// saturates at exactly 100) so the crossover mechanics are isolated.
	closes := []float64{10, 10, 10, 20, 30, 40, 20, 10, 5, 5}
	symbol := "AAPL"
	strat := NewSMACrossover([]string{symbol}, 2, 3, 2, 100, zerolog.Nop())

	cfg := backtest.DefaultConfig()
	cfg.SlippageBps = 0
	d := backtest.NewDriver(cfg, strat, zerolog.Nop())
	require.NoError(t, strat.Register(d.Indicators()))

	bars := barsOn(closes)
	d.Feed().AddMarketData(symbol, bars)
	d.Feed().SetBenchmark(bars)

	result, err := d.Run()
	require.NoError(t, err)

	require.NotEmpty(t, result.Fills, "the rally-then-reversal should trigger at least one crossover trade")
	assert.Equal(t, backtest.Buy, result.Fills[0].Side, "the rally produces a golden cross buy before any sell")
}

func TestSMACrossoverRegisterAddsBothSeries(t *testing.T) {
	strat := NewSMACrossover([]string{"AAPL"}, 5, 10, 14, 70, zerolog.Nop())
	ind := backtest.NewIndicatorEngine(zerolog.Nop())
	require.NoError(t, strat.Register(ind))

	assert.True(t, ind.HasIndicators())
	assert.Equal(t, "sma_5", strat.ShortName())
	assert.Equal(t, "sma_10", strat.LongName())
}

func TestNewSMACrossoverAppliesDefaults(t *testing.T) {
	strat := NewSMACrossover([]string{"AAPL"}, 0, 0, 14, 0, zerolog.Nop())
	assert.Equal(t, 10, strat.ShortPeriod)
	assert.Equal(t, 30, strat.LongPeriod)
	assert.Equal(t, 70.0, strat.OverboughtThreshold)
}
