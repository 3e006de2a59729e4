package indicators

import (
	"fmt"
	"time"

	"github.com/bikeshrana/pi5-trading-system-go/internal/backtest"
)

// BollingerBands tracks a middle SMA band plus upper/lower bands stdDev
// standard deviations away. BollingerBreakout treats a close below the
// lower band (with MACD confirming momentum) as a mean-reversion entry,
// and a close back above the middle band as the exit.
type BollingerBands struct {
	period int
	stdDev float64
	name   string

	prices []float64

	middle float64
	upper  float64
	lower  float64

	isReady bool
}

// NewBollingerBands creates a Bollinger Bands indicator (defaults 20, 2.0).
func NewBollingerBands(period int, stdDev float64) *BollingerBands {
	if period < 2 {
		period = 20
	}
	if stdDev <= 0 {
		stdDev = 2.0
	}

	return &BollingerBands{
		period: period,
		stdDev: stdDev,
		name:   fmt.Sprintf("BB(%d,%.1f)", period, stdDev),
		prices: make([]float64, 0, period),
	}
}

// Update folds price into the band calculation.
func (bb *BollingerBands) Update(price float64, at time.Time) error {
	if price <= 0 {
		return fmt.Errorf("price must be positive")
	}

	bb.prices = append(bb.prices, price)
	if len(bb.prices) > bb.period {
		bb.prices = bb.prices[1:]
	}

	if len(bb.prices) < bb.period {
		bb.isReady = false
		return nil
	}

	bb.middle = SMA(bb.prices)
	dev := StdDev(bb.prices, bb.middle)
	bb.upper = bb.middle + (bb.stdDev * dev)
	bb.lower = bb.middle - (bb.stdDev * dev)
	bb.isReady = true

	return nil
}

// UpdateBar feeds the bar's close into Update.
func (bb *BollingerBands) UpdateBar(bar backtest.Bar) error {
	return bb.Update(bar.Close, bar.Datetime)
}

// Values returns [lower, middle, upper].
func (bb *BollingerBands) Values() []float64 {
	return []float64{bb.lower, bb.middle, bb.upper}
}

// Middle returns the middle band (SMA).
func (bb *BollingerBands) Middle() float64 {
	return bb.middle
}

// Lower returns the lower band.
func (bb *BollingerBands) Lower() float64 {
	return bb.lower
}

// IsBelowLowerBand reports whether price has broken below the lower band.
func (bb *BollingerBands) IsBelowLowerBand(price float64) bool {
	return bb.isReady && price < bb.lower
}

// IsReady reports whether the band has a full window of prices.
func (bb *BollingerBands) IsReady() bool {
	return bb.isReady
}

// Reset discards accumulated prices.
func (bb *BollingerBands) Reset() {
	bb.prices = make([]float64, 0, bb.period)
	bb.middle = 0
	bb.upper = 0
	bb.lower = 0
	bb.isReady = false
}

// Name returns the indicator name, e.g. "BB(20,2.0)".
func (bb *BollingerBands) Name() string {
	return bb.name
}

// Period returns the configured lookback window.
func (bb *BollingerBands) Period() int {
	return bb.period
}
