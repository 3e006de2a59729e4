package indicators

import (
	"fmt"

	"github.com/bikeshrana/pi5-trading-system-go/internal/backtest"
)

// ATR (Average True Range) tracks how much a symbol's true range has moved
// bar over bar, in price units. BollingerBreakout uses it two ways: sizing
// a new position off risk-per-trade, and vetoing an entry when a volatility
// spike makes the breakout unreliable.
type ATR struct {
	period int
	name   string

	trueRanges    []float64
	previousClose float64

	atrValue float64

	isReady bool
	count   int
}

// NewATR creates an ATR indicator over period bars (14 if period < 1).
func NewATR(period int) *ATR {
	if period < 1 {
		period = 14
	}

	return &ATR{
		period:     period,
		name:       fmt.Sprintf("ATR(%d)", period),
		trueRanges: make([]float64, 0, period),
	}
}

// UpdateBar folds bar's high/low/close into the true-range window.
func (atr *ATR) UpdateBar(bar backtest.Bar) error {
	if bar.High < bar.Low {
		return fmt.Errorf("high price cannot be less than low price")
	}

	var tr float64
	if atr.count == 0 {
		tr = bar.High - bar.Low
	} else {
		// True range is the widest of the current bar's range and its
		// gap from the previous close, in either direction.
		tr1 := bar.High - bar.Low
		tr2 := Abs(bar.High - atr.previousClose)
		tr3 := Abs(bar.Low - atr.previousClose)
		tr = Max([]float64{tr1, tr2, tr3})
	}

	atr.trueRanges = append(atr.trueRanges, tr)
	atr.previousClose = bar.Close
	atr.count++

	if len(atr.trueRanges) > atr.period {
		atr.trueRanges = atr.trueRanges[1:]
	}

	if len(atr.trueRanges) < atr.period {
		atr.isReady = false
		return nil
	}

	if atr.count == atr.period {
		atr.atrValue = SMA(atr.trueRanges)
	} else {
		// Wilder's smoothing.
		atr.atrValue = ((atr.atrValue * float64(atr.period-1)) + tr) / float64(atr.period)
	}

	atr.isReady = true
	return nil
}

// Value returns the current ATR value.
func (atr *ATR) Value() float64 {
	return atr.atrValue
}

// IsReady reports whether ATR has seen a full window of bars.
func (atr *ATR) IsReady() bool {
	return atr.isReady
}

// Reset discards accumulated true ranges.
func (atr *ATR) Reset() {
	atr.trueRanges = make([]float64, 0, atr.period)
	atr.previousClose = 0
	atr.atrValue = 0
	atr.isReady = false
	atr.count = 0
}

// Name returns the indicator name, e.g. "ATR(14)".
func (atr *ATR) Name() string {
	return atr.name
}

// Period returns the configured lookback window.
func (atr *ATR) Period() int {
	return atr.period
}

// GetPositionSize sizes a position from riskAmount (the cash a strategy is
// willing to put at risk) and a stop-loss distance of stopLossMultiplier
// times ATR. Returns 0 when ATR isn't ready or has no range yet.
func (atr *ATR) GetPositionSize(riskAmount float64, stopLossMultiplier float64) int {
	if !atr.isReady || atr.atrValue == 0 {
		return 0
	}

	stopLossDistance := atr.atrValue * stopLossMultiplier
	if stopLossDistance == 0 {
		return 0
	}

	return int(riskAmount / stopLossDistance)
}

// IsHighVolatility reports whether ATR is currently above threshold.
func (atr *ATR) IsHighVolatility(threshold float64) bool {
	return atr.isReady && atr.atrValue > threshold
}
