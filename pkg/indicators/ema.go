package indicators

import (
	"fmt"
	"time"
)

// EMA (Exponential Moving Average) weights recent prices more heavily than
// old ones, so it turns faster than an SMA of the same period. MACD
// composes three of these (fast, slow, signal).
type EMA struct {
	period int
	name   string

	multiplier float64
	emaValue   float64

	// prices accumulates the initial window used to seed the first EMA
	// value as a plain SMA; cleared once isReady flips true.
	prices []float64

	isReady bool
}

// NewEMA creates an EMA indicator over period bars (20 if period < 1).
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 20
	}

	return &EMA{
		period:     period,
		name:       fmt.Sprintf("EMA(%d)", period),
		multiplier: 2.0 / float64(period+1),
		prices:     make([]float64, 0, period),
	}
}

// Update folds price into the EMA.
func (e *EMA) Update(price float64, at time.Time) error {
	if price <= 0 {
		return fmt.Errorf("price must be positive")
	}

	if !e.isReady {
		e.prices = append(e.prices, price)
		if len(e.prices) == e.period {
			e.emaValue = SMA(e.prices)
			e.isReady = true
			e.prices = nil
		}
		return nil
	}

	e.emaValue = (price-e.emaValue)*e.multiplier + e.emaValue
	return nil
}

// Value returns the current EMA value.
func (e *EMA) Value() float64 {
	return e.emaValue
}

// IsReady reports whether the seed window has been filled.
func (e *EMA) IsReady() bool {
	return e.isReady
}

// Reset discards accumulated state.
func (e *EMA) Reset() {
	e.prices = make([]float64, 0, e.period)
	e.emaValue = 0
	e.isReady = false
}

// Name returns the indicator name, e.g. "EMA(12)".
func (e *EMA) Name() string {
	return e.name
}

// Period returns the configured lookback window.
func (e *EMA) Period() int {
	return e.period
}
