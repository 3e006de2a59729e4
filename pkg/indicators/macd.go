package indicators

import (
	"fmt"
	"time"
)

// MACD (Moving Average Convergence Divergence) is the spread between a fast
// and slow EMA, smoothed again into a signal line. BollingerBreakout treats
// a positive histogram (MACD line above signal) as momentum confirmation
// for a mean-reversion entry.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
	name         string

	fastEMA   *EMA
	slowEMA   *EMA
	signalEMA *EMA

	macdLine   float64
	signalLine float64
	histogram  float64

	isReady bool
}

// NewMACD creates a MACD indicator (standard defaults 12, 26, 9).
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	if fastPeriod < 1 {
		fastPeriod = 12
	}
	if slowPeriod < 1 {
		slowPeriod = 26
	}
	if signalPeriod < 1 {
		signalPeriod = 9
	}

	return &MACD{
		fastPeriod:   fastPeriod,
		slowPeriod:   slowPeriod,
		signalPeriod: signalPeriod,
		name:         fmt.Sprintf("MACD(%d,%d,%d)", fastPeriod, slowPeriod, signalPeriod),
		fastEMA:      NewEMA(fastPeriod),
		slowEMA:      NewEMA(slowPeriod),
		signalEMA:    NewEMA(signalPeriod),
	}
}

// Update folds price into the fast/slow EMAs, then the signal EMA of their
// spread, once both are ready.
func (m *MACD) Update(price float64, at time.Time) error {
	if price <= 0 {
		return fmt.Errorf("price must be positive")
	}

	m.fastEMA.Update(price, at)
	m.slowEMA.Update(price, at)

	if !m.fastEMA.IsReady() || !m.slowEMA.IsReady() {
		m.isReady = false
		return nil
	}

	m.macdLine = m.fastEMA.Value() - m.slowEMA.Value()
	// The spread can be zero or negative, which EMA.Update rejects as a
	// price, so the signal EMA is advanced directly.
	sig := m.signalEMA
	if !sig.isReady {
		sig.prices = append(sig.prices, m.macdLine)
		if len(sig.prices) == sig.period {
			sig.emaValue = SMA(sig.prices)
			sig.isReady = true
			sig.prices = nil
		}
	} else {
		sig.emaValue = (m.macdLine-sig.emaValue)*sig.multiplier + sig.emaValue
	}

	if !m.signalEMA.IsReady() {
		m.isReady = false
		return nil
	}

	m.signalLine = m.signalEMA.Value()
	m.histogram = m.macdLine - m.signalLine
	m.isReady = true

	return nil
}

// Value returns the MACD line (fast EMA minus slow EMA).
func (m *MACD) Value() float64 {
	return m.macdLine
}

// IsReady reports whether the fast, slow, and signal EMAs have all filled
// their seed windows.
func (m *MACD) IsReady() bool {
	return m.isReady
}

// Reset discards accumulated state on all three component EMAs.
func (m *MACD) Reset() {
	m.fastEMA.Reset()
	m.slowEMA.Reset()
	m.signalEMA.Reset()
	m.macdLine = 0
	m.signalLine = 0
	m.histogram = 0
	m.isReady = false
}

// Name returns the indicator name, e.g. "MACD(12,26,9)".
func (m *MACD) Name() string {
	return m.name
}

// IsBullish reports whether the MACD line is above the signal line.
func (m *MACD) IsBullish() bool {
	return m.isReady && m.macdLine > m.signalLine
}
