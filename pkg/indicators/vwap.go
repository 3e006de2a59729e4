package indicators

import (
	"fmt"

	"github.com/bikeshrana/pi5-trading-system-go/internal/backtest"
)

// VWAP (Volume Weighted Average Price) is the running average of each bar's
// typical price ((high+low+close)/3) weighted by its volume. Unlike an
// intraday trading desk, this engine's feeds are one bar per symbol per
// day, so there's no intraday session boundary to reset on; VWAP here
// accumulates over the whole backtest and BollingerBreakout logs it with
// each buy signal as a fair-value reference.
type VWAP struct {
	name string

	cumulativePriceVolume float64
	cumulativeVolume      float64

	vwapValue float64

	isReady bool
}

// NewVWAP creates a new VWAP indicator.
func NewVWAP() *VWAP {
	return &VWAP{name: "VWAP"}
}

// UpdateBar folds bar's typical price and volume into the running average.
func (v *VWAP) UpdateBar(bar backtest.Bar) error {
	if bar.Volume <= 0 {
		return fmt.Errorf("volume must be positive")
	}

	typicalPrice := (bar.High + bar.Low + bar.Close) / 3.0
	v.cumulativePriceVolume += typicalPrice * bar.Volume
	v.cumulativeVolume += bar.Volume

	if v.cumulativeVolume > 0 {
		v.vwapValue = v.cumulativePriceVolume / v.cumulativeVolume
		v.isReady = true
	}

	return nil
}

// Value returns the current VWAP value.
func (v *VWAP) Value() float64 {
	return v.vwapValue
}

// IsReady reports whether VWAP has seen at least one bar of volume.
func (v *VWAP) IsReady() bool {
	return v.isReady
}

// Reset discards accumulated volume and price state.
func (v *VWAP) Reset() {
	v.cumulativePriceVolume = 0
	v.cumulativeVolume = 0
	v.vwapValue = 0
	v.isReady = false
}

// Name returns the indicator name, "VWAP".
func (v *VWAP) Name() string {
	return v.name
}
