package indicators

import (
	"math"
	"time"

	"github.com/bikeshrana/pi5-trading-system-go/internal/backtest"
)

// Indicator is a streaming indicator fed one price at a time by a
// strategy's OnBar handler, in the same order the DataFeed plays bars
// back to the driver.
type Indicator interface {
	// Update folds a new price into the indicator's running state.
	Update(price float64, at time.Time) error

	// Value returns the current indicator value, or 0 if not yet ready.
	Value() float64

	// IsReady reports whether enough bars have been seen to trust Value.
	IsReady() bool

	// Reset discards accumulated state, as if no bars had been seen.
	Reset()

	Name() string
}

// BarIndicator is a streaming indicator that needs the full OHLCV bar
// rather than just a close price, e.g. because it tracks True Range or
// volume-weighted price.
type BarIndicator interface {
	UpdateBar(bar backtest.Bar) error
	Value() float64
	IsReady() bool
	Reset()
	Name() string
}

// MultiValueBarIndicator is a BarIndicator that exposes more than one
// derived value per bar, such as Bollinger Bands' middle/upper/lower.
type MultiValueBarIndicator interface {
	UpdateBar(bar backtest.Bar) error
	Values() []float64
	IsReady() bool
	Reset()
	Name() string
}

// SMA calculates the simple moving average of a window of prices.
func SMA(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}

	sum := 0.0
	for _, p := range prices {
		sum += p
	}
	return sum / float64(len(prices))
}

// StdDev calculates the population standard deviation of prices around mean.
func StdDev(prices []float64, mean float64) float64 {
	if len(prices) == 0 {
		return 0
	}

	sumSquaredDiff := 0.0
	for _, p := range prices {
		diff := p - mean
		sumSquaredDiff += diff * diff
	}

	variance := sumSquaredDiff / float64(len(prices))
	return math.Sqrt(variance)
}

// Max returns the largest value in values.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// Abs returns the absolute value of x.
func Abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
