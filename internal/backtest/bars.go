package backtest

import "time"

const alternateBarLayout = "2006-01-02 15:04:05"

// ParseBarDatetime accepts RFC 3339 or "2006-01-02 15:04:05" (interpreted
// as UTC), matching the bar ingress format. Unparseable datetimes are a
// hard DataError.
func ParseBarDatetime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(alternateBarLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, ErrUnparseableDatetime
}

// ValidateSymbol rejects the empty string as a symbol. Called at the
// ingress boundary (API requests, CLI flags) before bars are attached to
// a DataFeed.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return ErrInvalidSymbol
	}
	return nil
}

// BarRow is the raw tuple shape bars arrive in at the ingress boundary.
type BarRow struct {
	Datetime string  `json:"datetime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// ParseBars converts a slice of raw rows into Bars. The core consumes
// pre-sorted bar sequences, so rows must already arrive in strictly
// increasing datetime order: an equal adjacent datetime is a
// ErrDuplicateBar, and an out-of-order one is ErrNonMonotonicBar.
// Resampling or sorting upstream market data is out of scope here.
func ParseBars(rows []BarRow) ([]Bar, error) {
	bars := make([]Bar, len(rows))
	for i, r := range rows {
		t, err := ParseBarDatetime(r.Datetime)
		if err != nil {
			return nil, err
		}
		bars[i] = Bar{Datetime: t, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}
	}

	for i := 1; i < len(bars); i++ {
		if bars[i].Datetime.Equal(bars[i-1].Datetime) {
			return nil, ErrDuplicateBar
		}
		if bars[i].Datetime.Before(bars[i-1].Datetime) {
			return nil, ErrNonMonotonicBar
		}
	}

	return bars, nil
}
