package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// DataFeed defines the canonical discrete timeline from the benchmark
// symbol's bars and maintains, for every registered symbol, a monotonic
// cursor into that symbol's own sorted bar list. It never returns a bar
// later than the current point on the timeline (invariant D1).
type DataFeed struct {
	logger zerolog.Logger

	timeline       []time.Time
	benchmarkBars  []Bar
	marketData     map[string][]Bar
	currentIndex   int
	symbolCursor   map[string]int

	cacheIndex int
	cacheValid bool
	cacheBars  map[string]Bar
}

// NewDataFeed builds an empty feed. Call AddMarketData for every symbol
// (the benchmark symbol included, if it should also be tradable) and then
// SetBenchmark to fix the timeline.
func NewDataFeed(logger zerolog.Logger) *DataFeed {
	return &DataFeed{
		logger:       logger.With().Str("component", "datafeed").Logger(),
		marketData:   make(map[string][]Bar),
		symbolCursor: make(map[string]int),
		currentIndex: -1,
	}
}

func sortBars(bars []Bar) []Bar {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Datetime.Before(sorted[j].Datetime) })
	return sorted
}

// AddMarketData stores a symbol's bars, sorted by datetime. If a benchmark
// timeline is already established, the symbol's cursor is seeded
// immediately.
func (f *DataFeed) AddMarketData(symbol string, bars []Bar) {
	f.marketData[symbol] = sortBars(bars)
	if len(f.timeline) > 0 {
		f.seedCursor(symbol)
	}
}

// SetBenchmark sorts the given bars, derives the canonical timeline from
// them, and seeds every registered symbol's cursor by binary search for
// the timeline's first instant.
func (f *DataFeed) SetBenchmark(bars []Bar) {
	f.benchmarkBars = sortBars(bars)
	f.timeline = make([]time.Time, len(f.benchmarkBars))
	for i, b := range f.benchmarkBars {
		f.timeline[i] = b.Datetime
	}
	f.currentIndex = 0
	for symbol := range f.marketData {
		f.seedCursor(symbol)
	}
	f.invalidateCache()
	f.logger.Info().Int("bars", len(f.timeline)).Msg("benchmark timeline set")
}

// findBarIndex returns the index of the last bar with datetime <= target,
// or -1 if every bar is after target.
func findBarIndex(bars []Bar, target time.Time) int {
	idx := sort.Search(len(bars), func(i int) bool { return bars[i].Datetime.After(target) })
	return idx - 1
}

func (f *DataFeed) seedCursor(symbol string) {
	if len(f.timeline) == 0 {
		return
	}
	f.symbolCursor[symbol] = findBarIndex(f.marketData[symbol], f.timeline[0])
}

// CurrentDatetime returns the timeline instant at the current step, or the
// zero time and false once the feed is exhausted.
func (f *DataFeed) CurrentDatetime() (time.Time, bool) {
	if f.currentIndex < 0 || f.currentIndex >= len(f.timeline) {
		return time.Time{}, false
	}
	return f.timeline[f.currentIndex], true
}

// CurrentBar returns the latest bar of symbol with datetime <= the current
// timeline instant, if one exists.
func (f *DataFeed) CurrentBar(symbol string) (Bar, bool) {
	idx, ok := f.symbolCursor[symbol]
	if !ok || idx < 0 {
		return Bar{}, false
	}
	bars := f.marketData[symbol]
	if idx >= len(bars) {
		return Bar{}, false
	}
	return bars[idx], true
}

// IsTradable reports whether CurrentBar(symbol) has a value.
func (f *DataFeed) IsTradable(symbol string) bool {
	_, ok := f.CurrentBar(symbol)
	return ok
}

// CurrentBars returns every symbol whose cursor currently points at a valid
// bar. The result is cached by current_index; an advance invalidates it.
func (f *DataFeed) CurrentBars() map[string]Bar {
	if f.cacheValid && f.cacheIndex == f.currentIndex {
		out := make(map[string]Bar, len(f.cacheBars))
		for k, v := range f.cacheBars {
			out[k] = v
		}
		return out
	}

	bars := make(map[string]Bar)
	for symbol := range f.marketData {
		if bar, ok := f.CurrentBar(symbol); ok {
			bars[symbol] = bar
		}
	}
	f.cacheBars = bars
	f.cacheIndex = f.currentIndex
	f.cacheValid = true

	out := make(map[string]Bar, len(bars))
	for k, v := range bars {
		out[k] = v
	}
	return out
}

func (f *DataFeed) invalidateCache() {
	f.cacheValid = false
	f.cacheBars = nil
}

// CurrentBenchmarkBar returns the benchmark bar at the current index.
func (f *DataFeed) CurrentBenchmarkBar() (Bar, bool) {
	if f.currentIndex < 0 || f.currentIndex >= len(f.benchmarkBars) {
		return Bar{}, false
	}
	return f.benchmarkBars[f.currentIndex], true
}

// InitialBenchmarkBar returns the first bar of the benchmark timeline.
func (f *DataFeed) InitialBenchmarkBar() (Bar, bool) {
	if len(f.benchmarkBars) == 0 {
		return Bar{}, false
	}
	return f.benchmarkBars[0], true
}

// History returns the count most recent bars of symbol ending at (and
// including) the bar its cursor points at. All-or-nothing: if fewer than
// count bars are available, an empty slice is returned. This is the core
// anti-look-ahead contract for strategy-facing history queries.
func (f *DataFeed) History(symbol string, count int) []Bar {
	idx, ok := f.symbolCursor[symbol]
	if !ok || idx < 0 || count <= 0 {
		return nil
	}
	bars := f.marketData[symbol]
	endIdx := idx + 1
	if endIdx > len(bars) {
		return nil
	}
	startIdx := endIdx - count
	if startIdx < 0 {
		return nil
	}

	window := make([]Bar, count)
	copy(window, bars[startIdx:endIdx])
	return window
}

// AllBars returns the full stored series for symbol. Used only during
// indicator precomputation, which is explicitly exempt from the
// no-look-ahead contract because it re-derives a timeline-aligned view.
func (f *DataFeed) AllBars(symbol string) []Bar {
	return f.marketData[symbol]
}

// Symbols returns every symbol with registered market data.
func (f *DataFeed) Symbols() []string {
	symbols := make([]string, 0, len(f.marketData))
	for s := range f.marketData {
		symbols = append(symbols, s)
	}
	return symbols
}

// Next advances current_index by one and monotonically advances every
// symbol's cursor while the next bar's datetime is still <= the new
// timeline instant. Amortized O(N + sum|bars_s|) across a full run.
func (f *DataFeed) Next() {
	f.currentIndex++
	f.invalidateCache()
	if f.currentIndex >= len(f.timeline) {
		return
	}
	now := f.timeline[f.currentIndex]
	for symbol, bars := range f.marketData {
		idx := f.symbolCursor[symbol]
		for idx+1 < len(bars) && !bars[idx+1].Datetime.After(now) {
			idx++
		}
		f.symbolCursor[symbol] = idx
	}
}

// HasNext reports whether the timeline has another step.
func (f *DataFeed) HasNext() bool {
	return f.currentIndex < len(f.timeline)
}

// CurrentIndex returns the feed's position on the timeline.
func (f *DataFeed) CurrentIndex() int {
	return f.currentIndex
}

// Len returns the number of steps on the canonical timeline.
func (f *DataFeed) Len() int {
	return len(f.timeline)
}

// Reset rewinds current_index to 0 and re-seeds every symbol's cursor.
func (f *DataFeed) Reset() {
	f.currentIndex = 0
	for symbol := range f.marketData {
		f.seedCursor(symbol)
	}
	f.invalidateCache()
}

func (f *DataFeed) String() string {
	return fmt.Sprintf("DataFeed(symbols=%d, steps=%d, index=%d)", len(f.marketData), len(f.timeline), f.currentIndex)
}
