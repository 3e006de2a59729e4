package backtest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func newTestFeed(t *testing.T) *DataFeed {
	t.Helper()
	f := NewDataFeed(zerolog.Nop())

	f.AddMarketData("AAPL", []Bar{
		{Datetime: day(1), Close: 10},
		{Datetime: day(3), Close: 12},
		{Datetime: day(4), Close: 13},
	})
	f.AddMarketData("NEWCO", []Bar{
		{Datetime: day(3), Close: 5},
		{Datetime: day(4), Close: 6},
	})
	f.SetBenchmark([]Bar{
		{Datetime: day(1), Close: 100},
		{Datetime: day(2), Close: 101},
		{Datetime: day(3), Close: 102},
		{Datetime: day(4), Close: 103},
	})
	return f
}

func TestDataFeedNeverLooksAhead(t *testing.T) {
	f := newTestFeed(t)

	// day 1: AAPL trades, NEWCO has not listed yet.
	bar, ok := f.CurrentBar("AAPL")
	require.True(t, ok)
	assert.Equal(t, 10.0, bar.Close)
	assert.False(t, f.IsTradable("NEWCO"))

	// day 2: AAPL has no bar this day; the feed must carry forward day 1's
	// bar rather than reach ahead to day 3's.
	f.Next()
	bar, ok = f.CurrentBar("AAPL")
	require.True(t, ok)
	assert.Equal(t, 10.0, bar.Close, "day 2 still sees day 1's AAPL bar, never day 3's")
	assert.False(t, f.IsTradable("NEWCO"))

	// day 3: NEWCO lists, AAPL advances.
	f.Next()
	bar, ok = f.CurrentBar("AAPL")
	require.True(t, ok)
	assert.Equal(t, 12.0, bar.Close)
	bar, ok = f.CurrentBar("NEWCO")
	require.True(t, ok)
	assert.Equal(t, 5.0, bar.Close)

	// day 4: both advance again.
	f.Next()
	bars := f.CurrentBars()
	assert.Equal(t, 13.0, bars["AAPL"].Close)
	assert.Equal(t, 6.0, bars["NEWCO"].Close)

	assert.True(t, f.HasNext())
	f.Next()
	assert.False(t, f.HasNext())
	_, ok = f.CurrentDatetime()
	assert.False(t, ok, "the feed is exhausted past the last timeline step")
}

func TestDataFeedHistoryIsAllOrNothing(t *testing.T) {
	f := newTestFeed(t)
	f.Next() // day 2
	f.Next() // day 3
	f.Next() // day 4

	window := f.History("AAPL", 2)
	require.Len(t, window, 2)
	assert.Equal(t, 12.0, window[0].Close)
	assert.Equal(t, 13.0, window[1].Close)

	assert.Nil(t, f.History("AAPL", 5), "fewer bars than requested yields nothing, not a short slice")
	assert.Nil(t, f.History("NEWCO", 0))
}

func TestDataFeedResetRewinds(t *testing.T) {
	f := newTestFeed(t)
	f.Next()
	f.Next()
	assert.Equal(t, 2, f.CurrentIndex())

	f.Reset()
	assert.Equal(t, 0, f.CurrentIndex())
	bar, ok := f.CurrentBar("AAPL")
	require.True(t, ok)
	assert.Equal(t, 10.0, bar.Close)
}

func TestDataFeedInitialBenchmarkBar(t *testing.T) {
	f := newTestFeed(t)
	f.Next()
	f.Next()

	initial, ok := f.InitialBenchmarkBar()
	require.True(t, ok)
	assert.Equal(t, 100.0, initial.Close, "the initial benchmark bar never moves with the cursor")

	current, ok := f.CurrentBenchmarkBar()
	require.True(t, ok)
	assert.Equal(t, 102.0, current.Close)
}

func TestDataFeedLenAndSymbols(t *testing.T) {
	f := newTestFeed(t)
	assert.Equal(t, 4, f.Len())
	assert.ElementsMatch(t, []string{"AAPL", "NEWCO"}, f.Symbols())
}
