package backtest

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFeedAligned(t *testing.T) *DataFeed {
	t.Helper()
	f := NewDataFeed(zerolog.Nop())
	bars := []Bar{
		{Datetime: day(1), Close: 10},
		{Datetime: day(2), Close: 11},
		{Datetime: day(3), Close: 12},
		{Datetime: day(4), Close: 13},
		{Datetime: day(5), Close: 14},
	}
	f.AddMarketData("AAPL", bars)
	f.SetBenchmark(bars)
	return f
}

func TestIndicatorEngineRegisterRejectsUnknownKind(t *testing.T) {
	e := NewIndicatorEngine(zerolog.Nop())
	err := e.Register(IndicatorDefinition{Kind: "bogus", Name: "sma"})
	assert.ErrorIs(t, err, ErrInvalidIndicatorKind)
}

func TestIndicatorEnginePrecomputesSMA(t *testing.T) {
	f := newTestFeedAligned(t)
	e := NewIndicatorEngine(zerolog.Nop())
	require.NoError(t, e.Register(IndicatorDefinition{
		Kind:           KindBuiltin,
		Name:           "sma",
		LookbackPeriod: 3,
		Params:         map[string]string{"period": "3", "field": "close"},
	}))

	assert.True(t, e.HasIndicators())
	require.NoError(t, e.PrecomputeAll(f))

	e.UpdateIndex(0)
	_, ok := e.Value("sma", "AAPL")
	assert.False(t, ok, "fewer than period bars have been seen")

	e.UpdateIndex(2)
	v, ok := e.Value("sma", "AAPL")
	require.True(t, ok)
	assert.InDelta(t, 11.0, v, 1e-9)

	e.UpdateIndex(4)
	v, ok = e.Value("sma", "AAPL")
	require.True(t, ok)
	assert.InDelta(t, 13.0, v, 1e-9)

	window := e.Window("sma", "AAPL", 3)
	require.Len(t, window, 3)
	assert.Equal(t, []float64{11, 12, 13}, window)
}

func TestIndicatorEnginePrecomputesDistinctlyNamedSMAs(t *testing.T) {
	// Two SMAs of different periods, registered the way SMACrossover does
	// it (logical names "sma_3"/"sma_5", not the literal builtin type).
	f := newTestFeedAligned(t)
	e := NewIndicatorEngine(zerolog.Nop())
	require.NoError(t, e.Register(IndicatorDefinition{
		Kind: KindBuiltin, Name: "sma_3", LookbackPeriod: 3,
		Params: map[string]string{"period": "3", "field": "close"},
	}))
	require.NoError(t, e.Register(IndicatorDefinition{
		Kind: KindBuiltin, Name: "sma_5", LookbackPeriod: 5,
		Params: map[string]string{"period": "5", "field": "close"},
	}))
	require.NoError(t, e.PrecomputeAll(f))

	e.UpdateIndex(4)
	short, ok := e.Value("sma_3", "AAPL")
	require.True(t, ok)
	assert.InDelta(t, 13.0, short, 1e-9)

	long, ok := e.Value("sma_5", "AAPL")
	require.True(t, ok)
	assert.InDelta(t, 12.0, long, 1e-9)
}

func TestIndicatorEnginePrecomputeRejectsUnknownBuiltinType(t *testing.T) {
	f := newTestFeedAligned(t)
	e := NewIndicatorEngine(zerolog.Nop())
	require.NoError(t, e.Register(IndicatorDefinition{
		Kind: KindBuiltin, Name: "ema_12",
		Params: map[string]string{"type": "ema"},
	}))
	err := e.PrecomputeAll(f)
	assert.ErrorIs(t, err, ErrUnknownBuiltin)
}

func TestIndicatorEngineWindowCountOneIncludesNaN(t *testing.T) {
	f := newTestFeedAligned(t)
	e := NewIndicatorEngine(zerolog.Nop())
	require.NoError(t, e.Register(IndicatorDefinition{
		Kind: KindBuiltin, Name: "sma", LookbackPeriod: 3,
	}))
	require.NoError(t, e.PrecomputeAll(f))

	e.UpdateIndex(0)
	window := e.Window("sma", "AAPL", 1)
	require.Len(t, window, 1)
	assert.True(t, math.IsNaN(window[0]))
}

func TestIndicatorEngineExternalSeriesPopulatedBySet(t *testing.T) {
	f := newTestFeedAligned(t)
	e := NewIndicatorEngine(zerolog.Nop())
	require.NoError(t, e.Register(IndicatorDefinition{Kind: KindExternal, Name: "rsi"}))
	require.NoError(t, e.PrecomputeAll(f))

	e.UpdateIndex(2)
	_, ok := e.Value("rsi", "AAPL")
	assert.False(t, ok, "external series starts NaN-filled until Set is called")

	e.Set("rsi", "AAPL", 2, 70.5)
	v, ok := e.Value("rsi", "AAPL")
	require.True(t, ok)
	assert.InDelta(t, 70.5, v, 1e-9)

	e.UpdateIndex(3)
	_, ok = e.Value("rsi", "AAPL")
	assert.False(t, ok, "Set only wrote index 2")
}
