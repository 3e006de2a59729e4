package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRecorderReturnsAndDrawdown(t *testing.T) {
	m := NewMetricsRecorder()
	m.RecordEquity(day(1), 100)
	m.RecordEquity(day(2), 90)
	m.RecordEquity(day(3), 80)
	m.RecordEquity(day(4), 120)

	stats := m.Stats()
	assert.InDelta(t, 0.2, stats.TotalReturn, 1e-9)
	assert.InDelta(t, 0.2, stats.MaxDrawdown.Drawdown, 1e-9)
	assert.Equal(t, day(1), stats.MaxDrawdown.Start)
	assert.Equal(t, day(3), stats.MaxDrawdown.End)
}

func TestMetricsRecorderAnnualizedReturnTruncatesPartialDayToZero(t *testing.T) {
	m := NewMetricsRecorder()
	// Same calendar day, 9 hours apart: a fractional-day span truncates to
	// zero whole days, so annualized return falls back to total return
	// rather than dividing by a sub-one-day "year".
	start := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	end := start.Add(9 * time.Hour)
	m.RecordEquity(start, 100)
	m.RecordEquity(end, 110)

	stats := m.Stats()
	assert.InDelta(t, 0.1, stats.TotalReturn, 1e-9)
	assert.InDelta(t, stats.TotalReturn, stats.AnnualizedReturn, 1e-9)
}

func TestMetricsRecorderAnnualizedReturnTruncatesToWholeDays(t *testing.T) {
	m := NewMetricsRecorder()
	// 2 days and 18 hours apart: whole-day truncation must use 2 days, not
	// the fractional 2.75, when annualizing.
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(66 * time.Hour)
	m.RecordEquity(start, 100)
	m.RecordEquity(end, 110)

	stats := m.Stats()
	wantYears := 2.0 / 365.25
	wantAnnualized := math.Pow(110.0/100.0, 1.0/wantYears) - 1.0
	assert.InDelta(t, wantAnnualized, stats.AnnualizedReturn, 1e-6)
}

func TestMetricsRecorderSharpeRatio(t *testing.T) {
	m := NewMetricsRecorder()
	m.RecordEquity(day(1), 100)
	m.RecordEquity(day(2), 110)
	m.RecordEquity(day(3), 143)

	stats := m.Stats()
	assert.InDelta(t, 31.749015732775, stats.SharpeRatio, 1e-6)
	assert.Equal(t, DrawdownPeriod{}, stats.MaxDrawdown, "a monotonically rising curve never opens a drawdown")
}

func TestMetricsRecorderSharpeRatioEdgeCases(t *testing.T) {
	t.Run("fewer than two points", func(t *testing.T) {
		m := NewMetricsRecorder()
		m.RecordEquity(day(1), 100)
		assert.Equal(t, 0.0, m.Stats().SharpeRatio)
	})

	t.Run("zero variance returns", func(t *testing.T) {
		m := NewMetricsRecorder()
		m.RecordEquity(day(1), 100)
		m.RecordEquity(day(2), 110)
		m.RecordEquity(day(3), 121)
		assert.Equal(t, 0.0, m.Stats().SharpeRatio)
	})
}

func TestMetricsRecorderBenchmarkMirrorsStrategyCalculation(t *testing.T) {
	m := NewMetricsRecorder()
	m.RecordEquity(day(1), 100)
	m.RecordEquity(day(2), 150)
	m.RecordBenchmark(day(1), 100)
	m.RecordBenchmark(day(2), 110)

	stats := m.Stats()
	assert.InDelta(t, 0.5, stats.TotalReturn, 1e-9)
	assert.NotNil(t, stats.Benchmark)
	assert.InDelta(t, 0.1, stats.Benchmark.TotalReturn, 1e-9)
}

func TestMetricsRecorderNoBenchmarkLeavesNilStats(t *testing.T) {
	m := NewMetricsRecorder()
	m.RecordEquity(day(1), 100)
	stats := m.Stats()
	assert.Nil(t, stats.Benchmark)
}

func TestMetricsRecorderTradeStatsWinRateAndRatio(t *testing.T) {
	m := NewMetricsRecorder()
	m.RecordFills([]Fill{
		{Symbol: "AAPL", Side: Buy, Quantity: 2, Price: 100},
		{Symbol: "AAPL", Side: Sell, Quantity: 2, Price: 120},
		{Symbol: "MSFT", Side: Buy, Quantity: 1, Price: 50},
		{Symbol: "MSFT", Side: Sell, Quantity: 1, Price: 40},
	})

	stats := m.Stats()
	assert.Equal(t, 2, stats.OpenCount)
	assert.Equal(t, 2, stats.CloseCount)
	assert.InDelta(t, 0.5, stats.WinRate, 1e-9)
	assert.InDelta(t, 4.0, stats.ProfitLossRatio, 1e-9)
}

func TestMetricsRecorderTradeStatsFIFOAcrossMultipleLots(t *testing.T) {
	m := NewMetricsRecorder()
	m.RecordFill(Fill{Symbol: "AAPL", Side: Buy, Quantity: 3, Price: 10})
	m.RecordFill(Fill{Symbol: "AAPL", Side: Buy, Quantity: 2, Price: 20})
	m.RecordFill(Fill{Symbol: "AAPL", Side: Sell, Quantity: 4, Price: 15})

	stats := m.Stats()
	// cost = 3 lots @10 + 1 lot @20 = 3000 + 2000 = 5000; revenue = 4*15*100 = 6000
	assert.InDelta(t, 1.0, stats.WinRate, 1e-9, "the single matched sell realized a profit")
	assert.True(t, stats.ProfitLossRatio > 0)
}

func TestMetricsRecorderTradeStatsAllProfitsGivesInfiniteRatio(t *testing.T) {
	m := NewMetricsRecorder()
	m.RecordFill(Fill{Symbol: "AAPL", Side: Buy, Quantity: 1, Price: 10})
	m.RecordFill(Fill{Symbol: "AAPL", Side: Sell, Quantity: 1, Price: 20})

	stats := m.Stats()
	assert.True(t, math.IsInf(stats.ProfitLossRatio, 1))
}

func TestMetricsRecorderTradeStatsNoTradesIsZero(t *testing.T) {
	m := NewMetricsRecorder()
	m.RecordEquity(day(1), 100)
	stats := m.Stats()
	assert.Equal(t, 0.0, stats.WinRate)
	assert.Equal(t, 0.0, stats.ProfitLossRatio)
}

func TestMetricsRecorderAccessors(t *testing.T) {
	m := NewMetricsRecorder()
	m.RecordEquity(day(1), 100)
	m.RecordBenchmark(day(1), 100)
	m.RecordFill(Fill{Symbol: "AAPL", Side: Buy, Quantity: 1, Price: 10, Timestamp: day(1)})

	assert.Len(t, m.EquityCurve(), 1)
	assert.Len(t, m.BenchmarkCurve(), 1)
	assert.Len(t, m.Fills(), 1)
}
