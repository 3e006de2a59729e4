package backtest

import (
	"math"
	"time"
)

// MetricsRecorder stores the equity curve, an optional benchmark curve, and
// every fill produced during a run, and derives return, drawdown, Sharpe,
// and trade statistics from them.
type MetricsRecorder struct {
	equityCurve    []EquityPoint
	benchmarkCurve []EquityPoint
	fills          []Fill
}

// NewMetricsRecorder builds an empty recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// RecordEquity appends one point to the strategy's equity curve.
func (m *MetricsRecorder) RecordEquity(datetime time.Time, equity float64) {
	m.equityCurve = append(m.equityCurve, EquityPoint{Datetime: datetime, Equity: equity})
}

// RecordBenchmark appends one point to the benchmark curve.
func (m *MetricsRecorder) RecordBenchmark(datetime time.Time, equity float64) {
	m.benchmarkCurve = append(m.benchmarkCurve, EquityPoint{Datetime: datetime, Equity: equity})
}

// RecordFill appends a single fill.
func (m *MetricsRecorder) RecordFill(f Fill) {
	m.fills = append(m.fills, f)
}

// RecordFills appends several fills in order.
func (m *MetricsRecorder) RecordFills(fs []Fill) {
	m.fills = append(m.fills, fs...)
}

// EquityCurve returns the recorded strategy equity curve.
func (m *MetricsRecorder) EquityCurve() []EquityPoint { return m.equityCurve }

// BenchmarkCurve returns the recorded benchmark curve.
func (m *MetricsRecorder) BenchmarkCurve() []EquityPoint { return m.benchmarkCurve }

// Fills returns every fill recorded so far.
func (m *MetricsRecorder) Fills() []Fill { return m.fills }

// Stats computes the full performance statistics for the recorded run,
// with Benchmark populated whenever a benchmark curve was recorded.
func (m *MetricsRecorder) Stats() PerformanceStats {
	stats := m.calculate(m.equityCurve)

	openCount, closeCount := 0, 0
	for _, f := range m.fills {
		if f.Side == Buy {
			openCount++
		} else {
			closeCount++
		}
	}
	stats.OpenCount = openCount
	stats.CloseCount = closeCount
	stats.WinRate, stats.ProfitLossRatio = m.tradeStats()

	if len(m.benchmarkCurve) > 0 {
		bench := m.calculate(m.benchmarkCurve)
		stats.Benchmark = &bench
	}

	return stats
}

// calculate derives return, annualized return, max drawdown with period,
// and Sharpe ratio for an arbitrary equity curve (strategy or benchmark).
// Trade stats and fill counts are not part of this shared computation;
// Stats fills them in separately for the strategy curve only.
func (m *MetricsRecorder) calculate(curve []EquityPoint) PerformanceStats {
	if len(curve) == 0 {
		return PerformanceStats{}
	}

	initial := curve[0].Equity
	final := curve[len(curve)-1].Equity

	var totalReturn float64
	if initial != 0 {
		totalReturn = (final - initial) / initial
	}

	days := 1.0
	if len(curve) > 1 {
		days = math.Trunc(curve[len(curve)-1].Datetime.Sub(curve[0].Datetime).Hours() / 24.0)
	}
	years := days / 365.25
	annualizedReturn := totalReturn
	if years > 0 && initial > 0 {
		annualizedReturn = math.Pow(final/initial, 1.0/years) - 1.0
	}

	return PerformanceStats{
		TotalReturn:      totalReturn,
		AnnualizedReturn: annualizedReturn,
		MaxDrawdown:      maxDrawdownWithPeriod(curve),
		SharpeRatio:      sharpeRatio(curve),
	}
}

// maxDrawdownWithPeriod walks the curve tracking the running peak and its
// time. Whenever a point falls below the peak, a drawdown period is opened
// anchored at the peak's time (if one isn't already open); the largest
// observed drawdown and its (start, end) are retained. A new peak resets
// the open anchor.
func maxDrawdownWithPeriod(curve []EquityPoint) DrawdownPeriod {
	if len(curve) == 0 {
		return DrawdownPeriod{}
	}

	maxEquity := curve[0].Equity
	maxEquityTime := curve[0].Datetime
	var maxDD DrawdownPeriod
	var currentDDStart time.Time
	haveOpenDD := false

	for _, point := range curve {
		if point.Equity > maxEquity {
			maxEquity = point.Equity
			maxEquityTime = point.Datetime
			haveOpenDD = false
			continue
		}

		if !haveOpenDD {
			currentDDStart = maxEquityTime
			haveOpenDD = true
		}

		drawdown := (maxEquity - point.Equity) / maxEquity
		if drawdown > maxDD.Drawdown {
			maxDD = DrawdownPeriod{
				Drawdown: drawdown,
				Start:    currentDDStart,
				End:      point.Datetime,
			}
		}
	}

	return maxDD
}

// sharpeRatio computes simple daily returns and reports (mean/std)*sqrt(252).
// Zero when fewer than two points are available or the standard deviation
// of returns is zero.
func sharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}

	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	return (mean / std) * math.Sqrt(252)
}

// tradeStats computes win rate and profit/loss ratio via FIFO lot-matching
// per symbol: Buys push (qty, price); Sells consume from the head. Each Sell
// fill yields one gross PnL (its revenue minus the FIFO cost of the lots it
// consumed, ignoring commissions and stamp tax), bucketed as a win or a
// loss; the segments of a single Sell are not counted separately.
func (m *MetricsRecorder) tradeStats() (winRate, profitLossRatio float64) {
	type lot struct {
		qty, price float64
	}
	open := make(map[string][]lot)

	var profits, losses []float64

	for _, f := range m.fills {
		switch f.Side {
		case Buy:
			open[f.Symbol] = append(open[f.Symbol], lot{qty: f.Quantity, price: f.Price})
		case Sell:
			remaining := f.Quantity
			var totalCost float64
			queue := open[f.Symbol]

			for remaining > 0 && len(queue) > 0 {
				head := queue[0]
				used := math.Min(remaining, head.qty)
				totalCost += used * head.price * 100
				remaining -= used

				if used >= head.qty {
					queue = queue[1:]
				} else {
					queue[0].qty -= used
				}
			}
			open[f.Symbol] = queue

			if totalCost > 0 {
				revenue := f.Quantity * f.Price * 100
				pnl := revenue - totalCost
				if pnl > 0 {
					profits = append(profits, pnl)
				} else {
					losses = append(losses, -pnl)
				}
			}
		}
	}

	total := len(profits) + len(losses)
	if total > 0 {
		winRate = float64(len(profits)) / float64(total)
	}

	var avgProfit, avgLoss float64
	if len(profits) > 0 {
		var sum float64
		for _, p := range profits {
			sum += p
		}
		avgProfit = sum / float64(len(profits))
	}
	if len(losses) > 0 {
		var sum float64
		for _, l := range losses {
			sum += l
		}
		avgLoss = sum / float64(len(losses))
	}

	switch {
	case avgLoss > 0:
		profitLossRatio = avgProfit / avgLoss
	case avgProfit > 0:
		profitLossRatio = math.Inf(1)
	default:
		profitLossRatio = 0
	}

	return winRate, profitLossRatio
}
