package backtest

import (
	"fmt"
	"strings"
)

// ReportGenerator renders a Result as a human-readable console report.
type ReportGenerator struct {
	result *Result
	cash   float64
}

// NewReportGenerator wraps a completed run's result. initialCash is
// repeated here because Result itself carries no config.
func NewReportGenerator(result *Result, initialCash float64) *ReportGenerator {
	return &ReportGenerator{result: result, cash: initialCash}
}

// GenerateConsoleReport formats the run's statistics in the teacher's
// section-header style.
func (r *ReportGenerator) GenerateConsoleReport() string {
	var sb strings.Builder
	stats := r.result.Stats

	sb.WriteString("\n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	sb.WriteString("                           BACKTEST RESULTS                                     \n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n\n")

	var finalEquity float64
	if n := len(r.result.EquityCurve); n > 0 {
		finalEquity = r.result.EquityCurve[n-1].Equity
	}

	sb.WriteString("OVERALL PERFORMANCE\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Initial Cash:     $%.2f\n", r.cash))
	sb.WriteString(fmt.Sprintf("Final Equity:     $%.2f\n", finalEquity))
	sb.WriteString(fmt.Sprintf("Total Return:     %.2f%%\n", stats.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("Annualized:       %.2f%%\n", stats.AnnualizedReturn*100))
	sb.WriteString(fmt.Sprintf("Equity Points:    %d\n", len(r.result.EquityCurve)))
	sb.WriteString("\n")

	sb.WriteString("TRADE STATISTICS\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Open (Buy) Fills:  %d\n", stats.OpenCount))
	sb.WriteString(fmt.Sprintf("Close (Sell) Fills: %d\n", stats.CloseCount))
	sb.WriteString(fmt.Sprintf("Win Rate:          %.1f%%\n", stats.WinRate*100))
	sb.WriteString(fmt.Sprintf("Profit/Loss Ratio: %.2f\n", stats.ProfitLossRatio))
	sb.WriteString("\n")

	sb.WriteString("RISK METRICS\n")
	sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Max Drawdown:     %.2f%%\n", stats.MaxDrawdown.Drawdown*100))
	if !stats.MaxDrawdown.Start.IsZero() {
		sb.WriteString(fmt.Sprintf("  Period:         %s -> %s\n",
			stats.MaxDrawdown.Start.Format("2006-01-02"), stats.MaxDrawdown.End.Format("2006-01-02")))
	}
	sb.WriteString(fmt.Sprintf("Sharpe Ratio:     %.2f\n", stats.SharpeRatio))
	sb.WriteString("\n")

	if stats.Benchmark != nil {
		sb.WriteString("BENCHMARK COMPARISON\n")
		sb.WriteString("─────────────────────────────────────────────────────────────────────────────\n")
		sb.WriteString(fmt.Sprintf("Benchmark Return: %.2f%%\n", stats.Benchmark.TotalReturn*100))
		sb.WriteString(fmt.Sprintf("Benchmark Drawdown: %.2f%%\n", stats.Benchmark.MaxDrawdown.Drawdown*100))
		sb.WriteString(fmt.Sprintf("Benchmark Sharpe: %.2f\n", stats.Benchmark.SharpeRatio))
		sb.WriteString("\n")
	}

	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	return sb.String()
}
