package tui

import (
	"fmt"
	"strings"
	"time"

	"backtestgpt/internal/domain"
)

// FormatRun renders one persisted backtest run as a single line.
func FormatRun(r domain.BacktestRun) string {
	ret := "n/a"
	retStyle := ReturnZeroStyle
	trades := "-"
	if r.Metrics != nil {
		sign := ""
		if r.Metrics.TotalReturn > 0 {
			sign = "+"
			retStyle = ReturnUpStyle
		} else if r.Metrics.TotalReturn < 0 {
			retStyle = ReturnDownStyle
		}
		ret = fmt.Sprintf("%s%.2f%%", sign, r.Metrics.TotalReturn*100)
		trades = fmt.Sprintf("%d", r.Metrics.TotalTrades)
	}

	return fmt.Sprintf("#%-4d %-8s %10s  %4s trades  %s",
		r.ID,
		r.Ticker,
		retStyle.Render(ret),
		trades,
		SubtextStyle.Render(r.CreatedAt.Format(time.RFC822)),
	)
}

// FormatMetrics renders the performance block of a finished run, one stat
// per line.
func FormatMetrics(m *domain.Metrics) []string {
	if m == nil {
		return []string{SubtextStyle.Render("No metrics available")}
	}

	ddStyle := DrawdownMildStyle
	if m.MaxDrawdown > 0.3 {
		ddStyle = DrawdownSevereStyle
	} else if m.MaxDrawdown > 0.15 {
		ddStyle = DrawdownMedStyle
	}

	return []string{
		fmt.Sprintf("Total return  %s", styleReturn(m.TotalReturn)),
		fmt.Sprintf("CAGR          %s", styleReturn(m.CAGR)),
		fmt.Sprintf("Max drawdown  %s", ddStyle.Render(fmt.Sprintf("%.2f%%", m.MaxDrawdown*100))),
		fmt.Sprintf("Sharpe        %.2f", m.SharpeRatio),
		fmt.Sprintf("Win rate      %.1f%% over %d trades", m.WinRate*100, m.TotalTrades),
		fmt.Sprintf("Final value   %s", formatUSD(m.EndValue)),
	}
}

// RenderEquitySparkline renders an equity curve as a one-line unicode
// sparkline, resampled to fit the given width.
func RenderEquitySparkline(equity []float64, width int) string {
	if len(equity) < 2 || width < 2 {
		return SubtextStyle.Render("no equity data")
	}

	blocks := []rune("▁▂▃▄▅▆▇█")

	lo, hi := equity[0], equity[0]
	for _, v := range equity {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		hi = lo + 1
	}

	var sb strings.Builder
	for i := 0; i < width; i++ {
		idx := i * (len(equity) - 1) / (width - 1)
		level := int((equity[idx] - lo) / (hi - lo) * float64(len(blocks)-1))
		sb.WriteRune(blocks[level])
	}
	return sb.String()
}

func styleReturn(v float64) string {
	style := ReturnZeroStyle
	sign := ""
	if v > 0 {
		style = ReturnUpStyle
		sign = "+"
	} else if v < 0 {
		style = ReturnDownStyle
	}
	return style.Render(fmt.Sprintf("%s%.2f%%", sign, v*100))
}

func formatUSD(v float64) string {
	if v >= 1000 {
		return "$" + addCommas(fmt.Sprintf("%.0f", v))
	}
	if v >= 1 {
		return fmt.Sprintf("$%.2f", v)
	}
	return fmt.Sprintf("$%.4f", v)
}

func addCommas(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var result strings.Builder
	for i, ch := range s {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(ch)
	}
	return result.String()
}
