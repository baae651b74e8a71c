// Package backtest runs a validated strategy against historical daily bars
// and produces performance metrics and chart series.
package backtest

import (
	"fmt"
	"math"
	"strings"

	"backtestgpt/internal/domain"
	"backtestgpt/internal/indicator"
	"backtestgpt/internal/rules"
)

const (
	DefaultInitialCash = 100000
	DefaultFees        = 0.001

	tradingDaysPerYear = 252
	minBars            = 2
)

// RunConfig carries portfolio parameters for one run.
type RunConfig struct {
	InitialCash float64
	Fees        float64
}

func (c RunConfig) withDefaults() RunConfig {
	if c.InitialCash <= 0 {
		c.InitialCash = DefaultInitialCash
	}
	if c.Fees < 0 {
		c.Fees = DefaultFees
	}
	return c
}

// Engine evaluates strategies into signal series and simulates a long-only,
// full-position portfolio over them.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Run executes the strategy over the bars. Unresolved operand references
// degrade to zero-filled series during evaluation but are reported in the
// returned warning list so callers can surface them.
func (e *Engine) Run(spec domain.StrategySpec, bars []domain.Bar, cfg RunConfig) (*domain.BacktestResult, []string, error) {
	if len(bars) < minBars {
		return nil, nil, fmt.Errorf("not enough history for %s: %d bars", spec.Ticker, len(bars))
	}
	cfg = cfg.withDefaults()

	outputs, err := indicator.Compute(spec.Indicators, bars)
	if err != nil {
		return nil, nil, fmt.Errorf("compute indicators: %w", err)
	}

	ctx := rules.NewContext(bars, outputs)
	entries, entryUnresolved, err := rules.Evaluate(spec.Entry, ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluate entry rule: %w", err)
	}
	exits, exitUnresolved, err := rules.Evaluate(spec.Exit, ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("evaluate exit rule: %w", err)
	}

	warnings := make([]string, 0, len(entryUnresolved)+len(exitUnresolved))
	for _, ref := range entryUnresolved {
		warnings = append(warnings, fmt.Sprintf("entry rule reference %q did not resolve, treated as zero", ref))
	}
	for _, ref := range exitUnresolved {
		warnings = append(warnings, fmt.Sprintf("exit rule reference %q did not resolve, treated as zero", ref))
	}

	portfolio := simulate(bars, entries, exits, cfg)

	result := &domain.BacktestResult{
		Ticker:    spec.Ticker,
		Metrics:   metrics(bars, portfolio, cfg),
		ChartData: chartData(bars, outputs, entries, exits, portfolio),
	}
	sanitizeResult(result)
	return result, warnings, nil
}

type portfolioState struct {
	equity []float64
	trades []float64 // per-trade net return fractions, in close order
}

// simulate holds at most one long position, entering and exiting on the
// close of the firing bar, with proportional fees on each side.
func simulate(bars []domain.Bar, entries, exits []bool, cfg RunConfig) portfolioState {
	cash := cfg.InitialCash
	var shares, entryValue float64
	inPosition := false

	state := portfolioState{equity: make([]float64, len(bars))}
	for t, bar := range bars {
		price := bar.Close
		if !inPosition && entries[t] && price > 0 {
			shares = cash / (price * (1 + cfg.Fees))
			entryValue = cash
			cash = 0
			inPosition = true
		} else if inPosition && exits[t] {
			cash = shares * price * (1 - cfg.Fees)
			state.trades = append(state.trades, cash/entryValue-1)
			shares = 0
			inPosition = false
		}
		state.equity[t] = cash + shares*price
	}
	return state
}

func metrics(bars []domain.Bar, p portfolioState, cfg RunConfig) *domain.Metrics {
	m := &domain.Metrics{
		StartValue:  cfg.InitialCash,
		EndValue:    p.equity[len(p.equity)-1],
		TotalTrades: len(p.trades),
	}
	m.TotalReturn = (m.EndValue/m.StartValue - 1) * 100

	days := bars[len(bars)-1].Date.Sub(bars[0].Date).Hours() / 24
	m.Years = days / 365.25
	if m.Years > 0 && m.StartValue > 0 && m.EndValue > 0 {
		m.CAGR = (math.Pow(m.EndValue/m.StartValue, 1/m.Years) - 1) * 100
	}

	peak := p.equity[0]
	for _, v := range p.equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (v/peak - 1) * 100; dd < m.MaxDrawdown {
				m.MaxDrawdown = dd
			}
		}
	}
	m.MaxDrawdown = math.Abs(m.MaxDrawdown)

	m.SharpeRatio, m.SortinoRatio = riskRatios(p.equity)

	var wins, grossWin, grossLoss, winSum, lossSum float64
	for _, tr := range p.trades {
		if tr > 0 {
			wins++
			grossWin += tr
			winSum += tr
		} else {
			grossLoss -= tr
			lossSum += tr
		}
	}
	if len(p.trades) > 0 {
		m.WinRate = wins / float64(len(p.trades)) * 100
	}
	if wins > 0 {
		m.AvgWinningTrade = winSum / wins * 100
	}
	if losses := float64(len(p.trades)) - wins; losses > 0 {
		m.AvgLosingTrade = lossSum / losses * 100
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		m.ProfitFactor = math.Inf(1) // sanitized below
	}
	return m
}

func riskRatios(equity []float64) (sharpe, sortino float64) {
	if len(equity) < 2 {
		return 0, 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] > 0 {
			returns = append(returns, equity[i]/equity[i-1]-1)
		}
	}
	if len(returns) < 2 {
		return 0, 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance, downVariance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
		if r < 0 {
			downVariance += r * r
		}
	}
	variance /= float64(len(returns))
	downVariance /= float64(len(returns))

	annualized := math.Sqrt(tradingDaysPerYear)
	if std := math.Sqrt(variance); std > 0 {
		sharpe = mean / std * annualized
	}
	if downStd := math.Sqrt(downVariance); downStd > 0 {
		sortino = mean / downStd * annualized
	}
	return sharpe, sortino
}

func chartData(bars []domain.Bar, outputs indicator.Outputs, entries, exits []bool, p portfolioState) *domain.ChartData {
	cd := &domain.ChartData{
		Dates:    make([]string, len(bars)),
		Equity:   p.equity,
		Drawdown: make([]float64, len(bars)),
		Close:    make([]float64, len(bars)),
	}
	peak := p.equity[0]
	for i, bar := range bars {
		cd.Dates[i] = bar.Date.Format("2006-01-02")
		cd.Close[i] = bar.Close
		if p.equity[i] > peak {
			peak = p.equity[i]
		}
		if peak > 0 {
			cd.Drawdown[i] = (p.equity[i]/peak - 1) * 100
		}
	}

	if len(outputs) > 0 {
		cd.Indicators = make(map[string][]float64)
		for id, byOutput := range outputs {
			for name, series := range byOutput {
				cd.Indicators[id+"."+strings.ToLower(name)] = series
			}
		}
	}

	cd.Signals = map[string][]int{
		"Entries": boolToInt(entries),
		"Exits":   boolToInt(exits),
	}
	return cd
}

func boolToInt(in []bool) []int {
	out := make([]int, len(in))
	for i, v := range in {
		if v {
			out[i] = 1
		}
	}
	return out
}

// sanitizeResult replaces NaN/Inf with 0 so the result always serializes to
// strict JSON.
func sanitizeResult(result *domain.BacktestResult) {
	m := result.Metrics
	for _, field := range []*float64{
		&m.StartValue, &m.EndValue, &m.TotalReturn, &m.CAGR, &m.MaxDrawdown,
		&m.SharpeRatio, &m.SortinoRatio, &m.WinRate, &m.AvgWinningTrade,
		&m.AvgLosingTrade, &m.ProfitFactor, &m.Years,
	} {
		*field = sanitize(*field)
	}
	cd := result.ChartData
	for _, series := range [][]float64{cd.Equity, cd.Drawdown, cd.Close} {
		sanitizeSeries(series)
	}
	for _, series := range cd.Indicators {
		sanitizeSeries(series)
	}
}

func sanitizeSeries(series []float64) {
	for i, v := range series {
		series[i] = sanitize(v)
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
