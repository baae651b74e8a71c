package mcp

import (
	"backtestgpt/internal/catalog"
	"backtestgpt/internal/domain"
)

type catalogListInput struct{}

type catalogListOutput struct {
	Indicators []catalog.Entry         `json:"indicators"`
	Operators  []catalog.OperatorGroup `json:"operators"`
	Templates  []catalog.Template      `json:"templates"`
}

type strategyInput struct {
	Ticker     string                 `json:"ticker,omitempty" jsonschema:"ticker symbol (e.g. AAPL, SPY)"`
	Indicators []domain.IndicatorSpec `json:"indicators,omitempty" jsonschema:"indicator declarations with id, type and params"`
	Entry      domain.RuleExpr        `json:"entry_conditions,omitempty" jsonschema:"entry rule: {op, args}"`
	Exit       domain.RuleExpr        `json:"exit_conditions,omitempty" jsonschema:"exit rule: {op, args}"`
}

type strategyValidateOutput struct {
	Compatible bool                `json:"compatible"`
	Message    string              `json:"message"`
	Spec       domain.StrategySpec `json:"spec"`
}

type backtestRunInput struct {
	strategyInput
	Start       string  `json:"start_date,omitempty" jsonschema:"run window start, YYYY-MM-DD"`
	End         string  `json:"end_date,omitempty" jsonschema:"run window end, YYYY-MM-DD"`
	InitialCash float64 `json:"initial_cash,omitempty" jsonschema:"starting cash, default 100000"`
	Fees        float64 `json:"fees,omitempty" jsonschema:"per-trade fee fraction, default 0.001"`
}

type backtestRunOutput struct {
	Ticker   string            `json:"ticker"`
	Metrics  *domain.Metrics   `json:"metrics"`
	Chart    *domain.ChartData `json:"chart_data"`
	Warnings []string          `json:"warnings,omitempty"`
}

type runsListOutput struct {
	Runs []domain.BacktestRun `json:"runs"`
}

func (in strategyInput) spec() domain.StrategySpec {
	return domain.StrategySpec{
		Ticker:     domain.NormalizeTicker(in.Ticker),
		Indicators: in.Indicators,
		Entry:      in.Entry,
		Exit:       in.Exit,
	}
}
