package mcp

import (
	"context"

	"backtestgpt/internal/domain"
	"backtestgpt/internal/service"
	"backtestgpt/internal/validator"
)

// StrategyValidatorAPI exposes the compatibility check to tools.
type StrategyValidatorAPI interface {
	Validate(ctx context.Context, spec domain.StrategySpec) validator.Verdict
}

// BacktestRunnerAPI exposes structured backtest execution to tools.
type BacktestRunnerAPI interface {
	Run(ctx context.Context, req service.RunRequest) (*domain.BacktestResult, []string, error)
}

// RunHistoryAPI exposes persisted run history to resources.
type RunHistoryAPI interface {
	ListRecent(ctx context.Context, limit int) ([]domain.BacktestRun, error)
}
