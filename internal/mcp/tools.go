package mcp

import (
	"context"
	"fmt"

	"backtestgpt/internal/catalog"
	"backtestgpt/internal/service"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerTools(server *mcp.Server, cat *catalog.Catalog, strategies StrategyValidatorAPI, runner BacktestRunnerAPI) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "catalog_list",
		Description: "List supported indicators, rule operators and strategy templates",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ catalogListInput) (*mcp.CallToolResult, catalogListOutput, error) {
		if cat == nil {
			return nil, catalogListOutput{}, fmt.Errorf("catalog unavailable")
		}
		return nil, catalogListOutput{
			Indicators: cat.Indicators(),
			Operators:  cat.Operators(),
			Templates:  cat.Templates(),
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "strategy_validate",
		Description: "Check a strategy against the capability catalog and verify the ticker has market data",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in strategyInput) (*mcp.CallToolResult, strategyValidateOutput, error) {
		if strategies == nil {
			return nil, strategyValidateOutput{}, fmt.Errorf("strategy validator unavailable")
		}
		verdict := strategies.Validate(ctx, in.spec())
		return nil, strategyValidateOutput{
			Compatible: verdict.Compatible,
			Message:    verdict.Message,
			Spec:       verdict.Spec,
		}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "backtest_run",
		Description: "Execute a fully specified strategy and return metrics and chart series",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in backtestRunInput) (*mcp.CallToolResult, backtestRunOutput, error) {
		if runner == nil {
			return nil, backtestRunOutput{}, fmt.Errorf("backtest runner unavailable")
		}
		if len(in.Indicators) == 0 {
			return nil, backtestRunOutput{}, fmt.Errorf("indicators are required")
		}
		if in.Entry.IsZero() || in.Exit.IsZero() {
			return nil, backtestRunOutput{}, fmt.Errorf("entry_conditions and exit_conditions are required")
		}

		result, warnings, err := runner.Run(ctx, service.RunRequest{
			Spec:        in.spec(),
			Start:       in.Start,
			End:         in.End,
			InitialCash: in.InitialCash,
			Fees:        in.Fees,
		})
		if err != nil {
			return nil, backtestRunOutput{}, err
		}
		return nil, backtestRunOutput{
			Ticker:   result.Ticker,
			Metrics:  result.Metrics,
			Chart:    result.ChartData,
			Warnings: warnings,
		}, nil
	})
}
