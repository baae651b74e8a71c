package mcp

import (
	"context"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestToolsListAndInvoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, strategies, runner, _ := testServer()
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	tools, err := session.ListTools(ctx, &sdkmcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools failed: %v", err)
	}
	if len(tools.Tools) < 3 {
		t.Fatalf("expected at least 3 tools, got %d", len(tools.Tools))
	}

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "catalog_list", Arguments: map[string]any{}})
	if err != nil {
		t.Fatalf("catalog tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected catalog tool error: %+v", res.Content)
	}

	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "strategy_validate", Arguments: crossoverArguments()})
	if err != nil {
		t.Fatalf("validate tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected validate tool error: %+v", res.Content)
	}
	if strategies.lastSpec.Ticker != "SPY" {
		t.Fatalf("expected normalized ticker SPY, got %q", strategies.lastSpec.Ticker)
	}
	if len(strategies.lastSpec.Indicators) != 2 {
		t.Fatalf("expected 2 indicators, got %d", len(strategies.lastSpec.Indicators))
	}

	args := crossoverArguments()
	args["start_date"] = "2020-01-01"
	args["end_date"] = "2021-01-01"
	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{Name: "backtest_run", Arguments: args})
	if err != nil {
		t.Fatalf("run tool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected run tool error: %+v", res.Content)
	}
	if runner.lastReq.Start != "2020-01-01" || runner.lastReq.End != "2021-01-01" {
		t.Fatalf("unexpected run window: %s..%s", runner.lastReq.Start, runner.lastReq.End)
	}
	if runner.lastReq.Spec.Ticker != "SPY" {
		t.Fatalf("expected run ticker SPY, got %q", runner.lastReq.Spec.Ticker)
	}
}

func TestToolsValidationFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	srv, _, runner, _ := testServer()
	session, shutdown, err := connectInMemory(ctx, srv)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer shutdown()
	defer session.Close()

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "backtest_run",
		Arguments: map[string]any{"ticker": "SPY", "indicators": []map[string]any{}},
	})
	if err != nil {
		t.Fatalf("unexpected protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool-level validation error for missing indicators")
	}
	if runner.lastReq.Spec.Ticker != "" {
		t.Fatal("runner must not be invoked for an incomplete strategy")
	}

	// Rule fields are optional in the schema, so their absence surfaces as
	// a tool-level error rather than an invalid-params rejection.
	res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name: "backtest_run",
		Arguments: map[string]any{
			"ticker": "SPY",
			"indicators": []map[string]any{
				{"id": "sma_20", "type": "SMA", "params": map[string]any{"window": 20}},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected protocol error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool-level validation error for missing rules")
	}
	if runner.lastReq.Spec.Ticker != "" {
		t.Fatal("runner must not be invoked without entry and exit rules")
	}
}
