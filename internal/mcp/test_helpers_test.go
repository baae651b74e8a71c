package mcp

import (
	"context"
	"encoding/json"
	"time"

	"backtestgpt/internal/catalog"
	"backtestgpt/internal/domain"
	"backtestgpt/internal/service"
	"backtestgpt/internal/validator"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubStrategyValidator struct {
	compatible bool
	message    string

	lastSpec domain.StrategySpec
}

func (s *stubStrategyValidator) Validate(ctx context.Context, spec domain.StrategySpec) validator.Verdict {
	s.lastSpec = spec
	return validator.Verdict{Compatible: s.compatible, Message: s.message, Spec: spec}
}

type stubBacktestRunner struct {
	result   *domain.BacktestResult
	warnings []string
	err      error

	lastReq service.RunRequest
}

func (s *stubBacktestRunner) Run(ctx context.Context, req service.RunRequest) (*domain.BacktestResult, []string, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.result, s.warnings, nil
}

type stubRunHistory struct {
	runs []domain.BacktestRun

	lastLimit int
}

func (s *stubRunHistory) ListRecent(ctx context.Context, limit int) ([]domain.BacktestRun, error) {
	s.lastLimit = limit
	if len(s.runs) > limit {
		return append([]domain.BacktestRun(nil), s.runs[:limit]...), nil
	}
	return append([]domain.BacktestRun(nil), s.runs...), nil
}

func testServer() (*sdkmcp.Server, *stubStrategyValidator, *stubBacktestRunner, *stubRunHistory) {
	cat, err := catalog.New()
	if err != nil {
		panic(err)
	}

	strategies := &stubStrategyValidator{compatible: true, message: "Strategy looks good."}
	runner := &stubBacktestRunner{
		result: &domain.BacktestResult{
			Ticker:  "SPY",
			Metrics: &domain.Metrics{TotalReturn: 0.42, TotalTrades: 10},
			ChartData: &domain.ChartData{
				Dates:  []string{"2020-01-02", "2020-01-03"},
				Equity: []float64{100000, 100500},
			},
		},
	}
	runs := &stubRunHistory{
		runs: []domain.BacktestRun{{
			ID: 1, SessionKey: "default", Ticker: "AAPL",
			Metrics: &domain.Metrics{TotalReturn: 0.1}, CreatedAt: time.Unix(0, 0).UTC(),
		}},
	}

	srv := NewServer(nil, cat, strategies, runner, runs, ServerConfig{RequestTimeout: time.Second})
	return srv, strategies, runner, runs
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}

func crossoverArguments() map[string]any {
	return map[string]any{
		"ticker": "spy",
		"indicators": []map[string]any{
			{"id": "sma_fast", "type": "SMA", "params": map[string]any{"window": 50}},
			{"id": "sma_slow", "type": "SMA", "params": map[string]any{"window": 200}},
		},
		"entry_conditions": map[string]any{"op": "cross_above", "args": []any{"sma_fast.ma", "sma_slow.ma"}},
		"exit_conditions":  map[string]any{"op": "cross_below", "args": []any{"sma_fast.ma", "sma_slow.ma"}},
	}
}
