package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"backtestgpt/internal/backtest"
	"backtestgpt/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTicker = "SPY"
	DefaultStart  = "2010-01-01"
	DefaultEnd    = "2025-01-01"

	dateLayout = "2006-01-02"
)

type BarProvider interface {
	GetDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]domain.Bar, error)
}

type RunRecorder interface {
	InsertRun(ctx context.Context, run domain.BacktestRun) (int64, error)
}

// RunRequest is one structured backtest request. Zero fields fall back to
// the service defaults.
type RunRequest struct {
	Spec        domain.StrategySpec
	SessionKey  string
	Start       string
	End         string
	InitialCash float64
	Fees        float64
}

// BacktestService loads market data, executes a strategy through the engine
// and records the run. The recorder is optional.
type BacktestService struct {
	tracer trace.Tracer
	bars   BarProvider
	engine *backtest.Engine
	runs   RunRecorder
}

func NewBacktestService(tracer trace.Tracer, bars BarProvider, engine *backtest.Engine, runs RunRecorder) *BacktestService {
	return &BacktestService{tracer: tracer, bars: bars, engine: engine, runs: runs}
}

// Run executes the request and returns the sanitized result plus warnings
// about unresolved operand references.
func (s *BacktestService) Run(ctx context.Context, req RunRequest) (*domain.BacktestResult, []string, error) {
	ctx, span := s.tracer.Start(ctx, "backtest-service.run")
	defer span.End()

	if s.bars == nil || s.engine == nil {
		return nil, nil, fmt.Errorf("backtest service is not fully initialized")
	}

	spec := req.Spec
	if spec.Ticker == "" {
		spec.Ticker = DefaultTicker
	}
	spec.Ticker = domain.NormalizeTicker(spec.Ticker)

	start, end, err := resolveWindow(req.Start, req.End)
	if err != nil {
		return nil, nil, err
	}

	bars, err := s.bars.GetDailyBars(ctx, spec.Ticker, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("load bars for %s: %w", spec.Ticker, err)
	}

	result, warnings, err := s.engine.Run(spec, bars, backtest.RunConfig{
		InitialCash: req.InitialCash,
		Fees:        req.Fees,
	})
	if err != nil {
		return nil, warnings, err
	}

	if s.runs != nil {
		run := domain.BacktestRun{
			SessionKey: req.SessionKey,
			Ticker:     result.Ticker,
			Spec:       spec,
			Metrics:    result.Metrics,
			CreatedAt:  time.Now().UTC(),
		}
		if _, err := s.runs.InsertRun(ctx, run); err != nil {
			log.Printf("record backtest run for %s: %v", result.Ticker, err)
		}
	}

	return result, warnings, nil
}

func resolveWindow(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" {
		startStr = DefaultStart
	}
	if endStr == "" {
		endStr = DefaultEnd
	}
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startStr, err)
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endStr, err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is not after start date %s", endStr, startStr)
	}
	return start, end, nil
}
