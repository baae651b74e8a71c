package service

import (
	"context"
	"testing"
	"time"

	"backtestgpt/internal/backtest"
	"backtestgpt/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type stubBars struct {
	bars   []domain.Bar
	ticker string
	from   time.Time
	to     time.Time
}

func (b *stubBars) GetDailyBars(_ context.Context, ticker string, from, to time.Time) ([]domain.Bar, error) {
	b.ticker = ticker
	b.from = from
	b.to = to
	return b.bars, nil
}

type stubRuns struct {
	runs []domain.BacktestRun
}

func (r *stubRuns) InsertRun(_ context.Context, run domain.BacktestRun) (int64, error) {
	r.runs = append(r.runs, run)
	return int64(len(r.runs)), nil
}

func dailyBars(closes []float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	day := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = domain.Bar{Date: day.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return bars
}

func crossSpec(ticker string) domain.StrategySpec {
	return domain.StrategySpec{
		Ticker: ticker,
		Indicators: []domain.IndicatorSpec{
			{ID: "SMA3", Type: domain.IndicatorSMA, Params: domain.Params{"window": 3}},
		},
		Entry: domain.RuleExpr{Op: domain.OpCrossAbove, Args: [2]domain.OperandRef{domain.ParseOperand("Close"), domain.ParseOperand("SMA3.ma")}},
		Exit:  domain.RuleExpr{Op: domain.OpCrossBelow, Args: [2]domain.OperandRef{domain.ParseOperand("Close"), domain.ParseOperand("SMA3.ma")}},
	}
}

func TestBacktestServiceAppliesDefaults(t *testing.T) {
	bars := &stubBars{bars: dailyBars([]float64{100, 101, 102, 103, 104, 103, 102, 101, 100, 104, 108})}
	runs := &stubRuns{}
	svc := NewBacktestService(trace.NewNoopTracerProvider().Tracer("test"), bars, backtest.NewEngine(), runs)

	result, _, err := svc.Run(context.Background(), RunRequest{Spec: crossSpec("")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if bars.ticker != DefaultTicker {
		t.Fatalf("ticker = %q, want default %q", bars.ticker, DefaultTicker)
	}
	if got := bars.from.Format(dateLayout); got != DefaultStart {
		t.Fatalf("start = %s, want %s", got, DefaultStart)
	}
	if got := bars.to.Format(dateLayout); got != DefaultEnd {
		t.Fatalf("end = %s, want %s", got, DefaultEnd)
	}
	if result.Ticker != DefaultTicker {
		t.Fatalf("result ticker = %q", result.Ticker)
	}
	if len(runs.runs) != 1 {
		t.Fatalf("recorded %d runs, want 1", len(runs.runs))
	}
	if runs.runs[0].Metrics == nil {
		t.Fatal("recorded run is missing metrics")
	}
}

func TestBacktestServiceNormalizesTicker(t *testing.T) {
	bars := &stubBars{bars: dailyBars([]float64{100, 101, 102, 103, 104, 105})}
	svc := NewBacktestService(trace.NewNoopTracerProvider().Tracer("test"), bars, backtest.NewEngine(), nil)

	if _, _, err := svc.Run(context.Background(), RunRequest{Spec: crossSpec(" msft ")}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if bars.ticker != "MSFT" {
		t.Fatalf("ticker = %q, want MSFT", bars.ticker)
	}
}

func TestBacktestServiceRejectsBadWindow(t *testing.T) {
	svc := NewBacktestService(trace.NewNoopTracerProvider().Tracer("test"), &stubBars{}, backtest.NewEngine(), nil)

	if _, _, err := svc.Run(context.Background(), RunRequest{Spec: crossSpec("SPY"), Start: "nonsense"}); err == nil {
		t.Fatal("expected error for malformed start date")
	}
	if _, _, err := svc.Run(context.Background(), RunRequest{Spec: crossSpec("SPY"), Start: "2024-01-01", End: "2023-01-01"}); err == nil {
		t.Fatal("expected error for inverted window")
	}
}
