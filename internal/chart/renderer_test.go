package chart

import (
	"bytes"
	"image/png"
	"testing"

	"backtestgpt/internal/domain"
)

func buildTestResult(points int) *domain.BacktestResult {
	equity := make([]float64, points)
	closes := make([]float64, points)
	drawdown := make([]float64, points)
	entries := make([]int, points)
	exits := make([]int, points)
	for i := 0; i < points; i++ {
		equity[i] = 100000 + float64(i*40) - float64((i%13)*90)
		closes[i] = 100 + float64((i%17)-8)
		drawdown[i] = float64(i%13) / 2
	}
	if points > 10 {
		entries[3] = 1
		exits[points-4] = 1
	}
	return &domain.BacktestResult{
		Ticker: "AAPL",
		ChartData: &domain.ChartData{
			Equity:   equity,
			Close:    closes,
			Drawdown: drawdown,
			Signals:  map[string][]int{"Entries": entries, "Exits": exits},
		},
	}
}

func TestRenderEquityChart(t *testing.T) {
	renderer := NewRenderer(0, 0)
	data, err := renderer.RenderEquityChart(buildTestResult(200))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty image bytes")
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != defaultChartWidth || bounds.Dy() != defaultChartHeight {
		t.Fatalf("unexpected dimensions %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderEquityChartTruncatesLongRuns(t *testing.T) {
	renderer := NewRenderer(640, 360)
	data, err := renderer.RenderEquityChart(buildTestResult(maxChartPoints * 3))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty image bytes")
	}
}

func TestRenderEquityChartRejectsShortSeries(t *testing.T) {
	renderer := NewRenderer(0, 0)
	if _, err := renderer.RenderEquityChart(buildTestResult(1)); err == nil {
		t.Fatal("expected error for a single equity point")
	}
	if _, err := renderer.RenderEquityChart(nil); err == nil {
		t.Fatal("expected error for nil result")
	}
}
