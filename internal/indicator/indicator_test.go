package indicator

import (
	"math"
	"testing"
	"time"

	"backtestgpt/internal/domain"
)

func makeBars(closes []float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = domain.Bar{Date: day.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 100}
	}
	return bars
}

func TestComputeSMA(t *testing.T) {
	bars := makeBars([]float64{1, 2, 3, 4, 5})
	outputs, err := Compute([]domain.IndicatorSpec{
		{ID: "SMA3", Type: domain.IndicatorSMA, Params: domain.Params{"window": float64(3)}},
	}, bars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ma := outputs["SMA3"]["ma"]
	if len(ma) != 5 {
		t.Fatalf("expected 5 positions, got %d", len(ma))
	}
	if !math.IsNaN(ma[0]) || !math.IsNaN(ma[1]) {
		t.Fatal("expected NaN warmup before the first full window")
	}
	if ma[2] != 2 || ma[4] != 4 {
		t.Fatalf("unexpected sma values: %v", ma)
	}
}

func TestComputeRSIBounds(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%7) - float64(i%3)
	}
	outputs, err := Compute([]domain.IndicatorSpec{
		{ID: "RSI14", Type: domain.IndicatorRSI, Params: domain.Params{"window": float64(14)}},
	}, makeBars(closes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rsi := outputs["RSI14"]["rsi"]
	for i := 0; i < 14; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Fatalf("expected NaN warmup at %d", i)
		}
	}
	for i := 14; i < len(rsi); i++ {
		if rsi[i] < 0 || rsi[i] > 100 {
			t.Fatalf("rsi[%d]=%v out of [0,100]", i, rsi[i])
		}
	}
}

func TestComputeRSIAllGainsIsHundred(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(100 + i)
	}
	outputs, err := Compute([]domain.IndicatorSpec{
		{ID: "RSI14", Type: domain.IndicatorRSI},
	}, makeBars(closes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rsi := outputs["RSI14"]["rsi"]
	if rsi[len(rsi)-1] != 100 {
		t.Fatalf("expected rsi 100 on monotonic gains, got %v", rsi[len(rsi)-1])
	}
}

func TestComputeBollingerOrdering(t *testing.T) {
	closes := []float64{10, 12, 11, 13, 12, 14, 13, 15, 14, 16}
	outputs, err := Compute([]domain.IndicatorSpec{
		{ID: "BB5", Type: domain.IndicatorBB, Params: domain.Params{"window": float64(5)}},
	}, makeBars(closes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bb := outputs["BB5"]
	for i := 4; i < len(closes); i++ {
		if !(bb["lower"][i] <= bb["middle"][i] && bb["middle"][i] <= bb["upper"][i]) {
			t.Fatalf("band ordering violated at %d: %v %v %v", i, bb["lower"][i], bb["middle"][i], bb["upper"][i])
		}
	}
}

func TestComputeMACDOutputs(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i)/5)*10
	}
	outputs, err := Compute([]domain.IndicatorSpec{
		{ID: "MACD", Type: domain.IndicatorMACD},
	}, makeBars(closes))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	macd := outputs["MACD"]
	for _, name := range []string{"macd", "signal", "hist"} {
		if len(macd[name]) != 60 {
			t.Fatalf("missing output %q", name)
		}
	}
	for i := range closes {
		want := macd["macd"][i] - macd["signal"][i]
		if math.Abs(macd["hist"][i]-want) > 1e-12 {
			t.Fatalf("hist[%d] inconsistent", i)
		}
	}
}

func TestComputeRejectsBadSpecs(t *testing.T) {
	bars := makeBars([]float64{1, 2, 3})

	if _, err := Compute([]domain.IndicatorSpec{{ID: "X", Type: "ICHIMOKU"}}, bars); err == nil {
		t.Fatal("expected error for unsupported type")
	}
	if _, err := Compute([]domain.IndicatorSpec{{Type: domain.IndicatorSMA}}, bars); err == nil {
		t.Fatal("expected error for missing id")
	}
	if _, err := Compute([]domain.IndicatorSpec{
		{ID: "SMA0", Type: domain.IndicatorSMA, Params: domain.Params{"window": float64(-1)}},
	}, bars); err == nil {
		t.Fatal("expected error for non-positive window")
	}
	if _, err := Compute([]domain.IndicatorSpec{
		{ID: "SMA9", Type: domain.IndicatorSMA, Params: domain.Params{"window": float64(9)}},
	}, bars); err == nil {
		t.Fatal("expected error for window beyond history")
	}
}
