// Package indicator computes named indicator output series from daily bars.
// Each indicator id maps to an explicit set of named outputs, which is the
// mapping rule operands address via "<id>.<output>".
package indicator

import (
	"fmt"
	"math"
	"strings"

	"backtestgpt/internal/domain"
)

const (
	defaultMAWindow   = 20
	defaultRSIWindow  = 14
	defaultBBWindow   = 20
	defaultBBStdDevs  = 2.0
	macdFastPeriod    = 12
	macdSlowPeriod    = 26
	macdSignalPeriod  = 9
	maxIndicatorCount = 16
)

// Outputs maps indicator id to its named output series, all aligned to the
// bar index. Warmup positions hold NaN and never satisfy a comparison.
type Outputs map[string]map[string][]float64

// Compute runs the factory for every spec. Unknown indicator kinds are an
// error here; the strategy validator is expected to have rejected them first.
func Compute(specs []domain.IndicatorSpec, bars []domain.Bar) (Outputs, error) {
	if len(specs) > maxIndicatorCount {
		return nil, fmt.Errorf("too many indicators: %d (max %d)", len(specs), maxIndicatorCount)
	}
	out := make(Outputs, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(spec.ID) == "" {
			return nil, fmt.Errorf("indicator of type %s has no id", spec.Type)
		}
		source := column(bars, spec.Params.Str("column", string(domain.ColumnClose)))
		series, err := compute(spec, source)
		if err != nil {
			return nil, err
		}
		out[spec.ID] = series
	}
	return out, nil
}

func compute(spec domain.IndicatorSpec, source []float64) (map[string][]float64, error) {
	switch domain.IndicatorType(strings.ToUpper(string(spec.Type))) {
	case domain.IndicatorSMA:
		window, err := window(spec, defaultMAWindow, len(source))
		if err != nil {
			return nil, err
		}
		return map[string][]float64{"ma": smaSeries(source, window)}, nil

	case domain.IndicatorEMA:
		window, err := window(spec, defaultMAWindow, len(source))
		if err != nil {
			return nil, err
		}
		return map[string][]float64{"ema": emaSeries(source, window)}, nil

	case domain.IndicatorRSI:
		window, err := window(spec, defaultRSIWindow, len(source))
		if err != nil {
			return nil, err
		}
		return map[string][]float64{"rsi": rsiSeries(source, window)}, nil

	case domain.IndicatorMACD:
		fast := spec.Params.Int("fast", macdFastPeriod)
		slow := spec.Params.Int("slow", macdSlowPeriod)
		signal := spec.Params.Int("signal", macdSignalPeriod)
		if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
			return nil, fmt.Errorf("indicator %s: invalid macd periods %d/%d/%d", spec.ID, fast, slow, signal)
		}
		macdLine, signalLine := macdSeries(source, fast, slow, signal)
		hist := make([]float64, len(source))
		for i := range hist {
			hist[i] = macdLine[i] - signalLine[i]
		}
		return map[string][]float64{"macd": macdLine, "signal": signalLine, "hist": hist}, nil

	case domain.IndicatorBB:
		window, err := window(spec, defaultBBWindow, len(source))
		if err != nil {
			return nil, err
		}
		stdDevs := spec.Params.Float("std", defaultBBStdDevs)
		lower, middle, upper := bollingerSeries(source, window, stdDevs)
		return map[string][]float64{"lower": lower, "middle": middle, "upper": upper}, nil
	}
	return nil, fmt.Errorf("unsupported indicator type %q", spec.Type)
}

func window(spec domain.IndicatorSpec, def, max int) (int, error) {
	w := spec.Params.Int("window", def)
	if w <= 0 {
		return 0, fmt.Errorf("indicator %s: window must be positive, got %d", spec.ID, w)
	}
	if max > 0 && w > max {
		return 0, fmt.Errorf("indicator %s: window %d exceeds available history (%d bars)", spec.ID, w, max)
	}
	return w, nil
}

func column(bars []domain.Bar, name string) []float64 {
	values := make([]float64, len(bars))
	for i, bar := range bars {
		switch {
		case strings.EqualFold(name, string(domain.ColumnOpen)):
			values[i] = bar.Open
		case strings.EqualFold(name, string(domain.ColumnHigh)):
			values[i] = bar.High
		case strings.EqualFold(name, string(domain.ColumnLow)):
			values[i] = bar.Low
		case strings.EqualFold(name, string(domain.ColumnVolume)):
			values[i] = bar.Volume
		default:
			values[i] = bar.Close
		}
	}
	return values
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func smaSeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rsiSeries uses Wilder smoothing; positions before one full period are NaN.
func rsiSeries(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if len(closes) <= period {
		return out
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return out
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func macdSeries(values []float64, fast, slow, signal int) ([]float64, []float64) {
	fastEMA := emaSeries(values, fast)
	slowEMA := emaSeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := emaSeries(macdLine, signal)
	return macdLine, signalLine
}

func bollingerSeries(values []float64, period int, stdDevs float64) (lower, middle, upper []float64) {
	lower = nanSeries(len(values))
	middle = nanSeries(len(values))
	upper = nanSeries(len(values))
	for i := period - 1; i < len(values); i++ {
		mean, std := meanStd(values[i-period+1 : i+1])
		middle[i] = mean
		lower[i] = mean - stdDevs*std
		upper[i] = mean + stdDevs*std
	}
	return lower, middle, upper
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	if len(values) == 1 {
		return mean, 0
	}
	for _, v := range values {
		d := v - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}
