// Package rules resolves symbolic operand references into time-aligned
// series and evaluates rule expressions into boolean signal series.
package rules

import (
	"fmt"

	"backtestgpt/internal/domain"
)

// Series is a resolved operand: either a column of values aligned to the
// asset's date index, or a scalar broadcast against any series.
type Series struct {
	scalar bool
	value  float64
	values []float64
}

// ScalarSeries wraps a literal value.
func ScalarSeries(v float64) Series {
	return Series{scalar: true, value: v}
}

// ValueSeries wraps a time-aligned column.
func ValueSeries(values []float64) Series {
	return Series{values: values}
}

// At returns the value at position i; scalars broadcast to every position.
func (s Series) At(i int) float64 {
	if s.scalar {
		return s.value
	}
	return s.values[i]
}

// IsScalar reports whether the series is a broadcast literal.
func (s Series) IsScalar() bool { return s.scalar }

// UnresolvedRefError marks a reference that did not resolve to any known
// price column or indicator output. Evaluation still proceeds on a
// zero-filled series, but callers surface the failure as a diagnostic
// instead of letting a silently wrong signal stand alone.
type UnresolvedRefError struct {
	Ref string
}

func (e *UnresolvedRefError) Error() string {
	return fmt.Sprintf("unresolved operand reference %q", e.Ref)
}

// Context exposes the named price columns and the computed indicator
// outputs a rule may reference.
type Context struct {
	length  int
	columns map[domain.PriceColumn][]float64
	outputs map[string]map[string][]float64
}

// NewContext builds a resolution context from daily bars and the explicit
// indicator-output mapping produced by the indicator factory.
func NewContext(bars []domain.Bar, outputs map[string]map[string][]float64) *Context {
	n := len(bars)
	cols := map[domain.PriceColumn][]float64{
		domain.ColumnOpen:   make([]float64, n),
		domain.ColumnHigh:   make([]float64, n),
		domain.ColumnLow:    make([]float64, n),
		domain.ColumnClose:  make([]float64, n),
		domain.ColumnVolume: make([]float64, n),
	}
	for i, bar := range bars {
		cols[domain.ColumnOpen][i] = bar.Open
		cols[domain.ColumnHigh][i] = bar.High
		cols[domain.ColumnLow][i] = bar.Low
		cols[domain.ColumnClose][i] = bar.Close
		cols[domain.ColumnVolume][i] = bar.Volume
	}
	return &Context{length: n, columns: cols, outputs: outputs}
}

// Len returns the number of positions in the date index.
func (c *Context) Len() int { return c.length }

// Close returns the close column.
func (c *Context) Close() []float64 { return c.columns[domain.ColumnClose] }

// Resolve turns an operand reference into a concrete series or scalar.
// Unknown indicator ids or attributes degrade to a zero-filled series and
// return an UnresolvedRefError so the caller can report the reference.
func (c *Context) Resolve(ref domain.OperandRef) (Series, error) {
	switch ref.Kind {
	case domain.OperandNumber:
		return ScalarSeries(ref.Value), nil

	case domain.OperandPrice:
		return ValueSeries(c.columns[ref.Column]), nil

	case domain.OperandIndicator:
		if byOutput, ok := c.outputs[ref.IndicatorID]; ok {
			if series, ok := byOutput[ref.Attribute]; ok && len(series) == c.length {
				return ValueSeries(series), nil
			}
		}
		return c.zeroSeries(), &UnresolvedRefError{Ref: ref.String()}
	}
	return c.zeroSeries(), &UnresolvedRefError{Ref: ref.String()}
}

func (c *Context) zeroSeries() Series {
	return ValueSeries(make([]float64, c.length))
}
