package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PriceColumn is one of the five raw OHLCV series of an asset.
type PriceColumn string

const (
	ColumnOpen   PriceColumn = "Open"
	ColumnHigh   PriceColumn = "High"
	ColumnLow    PriceColumn = "Low"
	ColumnClose  PriceColumn = "Close"
	ColumnVolume PriceColumn = "Volume"
)

// PriceColumns lists every recognized price column.
var PriceColumns = []PriceColumn{ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume}

// OperandKind tags the variant held by an OperandRef.
type OperandKind int

const (
	OperandUnresolved OperandKind = iota
	OperandNumber
	OperandPrice
	OperandIndicator
)

// OperandRef is a symbolic pointer to a price column, an indicator output,
// or a numeric literal.
type OperandRef struct {
	Kind        OperandKind
	Value       float64
	Column      PriceColumn
	IndicatorID string
	Attribute   string
	Raw         string
}

// ParseOperand turns a raw string reference into an OperandRef with fixed
// precedence: numeric literal, then price column keyword, then dotted
// indicator reference, then unresolved.
func ParseOperand(raw string) OperandRef {
	trimmed := strings.TrimSpace(raw)

	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return OperandRef{Kind: OperandNumber, Value: v, Raw: trimmed}
	}

	for _, col := range PriceColumns {
		if strings.EqualFold(trimmed, string(col)) {
			return OperandRef{Kind: OperandPrice, Column: col, Raw: trimmed}
		}
	}

	if id, attr, ok := strings.Cut(trimmed, "."); ok && id != "" && attr != "" {
		return OperandRef{Kind: OperandIndicator, IndicatorID: id, Attribute: attr, Raw: trimmed}
	}

	return OperandRef{Kind: OperandUnresolved, Raw: trimmed}
}

// NumberOperand builds a literal operand from a numeric value.
func NumberOperand(v float64) OperandRef {
	return OperandRef{Kind: OperandNumber, Value: v, Raw: strconv.FormatFloat(v, 'f', -1, 64)}
}

func (o OperandRef) String() string {
	if o.Raw != "" {
		return o.Raw
	}
	switch o.Kind {
	case OperandNumber:
		return strconv.FormatFloat(o.Value, 'f', -1, 64)
	case OperandPrice:
		return string(o.Column)
	case OperandIndicator:
		return o.IndicatorID + "." + o.Attribute
	}
	return ""
}

// IsZeroLiteral reports whether the operand is the numeric literal 0.
func (o OperandRef) IsZeroLiteral() bool {
	return o.Kind == OperandNumber && o.Value == 0
}

// Operator is a rule operator key as it appears on the wire.
type Operator string

const (
	OpCrossAbove     Operator = "cross_above"
	OpCrossBelow     Operator = "cross_below"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpEqualTo        Operator = "equal_to"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
)

// RuleExpr is a binary operator applied to two ordered operand references.
type RuleExpr struct {
	Op   Operator
	Args [2]OperandRef
}

// IsZero reports whether the rule carries no information at all.
func (r RuleExpr) IsZero() bool {
	return r.Op == "" && r.Args[0].Raw == "" && r.Args[1].Raw == ""
}

// IsMeaningful reports whether the rule can ever express a real trading
// decision. Comparing two raw price columns, or a price column against the
// literal zero, is degenerate and never counts toward completeness.
func (r RuleExpr) IsMeaningful() bool {
	if r.Op == "" {
		return false
	}
	left, right := r.Args[0], r.Args[1]
	if left.Raw == "" || right.Raw == "" {
		return false
	}
	if left.Kind == OperandPrice && right.Kind == OperandPrice {
		return false
	}
	if left.Kind == OperandPrice && right.IsZeroLiteral() {
		return false
	}
	if right.Kind == OperandPrice && left.IsZeroLiteral() {
		return false
	}
	return true
}

// Equal compares two rules by operator and raw operand text.
func (r RuleExpr) Equal(other RuleExpr) bool {
	return r.Op == other.Op &&
		r.Args[0].String() == other.Args[0].String() &&
		r.Args[1].String() == other.Args[1].String()
}

// ruleWire is the JSON shape produced by the extraction collaborator:
// {"op": "...", "args": ["SMA50.ma", "SMA200.ma"]} where each arg is a
// reference string or a bare number.
type ruleWire struct {
	Op   string `json:"op"`
	Args []any  `json:"args"`
}

func (r *RuleExpr) UnmarshalJSON(data []byte) error {
	var wire ruleWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire.Args) > 2 {
		return fmt.Errorf("rule takes exactly two operands, got %d", len(wire.Args))
	}
	out := RuleExpr{Op: Operator(strings.TrimSpace(wire.Op))}
	for i, arg := range wire.Args {
		switch v := arg.(type) {
		case string:
			out.Args[i] = ParseOperand(v)
		case float64:
			out.Args[i] = NumberOperand(v)
		default:
			return fmt.Errorf("unsupported operand type %T", arg)
		}
	}
	*r = out
	return nil
}

func (r RuleExpr) MarshalJSON() ([]byte, error) {
	wire := ruleWire{Op: string(r.Op)}
	if !r.IsZero() {
		wire.Args = []any{r.Args[0].String(), r.Args[1].String()}
	}
	return json.Marshal(wire)
}

// IndicatorType is a supported indicator kind key.
type IndicatorType string

const (
	IndicatorSMA  IndicatorType = "SMA"
	IndicatorEMA  IndicatorType = "EMA"
	IndicatorRSI  IndicatorType = "RSI"
	IndicatorMACD IndicatorType = "MACD"
	IndicatorBB   IndicatorType = "BB"
)

// Params holds indicator parameters as they arrive on the wire
// ({"window": 50, "column": "Close"}).
type Params map[string]any

// Int returns the named parameter as an int, or def when absent or non-numeric.
func (p Params) Int(name string, def int) int {
	switch v := p[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Float returns the named parameter as a float64, or def when absent.
func (p Params) Float(name string, def float64) float64 {
	switch v := p[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// Str returns the named parameter as a string, or def when absent.
func (p Params) Str(name, def string) string {
	if v, ok := p[name].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// IndicatorSpec is a named, parameterized indicator. The ID is the key other
// rules reference via "<id>.<attribute>" and is unique within a strategy.
type IndicatorSpec struct {
	ID     string        `json:"id"`
	Type   IndicatorType `json:"type"`
	Params Params        `json:"params"`
}

// StrategySpec is a complete, validated strategy ready for execution.
type StrategySpec struct {
	Ticker     string          `json:"ticker"`
	Indicators []IndicatorSpec `json:"indicators"`
	Entry      RuleExpr        `json:"entry"`
	Exit       RuleExpr        `json:"exit"`
}

// NormalizeTicker trims and upper-cases an asset identifier. Tickers are
// always stored normalized; the operation is idempotent.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Metrics are the performance statistics of one finished backtest run.
type Metrics struct {
	StartValue      float64 `json:"start_value"`
	EndValue        float64 `json:"end_value"`
	TotalReturn     float64 `json:"total_return"`
	CAGR            float64 `json:"CAGR"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	SortinoRatio    float64 `json:"sortino_ratio"`
	WinRate         float64 `json:"win_rate"`
	AvgWinningTrade float64 `json:"avg_winning_trade"`
	AvgLosingTrade  float64 `json:"avg_losing_trade"`
	ProfitFactor    float64 `json:"profit_factor"`
	TotalTrades     int     `json:"total_trades"`
	Years           float64 `json:"years"`
}

// ChartData carries the time-aligned series a frontend needs to draw a run.
type ChartData struct {
	Dates      []string             `json:"dates"`
	Equity     []float64            `json:"equity"`
	Drawdown   []float64            `json:"drawdown"`
	Close      []float64            `json:"close"`
	Indicators map[string][]float64 `json:"indicators,omitempty"`
	Signals    map[string][]int     `json:"signals,omitempty"`
}

// BacktestResult is the payload returned on a successful run.
type BacktestResult struct {
	Ticker    string     `json:"ticker"`
	Metrics   *Metrics   `json:"metrics"`
	ChartData *ChartData `json:"chart_data"`
}

// Bar is one daily OHLCV observation.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

type ConversationMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

// BacktestRun is the persisted record of one executed backtest.
type BacktestRun struct {
	ID         int64        `json:"id"`
	SessionKey string       `json:"session_key"`
	Ticker     string       `json:"ticker"`
	Spec       StrategySpec `json:"spec"`
	Metrics    *Metrics     `json:"metrics"`
	CreatedAt  time.Time    `json:"created_at"`
}
