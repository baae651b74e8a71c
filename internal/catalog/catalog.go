// Package catalog declares the static capability registry: which indicator
// kinds and which rule operators the backtest engine can execute. Read-only
// after construction.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"backtestgpt/internal/domain"
)

// Entry describes one supported indicator kind.
type Entry struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// OperatorGroup is a category of supported rule operators.
type OperatorGroup struct {
	Category string   `json:"category"`
	Ops      []string `json:"ops"`
}

// Template is a named reference strategy used for similar-strategy
// suggestions when a candidate fails validation.
type Template struct {
	Key         string                 `json:"key"`
	Description string                 `json:"description"`
	Indicators  []domain.IndicatorType `json:"indicators"`
}

// Catalog is the capability registry checked by the strategy validator.
type Catalog struct {
	indicators []Entry
	operators  []OperatorGroup
	templates  []Template

	indicatorSet map[string]Entry
	operatorSet  map[string]string
}

// New builds the default catalog. Entry shapes are validated here so a
// malformed table fails at startup rather than mid-conversation.
func New() (*Catalog, error) {
	return build(defaultIndicators, defaultOperators, defaultTemplates)
}

func build(indicators []Entry, operators []OperatorGroup, templates []Template) (*Catalog, error) {
	c := &Catalog{
		indicators:   indicators,
		operators:    operators,
		templates:    templates,
		indicatorSet: make(map[string]Entry, len(indicators)),
		operatorSet:  make(map[string]string),
	}
	for _, e := range indicators {
		if e.Key == "" || e.Description == "" {
			return nil, fmt.Errorf("catalog indicator entry missing key or description: %+v", e)
		}
		key := strings.ToUpper(e.Key)
		if _, ok := c.indicatorSet[key]; ok {
			return nil, fmt.Errorf("duplicate catalog indicator %q", e.Key)
		}
		c.indicatorSet[key] = e
	}
	for _, g := range operators {
		if g.Category == "" || len(g.Ops) == 0 {
			return nil, fmt.Errorf("catalog operator group missing category or ops: %+v", g)
		}
		for _, op := range g.Ops {
			if _, ok := c.operatorSet[op]; ok {
				return nil, fmt.Errorf("duplicate catalog operator %q", op)
			}
			c.operatorSet[op] = g.Category
		}
	}
	return c, nil
}

var defaultIndicators = []Entry{
	{Key: "SMA", Description: "Simple Moving Average"},
	{Key: "EMA", Description: "Exponential Moving Average"},
	{Key: "RSI", Description: "Relative Strength Index"},
	{Key: "MACD", Description: "Moving Average Convergence Divergence"},
	{Key: "BB", Description: "Bollinger Bands"},
}

var defaultOperators = []OperatorGroup{
	{Category: "comparison", Ops: []string{
		string(domain.OpGreaterThan), string(domain.OpLessThan), string(domain.OpEqualTo),
		string(domain.OpGreaterOrEqual), string(domain.OpLessOrEqual),
	}},
	{Category: "crossover", Ops: []string{
		string(domain.OpCrossAbove), string(domain.OpCrossBelow),
	}},
}

var defaultTemplates = []Template{
	{
		Key:         "SMA_Cross",
		Description: "Buy when the short SMA crosses above the long SMA, sell on the cross below",
		Indicators:  []domain.IndicatorType{domain.IndicatorSMA},
	},
	{
		Key:         "RSI_Reversal",
		Description: "Buy when RSI drops below 30 (oversold), sell when it rises above 70 (overbought)",
		Indicators:  []domain.IndicatorType{domain.IndicatorRSI},
	},
	{
		Key:         "BB_Mean_Reversion",
		Description: "Buy when price closes below the lower Bollinger band, sell at the middle band",
		Indicators:  []domain.IndicatorType{domain.IndicatorBB},
	},
	{
		Key:         "MACD_Momentum",
		Description: "Buy when the MACD line crosses above its signal line, sell on the cross below",
		Indicators:  []domain.IndicatorType{domain.IndicatorMACD},
	},
}

// HasIndicator reports whether the kind is executable. Matching is
// case-insensitive because extraction output casing is not reliable.
func (c *Catalog) HasIndicator(kind string) bool {
	_, ok := c.indicatorSet[strings.ToUpper(strings.TrimSpace(kind))]
	return ok
}

// HasOperator reports whether the operator key is supported.
func (c *Catalog) HasOperator(op string) bool {
	_, ok := c.operatorSet[strings.TrimSpace(op)]
	return ok
}

// Indicators returns the indicator entries in declaration order.
func (c *Catalog) Indicators() []Entry {
	out := make([]Entry, len(c.indicators))
	copy(out, c.indicators)
	return out
}

// Operators returns the operator groups in declaration order.
func (c *Catalog) Operators() []OperatorGroup {
	out := make([]OperatorGroup, len(c.operators))
	copy(out, c.operators)
	return out
}

// AllOperators returns every supported operator key, sorted.
func (c *Catalog) AllOperators() []string {
	out := make([]string, 0, len(c.operatorSet))
	for op := range c.operatorSet {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

// SuggestSimilar returns candidates whose key overlaps the given name as a
// substring in either direction. This is a lexical heuristic, not a
// semantic match.
func SuggestSimilar(name string, candidates []string) []string {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}
	var out []string
	for _, candidate := range candidates {
		lower := strings.ToLower(candidate)
		if strings.Contains(lower, needle) || strings.Contains(needle, lower) {
			out = append(out, candidate)
		}
	}
	return out
}

// SimilarIndicators suggests supported indicator kinds lexically close to the
// unsupported one.
func (c *Catalog) SimilarIndicators(kind string) []string {
	keys := make([]string, 0, len(c.indicators))
	for _, e := range c.indicators {
		keys = append(keys, e.Key)
	}
	return SuggestSimilar(kind, keys)
}

// SimilarTemplates returns templates whose indicator kinds overlap the
// candidate strategy's, for "similar supported strategies" suggestions.
func (c *Catalog) SimilarTemplates(indicators []domain.IndicatorSpec) []Template {
	used := make(map[domain.IndicatorType]struct{}, len(indicators))
	for _, ind := range indicators {
		used[domain.IndicatorType(strings.ToUpper(string(ind.Type)))] = struct{}{}
	}
	var out []Template
	for _, tpl := range c.templates {
		for _, kind := range tpl.Indicators {
			if _, ok := used[kind]; ok {
				out = append(out, tpl)
				break
			}
		}
	}
	return out
}

// Templates returns every named template strategy.
func (c *Catalog) Templates() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}
