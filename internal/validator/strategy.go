package validator

import (
	"context"
	"fmt"
	"strings"

	"backtestgpt/internal/catalog"
	"backtestgpt/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxOperatorSuggestions = 5

// AlternativeSuggester proposes a replacement for a ticker that failed
// validation. Implementations may consult a language model.
type AlternativeSuggester interface {
	SuggestAlternativeTicker(ctx context.Context, ticker string) (string, error)
}

// Verdict is the outcome of a strategy compatibility check. Spec carries any
// corrections applied during validation, such as a substituted ticker.
type Verdict struct {
	Compatible bool
	Message    string
	Spec       domain.StrategySpec
}

// StrategyValidator checks a complete strategy candidate against the catalog
// and live data before it is allowed to execute.
type StrategyValidator struct {
	tracer        trace.Tracer
	catalog       *catalog.Catalog
	tickers       *TickerValidator
	suggester     AlternativeSuggester
	defaultTicker string
}

// NewStrategyValidator wires the validator. suggester may be nil, in which
// case a failed ticker falls straight through to the default.
func NewStrategyValidator(tracer trace.Tracer, cat *catalog.Catalog, tickers *TickerValidator, suggester AlternativeSuggester, defaultTicker string) *StrategyValidator {
	if defaultTicker == "" {
		defaultTicker = "SPY"
	}
	return &StrategyValidator{
		tracer:        tracer,
		catalog:       cat,
		tickers:       tickers,
		suggester:     suggester,
		defaultTicker: defaultTicker,
	}
}

// Validate checks the ticker, every indicator kind, and every rule operator.
// The returned verdict's Spec may differ from the input when the ticker was
// substituted with a working alternative.
func (v *StrategyValidator) Validate(ctx context.Context, spec domain.StrategySpec) Verdict {
	ctx, span := v.tracer.Start(ctx, "strategy-validator.validate")
	defer span.End()

	var issues, suggestions []string
	corrected := spec

	if spec.Ticker != "" {
		ticker, tickerIssues, tickerSuggestions := v.resolveTicker(ctx, spec.Ticker)
		corrected.Ticker = ticker
		issues = append(issues, tickerIssues...)
		suggestions = append(suggestions, tickerSuggestions...)
	}

	for _, ind := range spec.Indicators {
		if v.catalog.HasIndicator(string(ind.Type)) {
			continue
		}
		issues = append(issues, fmt.Sprintf("Indicator %q is not supported", ind.Type))
		if similar := v.catalog.SimilarIndicators(string(ind.Type)); len(similar) > 0 {
			suggestions = append(suggestions, fmt.Sprintf("Did you mean one of: %s?", strings.Join(similar, ", ")))
		}
	}

	issues = append(issues, v.checkOperators("entry", spec.Entry)...)
	issues = append(issues, v.checkOperators("exit", spec.Exit)...)

	if len(issues) > 0 {
		if templates := v.similarTemplateSuggestions(spec); len(templates) > 0 {
			suggestions = append(suggestions, templates...)
		}
		span.SetAttributes(attribute.Int("issues", len(issues)))
		return Verdict{Compatible: false, Message: formatDiagnostic(issues, suggestions), Spec: corrected}
	}

	return Verdict{Compatible: true, Message: "Strategy is compatible", Spec: corrected}
}

// resolveTicker validates the ticker, then tries one model-suggested
// alternative, then falls back to the configured default as a last resort.
func (v *StrategyValidator) resolveTicker(ctx context.Context, ticker string) (string, []string, []string) {
	normalized := domain.NormalizeTicker(ticker)
	ok, msg := v.tickers.Validate(ctx, normalized)
	if ok {
		return normalized, nil, nil
	}

	issues := []string{msg}
	var suggestions []string

	if v.suggester != nil {
		alt, err := v.suggester.SuggestAlternativeTicker(ctx, normalized)
		if err == nil && alt != "" {
			alt = domain.NormalizeTicker(alt)
			if altOK, _ := v.tickers.Validate(ctx, alt); altOK {
				suggestions = append(suggestions, fmt.Sprintf("Using %s instead of %s", alt, normalized))
				return alt, nil, suggestions
			}
			issues = append(issues, fmt.Sprintf("Suggested alternative %q also has no data", alt))
		}
	}

	suggestions = append(suggestions, fmt.Sprintf("Consider using %s instead", v.defaultTicker))
	return v.defaultTicker, issues, suggestions
}

func (v *StrategyValidator) checkOperators(side string, rule domain.RuleExpr) []string {
	if rule.IsZero() {
		return nil
	}
	if v.catalog.HasOperator(string(rule.Op)) {
		return nil
	}
	ops := v.catalog.AllOperators()
	if len(ops) > maxOperatorSuggestions {
		ops = ops[:maxOperatorSuggestions]
	}
	return []string{fmt.Sprintf("Unsupported operator %q in %s rule (supported: %s)", rule.Op, side, strings.Join(ops, ", "))}
}

func (v *StrategyValidator) similarTemplateSuggestions(spec domain.StrategySpec) []string {
	templates := v.catalog.SimilarTemplates(spec.Indicators)
	if len(templates) == 0 {
		return nil
	}
	names := make([]string, 0, len(templates))
	for _, t := range templates {
		names = append(names, t.Key)
	}
	return []string{fmt.Sprintf("Similar known strategies: %s", strings.Join(names, ", "))}
}

func formatDiagnostic(issues, suggestions []string) string {
	var b strings.Builder
	b.WriteString("Strategy has compatibility issues:")
	for _, issue := range issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	if len(suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for _, s := range suggestions {
			b.WriteString("\n- ")
			b.WriteString(s)
		}
	}
	return b.String()
}
