// Package extract turns free-form user text into structured strategy
// fragments using a chat completion model.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"backtestgpt/internal/domain"

	"github.com/openai/openai-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxAttempts       = 3
	initialBackoff    = time.Second
	backoffMultiplier = 1.5
)

// ErrRateLimited is returned without retrying when the model provider
// reports quota exhaustion.
var ErrRateLimited = errors.New("model rate limited")

// Fragment is the partial strategy a single utterance yields. Absent parts
// stay zero so the caller can merge into an accumulating draft.
type Fragment struct {
	Ticker   string            `json:"ticker"`
	Strategy *StrategyFragment `json:"strategy"`
}

type StrategyFragment struct {
	Indicators []domain.IndicatorSpec `json:"indicators"`
	Entry      domain.RuleExpr        `json:"entry_conditions"`
	Exit       domain.RuleExpr        `json:"exit_conditions"`
}

// Empty reports whether the fragment carries no usable information.
func (f Fragment) Empty() bool {
	if f.Ticker != "" {
		return false
	}
	if f.Strategy == nil {
		return true
	}
	return len(f.Strategy.Indicators) == 0 && f.Strategy.Entry.IsZero() && f.Strategy.Exit.IsZero()
}

// Generator produces one completion for a system and user prompt pair.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Extractor drives the model with focused prompts and decodes the strict
// JSON it is asked to emit.
type Extractor struct {
	tracer trace.Tracer
	gen    Generator
	sleep  func(time.Duration)
}

func NewExtractor(tracer trace.Tracer, gen Generator) *Extractor {
	return &Extractor{tracer: tracer, gen: gen, sleep: time.Sleep}
}

// Extract decodes a strategy fragment from text. missing lists the draft
// components still absent, which focuses the prompt on what is needed next.
// A response with no parseable JSON yields an empty fragment, not an error.
func (e *Extractor) Extract(ctx context.Context, text string, missing []string) (Fragment, error) {
	ctx, span := e.tracer.Start(ctx, "extract.fragment")
	defer span.End()
	span.SetAttributes(attribute.Int("missing_components", len(missing)))

	raw, err := e.complete(ctx, systemPrompt, userPrompt(text, missing))
	if err != nil {
		return Fragment{}, err
	}

	var frag Fragment
	payload, ok := jsonPayload(raw)
	if !ok {
		return Fragment{}, nil
	}
	if err := json.Unmarshal([]byte(payload), &frag); err != nil {
		return Fragment{}, nil
	}
	frag.Ticker = domain.NormalizeTicker(frag.Ticker)
	return frag, nil
}

// SuggestAlternativeTicker asks the model for a single replacement symbol.
func (e *Extractor) SuggestAlternativeTicker(ctx context.Context, ticker string) (string, error) {
	ctx, span := e.tracer.Start(ctx, "extract.alternative-ticker")
	defer span.End()

	prompt := fmt.Sprintf(
		"The ticker symbol %q has no retrievable market data. Reply with exactly one plausible alternative ticker symbol and nothing else.",
		ticker,
	)
	raw, err := e.complete(ctx, "You are a financial data assistant.", prompt)
	if err != nil {
		return "", err
	}
	alt := domain.NormalizeTicker(strings.Trim(raw, "\"'` \n"))
	if alt == "" {
		return "", fmt.Errorf("model returned no alternative for %q", ticker)
	}
	return alt, nil
}

// complete retries transient provider failures with exponential backoff and
// fails fast on rate limiting.
func (e *Extractor) complete(ctx context.Context, system, user string) (string, error) {
	delay := initialBackoff
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			e.sleep(delay)
			delay = time.Duration(float64(delay) * backoffMultiplier)
		}
		raw, err := e.gen.Complete(ctx, system, user)
		if err == nil {
			return raw, nil
		}
		if errors.Is(err, ErrRateLimited) || !isTransient(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("model unavailable after %d attempts: %w", maxAttempts, lastErr)
}

func isTransient(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode >= 500
	}
	return false
}

// jsonPayload slices the first top-level JSON object out of a model reply
// that may wrap it in prose or code fences.
func jsonPayload(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

const systemPrompt = `You are a trading strategy parser. Extract strategy components from the user's message and respond with strict JSON only, using this shape:
{"ticker": "SYMBOL or empty string", "strategy": {"indicators": [{"id": "RSI14", "type": "RSI", "params": {"window": 14}}], "entry_conditions": {"op": "less_than", "args": ["RSI14.rsi", 30]}, "exit_conditions": {"op": "greater_than", "args": ["RSI14.rsi", 70]}}}
Supported indicator types: SMA, EMA, RSI, MACD, BB. Supported operators: cross_above, cross_below, greater_than, less_than, equal_to, greater_or_equal, less_or_equal. Omit any component the message does not mention. Never invent a ticker.`

func userPrompt(text string, missing []string) string {
	if len(missing) == 0 {
		return text
	}
	return fmt.Sprintf("The strategy so far is missing: %s. Focus on extracting those from this message:\n%s",
		strings.Join(missing, ", "), text)
}
