package catalog

import (
	"testing"

	"backtestgpt/internal/domain"
)

func TestCatalogCapabilities(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, kind := range []string{"SMA", "sma", "Rsi", "MACD", "BB", "EMA"} {
		if !c.HasIndicator(kind) {
			t.Errorf("expected indicator %q to be supported", kind)
		}
	}
	for _, kind := range []string{"Ichimoku", "SuperTrend", "PSAR", ""} {
		if c.HasIndicator(kind) {
			t.Errorf("expected indicator %q to be unsupported", kind)
		}
	}

	for _, op := range []string{"cross_above", "cross_below", "greater_than", "less_than", "equal_to", "greater_or_equal", "less_or_equal"} {
		if !c.HasOperator(op) {
			t.Errorf("expected operator %q to be supported", op)
		}
	}
	if c.HasOperator("divergence") {
		t.Fatal("divergence should not be supported")
	}

	if n := len(c.AllOperators()); n != 7 {
		t.Fatalf("expected 7 operators, got %d", n)
	}
}

func TestBuildRejectsMalformedEntries(t *testing.T) {
	if _, err := build([]Entry{{Key: "SMA"}}, defaultOperators, nil); err == nil {
		t.Fatal("expected error for entry without description")
	}
	if _, err := build([]Entry{
		{Key: "SMA", Description: "a"},
		{Key: "sma", Description: "b"},
	}, defaultOperators, nil); err == nil {
		t.Fatal("expected error for duplicate indicator key")
	}
	if _, err := build(defaultIndicators, []OperatorGroup{{Category: "comparison"}}, nil); err == nil {
		t.Fatal("expected error for empty operator group")
	}
}

func TestSuggestSimilar(t *testing.T) {
	candidates := []string{"SMA", "EMA", "RSI", "MACD", "BB"}

	got := SuggestSimilar("VolumeSMA", candidates)
	if len(got) != 1 || got[0] != "SMA" {
		t.Fatalf("expected [SMA], got %v", got)
	}
	if got := SuggestSimilar("ichimoku", candidates); len(got) != 0 {
		t.Fatalf("expected no suggestions, got %v", got)
	}
	if got := SuggestSimilar("", candidates); got != nil {
		t.Fatalf("expected nil for empty name, got %v", got)
	}
}

func TestSimilarTemplatesByIndicatorOverlap(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := c.SimilarTemplates([]domain.IndicatorSpec{
		{ID: "RSI14", Type: domain.IndicatorRSI},
	})
	if len(got) != 1 || got[0].Key != "RSI_Reversal" {
		t.Fatalf("expected RSI_Reversal, got %+v", got)
	}

	if got := c.SimilarTemplates(nil); len(got) != 0 {
		t.Fatalf("expected no templates for empty strategy, got %d", len(got))
	}
}
