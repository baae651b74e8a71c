package conversation

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"backtestgpt/internal/domain"
	"backtestgpt/internal/extract"
)

func rsiFragment() extract.Fragment {
	return extract.Fragment{
		Ticker: "AAPL",
		Strategy: &extract.StrategyFragment{
			Indicators: []domain.IndicatorSpec{
				{ID: "RSI14", Type: domain.IndicatorRSI, Params: domain.Params{"window": 14}},
			},
			Entry: domain.RuleExpr{Op: domain.OpLessThan, Args: [2]domain.OperandRef{domain.ParseOperand("RSI14.rsi"), domain.NumberOperand(30)}},
			Exit:  domain.RuleExpr{Op: domain.OpGreaterThan, Args: [2]domain.OperandRef{domain.ParseOperand("RSI14.rsi"), domain.NumberOperand(70)}},
		},
	}
}

func TestDraftAccumulatesAcrossTurns(t *testing.T) {
	var d Draft
	d.refreshStage()
	if d.Stage != StageEmpty {
		t.Fatalf("stage = %s, want EMPTY", d.Stage)
	}

	d.Apply(extract.Fragment{Ticker: "aapl"})
	if d.Stage != StagePartial {
		t.Fatalf("stage = %s, want PARTIAL", d.Stage)
	}
	if d.Spec.Ticker != "AAPL" {
		t.Fatalf("ticker = %q", d.Spec.Ticker)
	}

	frag := rsiFragment()
	frag.Ticker = ""
	d.Apply(frag)
	if d.Stage != StageComplete {
		t.Fatalf("stage = %s, want COMPLETE", d.Stage)
	}
	if !d.Complete() {
		t.Fatal("expected complete draft")
	}
	if d.Executable() {
		t.Fatal("draft must not be executable before ticker validation")
	}
	d.MarkValidated()
	if !d.Executable() {
		t.Fatal("expected executable draft after validation")
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	var a, b Draft
	a.Apply(rsiFragment())
	b.Apply(rsiFragment())
	b.Apply(rsiFragment())
	if !reflect.DeepEqual(a.Spec, b.Spec) {
		t.Fatalf("repeated apply changed spec:\n%+v\n%+v", a.Spec, b.Spec)
	}
}

func TestApplyReplacesIndicatorWithSameID(t *testing.T) {
	var d Draft
	d.Apply(rsiFragment())
	d.Apply(extract.Fragment{Strategy: &extract.StrategyFragment{
		Indicators: []domain.IndicatorSpec{{ID: "rsi14", Type: domain.IndicatorRSI, Params: domain.Params{"window": 21}}},
	}})
	if len(d.Spec.Indicators) != 1 {
		t.Fatalf("expected 1 indicator, got %d", len(d.Spec.Indicators))
	}
	if got := d.Spec.Indicators[0].Params.Int("window", 0); got != 21 {
		t.Fatalf("window = %d, want 21", got)
	}
}

func TestApplyDiscardsDegenerateRules(t *testing.T) {
	var d Draft
	d.Apply(rsiFragment())
	before := d.Spec.Entry

	d.Apply(extract.Fragment{Strategy: &extract.StrategyFragment{
		Entry: domain.RuleExpr{Op: domain.OpGreaterThan, Args: [2]domain.OperandRef{domain.ParseOperand("Close"), domain.ParseOperand("Open")}},
	}})
	if !d.Spec.Entry.Equal(before) {
		t.Fatal("degenerate entry rule replaced a meaningful one")
	}
}

func TestApplyIgnoresMalformedTicker(t *testing.T) {
	var d Draft
	d.Apply(extract.Fragment{Ticker: "AAPL"})
	d.Apply(extract.Fragment{Ticker: "NOT A TICKER!!!"})
	if d.Spec.Ticker != "AAPL" {
		t.Fatalf("ticker = %q, want AAPL", d.Spec.Ticker)
	}
}

func TestTickerChangeResetsValidation(t *testing.T) {
	var d Draft
	d.Apply(rsiFragment())
	d.MarkValidated()

	d.Apply(extract.Fragment{Ticker: "MSFT"})
	if d.TickerValidated {
		t.Fatal("ticker change must reset validation")
	}
	if d.Stage != StageComplete {
		t.Fatalf("stage = %s, want COMPLETE", d.Stage)
	}
}

func TestMissingComponentsOrder(t *testing.T) {
	var d Draft
	got := d.MissingComponents()
	want := []string{ComponentTicker, ComponentIndicators, ComponentEntry, ComponentExit}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("missing = %v, want %v", got, want)
	}

	d.Apply(extract.Fragment{Ticker: "SPY"})
	got = d.MissingComponents()
	if !reflect.DeepEqual(got, want[1:]) {
		t.Fatalf("missing = %v, want %v", got, want[1:])
	}
}

func TestFollowUpPriority(t *testing.T) {
	var d Draft
	if q := d.FollowUp(); !strings.Contains(q, "ticker") {
		t.Fatalf("expected ticker question, got %q", q)
	}

	d.Apply(extract.Fragment{Ticker: "SPY"})
	if q := d.FollowUp(); !strings.Contains(q, "indicators") {
		t.Fatalf("expected indicator question, got %q", q)
	}

	frag := rsiFragment()
	frag.Strategy.Entry = domain.RuleExpr{}
	frag.Strategy.Exit = domain.RuleExpr{}
	d.Apply(frag)
	if q := d.FollowUp(); !strings.Contains(q, "enter") {
		t.Fatalf("expected entry question, got %q", q)
	}

	d.Apply(extract.Fragment{Strategy: &extract.StrategyFragment{Entry: rsiFragment().Strategy.Entry}})
	if q := d.FollowUp(); !strings.Contains(q, "exit") {
		t.Fatalf("expected exit question, got %q", q)
	}
}

func TestFollowUpAcknowledgesRepeatedEmptyTurns(t *testing.T) {
	var d Draft
	d.Apply(extract.Fragment{Ticker: "SPY"})

	for i := 0; i < uninformativeThreshold; i++ {
		d.Apply(extract.Fragment{})
	}
	if q := d.FollowUp(); !strings.Contains(q, "could not find any strategy details") {
		t.Fatalf("expected acknowledgement after empty turns, got %q", q)
	}

	// Any informative turn clears the acknowledgement.
	d.Apply(rsiFragment())
	d.Apply(extract.Fragment{})
	if q := d.FollowUp(); strings.Contains(q, "could not find") {
		t.Fatalf("streak should reset after informative turn, got %q", q)
	}
}

func TestMemoryStoreGetCreates(t *testing.T) {
	store := NewMemoryStore()
	first, err := store.Get(context.Background(), "session-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first.Draft.Stage != StageEmpty {
		t.Fatalf("stage = %s, want EMPTY", first.Draft.Stage)
	}
	second, _ := store.Get(context.Background(), "session-a")
	if first != second {
		t.Fatal("expected same session instance for same key")
	}
}

func TestMemoryStoreEvictOlderThan(t *testing.T) {
	store := NewMemoryStore()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	stale, _ := store.Get(context.Background(), "stale")
	stale.Touch(clock.Add(-2 * time.Hour))
	fresh, _ := store.Get(context.Background(), "fresh")
	fresh.Touch(clock.Add(-5 * time.Minute))

	evicted, err := store.EvictOlderThan(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("EvictOlderThan: %v", err)
	}
	if evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	replacement, _ := store.Get(context.Background(), "stale")
	if replacement == stale {
		t.Fatal("stale session should have been evicted")
	}
}
