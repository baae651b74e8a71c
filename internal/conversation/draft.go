// Package conversation accumulates partial strategy fragments across turns
// until a draft is complete enough to validate and execute.
package conversation

import (
	"strings"

	"backtestgpt/internal/domain"
	"backtestgpt/internal/extract"
	"backtestgpt/internal/validator"
)

// Stage is the lifecycle position of a draft.
type Stage string

const (
	StageEmpty              Stage = "EMPTY"
	StagePartial            Stage = "PARTIAL"
	StageComplete           Stage = "COMPLETE"
	StageValidated          Stage = "VALIDATED"
	StageNeedsClarification Stage = "NEEDS_CLARIFICATION"
)

// Component names used in follow-up questions and missing-component lists.
const (
	ComponentTicker     = "ticker"
	ComponentIndicators = "indicators"
	ComponentEntry      = "entry_conditions"
	ComponentExit       = "exit_conditions"
)

// Draft is the strategy being assembled for one session. TickerValidated
// tracks whether the current ticker passed the data probe; it resets whenever
// the ticker changes.
type Draft struct {
	Spec            domain.StrategySpec
	Stage           Stage
	TickerValidated bool

	// Consecutive turns that contributed nothing. Folded into the follow-up
	// question once it crosses uninformativeThreshold.
	UninformativeStreak int
}

// A single unparsable turn stays silent; repeated ones get acknowledged.
const uninformativeThreshold = 3

// Apply merges a fragment into the draft. Each part is adopted only when it
// improves on what is already held; everything else is discarded silently.
// The stage is recomputed afterwards.
func (d *Draft) Apply(frag extract.Fragment) {
	if frag.Empty() {
		d.UninformativeStreak++
	} else {
		d.UninformativeStreak = 0
	}

	if frag.Ticker != "" && validator.ValidFormat(frag.Ticker) {
		normalized := domain.NormalizeTicker(frag.Ticker)
		if !strings.EqualFold(normalized, d.Spec.Ticker) {
			d.Spec.Ticker = normalized
			d.TickerValidated = false
		}
	}

	if frag.Strategy != nil {
		for _, ind := range frag.Strategy.Indicators {
			d.mergeIndicator(ind)
		}
		if frag.Strategy.Entry.IsMeaningful() && !frag.Strategy.Entry.Equal(d.Spec.Entry) {
			d.Spec.Entry = frag.Strategy.Entry
		}
		if frag.Strategy.Exit.IsMeaningful() && !frag.Strategy.Exit.Equal(d.Spec.Exit) {
			d.Spec.Exit = frag.Strategy.Exit
		}
	}

	d.refreshStage()
}

// mergeIndicator replaces an existing indicator with the same id or appends a
// new one. Ids compare case-insensitively; fragments without an id are
// dropped.
func (d *Draft) mergeIndicator(ind domain.IndicatorSpec) {
	if ind.ID == "" {
		return
	}
	for i, existing := range d.Spec.Indicators {
		if strings.EqualFold(existing.ID, ind.ID) {
			d.Spec.Indicators[i] = ind
			return
		}
	}
	d.Spec.Indicators = append(d.Spec.Indicators, ind)
}

// Complete reports whether every structural component is present: a ticker,
// at least one indicator, and meaningful entry and exit rules.
func (d *Draft) Complete() bool {
	return d.Spec.Ticker != "" &&
		len(d.Spec.Indicators) > 0 &&
		d.Spec.Entry.IsMeaningful() &&
		d.Spec.Exit.IsMeaningful()
}

// Executable additionally requires the ticker to have passed validation.
func (d *Draft) Executable() bool {
	return d.Complete() && d.TickerValidated
}

// MarkValidated records a successful compatibility check.
func (d *Draft) MarkValidated() {
	d.TickerValidated = true
	d.Stage = StageValidated
}

// MarkNeedsClarification records a failed check so the next turn can repair
// the draft.
func (d *Draft) MarkNeedsClarification() {
	d.Stage = StageNeedsClarification
}

func (d *Draft) refreshStage() {
	switch {
	case d.empty():
		d.Stage = StageEmpty
	case d.Complete():
		d.Stage = StageComplete
	default:
		d.Stage = StagePartial
	}
}

func (d *Draft) empty() bool {
	return d.Spec.Ticker == "" &&
		len(d.Spec.Indicators) == 0 &&
		d.Spec.Entry.IsZero() &&
		d.Spec.Exit.IsZero()
}

// MissingComponents lists absent components in a fixed order so prompts and
// payloads are stable across turns.
func (d *Draft) MissingComponents() []string {
	var missing []string
	if d.Spec.Ticker == "" {
		missing = append(missing, ComponentTicker)
	}
	if len(d.Spec.Indicators) == 0 {
		missing = append(missing, ComponentIndicators)
	}
	if !d.Spec.Entry.IsMeaningful() {
		missing = append(missing, ComponentEntry)
	}
	if !d.Spec.Exit.IsMeaningful() {
		missing = append(missing, ComponentExit)
	}
	return missing
}

// FollowUp picks the single next question to ask, ordered by what unblocks
// the draft soonest. After several turns without usable content the question
// acknowledges that nothing was understood.
func (d *Draft) FollowUp() string {
	prefix := ""
	if d.UninformativeStreak >= uninformativeThreshold {
		prefix = "I could not find any strategy details in your last few messages. "
	}
	return prefix + d.nextQuestion()
}

func (d *Draft) nextQuestion() string {
	switch {
	case d.Spec.Ticker == "":
		return "Which ticker symbol would you like to backtest? For example AAPL or SPY."
	case len(d.Spec.Indicators) == 0:
		return "Which indicators should the strategy use? I support SMA, EMA, RSI, MACD and Bollinger Bands."
	case !d.Spec.Entry.IsMeaningful() && d.Spec.Entry.IsZero():
		return "When should the strategy enter a position? For example: buy when RSI drops below 30."
	case !d.Spec.Exit.IsMeaningful() && d.Spec.Exit.IsZero():
		return "When should the strategy exit a position? For example: sell when RSI rises above 70."
	case !d.Spec.Entry.IsMeaningful():
		return "The entry rule compares price against price or a constant zero, so it would never produce a useful signal. Could you restate it using one of your indicators?"
	default:
		return "The exit rule compares price against price or a constant zero, so it would never produce a useful signal. Could you restate it using one of your indicators?"
	}
}
