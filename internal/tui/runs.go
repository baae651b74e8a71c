package tui

import (
	"context"
	"fmt"
	"strings"

	"backtestgpt/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Run history message types.
type runsMsg []domain.BacktestRun
type runsErrMsg struct{ err error }

const runHistoryFetchLimit = 50

// RunHistoryModel is the Bubble Tea model for the run history screen.
type RunHistoryModel struct {
	services     Services
	runs         []domain.BacktestRun
	selected     int
	scrollOffset int
	loading      bool
	err          error
	width        int
	height       int
}

// NewRunHistoryModel creates a new run history model.
func NewRunHistoryModel(svc Services) RunHistoryModel {
	return RunHistoryModel{
		services: svc,
		loading:  true,
	}
}

// Init fires the initial history fetch.
func (m RunHistoryModel) Init() tea.Cmd {
	return m.fetchRunsCmd()
}

// Update handles incoming messages.
func (m RunHistoryModel) Update(msg tea.Msg) (RunHistoryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case runsMsg:
		m.runs = []domain.BacktestRun(msg)
		m.loading = false
		m.selected = 0
		m.scrollOffset = 0
		m.err = nil
		return m, nil

	case runsErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, m.fetchRunsCmd()

		case msg.String() == "j" || msg.String() == "down":
			if m.selected < len(m.runs)-1 {
				m.selected++
				if m.selected >= m.scrollOffset+m.visibleRows() {
					m.scrollOffset++
				}
			}
			return m, nil

		case msg.String() == "k" || msg.String() == "up":
			if m.selected > 0 {
				m.selected--
				if m.selected < m.scrollOffset {
					m.scrollOffset--
				}
			}
			return m, nil
		}
	}

	return m, nil
}

// View renders the run history screen.
func (m RunHistoryModel) View() string {
	var sections []string

	sections = append(sections, HeaderStyle.Render("  Run History"))
	sections = append(sections, "")

	if m.services.Runs == nil {
		sections = append(sections, SubtextStyle.Render("  Run history requires a database. Set DATABASE_URL to enable."))
		return strings.Join(sections, "\n")
	}

	if m.loading {
		sections = append(sections, SubtextStyle.Render("  Loading..."))
		return strings.Join(sections, "\n")
	}

	if m.err != nil {
		sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		return strings.Join(sections, "\n")
	}

	if len(m.runs) == 0 {
		sections = append(sections, SubtextStyle.Render("  No backtest runs yet. Run a strategy from the Chat tab."))
		return strings.Join(sections, "\n")
	}

	// Table header
	sections = append(sections, SubtextStyle.Render(
		fmt.Sprintf("  %-5s %-8s %12s %11s  %s", "ID", "Ticker", "Return", "Trades", "When"),
	))

	maxVisible := m.visibleRows()
	end := m.scrollOffset + maxVisible
	if end > len(m.runs) {
		end = len(m.runs)
	}

	for i := m.scrollOffset; i < end; i++ {
		cursor := "  "
		if i == m.selected {
			cursor = "> "
		}
		sections = append(sections, cursor+FormatRun(m.runs[i]))
	}

	if len(m.runs) > maxVisible {
		sections = append(sections, SubtextStyle.Render(
			fmt.Sprintf("  Showing %d-%d of %d (j/k to scroll)", m.scrollOffset+1, end, len(m.runs)),
		))
	}

	// Detail pane for the selected run
	if m.selected < len(m.runs) {
		sections = append(sections, "")
		sections = append(sections, m.renderDetail(m.runs[m.selected])...)
	}

	sections = append(sections, "")
	sections = append(sections, SubtextStyle.Render("  [j/k] select  [R] refresh"))

	return strings.Join(sections, "\n")
}

// SetSize updates the model dimensions.
func (m *RunHistoryModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// RunCount returns the number of loaded runs (for testing).
func (m RunHistoryModel) RunCount() int { return len(m.runs) }

// Selected returns the index of the selected run (for testing).
func (m RunHistoryModel) Selected() int { return m.selected }

func (m RunHistoryModel) renderDetail(r domain.BacktestRun) []string {
	lines := []string{HeaderStyle.Render(fmt.Sprintf("  Run #%d  %s", r.ID, r.Ticker))}

	var parts []string
	for _, ind := range r.Spec.Indicators {
		parts = append(parts, fmt.Sprintf("%s(%s)", ind.Type, ind.ID))
	}
	if len(parts) > 0 {
		lines = append(lines, SubtextStyle.Render("  Indicators: "+strings.Join(parts, ", ")))
	}
	if !r.Spec.Entry.IsZero() {
		lines = append(lines, SubtextStyle.Render(fmt.Sprintf("  Entry: %s(%s, %s)",
			r.Spec.Entry.Op, r.Spec.Entry.Args[0].String(), r.Spec.Entry.Args[1].String())))
	}
	if !r.Spec.Exit.IsZero() {
		lines = append(lines, SubtextStyle.Render(fmt.Sprintf("  Exit:  %s(%s, %s)",
			r.Spec.Exit.Op, r.Spec.Exit.Args[0].String(), r.Spec.Exit.Args[1].String())))
	}

	for _, line := range FormatMetrics(r.Metrics) {
		lines = append(lines, "  "+line)
	}
	return lines
}

func (m RunHistoryModel) fetchRunsCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Runs == nil {
			return runsErrMsg{err: fmt.Errorf("run history not available")}
		}
		runs, err := m.services.Runs.ListRecent(context.Background(), runHistoryFetchLimit)
		if err != nil {
			return runsErrMsg{err: err}
		}
		return runsMsg(runs)
	}
}

func (m RunHistoryModel) visibleRows() int {
	// Account for header, table header, detail pane, help footer
	available := m.height - 16
	if available < 5 {
		return 5
	}
	return available
}
