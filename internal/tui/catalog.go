package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	catalogSectionIndicators = 0
	catalogSectionOperators  = 1
	catalogSectionTemplates  = 2
	catalogSectionCount      = 3
)

// CatalogModel is the Bubble Tea model for the capability browser screen.
// The catalog is static, so there is nothing to fetch.
type CatalogModel struct {
	services      Services
	activeSection int
	width         int
	height        int
}

// NewCatalogModel creates a new catalog browser model.
func NewCatalogModel(svc Services) CatalogModel {
	return CatalogModel{services: svc}
}

// Init is a no-op for the static catalog.
func (m CatalogModel) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages.
func (m CatalogModel) Update(msg tea.Msg) (CatalogModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(msg, DefaultKeyMap.ToggleSection) {
			m.activeSection = (m.activeSection + 1) % catalogSectionCount
		}
	}
	return m, nil
}

// View renders the catalog browser.
func (m CatalogModel) View() string {
	var sections []string

	sectionLabel := m.renderSectionBar()
	sections = append(sections, HeaderStyle.Render("  Capability Catalog")+"  "+sectionLabel)
	sections = append(sections, "")

	if m.services.Catalog == nil {
		sections = append(sections, SubtextStyle.Render("  Catalog not available"))
		return strings.Join(sections, "\n")
	}

	switch m.activeSection {
	case catalogSectionIndicators:
		for _, e := range m.services.Catalog.Indicators() {
			sections = append(sections, fmt.Sprintf("  %-8s %s", HeaderStyle.Render(e.Key), SubtextStyle.Render(e.Description)))
		}
	case catalogSectionOperators:
		for _, g := range m.services.Catalog.Operators() {
			sections = append(sections, "  "+HeaderStyle.Render(g.Category))
			sections = append(sections, "    "+SubtextStyle.Render(strings.Join(g.Ops, "  ")))
		}
	case catalogSectionTemplates:
		for _, t := range m.services.Catalog.Templates() {
			var kinds []string
			for _, k := range t.Indicators {
				kinds = append(kinds, string(k))
			}
			sections = append(sections, "  "+HeaderStyle.Render(t.Key)+"  "+SubtextStyle.Render("["+strings.Join(kinds, ", ")+"]"))
			sections = append(sections, "    "+SubtextStyle.Render(t.Description))
		}
	}

	sections = append(sections, "")
	sections = append(sections, SubtextStyle.Render("  [v] next section"))

	return strings.Join(sections, "\n")
}

// SetSize updates the model dimensions.
func (m *CatalogModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// ActiveSection returns the current section index (for testing).
func (m CatalogModel) ActiveSection() int { return m.activeSection }

func (m CatalogModel) renderSectionBar() string {
	names := []string{"Indicators", "Operators", "Templates"}
	var parts []string
	for i, name := range names {
		if i == m.activeSection {
			parts = append(parts, "["+name+"]")
		} else {
			parts = append(parts, " "+name+" ")
		}
	}
	return SubtextStyle.Render(strings.Join(parts, " "))
}
