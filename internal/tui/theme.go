package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Tab bar styles
	TabStyle       = lipgloss.NewStyle().Padding(0, 2)
	ActiveTabStyle = TabStyle.Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))
	InactiveTabStyle = TabStyle.
				Foreground(lipgloss.Color("#888888"))

	// Return colors
	ReturnUpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	ReturnDownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	ReturnZeroStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	// General styles
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA"))
	SubtextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	ErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	SpinnerColor = lipgloss.Color("#7D56F4")

	// Chat styles
	UserMsgStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	AssistantMsgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))

	// Drawdown bar colors
	DrawdownMildStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	DrawdownMedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	DrawdownSevereStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)
