package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorPrimary = lipgloss.Color("35")  // Green, the Digital USD accent
	ColorWarning = lipgloss.Color("214") // Gold/yellow
	ColorError   = lipgloss.Color("196") // Red
	ColorDim     = lipgloss.Color("241") // Gray
	ColorAccent  = lipgloss.Color("39")  // Blue
)

const (
	SymbolArrow  = "▸"
	SymbolCheck  = "✓"
	SymbolCross  = "✗"
	SymbolFilled = "●"
	SymbolEmpty  = "○"
	SymbolRule   = "─"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorDim).
			Width(18)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorDim).
			Italic(true)

	SelectorCursor = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	SelectorItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	SelectorDim = lipgloss.NewStyle().
			Foreground(ColorDim)

	SelectorActive = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)
)

// Rule is a horizontal separator n cells wide.
func Rule(n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = []rune(SymbolRule)[0]
	}
	return SelectorDim.Render(string(out))
}

// KeyValue renders an aligned "label value" row.
func KeyValue(label, value string) string {
	return LabelStyle.Render(label) + value
}
