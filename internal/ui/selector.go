package ui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned by the runners when the user backs out.
var ErrCancelled = errors.New("cancelled")

// SelectorItem represents an item in the selector
type SelectorItem struct {
	ID          string
	Label       string
	Description string
	Current     bool
}

// Selector is an interactive list selector. It implements tea.Model.
type Selector struct {
	title    string
	items    []SelectorItem
	cursor   int
	selected int
	done     bool
}

// NewSelector starts the cursor on the current item.
func NewSelector(title string, items []SelectorItem) Selector {
	cursor := 0
	for i, item := range items {
		if item.Current {
			cursor = i
			break
		}
	}
	return Selector{title: title, items: items, cursor: cursor, selected: -1}
}

// Selected returns the chosen item ID, or "" when cancelled.
func (s Selector) Selected() string {
	if s.selected >= 0 && s.selected < len(s.items) {
		return s.items[s.selected].ID
	}
	return ""
}

func (s Selector) Init() tea.Cmd { return nil }

func (s Selector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || s.done {
		return s, nil
	}
	switch key.String() {
	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}
	case "down", "j":
		if s.cursor < len(s.items)-1 {
			s.cursor++
		}
	case "enter":
		s.selected = s.cursor
		s.done = true
		return s, tea.Quit
	case "esc", "q", "ctrl+c":
		s.selected = -1
		s.done = true
		return s, tea.Quit
	}
	return s, nil
}

func (s Selector) View() string {
	if s.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(s.title))
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("↑/↓ navigate, enter select, esc cancel"))
	b.WriteString("\n\n")

	for i, item := range s.items {
		isCursor := i == s.cursor
		if isCursor {
			b.WriteString(SelectorCursor.Render(SymbolArrow) + " ")
		} else {
			b.WriteString("  ")
		}

		display := item.Label
		if display == "" {
			display = item.ID
		}
		label := fmt.Sprintf("%-28s", display)
		if isCursor {
			b.WriteString(SelectorActive.Render(label))
		} else {
			b.WriteString(SelectorItemStyle.Render(label))
		}

		desc := item.Description
		if item.Current {
			desc += " (current)"
		}
		if desc != "" {
			b.WriteString(SelectorDim.Render(desc))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RunSelector shows the list inline on the terminal and returns
// the chosen item ID.
func RunSelector(title string, items []SelectorItem) (string, error) {
	if len(items) == 0 {
		return "", errors.New("nothing to select")
	}
	final, err := tea.NewProgram(NewSelector(title, items)).Run()
	if err != nil {
		return "", err
	}
	id := final.(Selector).Selected()
	if id == "" {
		return "", ErrCancelled
	}
	return id, nil
}
