package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Field is one line of a Form.
type Field struct {
	Key         string
	Label       string
	Placeholder string
	Value       string
	Secret      bool
	Required    bool
}

// Form collects a few labelled values, one text input per field. Tab and
// enter move forward; enter on the last field submits.
type Form struct {
	title   string
	fields  []Field
	inputs  []textinput.Model
	focus   int
	err     string
	done    bool
	aborted bool
}

func NewForm(title string, fields []Field) Form {
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		ti := textinput.New()
		ti.Placeholder = f.Placeholder
		ti.CharLimit = 256
		ti.Width = 40
		ti.Prompt = ""
		ti.SetValue(f.Value)
		if f.Secret {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		inputs[i] = ti
	}
	if len(inputs) > 0 {
		inputs[0].Focus()
	}
	return Form{title: title, fields: fields, inputs: inputs}
}

// Values returns the entered values keyed by Field.Key, trimmed.
func (f Form) Values() map[string]string {
	out := make(map[string]string, len(f.fields))
	for i, field := range f.fields {
		out[field.Key] = strings.TrimSpace(f.inputs[i].Value())
	}
	return out
}

func (f Form) Init() tea.Cmd { return textinput.Blink }

func (f Form) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			f.aborted = true
			f.done = true
			return f, tea.Quit
		case "shift+tab", "up":
			return f.move(-1), nil
		case "tab", "down":
			return f.move(1), nil
		case "enter":
			if f.focus < len(f.inputs)-1 {
				return f.move(1), nil
			}
			if missing := f.missing(); missing != "" {
				f.err = missing + " is required"
				return f, nil
			}
			f.done = true
			return f, tea.Quit
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

func (f Form) move(delta int) Form {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
	return f
}

func (f Form) missing() string {
	for i, field := range f.fields {
		if field.Required && strings.TrimSpace(f.inputs[i].Value()) == "" {
			return field.Label
		}
	}
	return ""
}

func (f Form) View() string {
	if f.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(f.title))
	b.WriteString("\n\n")
	for i, field := range f.fields {
		marker := "  "
		if i == f.focus {
			marker = SelectorCursor.Render(SymbolArrow) + " "
		}
		b.WriteString(marker + KeyValue(field.Label, f.inputs[i].View()) + "\n")
	}
	if f.err != "" {
		b.WriteString("\n" + ErrorStyle.Render(SymbolCross+" "+f.err) + "\n")
	}
	b.WriteString("\n" + HelpStyle.Render("tab next, enter submit, esc cancel"))
	return b.String()
}

// RunForm runs the form on the terminal and returns its values.
func RunForm(title string, fields []Field) (map[string]string, error) {
	if len(fields) == 0 {
		return map[string]string{}, nil
	}
	final, err := tea.NewProgram(NewForm(title, fields)).Run()
	if err != nil {
		return nil, err
	}
	form := final.(Form)
	if form.aborted {
		return nil, ErrCancelled
	}
	return form.Values(), nil
}
