package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// confirmDialog asks y/n before a destructive action.
type confirmDialog struct {
	prompt string
	onYes  func() tea.Cmd
}

// inputPrompt is a single line input shown over the current view.
//
// When models is set the value is completed against it with ctrl+n.
type inputPrompt struct {
	title    string
	input    textinput.Model
	models   []string
	onSubmit func(string) tea.Cmd
}

func newInputPrompt(title, placeholder, value string, onSubmit func(string) tea.Cmd) *inputPrompt {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 1024
	ti.Width = 60
	ti.SetValue(value)
	ti.Focus()
	return &inputPrompt{title: title, input: ti, onSubmit: onSubmit}
}

// ask opens an input prompt.
func (m *Model) ask(title, placeholder, value string, onSubmit func(string) tea.Cmd) tea.Cmd {
	m.input = newInputPrompt(title, placeholder, value, onSubmit)
	return textinput.Blink
}

// askModel opens an input prompt with model autocomplete.
func (m *Model) askModel(title, value string, onSubmit func(string) tea.Cmd) tea.Cmd {
	cmd := m.ask(title, "model id", value, onSubmit)
	m.input.models = m.modelIDs
	return cmd
}

// confirmThen opens a confirmation dialog for onYes.
func (m *Model) confirmThen(prompt string, onYes func() tea.Cmd) {
	m.confirm = &confirmDialog{prompt: prompt, onYes: onYes}
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.yes):
		onYes := m.confirm.onYes
		m.confirm = nil
		return onYes()
	case key.Matches(msg, m.keys.no), msg.String() == "q":
		m.confirm = nil
	}
	return nil
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) tea.Cmd {
	p := m.input
	switch {
	case msg.Type == tea.KeyEsc:
		m.input = nil
		return nil
	case msg.Type == tea.KeyEnter:
		m.input = nil
		return p.onSubmit(p.input.Value())
	case p.models != nil && key.Matches(msg, m.keys.complete):
		p.input.SetValue(completeModel(p.input.Value(), p.models))
		p.input.CursorEnd()
		return nil
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd
}

func (m *Model) renderConfirm() string {
	title := styles.warn.Render(m.confirm.prompt)
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return styles.panel.Render(fmt.Sprintf("%s\n\n%s", title, helpView))
}

func (m *Model) renderInput() string {
	p := m.input
	var b strings.Builder
	b.WriteString(styles.title.Render(p.title))
	b.WriteString("\n")
	b.WriteString(p.input.View())
	if p.models != nil {
		if s := suggestModels(p.input.Value(), p.models); len(s) > 0 {
			b.WriteString("\n")
			b.WriteString(styles.muted.Render(strings.Join(s, "  ")))
		}
	}
	b.WriteString("\n\n")
	b.WriteString(styles.help.Render("enter submit • esc cancel"))
	return styles.panel.Render(b.String())
}
