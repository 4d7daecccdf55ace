// Package confirm asks the user to confirm a destructive action.
package confirm

import (
	"github.com/charmbracelet/huh"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ResultMsg is sent once the dialog closes. Action is the value passed to
// New.
type ResultMsg struct {
	Action    any
	Confirmed bool
}

// Model wraps a huh confirm form.
type Model struct {
	form   *huh.Form
	value  *bool
	action any
	width  int
	height int
}

// New builds a dialog. action is echoed back in ResultMsg.
func New(title, description string, action any, width, height int) Model {
	value := new(bool)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(value),
		),
	).WithWidth(max(width-4, 20)).WithShowHelp(false)

	return Model{
		form:   form,
		value:  value,
		action: action,
		width:  width,
		height: height,
	}
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	if m.form == nil {
		return nil
	}
	return m.form.Init()
}

// Update forwards messages to the form and reports the outcome.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		return m, m.result(false)
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.result(*m.value)
	case huh.StateAborted:
		return m, m.result(false)
	}
	return m, cmd
}

func (m Model) result(confirmed bool) tea.Cmd {
	action := m.action
	return func() tea.Msg {
		return ResultMsg{Action: action, Confirmed: confirmed}
	}
}

// View renders the dialog.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(m.form.View())
}

// SetSize updates the dialog dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(max(width-4, 20))
	}
}
