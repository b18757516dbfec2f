package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zplay/internal/submit"
)

const (
	addLabel    = "Add Playlist"
	addingLabel = "Adding..."
)

// submitDoneMsg carries the outcome of a finished submission.
type submitDoneMsg struct {
	outcome submit.Outcome
}

// addModel is the add-playlist form. The identifier and submission state
// live in the controller; the text input mirrors it for editing.
type addModel struct {
	ctrl    *submit.Controller
	input   textinput.Model
	spinner spinner.Model
}

func newAddModel(ctrl *submit.Controller) addModel {
	ti := textinput.New()
	ti.Placeholder = "Enter Playlist URL"
	ti.CharLimit = 512
	ti.Width = 50
	ti.SetValue(ctrl.Raw())
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accent)

	return addModel{ctrl: ctrl, input: ti, spinner: sp}
}

func (m addModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m addModel) Update(msg tea.Msg) (addModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, zstyle.KeyEnter) {
			return m.submit()
		}

	case submitDoneMsg:
		// a success cleared the controller's value; edits made during the
		// flight are already in the controller
		if m.input.Value() != m.ctrl.Raw() {
			m.input.SetValue(m.ctrl.Raw())
		}
		return m, nil

	case spinner.TickMsg:
		if m.ctrl.State() != submit.Submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// only edits reach the controller; a success may have reset it while
	// the input still shows the old text
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.ctrl.SetValue(after)
	}
	return m, cmd
}

// submit starts a submission unless a guard turns it into a no-op.
func (m addModel) submit() (addModel, tea.Cmd) {
	a, ok := m.ctrl.Begin()
	if !ok {
		return m, nil
	}
	return m, tea.Batch(m.spinner.Tick, runAttempt(a))
}

func runAttempt(a *submit.Attempt) tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg{outcome: a.Run(context.Background())}
	}
}

func (m *addModel) focus() tea.Cmd {
	return m.input.Focus()
}

func (m *addModel) blur() {
	m.input.Blur()
}

// buttonLabel returns the submit button text for the current state.
func (m addModel) buttonLabel() string {
	if m.ctrl.State() == submit.Submitting {
		return addingLabel
	}
	return addLabel
}

func (m addModel) View(focused bool) string {
	snap := m.ctrl.Snapshot()

	marker := "  "
	if focused {
		marker = lipgloss.NewStyle().Foreground(accent).Bold(true).Render("▸") + " "
	}

	label := "[ " + m.buttonLabel() + " ]"
	var button string
	switch {
	case snap.State == submit.Submitting:
		button = m.spinner.View() + " " + zstyle.MutedText.Render(label)
	case snap.CanSubmit():
		button = zstyle.Highlight.Render(label)
	default:
		button = zstyle.MutedText.Render(label)
	}

	return "\n" + marker + m.input.View() + "  " + button + "\n"
}
