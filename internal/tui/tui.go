// Package tui implements the root Bubble Tea model for zplay.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zplay/internal/submit"
	"go.uber.org/zap"
)

var accent = zstyle.ZburnAccent

type focusArea int

const (
	focusForm focusArea = iota
	focusList
)

// flashMsg clears transient status text.
type flashMsg struct{}

func clearFlashAfter() tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return flashMsg{}
	})
}

// Model is the root TUI model. It hosts the add-playlist control and owns
// the error line the control reports to.
type Model struct {
	version string
	backend string
	ctrl    *submit.Controller
	host    *Host

	focus  focusArea
	form   addModel
	list   listModel
	errMsg string

	// terminal dimensions
	width  int
	height int
}

// New creates the root TUI model. creator handles submissions from the add
// form; svc backs the playlist list. Both are usually the same
// *playlist.Client.
func New(version, backend string, creator submit.Creator, svc Playlists, log *zap.Logger) Model {
	host := newHost()
	ctrl := submit.New(creator, host, submit.WithLogger(log))
	ctrl.Subscribe(host.observe)

	return Model{
		version: version,
		backend: backend,
		ctrl:    ctrl,
		host:    host,
		focus:   focusForm,
		form:    newAddModel(ctrl),
		list:    newListModel(svc),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.form.Init(), m.host.listen(), loadPlaylistsCmd(m.list.svc))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stateMsg:
		return m, m.host.listen()

	case setErrorMsg:
		m.errMsg = msg.text
		return m, m.host.listen()

	case playlistAddedMsg:
		var cmd tea.Cmd
		m.list, cmd = m.list.reload()
		m.list.flash = "playlist added"
		return m, tea.Batch(m.host.listen(), cmd, clearFlashAfter())

	case submitDoneMsg:
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd

	case playlistsLoadedMsg, playlistActionMsg, flashMsg:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	// blink, spinner ticks and anything else belong to the form
	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if key.Matches(msg, zstyle.KeyTab) || msg.Type == tea.KeyShiftTab {
		return m.toggleFocus()
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusForm:
		m.form, cmd = m.form.Update(msg)
	case focusList:
		if msg.Type == tea.KeyEsc {
			return m.toggleFocus()
		}
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m Model) toggleFocus() (tea.Model, tea.Cmd) {
	if m.focus == focusForm {
		m.form.blur()
		m.focus = focusList
		return m, nil
	}
	m.focus = focusForm
	return m, m.form.focus()
}

func (m Model) View() string {
	header := zstyle.RenderHeader("zplay", m.backend, accent)
	sep := zstyle.RenderSeparator(m.width)
	footer := zstyle.RenderFooter(helpFor(m.focus))

	content := m.form.View(m.focus == focusForm)

	// always reserve a line for the error to prevent layout shift
	if m.errMsg != "" {
		content += "  " + zstyle.StatusErr.Render(m.errMsg) + "\n"
	} else {
		content += "\n"
	}

	content += m.list.View(m.focus == focusList)

	return "\n" + header + "\n" + sep + "\n" + content + "\n" + footer + "\n"
}

// helpFor returns keybinding pairs for the footer.
func helpFor(f focusArea) []zstyle.HelpPair {
	if f == focusList {
		return []zstyle.HelpPair{
			{Key: "j/k", Desc: "navigate"},
			{Key: "t", Desc: "toggle"},
			{Key: "s/S", Desc: "sync/all"},
			{Key: "x", Desc: "cancel"},
			{Key: "d", Desc: "delete"},
			{Key: "r", Desc: "refresh"},
			{Key: "tab", Desc: "add"},
			{Key: "q", Desc: "quit"},
		}
	}
	return []zstyle.HelpPair{
		{Key: "enter", Desc: "add"},
		{Key: "tab", Desc: "playlists"},
		{Key: "ctrl+c", Desc: "quit"},
	}
}

// ErrorMessage returns the error line currently shown to the user.
func (m Model) ErrorMessage() string { return m.errMsg }

// Controller returns the add-playlist controller.
func (m Model) Controller() *submit.Controller { return m.ctrl }
