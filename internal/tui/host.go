package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/zplay/internal/submit"
)

// hostBuffer bounds the events waiting for the update loop. A submission
// produces at most two notifier events, so this never fills in practice.
const hostBuffer = 64

// playlistAddedMsg relays a successful submission to the host view.
type playlistAddedMsg struct{}

// setErrorMsg replaces the host's error line; "" clears it.
type setErrorMsg struct {
	text string
}

// stateMsg signals that the controller changed state.
type stateMsg struct {
	snap submit.Snapshot
}

// Host is the submit.Notifier for the TUI. Notifications may arrive from the
// update loop itself or from a running command, so they are queued on a
// channel and picked up by listen.
type Host struct {
	events chan tea.Msg
}

func newHost() *Host {
	return &Host{events: make(chan tea.Msg, hostBuffer)}
}

func (h *Host) PlaylistAdded() {
	h.events <- playlistAddedMsg{}
}

func (h *Host) SetError(msg string) {
	h.events <- setErrorMsg{text: msg}
}

// observe forwards controller snapshots. It never blocks: a state message
// only triggers a redraw, and any later message redraws too.
func (h *Host) observe(s submit.Snapshot) {
	select {
	case h.events <- stateMsg{snap: s}:
	default:
	}
}

// listen waits for the next host event. Every handler of a host event must
// issue listen again.
func (h *Host) listen() tea.Cmd {
	return func() tea.Msg {
		return <-h.events
	}
}
