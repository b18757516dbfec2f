package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zplay/internal/playlist"
)

// Playlists is the backend surface the list view drives.
type Playlists interface {
	List(ctx context.Context) ([]playlist.Playlist, error)
	Sync(ctx context.Context, ids []int) ([]playlist.Playlist, error)
	Delete(ctx context.Context, ids []int) ([]playlist.Playlist, error)
	Toggle(ctx context.Context, id int, disabled bool) (playlist.Playlist, error)
	CancelDownload(ctx context.Context, id int) (playlist.Playlist, error)
}

// listModel displays the backend's playlists.
type listModel struct {
	svc       Playlists
	playlists []playlist.Playlist
	cursor    int
	loading   bool
	flash     string
}

// playlistsLoadedMsg carries the result of a list request.
type playlistsLoadedMsg struct {
	playlists []playlist.Playlist
	err       error
}

// playlistActionMsg carries the result of sync, toggle, delete or cancel.
type playlistActionMsg struct {
	done string
	err  error
}

func newListModel(svc Playlists) listModel {
	return listModel{svc: svc}
}

func (m listModel) Init() tea.Cmd {
	return nil
}

func (m listModel) Update(msg tea.Msg) (listModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case playlistsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.flash = "load: " + describe(msg.err)
			return m, clearFlashAfter()
		}
		m.playlists = msg.playlists
		if m.cursor >= len(m.playlists) {
			m.cursor = max(len(m.playlists)-1, 0)
		}
		return m, nil

	case playlistActionMsg:
		if msg.err != nil {
			m.flash = describe(msg.err)
			return m, clearFlashAfter()
		}
		m.flash = msg.done
		return m.reload()

	case flashMsg:
		m.flash = ""
		return m, nil
	}

	return m, nil
}

func (m listModel) handleKey(msg tea.KeyMsg) (listModel, tea.Cmd) {
	if key.Matches(msg, zstyle.KeyQuit) {
		return m, tea.Quit
	}

	switch msg.String() {
	case "r":
		return m.reload()
	case "S":
		return m, m.action("sync queued", func(ctx context.Context) error {
			_, err := m.svc.Sync(ctx, nil)
			return err
		})
	}

	if len(m.playlists) == 0 {
		return m, nil
	}

	if key.Matches(msg, zstyle.KeyUp) || msg.String() == "k" {
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	}

	if key.Matches(msg, zstyle.KeyDown) || msg.String() == "j" {
		if m.cursor < len(m.playlists)-1 {
			m.cursor++
		}
		return m, nil
	}

	p := m.playlists[m.cursor]

	switch msg.String() {
	case "s":
		return m, m.action("sync queued", func(ctx context.Context) error {
			_, err := m.svc.Sync(ctx, []int{p.ID})
			return err
		})
	case "t":
		done := "disabled"
		if p.Disabled {
			done = "enabled"
		}
		return m, m.action(done, func(ctx context.Context) error {
			_, err := m.svc.Toggle(ctx, p.ID, !p.Disabled)
			return err
		})
	case "x":
		return m, m.action("download cancelled", func(ctx context.Context) error {
			_, err := m.svc.CancelDownload(ctx, p.ID)
			return err
		})
	case "d":
		return m, m.action("deleted", func(ctx context.Context) error {
			_, err := m.svc.Delete(ctx, []int{p.ID})
			return err
		})
	}

	return m, nil
}

func (m listModel) reload() (listModel, tea.Cmd) {
	m.loading = true
	return m, loadPlaylistsCmd(m.svc)
}

func (m listModel) action(done string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return playlistActionMsg{done: done, err: fn(context.Background())}
	}
}

func loadPlaylistsCmd(svc Playlists) tea.Cmd {
	return func() tea.Msg {
		ps, err := svc.List(context.Background())
		return playlistsLoadedMsg{playlists: ps, err: err}
	}
}

// describe prefers the backend's own message for rejections.
func describe(err error) string {
	var rej *playlist.RejectionError
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	return err.Error()
}

func (m listModel) View(focused bool) string {
	accentStyle := lipgloss.NewStyle().Foreground(accent).Bold(true)

	s := "\n"

	switch {
	case m.loading && len(m.playlists) == 0:
		s += "  " + zstyle.MutedText.Render("loading playlists...") + "\n"
	case len(m.playlists) == 0:
		s += "  " + zstyle.MutedText.Render("no playlists yet") + "\n"
	}

	for i, p := range m.playlists {
		line := fmt.Sprintf("%-4d %s %s", p.ID, padRight(truncate(p.Name, 30), 30), statusText(p))
		if p.TrackCount > 0 {
			line += "  " + zstyle.MutedText.Render(fmt.Sprintf("(%d)", p.TrackCount))
		}

		if focused && i == m.cursor {
			s += "  " + accentStyle.Render("▸") + " " + line + "\n"
		} else {
			s += "    " + line + "\n"
		}
	}

	s += "\n"

	// always reserve a line for flash to prevent layout shift
	if m.flash != "" {
		s += "  " + zstyle.StatusOK.Render(m.flash) + "\n"
	} else {
		s += "\n"
	}

	return s
}

func statusText(p playlist.Playlist) string {
	if p.Disabled {
		return zstyle.StatusErr.Render("disabled")
	}
	switch p.DownloadStatus {
	case playlist.StatusQueued, playlist.StatusDownloading:
		return zstyle.StatusWarn.Render(p.DownloadStatus)
	case "":
		return zstyle.MutedText.Render(playlist.StatusReady)
	}
	return zstyle.StatusOK.Render(p.DownloadStatus)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// padRight pads s to n terminal cells.
func padRight(s string, n int) string {
	if w := lipgloss.Width(s); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s
}
