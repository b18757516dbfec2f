// Package cli implements zplay's command-line subcommands.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zarlcorp/zplay/internal/playlist"
	"github.com/zarlcorp/zplay/internal/submit"
	"go.uber.org/zap"
)

// ErrNoInput is returned when there is nothing to submit.
var ErrNoInput = errors.New("no url or id provided")

// Backend is the playlist service the subcommands talk to.
type Backend interface {
	submit.Creator
	List(ctx context.Context) ([]playlist.Playlist, error)
	Sync(ctx context.Context, ids []int) ([]playlist.Playlist, error)
	Delete(ctx context.Context, ids []int) ([]playlist.Playlist, error)
}

// CmdAdd submits a single playlist URL or ID.
func CmdAdd(ctx context.Context, b Backend, urlOrID string, w io.Writer, log *zap.Logger) error {
	ctrl := submit.New(b, submit.NotifierFuncs{
		Added: func() { fmt.Fprintln(w, "added") },
	}, submit.WithLogger(log))

	ctrl.SetValue(urlOrID)
	out, ok := ctrl.Submit(ctx)
	if !ok {
		return ErrNoInput
	}
	if out.Kind != submit.Added {
		return errors.New(out.Message)
	}
	return nil
}

// CmdBatch submits one URL or ID per line of r. Blank lines are skipped.
// Every line is attempted; the error reports how many failed.
func CmdBatch(ctx context.Context, b Backend, r io.Reader, w io.Writer, log *zap.Logger) error {
	ctrl := submit.New(b, submit.NotifierFuncs{}, submit.WithLogger(log))

	var total, failed int
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ctrl.SetValue(sc.Text())
		out, ok := ctrl.Submit(ctx)
		if !ok {
			continue
		}
		total++

		id := strings.TrimSpace(sc.Text())
		if out.Kind == submit.Added {
			fmt.Fprintf(w, "added %s\n", id)
			continue
		}
		failed++
		fmt.Fprintf(w, "%s: %s\n", id, out.Message)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d playlists failed", failed, total)
	}
	return nil
}

// CmdList prints every playlist the backend knows.
func CmdList(ctx context.Context, b Backend, args []string, w io.Writer) error {
	ps, err := b.List(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	if hasFlag(args, "--json") {
		return printJSON(w, ps)
	}

	if len(ps) == 0 {
		fmt.Fprintln(w, "no playlists")
		return nil
	}

	for _, p := range ps {
		status := p.DownloadStatus
		if p.Disabled {
			status = "disabled"
		}
		fmt.Fprintf(w, "  %-4d %-30s %-12s %d tracks\n", p.ID, p.Name, status, p.TrackCount)
	}
	return nil
}

// CmdSync queues the given playlists for download, or all of them when
// no IDs are given.
func CmdSync(ctx context.Context, b Backend, args []string, w io.Writer) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	ps, err := b.Sync(ctx, ids)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	fmt.Fprintf(w, "queued %d playlists\n", len(ps))
	return nil
}

// CmdRemove deletes the given playlists.
func CmdRemove(ctx context.Context, b Backend, args []string, w io.Writer) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return errors.New("no playlist ids given")
	}

	if _, err := b.Delete(ctx, ids); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	for _, id := range ids {
		fmt.Fprintf(w, "deleted %d\n", id)
	}
	return nil
}

func parseIDs(args []string) ([]int, error) {
	var ids []int
	for _, a := range args {
		if strings.HasPrefix(a, "--") {
			continue
		}
		id, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid playlist id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if strings.EqualFold(a, flag) {
			return true
		}
	}
	return false
}
