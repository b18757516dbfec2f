package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zapp"
	"github.com/zarlcorp/zplay/internal/cli"
	"github.com/zarlcorp/zplay/internal/config"
	"github.com/zarlcorp/zplay/internal/logging"
	"github.com/zarlcorp/zplay/internal/mockbackend"
	"github.com/zarlcorp/zplay/internal/playlist"
	"github.com/zarlcorp/zplay/internal/tui"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	app := zapp.New(zapp.WithName("zplay"))

	ctx, cancel := zapp.SignalContext(context.Background())
	defer cancel()

	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("zplay %s\n", version)
		_ = app.Close()
		return
	}

	cfg, err := config.Load(config.Dir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "zplay: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zplay: %v\n", err)
		os.Exit(1)
	}

	client := playlist.NewClient(cfg.Backend.URL, playlist.WithLogger(log))

	err = run(ctx, cfg, client, log)
	_ = log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "zplay: %v\n", err)
		_ = app.Close()
		os.Exit(1)
	}

	if err := app.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "zplay: shutdown: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, client *playlist.Client, log *zap.Logger) error {
	if len(os.Args) > 1 {
		return runCLI(ctx, cfg, client, log, os.Args[1], os.Args[2:])
	}

	// piped input is a batch of identifiers, one per line
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return cli.CmdBatch(ctx, client, os.Stdin, os.Stdout, log)
	}

	return runTUI(client, log)
}

func runCLI(ctx context.Context, cfg *config.Config, client *playlist.Client, log *zap.Logger, cmd string, args []string) error {
	switch cmd {
	case "add":
		if len(args) < 1 {
			return fmt.Errorf("usage: zplay add <url-or-id>")
		}
		return cli.CmdAdd(ctx, client, args[0], os.Stdout, log)
	case "list":
		return cli.CmdList(ctx, client, args, os.Stdout)
	case "sync":
		return cli.CmdSync(ctx, client, args, os.Stdout)
	case "remove":
		return cli.CmdRemove(ctx, client, args, os.Stdout)
	case "mock":
		srv := mockbackend.New(mockbackend.WithLogger(log))
		fmt.Fprintf(os.Stderr, "mock backend listening on %s\n", cfg.Mock.ListenAddr)
		return srv.Serve(ctx, cfg.Mock.ListenAddr)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runTUI(client *playlist.Client, log *zap.Logger) error {
	m := tui.New(version, client.BaseURL(), client, client, log)
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}
