package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/forgecode/core"
	"pkt.systems/forgecode/internal/appconfig"
	"pkt.systems/forgecode/internal/consoleui"
	"pkt.systems/forgecode/internal/eventbus"
	"pkt.systems/forgecode/schema"
	"pkt.systems/pslog"
)

const windowPollInterval = 500 * time.Millisecond

func newConsoleCmd() *cobra.Command {
	var cfgPath string
	var workspace string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Open a workspace console in this terminal",
		Long: "Open a workspace console in this terminal. When stdin is not a terminal, " +
			"each input line is submitted in turn and only program output is printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			logger := pslog.Ctx(cmd.Context())
			if interactive {
				// The console owns the screen; logs go to the state dir instead.
				logFile, err := openConsoleLog(cfg.StateDir)
				if err != nil {
					return err
				}
				defer func() { _ = logFile.Close() }()
				logger = pslog.LoggerFromEnv(
					pslog.WithEnvWriter(logFile),
					pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured}),
				)
			}
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)

			sessionDeps, _, err := backendDeps(cfg, logger)
			if err != nil {
				return err
			}
			bus := eventbus.New(logger)
			sessionDeps.EventSink = bus
			manager := core.NewManager(toManagerConfig(cfg), sessionDeps)
			defer manager.Close()

			id := schema.WorkspaceID("local-" + workspace)
			ws, err := manager.Open(ctx, id)
			if err != nil {
				return err
			}
			if !interactive {
				follower, unfollow := bus.Follow(id)
				defer unfollow()
				return runLines(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), ws.Console, follower)
			}
			events, unsubscribe := bus.Subscribe(id)
			defer unsubscribe()
			return runInteractive(ctx, ws.Console, events, cfg)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "default", "workspace name; the remote session is kept per name")
	return cmd
}

func openConsoleLog(stateDir string) (*os.File, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(stateDir, "console.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}

func runInteractive(ctx context.Context, console *core.Session, events <-chan schema.ConsoleEvent, cfg appconfig.Config) error {
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, state) }()

	theme, _ := schema.NormalizeThemeName(cfg.SSH.Theme)
	ui := consoleui.New(os.Stdin, os.Stdout, console, events, consoleui.Config{Title: "local", Theme: theme})
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err == nil {
		ui.SetSize(width, height)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return ui.Run(ctx, watchSize(ctx, int(os.Stdout.Fd()), width, height))
}

// watchSize polls the terminal size and reports changes.
func watchSize(ctx context.Context, fd, width, height int) <-chan consoleui.Window {
	out := make(chan consoleui.Window)
	go func() {
		defer close(out)
		ticker := time.NewTicker(windowPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			w, h, err := term.GetSize(fd)
			if err != nil || (w == width && h == height) {
				continue
			}
			width, height = w, h
			select {
			case out <- consoleui.Window{Width: w, Height: h}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// runLines submits every line of r in order and writes program output to w.
func runLines(ctx context.Context, r io.Reader, w io.Writer, console consoleui.LineSubmitter, events consoleui.EventQueue) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := consoleui.RunLine(ctx, w, console, scanner.Text(), events); err != nil {
			return err
		}
	}
	return scanner.Err()
}
