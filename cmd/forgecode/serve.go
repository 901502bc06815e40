package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/forgecode"
	"pkt.systems/forgecode/internal/appconfig"
	"pkt.systems/forgecode/internal/version"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var noHTTP bool
	var noSSH bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and SSH servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			opts, err := serveOptions(noHTTP, noSSH)
			if err != nil {
				return err
			}
			logger.Info("forgecode starting", "version", version.Current(), "backend", cfg.Backend.BaseURL, "language", cfg.Backend.Language)

			sessionDeps, doer, err := backendDeps(cfg, logger)
			if err != nil {
				return err
			}
			server, err := forgecode.New(forgecode.ServerConfig{
				Workspaces: toManagerConfig(cfg),
				HTTP:       toHTTPConfig(cfg),
				SSH:        toSSHConfig(cfg),
				HubHistory: 1000,
			}, forgecode.ServerDeps{Session: sessionDeps, Doer: doer}, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "disable the HTTP server")
	cmd.Flags().BoolVar(&noSSH, "no-ssh", false, "disable the SSH server")
	return cmd
}

func serveOptions(noHTTP, noSSH bool) ([]forgecode.ServerOption, error) {
	var opts []forgecode.ServerOption
	if !noHTTP {
		opts = append(opts, forgecode.WithHTTP())
	}
	if !noSSH {
		opts = append(opts, forgecode.WithSSH())
	}
	if len(opts) == 0 {
		return nil, errors.New("--no-http and --no-ssh leave nothing to serve")
	}
	return opts, nil
}
