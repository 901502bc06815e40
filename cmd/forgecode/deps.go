package main

import (
	"net/http"
	"strings"
	"time"

	"pkt.systems/forgecode/core"
	"pkt.systems/forgecode/httpapi"
	"pkt.systems/forgecode/internal/appconfig"
	"pkt.systems/forgecode/internal/execclient"
	"pkt.systems/forgecode/internal/persist"
	"pkt.systems/forgecode/schema"
	"pkt.systems/forgecode/sshserver"
	"pkt.systems/pslog"
)

// backendDeps wires the execution client and session persistence shared by
// every front end.
func backendDeps(cfg appconfig.Config, logger pslog.Logger) (core.SessionDeps, execclient.Doer, error) {
	// Execution streams stay open for as long as the program runs, so the
	// client carries no overall timeout.
	doer := &http.Client{}
	client, err := execclient.New(execclient.Config{
		BaseURL:        cfg.Backend.BaseURL,
		VCPU:           cfg.Backend.VCPU,
		Memory:         cfg.Backend.Memory,
		SessionTimeout: time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
	}, doer)
	if err != nil {
		return core.SessionDeps{}, nil, err
	}
	slots, err := persist.NewStoreWithLogger(cfg.StateDir, logger)
	if err != nil {
		return core.SessionDeps{}, nil, err
	}
	return core.SessionDeps{
		Runner: core.NewClientRunner(client),
		Slots:  slots,
		Logger: logger,
	}, doer, nil
}

func toManagerConfig(cfg appconfig.Config) core.ManagerConfig {
	return core.ManagerConfig{
		Language:           schema.Language(strings.ToLower(strings.TrimSpace(cfg.Backend.Language))),
		WhoAmI:             cfg.Console.WhoAmI,
		TranscriptMaxLines: cfg.Console.TranscriptMaxLines,
	}
}

func toHTTPConfig(cfg appconfig.Config) httpapi.Config {
	return httpapi.Config{
		Addr:                   cfg.HTTP.Addr,
		BasePath:               cfg.HTTP.BasePath,
		Cookie:                 cfg.HTTP.Cookie,
		InitialTranscriptLines: cfg.HTTP.InitialTranscriptLines,
		ProxyPrefix:            cfg.HTTP.ProxyPrefix,
		BackendURL:             cfg.Backend.BaseURL,
	}
}

func toSSHConfig(cfg appconfig.Config) sshserver.Config {
	theme, _ := schema.NormalizeThemeName(cfg.SSH.Theme)
	return sshserver.Config{
		Addr:        cfg.SSH.Addr,
		HostKeyPath: cfg.SSH.HostKeyPath,
		Theme:       theme,
	}
}
