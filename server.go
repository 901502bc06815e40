// Package forgecode composes the workspace manager with its HTTP and SSH
// front ends.
package forgecode

import (
	"context"
	"errors"
	"net"
	"sync"

	"pkt.systems/forgecode/core"
	"pkt.systems/forgecode/httpapi"
	"pkt.systems/forgecode/internal/eventbus"
	"pkt.systems/forgecode/internal/execclient"
	"pkt.systems/forgecode/sshserver"
	"pkt.systems/pslog"
)

// Server runs the enabled front ends against one workspace manager.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Workspaces core.ManagerConfig
	HTTP       httpapi.Config
	SSH        sshserver.Config
	// HubHistory bounds the SSE replay history.
	HubHistory int
}

// ServerDeps captures dependencies required to build the server.
type ServerDeps struct {
	Session core.SessionDeps
	// Doer carries proxied browser requests to the execution backend.
	Doer execclient.Doer
	// HTTPListener and SSHListener replace the configured addresses when set.
	HTTPListener net.Listener
	SSHListener  net.Listener
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	http bool
	ssh  bool
}

// WithHTTP enables the HTTP API server.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.http = true }
}

// WithSSH enables the SSH server.
func WithSSH() ServerOption {
	return func(o *serverOptions) { o.ssh = true }
}

// service is one front end run by the compositor.
type service struct {
	name string
	run  func(ctx context.Context) error
}

// New wires the enabled front ends. Console events reach both the SSE hub
// and the SSH event bus, after any sink the caller supplied.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	var options serverOptions
	for _, opt := range opts {
		opt(&options)
	}
	if !options.http && !options.ssh {
		return nil, errors.New("no services enabled")
	}
	if deps.Session.Runner == nil {
		return nil, errors.New("runner dependency is required")
	}

	sessionDeps := deps.Session
	sinks := []core.EventSink{sessionDeps.EventSink}
	var hub *httpapi.Hub
	if options.http {
		hub = httpapi.NewHub(cfg.HubHistory)
		sinks = append(sinks, hub)
	}
	var bus *eventbus.Bus
	if options.ssh {
		bus = eventbus.New(sessionDeps.Logger)
		sinks = append(sinks, bus)
	}
	sessionDeps.EventSink = fanout(sinks...)
	manager := core.NewManager(cfg.Workspaces, sessionDeps)

	srv := &compositeServer{manager: manager}
	if options.http {
		api, err := httpapi.NewServer(cfg.HTTP, manager, hub, deps.Doer)
		if err != nil {
			return nil, err
		}
		handler := api.Handler()
		srv.services = append(srv.services, service{name: "http", run: func(ctx context.Context) error {
			if deps.HTTPListener != nil {
				return httpapi.Serve(ctx, deps.HTTPListener, handler)
			}
			return httpapi.ListenAndServe(ctx, cfg.HTTP.Addr, handler)
		}})
	}
	if options.ssh {
		sshSrv := &sshserver.Server{
			Addr:        cfg.SSH.Addr,
			HostKeyPath: cfg.SSH.HostKeyPath,
			Listener:    deps.SSHListener,
			Workspaces:  manager,
			Events:      bus,
			Theme:       cfg.SSH.Theme,
		}
		srv.services = append(srv.services, service{name: "ssh", run: sshSrv.ListenAndServe})
	}
	return srv, nil
}

type compositeServer struct {
	manager  *core.Manager
	services []service

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	failed  chan error
	log     pslog.Logger
	started bool
	stopped bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.failed = make(chan error, len(s.services))
	s.log = pslog.Ctx(s.ctx)

	names := make([]string, 0, len(s.services))
	for _, svc := range s.services {
		names = append(names, svc.name)
		go func(svc service) {
			if err := svc.run(s.ctx); err != nil {
				s.log.Error("service failed", "service", svc.name, "err", err)
				s.failed <- err
			}
		}(svc)
	}
	s.log.Info("server start", "services", names)
	return nil
}

// Wait blocks until Stop is called or a service fails. A failed service
// stops the others and its error is returned.
func (s *compositeServer) Wait() error {
	s.mu.Lock()
	started, ctx, failed := s.started, s.ctx, s.failed
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}
	select {
	case <-ctx.Done():
		return nil
	case err := <-failed:
		_ = s.Stop(context.Background())
		return err
	}
}

// Stop cancels every service and closes the workspaces, which cancels
// in-flight executions. Only the first call does anything.
func (s *compositeServer) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cancel, log := s.cancel, s.log
	s.mu.Unlock()

	log.Info("server stop requested")
	cancel()
	closed := make(chan struct{})
	go func() {
		s.manager.Close()
		close(closed)
	}()
	select {
	case <-closed:
		log.Info("server stopped")
		return nil
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	}
}
