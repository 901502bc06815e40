// Package sshserver serves workspace consoles over SSH.
package sshserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	gliderssh "github.com/gliderlabs/ssh"
	gossh "golang.org/x/crypto/ssh"

	"pkt.systems/forgecode/core"
	"pkt.systems/forgecode/internal/consoleui"
	"pkt.systems/forgecode/internal/eventbus"
	"pkt.systems/forgecode/internal/logx"
	"pkt.systems/forgecode/schema"
	"pkt.systems/pslog"
)

// Workspaces resolves the workspace of an SSH user. *core.Manager satisfies it.
type Workspaces interface {
	Open(ctx context.Context, id schema.WorkspaceID) (*core.Workspace, error)
}

// Subscriber delivers console events per workspace. *eventbus.Bus satisfies
// it. Follow never drops events; Subscribe may under load.
type Subscriber interface {
	Subscribe(id schema.WorkspaceID) (<-chan schema.ConsoleEvent, func())
	Follow(id schema.WorkspaceID) (*eventbus.Follower, func())
}

// Server exposes workspace consoles over SSH. Every SSH user gets one
// workspace shared by all of their connections.
type Server struct {
	Addr        string
	HostKeyPath string
	Listener    net.Listener
	Workspaces  Workspaces
	Events      Subscriber
	Theme       schema.ThemeName
	logger      pslog.Logger
}

// WorkspaceFor returns the workspace id of an SSH user.
func WorkspaceFor(user string) schema.WorkspaceID {
	user = strings.TrimSpace(user)
	if user == "" {
		user = "anonymous"
	}
	return schema.WorkspaceID("ssh-" + user)
}

// ListenAndServe starts the SSH server and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Workspaces == nil {
		return errors.New("workspaces are required for SSH")
	}
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	signer, err := EnsureHostKey(s.HostKeyPath)
	if err != nil {
		return err
	}
	server := &gliderssh.Server{
		Addr:    s.Addr,
		Handler: s.handleSession,
	}
	server.AddHostKey(signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			s.logger.Info("ssh listening", "addr", s.Listener.Addr().String(), "host_key", gossh.FingerprintSHA256(signer.PublicKey()))
			errCh <- server.Serve(s.Listener)
			return
		}
		s.logger.Info("ssh listening", "addr", s.Addr, "host_key", gossh.FingerprintSHA256(signer.PublicKey()))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, gliderssh.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleSession(sess gliderssh.Session) {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(sess.Context())
	}
	id := WorkspaceFor(sess.User())
	log = log.With("ssh_user", sess.User(), "remote", sess.RemoteAddr().String(), "workspace", id)
	if sshSession := sess.Context().SessionID(); sshSession != "" {
		log = log.With("ssh_session", sshSession)
	}
	ctx := logx.ContextWithWorkspaceLogger(sess.Context(), log, id)

	ws, err := s.Workspaces.Open(ctx, id)
	if err != nil {
		log.Warn("ssh session rejected", "err", err)
		_, _ = fmt.Fprintf(sess, "workspace unavailable: %v\n", err)
		_ = sess.Exit(1)
		return
	}

	if line := sess.RawCommand(); line != "" {
		log.Info("ssh command", "input", logx.PreviewText(line, 60))
		var queue consoleui.EventQueue
		if s.Events != nil {
			follower, unfollow := s.Events.Follow(id)
			defer unfollow()
			queue = follower
		}
		if err := consoleui.RunLine(ctx, sess, ws.Console, line, queue); err != nil {
			log.Warn("ssh command output failed", "err", err)
			_ = sess.Exit(1)
			return
		}
		_ = sess.Exit(0)
		return
	}

	var events <-chan schema.ConsoleEvent
	unsubscribe := func() {}
	if s.Events != nil {
		events, unsubscribe = s.Events.Subscribe(id)
	}
	defer unsubscribe()

	pty, winCh, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required; pass a command to run it without one\n")
		_ = sess.Exit(1)
		return
	}

	log.Info("ssh session opened", "term", pty.Term)
	ui := consoleui.New(sess, sess, ws.Console, events, consoleui.Config{
		Title: sess.User(),
		Theme: s.Theme,
	})
	ui.SetSize(pty.Window.Width, pty.Window.Height)
	_ = ui.Run(ctx, windows(ctx, winCh))
	log.Info("ssh session closed")
}

func windows(ctx context.Context, in <-chan gliderssh.Window) <-chan consoleui.Window {
	out := make(chan consoleui.Window)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case win, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- consoleui.Window{Width: win.Width, Height: win.Height}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
