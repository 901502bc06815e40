package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"pkt.systems/forgecode/internal/command"
	"pkt.systems/forgecode/internal/execclient"
	"pkt.systems/forgecode/internal/logx"
	"pkt.systems/forgecode/schema"
	"pkt.systems/pslog"
)

// BusyMessage is appended when a line is submitted while an execution is running.
const BusyMessage = "execution in progress"

// SessionConfig configures a console session.
type SessionConfig struct {
	WorkspaceID        schema.WorkspaceID
	Language           schema.Language
	WhoAmI             string
	TranscriptMaxLines int
}

// Session is one console: an interpreter, its transcript and the remote
// session slot used for executions. At most one execution runs at a time.
type Session struct {
	cfg    SessionConfig
	interp *command.Interpreter
	runner Runner
	slots  SlotStore
	sink   EventSink
	logger pslog.Logger
	ensure singleflight.Group

	// submitMu serializes interpreter dispatch.
	submitMu sync.Mutex
	pending  chan struct{}

	mu         sync.Mutex
	transcript *transcript
	vmID       schema.VMID
	busy       bool
	closed     bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewSession constructs a console session reading files from files.
func NewSession(cfg SessionConfig, files command.FileReader, deps SessionDeps) *Session {
	if cfg.Language == "" {
		cfg.Language = schema.LanguagePython
	}
	logger := deps.Logger
	if logger != nil && cfg.WorkspaceID != "" {
		logger = logger.With("workspace", cfg.WorkspaceID)
	}
	s := &Session{
		cfg:        cfg,
		runner:     deps.Runner,
		slots:      deps.Slots,
		sink:       deps.EventSink,
		logger:     logger,
		transcript: newTranscript(cfg.TranscriptMaxLines),
	}
	s.interp = command.NewInterpreter(files, s, command.Config{WhoAmI: cfg.WhoAmI})
	return s
}

// Submit dispatches one line and returns a channel closed once the line,
// including any execution it started, has completed.
func (s *Session) Submit(ctx context.Context, line string) <-chan struct{} {
	done, _ := s.submit(ctx, line)
	return done
}

// SubmitLine dispatches one line and waits for it to complete. Canceling ctx
// cancels the execution the line started.
func (s *Session) SubmitLine(ctx context.Context, line string) {
	done, cancel := s.submit(ctx, line)
	select {
	case <-done:
	case <-ctx.Done():
		cancel()
		<-done
	}
}

func (s *Session) submit(ctx context.Context, line string) (<-chan struct{}, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.logger != nil {
		ctx = logx.ContextWithWorkspaceLogger(ctx, s.logger, s.cfg.WorkspaceID)
	}
	line = strings.TrimRight(line, "\r\n")
	done := make(chan struct{})
	noop := func() {}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	s.mu.Lock()
	closed, busy := s.closed, s.busy
	s.mu.Unlock()
	if closed {
		close(done)
		return done, noop
	}
	if busy {
		logx.WithWorkspace(ctx, s.cfg.WorkspaceID).Info("console submit rejected", "reason", "busy")
		s.Echo(s.interp.Mode().Prompt() + line)
		s.Print(BusyMessage)
		close(done)
		return done, noop
	}

	s.pending = done
	s.interp.Handle(ctx, s, line)
	if s.pending != nil {
		s.pending = nil
		close(done)
		s.publish(schema.ConsoleEvent{Type: schema.ConsoleIdle})
		return done, noop
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		cancel = noop
	}
	return done, cancel
}

// Execute implements command.Executor. It starts the execution in the
// background and returns immediately.
func (s *Session) Execute(ctx context.Context, language schema.Language, code string, _ command.Output) {
	done := s.pending
	s.pending = nil
	if done == nil {
		done = make(chan struct{})
	}
	if language == "" {
		language = s.cfg.Language
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(done)
		return
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.busy = true
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(done)
		defer s.finish(cancel)
		s.run(runCtx, language, code)
	}()
}

func (s *Session) finish(cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	s.busy = false
	s.cancel = nil
	s.mu.Unlock()
	s.publish(schema.ConsoleEvent{Type: schema.ConsoleIdle})
}

func (s *Session) run(ctx context.Context, language schema.Language, code string) {
	log := logx.WithWorkspace(ctx, s.cfg.WorkspaceID).With("language", language)
	if s.runner == nil {
		s.Print("Error: execution backend is not configured")
		return
	}
	id, err := s.EnsureSession(ctx)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("console execution canceled")
			return
		}
		log.Warn("console session unavailable", "err", err)
		s.Print("Error: " + err.Error())
		return
	}
	log = logx.WithVM(log, id)
	log.Info("console execution start", "code_len", len(code))
	stream, err := s.runner.Run(ctx, execclient.RunRequest{SessionID: id, Language: language, Code: code})
	if err != nil {
		if ctx.Err() != nil {
			log.Info("console execution canceled")
			return
		}
		log.Warn("console execution failed", "err", err)
		s.Print("Error: " + err.Error())
		return
	}
	defer func() { _ = stream.Close() }()

	records := 0
	for {
		line, err := stream.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
			case ctx.Err() != nil:
				log.Info("console execution canceled", "records", records)
			default:
				log.Warn("console stream failed", "err", err, "records", records)
				s.Print("Error: " + err.Error())
			}
			break
		}
		records++
		s.Print(line)
	}
	if stream.SessionGone() {
		log.Warn("console session gone")
		s.forgetSession(ctx, id)
		return
	}
	log.Info("console execution completed", "records", records)
}

// EnsureSession returns the remote session id, loading it from the slot
// store or creating it on first use. Concurrent callers share one creation.
func (s *Session) EnsureSession(ctx context.Context) (schema.VMID, error) {
	s.mu.Lock()
	id := s.vmID
	s.mu.Unlock()
	if id != "" {
		return id, nil
	}
	if s.runner == nil {
		return "", schema.ErrSessionUnavailable
	}
	value, err, _ := s.ensure.Do(schema.VMSlotKey, func() (any, error) {
		s.mu.Lock()
		current := s.vmID
		s.mu.Unlock()
		if current != "" {
			return current, nil
		}
		log := logx.WithWorkspace(ctx, s.cfg.WorkspaceID)
		scope := string(s.cfg.WorkspaceID)
		if s.slots != nil {
			stored, ok, err := s.slots.Load(scope, schema.VMSlotKey)
			if err != nil {
				log.Warn("console slot load failed", "err", err)
			} else if ok && strings.TrimSpace(stored) != "" {
				restored := schema.VMID(strings.TrimSpace(stored))
				s.setSession(restored)
				logx.WithVM(log, restored).Debug("console session restored")
				return restored, nil
			}
		}
		created, err := s.runner.CreateSession(ctx)
		if err != nil {
			return schema.VMID(""), err
		}
		s.setSession(created)
		if s.slots != nil {
			if err := s.slots.Save(scope, schema.VMSlotKey, string(created)); err != nil {
				log.Warn("console slot save failed", "err", err)
			}
		}
		logx.WithVM(log, created).Info("console session created")
		return created, nil
	})
	if err != nil {
		return "", err
	}
	return value.(schema.VMID), nil
}

func (s *Session) setSession(id schema.VMID) {
	s.mu.Lock()
	s.vmID = id
	s.mu.Unlock()
}

func (s *Session) forgetSession(ctx context.Context, id schema.VMID) {
	s.mu.Lock()
	if s.vmID == id {
		s.vmID = ""
	}
	s.mu.Unlock()
	if s.slots == nil {
		return
	}
	if err := s.slots.Delete(string(s.cfg.WorkspaceID), schema.VMSlotKey); err != nil {
		logx.WithWorkspace(ctx, s.cfg.WorkspaceID).Warn("console slot delete failed", "err", err)
	}
}

// Echo implements command.Output.
func (s *Session) Echo(line string) {
	s.appendLines(schema.ConsoleEcho, line)
}

// Print implements command.Output.
func (s *Session) Print(lines ...string) {
	s.appendLines(schema.ConsoleOutput, lines...)
}

// Clear implements command.Output.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.Reset()
	s.publishLocked(schema.ConsoleEvent{Type: schema.ConsoleClear})
}

// ModeChanged implements command.Output.
func (s *Session) ModeChanged(mode schema.ConsoleMode) {
	s.publish(schema.ConsoleEvent{Type: schema.ConsoleModeChanged, Mode: mode})
}

func (s *Session) appendLines(kind schema.ConsoleEventType, lines ...string) {
	if len(lines) == 0 {
		return
	}
	copied := append([]string(nil), lines...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.Append(copied...)
	s.publishLocked(schema.ConsoleEvent{Type: kind, Lines: copied})
}

func (s *Session) publish(event schema.ConsoleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(event)
}

// publishLocked keeps event order identical to transcript order.
func (s *Session) publishLocked(event schema.ConsoleEvent) {
	if s.sink == nil {
		return
	}
	event.WorkspaceID = s.cfg.WorkspaceID
	if event.Mode == "" {
		event.Mode = s.interp.Mode()
	}
	s.sink.OnConsoleEvent(event)
}

// Transcript returns a copy of every transcript line.
func (s *Session) Transcript() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Export()
}

// Snapshot returns the last limit lines with the current mode and busy flag.
func (s *Session) Snapshot(limit int) schema.TranscriptSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.transcript.Snapshot(limit)
	return schema.TranscriptSnapshot{
		Lines:      view.Lines,
		TotalLines: view.TotalLines,
		Mode:       s.interp.Mode(),
		Busy:       s.busy,
	}
}

// SnapshotWith is Snapshot with fn run while transcript changes are held off,
// so a subscriber registered by fn sees exactly the events after the snapshot.
func (s *Session) SnapshotWith(limit int, fn func()) schema.TranscriptSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		fn()
	}
	view := s.transcript.Snapshot(limit)
	return schema.TranscriptSnapshot{
		Lines:      view.Lines,
		TotalLines: view.TotalLines,
		Mode:       s.interp.Mode(),
		Busy:       s.busy,
	}
}

// Mode returns the interpreter mode.
func (s *Session) Mode() schema.ConsoleMode {
	return s.interp.Mode()
}

// Busy reports whether an execution is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Interrupt cancels the in-flight execution and reports whether there was one.
func (s *Session) Interrupt() bool {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// SessionID returns the remote session id, empty before first use.
func (s *Session) SessionID() schema.VMID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vmID
}

// Close cancels any in-flight execution and waits for it to stop. Later
// submissions are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
