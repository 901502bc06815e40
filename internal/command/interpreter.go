package command

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"pkt.systems/forgecode/internal/logx"
	"pkt.systems/forgecode/schema"
)

// DefaultWhoAmI is printed by whoami when no user name is configured.
const DefaultWhoAmI = "forge"

const pythonExt = ".py"

var replBanner = []string{
	"Python 3 interactive shell (remote execution)",
	`Type "exit()" or "quit()" to return to the shell.`,
}

var helpLines = []string{
	"Available commands:",
	"  python              start the interactive Python REPL",
	"  python <file.py>    run a workspace file",
	"  python -c <code>    run a line of code",
	"  ls                  list workspace files",
	"  whoami              print the current user",
	"  clear               clear the console",
	"  help                show this help",
}

// FileReader exposes the workspace files the interpreter can see.
type FileReader interface {
	List() []string
	Read(name string) (string, bool)
}

// Output receives transcript mutations.
type Output interface {
	Echo(line string)
	Print(lines ...string)
	Clear()
	ModeChanged(mode schema.ConsoleMode)
}

// Executor runs code remotely and prints every output record to out as it arrives.
type Executor interface {
	Execute(ctx context.Context, language schema.Language, code string, out Output)
}

// Config configures the interpreter.
type Config struct {
	WhoAmI string
}

// Interpreter classifies console lines and dispatches them. It starts in
// shell mode; python with no arguments switches to the REPL.
type Interpreter struct {
	files FileReader
	exec  Executor
	cfg   Config

	mu   sync.Mutex
	mode schema.ConsoleMode
}

// NewInterpreter constructs an interpreter in shell mode.
func NewInterpreter(files FileReader, exec Executor, cfg Config) *Interpreter {
	if strings.TrimSpace(cfg.WhoAmI) == "" {
		cfg.WhoAmI = DefaultWhoAmI
	}
	return &Interpreter{files: files, exec: exec, cfg: cfg, mode: schema.ModeShell}
}

// Mode returns the current interpreter mode.
func (i *Interpreter) Mode() schema.ConsoleMode {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.mode
}

func (i *Interpreter) setMode(out Output, mode schema.ConsoleMode) {
	i.mu.Lock()
	i.mode = mode
	i.mu.Unlock()
	out.ModeChanged(mode)
}

// Handle processes one submitted line. Every outcome, including user errors,
// is written to out.
func (i *Interpreter) Handle(ctx context.Context, out Output, input string) {
	mode := i.Mode()
	line := strings.TrimRight(input, "\r\n")
	log := logx.Ctx(ctx).With("mode", mode, "input_len", len(line))
	cmd, ok := Parse(line)
	if !ok {
		out.Echo(mode.Prompt())
		return
	}
	if mode == schema.ModeRepl {
		i.handleRepl(ctx, out, line, cmd)
		return
	}
	if cmd.Name == "clear" && len(cmd.Args) == 0 {
		log.Info("command clear")
		out.Clear()
		return
	}
	out.Echo(mode.Prompt() + line)
	log = log.With("command", cmd.Name, "args", len(cmd.Args))
	log.Debug("command request")
	switch cmd.Name {
	case "python", "python3":
		i.handlePython(ctx, out, cmd)
	case "ls":
		out.Print(i.files.List()...)
	case "whoami":
		out.Print(i.cfg.WhoAmI)
	case "help":
		out.Print(helpLines...)
	default:
		log.Warn("command rejected", "reason", "unknown")
		out.Print(fmt.Sprintf("Command not found: `%s`", cmd.Raw))
	}
}

func (i *Interpreter) handleRepl(ctx context.Context, out Output, line string, cmd Command) {
	out.Echo(schema.ModeRepl.Prompt() + line)
	if cmd.Raw == "exit()" || cmd.Raw == "quit()" {
		logx.Ctx(ctx).Info("command repl exit")
		i.setMode(out, schema.ModeShell)
		return
	}
	i.exec.Execute(ctx, schema.LanguagePython, cmd.Raw, out)
}

func (i *Interpreter) handlePython(ctx context.Context, out Output, cmd Command) {
	log := logx.Ctx(ctx)
	switch {
	case len(cmd.Args) == 0:
		log.Info("command repl enter")
		i.setMode(out, schema.ModeRepl)
		out.Print(replBanner...)
	case len(cmd.Args) == 1:
		name := cmd.Args[0]
		content, exists := i.files.Read(name)
		if !strings.HasSuffix(name, pythonExt) || !exists {
			log.Info("command python rejected", "reason", "missing file", "file", name)
			out.Print(fmt.Sprintf("python: can't open file '%s': No such file or directory", name))
			return
		}
		log.Info("command python file", "file", name)
		i.exec.Execute(ctx, schema.LanguagePython, content, out)
	case cmd.Args[0] == "-c":
		code := strings.Join(cmd.Args[1:], " ")
		log.Info("command python inline", "code", logx.PreviewText(code, 40))
		i.exec.Execute(ctx, schema.LanguagePython, code, out)
	default:
		log.Info("command python rejected", "reason", "syntax")
		out.Print("python: invalid syntax or command")
	}
}
