// Package consoleui renders a workspace console as a full screen terminal UI.
package consoleui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"pkt.systems/forgecode/internal/logx"
	"pkt.systems/forgecode/schema"
)

// Console is the console a terminal drives. *core.Session satisfies it.
type Console interface {
	Submit(ctx context.Context, line string) <-chan struct{}
	Interrupt() bool
	Snapshot(limit int) schema.TranscriptSnapshot
}

// Window is a terminal size in cells.
type Window struct {
	Width  int
	Height int
}

// Config customizes a terminal.
type Config struct {
	Title       string
	Theme       schema.ThemeName
	HistorySize int
}

const defaultHistorySize = 200

var spinnerFrames = []rune{'|', '/', '-', '\\'}

var spinnerInterval = 250 * time.Millisecond

// Terminal is one interactive view of a console.
type Terminal struct {
	in      io.Reader
	screen  screen
	console Console
	events  <-chan schema.ConsoleEvent
	cfg     Config
	palette palette

	width  int
	height int

	editor     lineEditor
	history    []string
	historyIdx int
	draft      string

	snapshot schema.TranscriptSnapshot
	scroll   int
	spinner  int
	dirty    bool
}

// New constructs a terminal reading keys from in and drawing to out. events
// should carry the console's events; the view refreshes on each one.
func New(in io.Reader, out io.Writer, console Console, events <-chan schema.ConsoleEvent, cfg Config) *Terminal {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	return &Terminal{
		in:      in,
		screen:  screen{out: out},
		console: console,
		events:  events,
		cfg:     cfg,
		palette: paletteFor(cfg.Theme),
	}
}

// SetSize updates the terminal dimensions.
func (t *Terminal) SetSize(width, height int) {
	if width > 0 {
		t.width = width
	}
	if height > 0 {
		t.height = height
	}
	t.dirty = true
}

// Run drives the terminal until ctx ends, the input closes or the user
// presses ctrl-d on an empty line.
func (t *Terminal) Run(ctx context.Context, winCh <-chan Window) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logx.Ctx(ctx)
	t.screen.enter()
	defer t.screen.leave()

	t.refresh()
	t.render(ctx)
	log.Info("console ui start", "width", t.width, "height", t.height)

	keys := make(chan key, 16)
	go readKeys(t.in, keys)

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	events := t.events
	for {
		select {
		case <-ctx.Done():
			return nil
		case k, ok := <-keys:
			if !ok {
				log.Info("console ui input closed")
				return nil
			}
			if t.handleKey(ctx, k) {
				log.Info("console ui exit")
				return nil
			}
		case win, ok := <-winCh:
			if !ok {
				winCh = nil
				break
			}
			t.SetSize(win.Width, win.Height)
			t.refresh()
		case ev, ok := <-events:
			if !ok {
				events = nil
				break
			}
			t.handleEvent(ev)
		case <-ticker.C:
			if t.snapshot.Busy {
				t.spinner = (t.spinner + 1) % len(spinnerFrames)
				t.dirty = true
			}
		}
		if t.dirty {
			t.render(ctx)
			t.dirty = false
		}
	}
}

func (t *Terminal) handleEvent(ev schema.ConsoleEvent) {
	if ev.Type == schema.ConsoleClear {
		t.scroll = 0
	}
	t.refresh()
}

// handleKey applies one key and reports whether the terminal should exit.
func (t *Terminal) handleKey(ctx context.Context, k key) bool {
	t.dirty = true
	switch k.kind {
	case keyEnter:
		line := t.editor.String()
		t.editor.Reset("")
		t.remember(line)
		t.scroll = 0
		logx.Ctx(ctx).Debug("console ui submit", "input", logx.PreviewText(line, 60))
		_ = t.console.Submit(ctx, line)
		t.refresh()
	case keyInterrupt:
		if !t.console.Interrupt() {
			t.editor.Reset("")
		}
	case keyEOF:
		if t.editor.Len() == 0 {
			return true
		}
		t.editor.Delete()
	case keyRedraw:
		t.refresh()
	case keyUp:
		t.historyUp()
	case keyDown:
		t.historyDown()
	case keyPageUp:
		t.scroll += max(t.viewHeight()-1, 1)
		t.refresh()
	case keyPageDown:
		t.scroll = max(t.scroll-max(t.viewHeight()-1, 1), 0)
		t.refresh()
	case keyBackspace:
		t.editor.Backspace()
	case keyDelete:
		t.editor.Delete()
	case keyLeft:
		t.editor.Left()
	case keyRight:
		t.editor.Right()
	case keyHome:
		t.editor.Home()
	case keyEnd:
		t.editor.End()
	case keyWordLeft:
		t.editor.WordLeft()
	case keyWordRight:
		t.editor.WordRight()
	case keyKillStart:
		t.editor.KillStart()
	case keyKillEnd:
		t.editor.KillEnd()
	case keyKillWord:
		t.editor.KillWord()
	case keyRune:
		t.editor.Insert(k.r)
	}
	return false
}

// refresh reloads as much of the transcript as the viewport can show at
// the current scroll offset.
func (t *Terminal) refresh() {
	t.snapshot = t.console.Snapshot(t.viewHeight() + t.scroll)
	t.dirty = true
}

func (t *Terminal) remember(line string) {
	t.historyIdx = len(t.history)
	t.draft = ""
	if strings.TrimSpace(line) == "" {
		return
	}
	if n := len(t.history); n > 0 && t.history[n-1] == line {
		return
	}
	t.history = append(t.history, line)
	if len(t.history) > t.cfg.HistorySize {
		t.history = t.history[len(t.history)-t.cfg.HistorySize:]
	}
	t.historyIdx = len(t.history)
}

func (t *Terminal) historyUp() {
	if t.historyIdx <= 0 {
		return
	}
	if t.historyIdx == len(t.history) {
		t.draft = t.editor.String()
	}
	t.historyIdx--
	t.editor.Reset(t.history[t.historyIdx])
}

func (t *Terminal) historyDown() {
	if t.historyIdx >= len(t.history) {
		return
	}
	t.historyIdx++
	if t.historyIdx == len(t.history) {
		t.editor.Reset(t.draft)
		return
	}
	t.editor.Reset(t.history[t.historyIdx])
}

func (t *Terminal) size() (int, int) {
	width, height := t.width, t.height
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	return width, height
}

// viewHeight is the number of transcript rows between the status bar and
// the input row.
func (t *Terminal) viewHeight() int {
	_, height := t.size()
	return max(height-2, 0)
}

func (t *Terminal) render(ctx context.Context) {
	width, _ := t.size()
	rows := make([]string, 0, t.viewHeight()+2)
	rows = append(rows, t.statusBar(width))
	rows = append(rows, t.viewport(width)...)
	input, col := t.inputRow(width)
	rows = append(rows, input)
	if err := t.screen.draw(rows, len(rows), col); err != nil {
		logx.Ctx(ctx).Warn("console ui render failed", "err", err)
	}
}

func (t *Terminal) statusBar(width int) string {
	mode := "shell"
	if t.snapshot.Mode == schema.ModeRepl {
		mode = "python"
	}
	parts := []string{" forgecode"}
	if t.cfg.Title != "" {
		parts = append(parts, t.cfg.Title)
	}
	parts = append(parts, mode)
	if t.snapshot.Busy {
		parts = append(parts, "running (ctrl-c to stop)")
	}
	if t.scroll > 0 {
		parts = append(parts, fmt.Sprintf("scrolled %d", t.scroll))
	}
	return bg(t.palette.BarBG) + fg(t.palette.BarFG) + fit(strings.Join(parts, " · "), width) + ansiReset
}

func (t *Terminal) viewport(width int) []string {
	height := t.viewHeight()
	var rows []string
	for _, line := range t.snapshot.Lines {
		style := t.lineStyle(line)
		for _, row := range wrap(sanitize(line), width) {
			if style != "" && row != "" {
				row = style + row + ansiReset
			}
			rows = append(rows, row)
		}
	}
	t.scroll = min(t.scroll, max(len(rows)-height, 0))
	end := len(rows) - t.scroll
	start := max(end-height, 0)
	view := append([]string(nil), rows[start:end]...)
	for len(view) < height {
		view = append(view, "")
	}
	return view
}

func (t *Terminal) lineStyle(line string) string {
	switch {
	case strings.HasPrefix(line, "Error:"):
		return fg(t.palette.ErrorFG)
	case strings.HasPrefix(line, schema.ModeShell.Prompt()), strings.HasPrefix(line, schema.ModeRepl.Prompt()):
		return fg(t.palette.EchoFG)
	}
	return ""
}

// inputRow renders the prompt and the visible part of the input, and
// returns the 1-based cursor column.
func (t *Terminal) inputRow(width int) (string, int) {
	prompt := t.snapshot.Mode.Prompt()
	if t.snapshot.Busy {
		prompt = string(spinnerFrames[t.spinner]) + " "
	}
	promptWidth := len([]rune(prompt))
	avail := max(width-promptWidth-1, 1)
	input := t.editor.buf
	offset := max(t.editor.cursor-avail, 0)
	end := min(offset+avail, len(input))
	visible := string(input[offset:end])
	col := promptWidth + t.editor.cursor - offset + 1
	color := t.palette.PromptFG
	if t.snapshot.Busy {
		color = t.palette.BusyFG
	}
	return fg(color) + prompt + ansiReset + visible, col
}
