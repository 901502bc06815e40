package consoleui

import (
	"fmt"
	"io"
	"strings"
)

// screen redraws the whole alternate screen on every frame.
type screen struct {
	out io.Writer
}

func (s screen) enter() {
	_, _ = io.WriteString(s.out, "\x1b[?1049h\x1b[H\x1b[2J")
}

func (s screen) leave() {
	_, _ = io.WriteString(s.out, "\x1b[?1049l\x1b[?25h")
}

// draw writes rows top to bottom and parks the cursor at the 1-based
// row and column.
func (s screen) draw(rows []string, row, col int) error {
	row = max(row, 1)
	col = max(col, 1)
	var b strings.Builder
	b.WriteString("\x1b[?25l\x1b[H\x1b[2J")
	b.WriteString(strings.Join(rows, "\r\n"))
	fmt.Fprintf(&b, "\x1b[%d;%dH\x1b[?25h", row, col)
	_, err := io.WriteString(s.out, b.String())
	return err
}
