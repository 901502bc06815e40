package consoleui

// lineEditor is a single line input buffer with a rune cursor.
type lineEditor struct {
	buf    []rune
	cursor int
}

func (e *lineEditor) String() string {
	return string(e.buf)
}

func (e *lineEditor) Len() int {
	return len(e.buf)
}

func (e *lineEditor) Reset(value string) {
	e.buf = []rune(value)
	e.cursor = len(e.buf)
}

func (e *lineEditor) Insert(r rune) {
	e.clamp()
	e.buf = append(e.buf, 0)
	copy(e.buf[e.cursor+1:], e.buf[e.cursor:])
	e.buf[e.cursor] = r
	e.cursor++
}

func (e *lineEditor) Backspace() {
	if e.cursor > 0 {
		e.remove(e.cursor-1, e.cursor)
	}
}

func (e *lineEditor) Delete() {
	if e.cursor < len(e.buf) {
		e.remove(e.cursor, e.cursor+1)
	}
}

func (e *lineEditor) Left() {
	if e.cursor > 0 {
		e.cursor--
	}
}

func (e *lineEditor) Right() {
	if e.cursor < len(e.buf) {
		e.cursor++
	}
}

func (e *lineEditor) Home() { e.cursor = 0 }

func (e *lineEditor) End() { e.cursor = len(e.buf) }

func (e *lineEditor) WordLeft() {
	e.cursor = e.wordStart()
}

func (e *lineEditor) WordRight() {
	i := e.cursor
	for i < len(e.buf) && isBlank(e.buf[i]) {
		i++
	}
	for i < len(e.buf) && !isBlank(e.buf[i]) {
		i++
	}
	e.cursor = i
}

func (e *lineEditor) KillWord() {
	e.remove(e.wordStart(), e.cursor)
}

func (e *lineEditor) KillStart() {
	e.remove(0, e.cursor)
}

func (e *lineEditor) KillEnd() {
	e.clamp()
	e.buf = e.buf[:e.cursor]
}

// remove deletes buf[from:to] and leaves the cursor at from.
func (e *lineEditor) remove(from, to int) {
	if from >= to {
		return
	}
	e.buf = append(e.buf[:from], e.buf[to:]...)
	e.cursor = from
}

func (e *lineEditor) wordStart() int {
	i := e.cursor
	for i > 0 && isBlank(e.buf[i-1]) {
		i--
	}
	for i > 0 && !isBlank(e.buf[i-1]) {
		i--
	}
	return i
}

func (e *lineEditor) clamp() {
	if e.cursor < 0 {
		e.cursor = 0
	}
	if e.cursor > len(e.buf) {
		e.cursor = len(e.buf)
	}
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t'
}
