package consoleui

import (
	"strings"
	"unicode/utf8"
)

// sanitize drops escape sequences and control characters from program
// output so it cannot move the cursor or restyle the screen.
func sanitize(text string) string {
	var b strings.Builder
	for i := 0; i < len(text); {
		if text[i] == 0x1b {
			i = skipEscape(text, i+1)
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		switch {
		case r == utf8.RuneError && size == 1:
		case r == '\t':
			b.WriteString("    ")
		case r < 0x20 || r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func skipEscape(text string, i int) int {
	if i >= len(text) {
		return i
	}
	switch text[i] {
	case '[':
		for i++; i < len(text); i++ {
			if text[i] >= 0x40 && text[i] <= 0x7e {
				return i + 1
			}
		}
	case ']':
		for i++; i < len(text); i++ {
			if text[i] == 0x07 {
				return i + 1
			}
			if text[i] == 0x1b && i+1 < len(text) && text[i+1] == '\\' {
				return i + 2
			}
		}
	default:
		return i + 1
	}
	return len(text)
}

// wrap splits a sanitized line into rows of at most width runes.
func wrap(text string, width int) []string {
	runes := []rune(text)
	if width <= 0 || len(runes) <= width {
		return []string{text}
	}
	rows := make([]string, 0, len(runes)/width+1)
	for len(runes) > width {
		rows = append(rows, string(runes[:width]))
		runes = runes[width:]
	}
	if len(runes) > 0 {
		rows = append(rows, string(runes))
	}
	return rows
}

// fit pads or truncates text to exactly width runes.
func fit(text string, width int) string {
	runes := []rune(text)
	if len(runes) >= width {
		return string(runes[:max(width, 0)])
	}
	return text + strings.Repeat(" ", width-len(runes))
}
