package consoleui

import (
	"bufio"
	"io"
	"unicode"
	"unicode/utf8"
)

type keyKind int

const (
	keyRune keyKind = iota
	keyEnter
	keyBackspace
	keyDelete
	keyLeft
	keyRight
	keyHome
	keyEnd
	keyUp
	keyDown
	keyPageUp
	keyPageDown
	keyWordLeft
	keyWordRight
	keyKillStart
	keyKillEnd
	keyKillWord
	keyRedraw
	keyInterrupt
	keyEOF
)

type key struct {
	kind keyKind
	r    rune
}

var controlKeys = map[byte]keyKind{
	'\r': keyEnter,
	'\n': keyEnter,
	0x7f: keyBackspace,
	0x08: keyBackspace,
	0x01: keyHome,
	0x05: keyEnd,
	0x02: keyLeft,
	0x06: keyRight,
	0x10: keyUp,
	0x0e: keyDown,
	0x15: keyKillStart,
	0x0b: keyKillEnd,
	0x17: keyKillWord,
	0x0c: keyRedraw,
	0x03: keyInterrupt,
	0x04: keyEOF,
}

var csiKeys = map[string]keyKind{
	"A":  keyUp,
	"B":  keyDown,
	"C":  keyRight,
	"D":  keyLeft,
	"H":  keyHome,
	"F":  keyEnd,
	"1~": keyHome,
	"4~": keyEnd,
	"3~": keyDelete,
	"5~": keyPageUp,
	"6~": keyPageDown,

	"1;5C": keyWordRight,
	"1;5D": keyWordLeft,
}

// readKeys decodes terminal input into keys until r fails.
func readKeys(r io.Reader, out chan<- key) {
	defer close(out)
	br := bufio.NewReader(r)
	afterCR := false
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		// CRLF is a single enter.
		if afterCR && b == '\n' {
			afterCR = false
			continue
		}
		afterCR = b == '\r'
		if b == 0x1b {
			if k, ok := readEscape(br); ok {
				out <- k
			}
			continue
		}
		if kind, ok := controlKeys[b]; ok {
			out <- key{kind: kind}
			continue
		}
		if b < 0x20 {
			continue
		}
		if b < utf8.RuneSelf {
			out <- key{kind: keyRune, r: rune(b)}
			continue
		}
		_ = br.UnreadByte()
		rn, _, err := br.ReadRune()
		if err != nil {
			return
		}
		out <- key{kind: keyRune, r: rn}
	}
}

func readEscape(br *bufio.Reader) (key, bool) {
	b, err := br.ReadByte()
	if err != nil {
		return key{}, false
	}
	switch b {
	case '[':
		return readCSI(br)
	case 'O':
		b, err := br.ReadByte()
		if err != nil {
			return key{}, false
		}
		kind, ok := csiKeys[string(b)]
		return key{kind: kind}, ok
	case 'b', 'B':
		return key{kind: keyWordLeft}, true
	case 'f', 'F':
		return key{kind: keyWordRight}, true
	}
	return key{}, false
}

func readCSI(br *bufio.Reader) (key, bool) {
	seq := make([]byte, 0, 4)
	for len(seq) <= 8 {
		b, err := br.ReadByte()
		if err != nil {
			return key{}, false
		}
		seq = append(seq, b)
		if b == '~' || unicode.IsLetter(rune(b)) {
			kind, ok := csiKeys[string(seq)]
			return key{kind: kind}, ok
		}
	}
	return key{}, false
}
