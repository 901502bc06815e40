package core

// transcriptView is a snapshot of the tail of a transcript.
type transcriptView struct {
	Lines      []string
	TotalLines int
}

// transcript stores console lines in submission order. It is only ever
// appended to or reset as a whole.
type transcript struct {
	lines    []string
	maxLines int
}

// newTranscript returns a transcript keeping at most maxLines lines.
// maxLines <= 0 keeps everything.
func newTranscript(maxLines int) *transcript {
	if maxLines < 0 {
		maxLines = 0
	}
	return &transcript{maxLines: maxLines}
}

// Append adds lines, dropping the oldest ones past the cap.
func (t *transcript) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	t.lines = append(t.lines, lines...)
	if t.maxLines > 0 && len(t.lines) > t.maxLines {
		trim := len(t.lines) - t.maxLines
		t.lines = append([]string(nil), t.lines[trim:]...)
	}
}

// Reset empties the transcript.
func (t *transcript) Reset() {
	t.lines = nil
}

// Len returns the number of stored lines.
func (t *transcript) Len() int {
	return len(t.lines)
}

// Snapshot returns the last limit lines; limit <= 0 returns all of them.
func (t *transcript) Snapshot(limit int) transcriptView {
	total := len(t.lines)
	if limit <= 0 || limit > total {
		limit = total
	}
	lines := make([]string, limit)
	copy(lines, t.lines[total-limit:])
	return transcriptView{Lines: lines, TotalLines: total}
}

// Export returns a copy of every line.
func (t *transcript) Export() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.lines...)
}
