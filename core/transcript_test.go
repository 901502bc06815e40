package core

import (
	"reflect"
	"testing"
)

func TestTranscriptUnboundedByDefault(t *testing.T) {
	tr := newTranscript(0)
	for i := 0; i < 5000; i++ {
		tr.Append("line")
	}
	if tr.Len() != 5000 {
		t.Fatalf("expected 5000 lines, got %d", tr.Len())
	}
}

func TestTranscriptRespectsMaxLines(t *testing.T) {
	tr := newTranscript(3)
	tr.Append("one", "two", "three", "four", "five")
	view := tr.Snapshot(10)
	if view.TotalLines != 3 {
		t.Fatalf("expected total lines 3, got %d", view.TotalLines)
	}
	if !reflect.DeepEqual(view.Lines, []string{"three", "four", "five"}) {
		t.Fatalf("unexpected lines: %+v", view.Lines)
	}
}

func TestTranscriptSnapshotTail(t *testing.T) {
	tr := newTranscript(0)
	tr.Append("one", "two", "three")
	view := tr.Snapshot(2)
	if !reflect.DeepEqual(view.Lines, []string{"two", "three"}) {
		t.Fatalf("unexpected tail: %+v", view.Lines)
	}
	if view.TotalLines != 3 {
		t.Fatalf("expected total 3, got %d", view.TotalLines)
	}
	view.Lines[0] = "mutated"
	if tr.Export()[1] != "two" {
		t.Fatalf("expected snapshot to be a copy")
	}
}

func TestTranscriptReset(t *testing.T) {
	tr := newTranscript(0)
	tr.Append("one")
	tr.Reset()
	if tr.Len() != 0 || len(tr.Snapshot(0).Lines) != 0 {
		t.Fatalf("expected empty transcript after reset")
	}
}
