package vfs

import (
	"errors"
	"reflect"
	"testing"

	"pkt.systems/forgecode/schema"
)

func TestCreateNeverReusesFreedSuffix(t *testing.T) {
	s := New()
	if got := s.Create("script", ".py"); got != "script1.py" {
		t.Fatalf("expected script1.py, got %q", got)
	}
	if got := s.Create("script", ".py"); got != "script2.py" {
		t.Fatalf("expected script2.py, got %q", got)
	}
	if !s.Delete("script1.py") {
		t.Fatalf("expected script1.py to be deleted")
	}
	if got := s.Create("script", ".py"); got != "script3.py" {
		t.Fatalf("expected script3.py, got %q", got)
	}
	if got := s.Selected(); got != "script3.py" {
		t.Fatalf("expected new file to be selected, got %q", got)
	}
}

func TestCreateSkipsRenamedCollision(t *testing.T) {
	s := New()
	s.Create("note", ".md")
	if err := s.Rename("note1.md", "note2.md"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got := s.Create("note", ".md"); got != "note3.md" {
		t.Fatalf("expected note3.md, got %q", got)
	}
}

func TestCreateCountersAreIndependent(t *testing.T) {
	s := New()
	s.Create("script", ".py")
	if got := s.Create("note", "md"); got != "note1.md" {
		t.Fatalf("expected note1.md, got %q", got)
	}
	if content, ok := s.Read("note1.md"); !ok || content != "" {
		t.Fatalf("expected empty note1.md, got %q ok=%v", content, ok)
	}
}

func TestCreateWorkspaceGroupSuffixesPrefix(t *testing.T) {
	s := New()
	html, css, js := s.CreateWorkspaceGroup("webspace")
	if html != "webspace1/index.html" || css != "webspace1/styles.css" || js != "webspace1/script.js" {
		t.Fatalf("unexpected first group: %s %s %s", html, css, js)
	}
	html, _, _ = s.CreateWorkspaceGroup("webspace")
	if html != "webspace2/index.html" {
		t.Fatalf("expected webspace2 group, got %q", html)
	}
	if s.Selected() != "webspace2/index.html" {
		t.Fatalf("expected group html to be selected, got %q", s.Selected())
	}
	want := []string{
		"webspace1/index.html", "webspace1/styles.css", "webspace1/script.js",
		"webspace2/index.html", "webspace2/styles.css", "webspace2/script.js",
	}
	if got := s.List(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestCreateWorkspaceGroupSkipsExistingGroup(t *testing.T) {
	s := New()
	s.CreateWorkspaceGroup("demo")
	if err := s.Rename("demo1/script.js", "demo2/script.js"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	html, _, _ := s.CreateWorkspaceGroup("demo")
	if html != "demo3/index.html" {
		t.Fatalf("expected demo3 group, got %q", html)
	}
}

func TestRenameKeepsOrderAndSelection(t *testing.T) {
	s := New()
	s.Create("a", ".py")
	s.Create("b", ".py")
	s.Write("a1.py", "print(1)")
	s.Select("a1.py")
	if err := s.Rename("a1.py", "main.py"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got := s.List(); !reflect.DeepEqual(got, []string{"main.py", "b1.py"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if s.Selected() != "main.py" {
		t.Fatalf("expected selection to follow rename, got %q", s.Selected())
	}
	if content, _ := s.Read("main.py"); content != "print(1)" {
		t.Fatalf("expected content to move, got %q", content)
	}
	if s.Has("a1.py") {
		t.Fatalf("expected old name to be gone")
	}
}

func TestRenameRejectsExistingTarget(t *testing.T) {
	s := New()
	s.Create("a", ".py")
	s.Create("b", ".py")
	err := s.Rename("a1.py", "b1.py")
	if !errors.Is(err, schema.ErrFileExists) {
		t.Fatalf("expected ErrFileExists, got %v", err)
	}
	if got := s.List(); !reflect.DeepEqual(got, []string{"a1.py", "b1.py"}) {
		t.Fatalf("expected store unchanged, got %v", got)
	}
}

func TestRenameMissingAndBlankAreNoops(t *testing.T) {
	s := New()
	s.Create("a", ".py")
	if err := s.Rename("missing.py", "x.py"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if err := s.Rename("a1.py", "   "); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if err := s.Rename("a1.py", "a1.py"); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
	if got := s.List(); !reflect.DeepEqual(got, []string{"a1.py"}) {
		t.Fatalf("unexpected list: %v", got)
	}
}

func TestRenameRejectsInvalidName(t *testing.T) {
	s := New()
	s.Create("a", ".py")
	for _, name := range []string{"/abs.py", "dir/", "a/b/c.py"} {
		if err := s.Rename("a1.py", name); !errors.Is(err, schema.ErrInvalidName) {
			t.Fatalf("expected ErrInvalidName for %q, got %v", name, err)
		}
	}
}

func TestDeleteFallsBackToFirstFile(t *testing.T) {
	s := New()
	s.Create("a", ".py")
	s.Create("b", ".py")
	s.Create("c", ".py")
	s.Select("b1.py")
	s.Delete("b1.py")
	if s.Selected() != "a1.py" {
		t.Fatalf("expected fallback to first file, got %q", s.Selected())
	}
	s.Delete("c1.py")
	if s.Selected() != "a1.py" {
		t.Fatalf("expected selection unchanged, got %q", s.Selected())
	}
	if s.Delete("missing") {
		t.Fatalf("expected missing delete to report false")
	}
	s.Delete("a1.py")
	if s.Selected() != "" {
		t.Fatalf("expected no selection, got %q", s.Selected())
	}
}

func TestClearAll(t *testing.T) {
	s := NewDefault()
	s.ClearAll()
	if len(s.List()) != 0 || s.Selected() != "" {
		t.Fatalf("expected empty store, got %v selected=%q", s.List(), s.Selected())
	}
	if s.Write(DefaultFileName, "x") {
		t.Fatalf("expected write to missing file to fail")
	}
}

func TestNewDefaultSeedsDemo(t *testing.T) {
	s := NewDefault()
	if s.Selected() != DefaultFileName {
		t.Fatalf("expected %s selected, got %q", DefaultFileName, s.Selected())
	}
	content, ok := s.Read(DefaultFileName)
	if !ok || content == "" {
		t.Fatalf("expected demo content")
	}
}

func TestCounts(t *testing.T) {
	s := NewDefault()
	s.CreateWorkspaceGroup("webspace")
	files, web := s.Counts()
	if files != 1 || web != 3 {
		t.Fatalf("expected 1 files and 3 web files, got %d %d", files, web)
	}
}

func TestGroup(t *testing.T) {
	if g, ok := Group("demo/index.html"); !ok || g != "demo" {
		t.Fatalf("expected demo group, got %q ok=%v", g, ok)
	}
	if _, ok := Group("app.py"); ok {
		t.Fatalf("expected no group for plain file")
	}
}

func TestSearch(t *testing.T) {
	s := NewDefault()
	s.Create("note", ".md")
	s.CreateWorkspaceGroup("webspace")
	got := s.Search("idx")
	if len(got) != 1 || got[0] != "webspace1/index.html" {
		t.Fatalf("unexpected search result: %v", got)
	}
	if all := s.Search(""); len(all) != 5 {
		t.Fatalf("expected all names for empty query, got %v", all)
	}
}
