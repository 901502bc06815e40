package vfs

import (
	"errors"
	"strings"
	"testing"

	"pkt.systems/forgecode/schema"
)

func TestComposePreviewInjectsStyleAndScript(t *testing.T) {
	html := "<html><head></head><body><p>x</p></body></html>"
	got := ComposePreview(html, "p{color:red}", "alert(1)", schema.ThemeDark)
	want := "<html><head><style>p{color:red}</style></head><body><p>x</p><script>alert(1)</script></body></html>"
	if got != want {
		t.Fatalf("unexpected preview:\n%s", got)
	}
}

func TestComposePreviewKeepsExistingTags(t *testing.T) {
	html := `<head><style>h1{}</style></head><body><script src="script.js"></script></body>`
	got := ComposePreview(html, "p{}", "alert(1)", schema.ThemeDark)
	if got != html {
		t.Fatalf("expected html unchanged, got %s", got)
	}
}

func TestComposePreviewBlankCSSUsesThemeDefault(t *testing.T) {
	html := "<head></head><body></body>"
	light := ComposePreview(html, "  \n", "", schema.ThemeLight)
	if !strings.Contains(light, "#f5f5f5") {
		t.Fatalf("expected light default stylesheet, got %s", light)
	}
	dark := ComposePreview(html, "", "", schema.ThemeDark)
	if !strings.Contains(dark, "#1a1a1a") {
		t.Fatalf("expected dark default stylesheet, got %s", dark)
	}
	if strings.Contains(dark, "<script>") {
		t.Fatalf("expected no script for empty js")
	}
}

func TestStorePreview(t *testing.T) {
	s := New()
	s.CreateWorkspaceGroup("webspace")
	s.Write("webspace1/index.html", "<head></head><body></body>")
	got, err := s.Preview("webspace1", schema.ThemeDark)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !strings.Contains(got, "Web Space loaded!") || !strings.Contains(got, "line-height: 1.6") {
		t.Fatalf("expected group css and js injected, got %s", got)
	}
	if _, err := s.Preview("missing", schema.ThemeDark); !errors.Is(err, schema.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}
