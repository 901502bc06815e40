package markdown

import (
	"strings"
	"testing"

	"pkt.systems/forgecode/schema"
)

func TestRenderHTMLBlocks(t *testing.T) {
	got := RenderHTML("# Title\n## Sub\n### Small\n- item\n\ntext", schema.ThemeLight)
	for _, want := range []string{
		`<div class="markdown theme-light">`,
		"<h1>Title</h1>",
		"<h2>Sub</h2>",
		"<h3>Small</h3>",
		"<li>• item</li>",
		`<div class="spacer"></div>`,
		"<p>text</p>",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}

func TestRenderHTMLEscapes(t *testing.T) {
	got := RenderHTML("<script>alert(1)</script> **<b>**", "")
	if strings.Contains(got, "<script>") {
		t.Fatalf("expected html to be escaped, got %q", got)
	}
	if !strings.Contains(got, "<strong>&lt;b&gt;</strong>") {
		t.Fatalf("expected escaped bold span, got %q", got)
	}
	if !strings.Contains(got, "theme-dark") {
		t.Fatalf("expected default dark theme, got %q", got)
	}
}

func TestRenderInlineNestedSpans(t *testing.T) {
	got := RenderInline("a `x<y` b")
	if got != "a <code>x&lt;y</code> b" {
		t.Fatalf("unexpected inline html: %q", got)
	}
}

func TestRenderHTMLHeadingNeedsSpace(t *testing.T) {
	got := RenderHTML("#tag", schema.ThemeDark)
	if !strings.Contains(got, "<p>#tag</p>") {
		t.Fatalf("expected paragraph, got %q", got)
	}
}

func TestRenderInline(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "a **bold** and *ital* and `code`", want: "a <strong>bold</strong> and <em>ital</em> and <code>code</code>"},
		{in: "**bold *em* x**", want: "<strong>bold <em>em</em> x</strong>"},
		{in: "**open only", want: "<em></em>open only"},
		{in: "one *star", want: "one *star"},
		{in: "`a` and `b`", want: "<code>a</code> and <code>b</code>"},
	}
	for _, tc := range tests {
		if got := RenderInline(tc.in); got != tc.want {
			t.Fatalf("RenderInline(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
