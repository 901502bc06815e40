// Package markdown renders the small markdown dialect used by workspace notes.
package markdown

import (
	"html"
	"regexp"
)

// Inline markers are applied in order, each pass seeing the output of the
// previous one, so **a *b* c** nests em inside strong.
var inlineRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\*\*(.*?)\*\*`), "<strong>$1</strong>"},
	{regexp.MustCompile(`\*(.*?)\*`), "<em>$1</em>"},
	{regexp.MustCompile("`(.*?)`"), "<code>$1</code>"},
}

// RenderInline escapes text and renders **bold**, *em* and `code` spans.
// Unmatched markers stay literal.
func RenderInline(text string) string {
	out := html.EscapeString(text)
	for _, rule := range inlineRules {
		out = rule.re.ReplaceAllString(out, rule.repl)
	}
	return out
}
