package markdown

import (
	"strings"

	"pkt.systems/forgecode/schema"
)

// RenderHTML renders the line oriented markdown subset used for workspace
// notes: "# ", "## " and "### " headings, "- " bullets, blank spacers and
// paragraphs, each with inline spans. Text is HTML escaped.
func RenderHTML(text string, theme schema.ThemeName) string {
	theme, ok := schema.NormalizeThemeName(string(theme))
	if !ok {
		theme = schema.DefaultTheme
	}
	var b strings.Builder
	b.WriteString(`<div class="markdown theme-`)
	b.WriteString(string(theme))
	b.WriteString(`">`)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, "# "):
			writeBlock(&b, "h1", "", line[2:])
		case strings.HasPrefix(line, "## "):
			writeBlock(&b, "h2", "", line[3:])
		case strings.HasPrefix(line, "### "):
			writeBlock(&b, "h3", "", line[4:])
		case strings.HasPrefix(line, "- "):
			writeBlock(&b, "li", "• ", line[2:])
		case strings.TrimSpace(line) == "":
			b.WriteString(`<div class="spacer"></div>`)
		default:
			writeBlock(&b, "p", "", line)
		}
		b.WriteByte('\n')
	}
	b.WriteString("</div>")
	return b.String()
}

func writeBlock(b *strings.Builder, tag, prefix, text string) {
	b.WriteString("<" + tag + ">")
	b.WriteString(prefix)
	b.WriteString(RenderInline(text))
	b.WriteString("</" + tag + ">")
}
