package vfs

import (
	"fmt"
	"strings"

	"pkt.systems/forgecode/schema"
)

// ComposePreview merges a workspace group into one renderable document.
// Blank CSS is replaced by the theme default stylesheet.
func ComposePreview(html, css, js string, theme schema.ThemeName) string {
	if strings.TrimSpace(css) == "" {
		css = DefaultStylesheet(theme)
	}
	out := html
	if css != "" && !strings.Contains(out, "<style>") {
		out = strings.Replace(out, "</head>", "<style>"+css+"</style></head>", 1)
	}
	if js != "" && !strings.Contains(out, "<script>") && !strings.Contains(out, `src="script.js"`) {
		out = strings.Replace(out, "</body>", "<script>"+js+"</script></body>", 1)
	}
	return out
}

// DefaultStylesheet returns the stylesheet substituted for an empty CSS file.
func DefaultStylesheet(theme schema.ThemeName) string {
	if theme == schema.ThemeLight {
		return previewLightCSS
	}
	return previewDarkCSS
}

// Preview composes the preview document of a workspace group.
func (s *Store) Preview(group string, theme schema.ThemeName) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.groupExistsLocked(group) {
		return "", fmt.Errorf("preview %s: %w", group, schema.ErrFileNotFound)
	}
	html := s.content[group+"/"+GroupHTML]
	css := s.content[group+"/"+GroupCSS]
	js := s.content[group+"/"+GroupJS]
	return ComposePreview(html, css, js, theme), nil
}
