package schema

import "strings"

// ThemeName identifies a UI theme.
type ThemeName string

const (
	// ThemeDark is the default theme.
	ThemeDark ThemeName = "dark"
	// ThemeLight is the light theme.
	ThemeLight ThemeName = "light"
)

// DefaultTheme is the default UI theme name.
const DefaultTheme = ThemeDark

// NormalizeThemeName returns a canonical theme name if supported.
func NormalizeThemeName(name string) (ThemeName, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dark", "":
		return ThemeDark, true
	case "light":
		return ThemeLight, true
	default:
		return "", false
	}
}
