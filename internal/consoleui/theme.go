package consoleui

import (
	"strconv"

	"pkt.systems/forgecode/schema"
)

type rgb struct {
	r, g, b int
}

type palette struct {
	BarBG    rgb
	BarFG    rgb
	EchoFG   rgb
	ErrorFG  rgb
	PromptFG rgb
	BusyFG   rgb
}

const ansiReset = "\x1b[0m"

var palettes = map[schema.ThemeName]palette{
	schema.ThemeDark: {
		BarBG:    rgb{r: 32, g: 34, b: 44},
		BarFG:    rgb{r: 192, g: 202, b: 245},
		EchoFG:   rgb{r: 127, g: 133, b: 163},
		ErrorFG:  rgb{r: 247, g: 118, b: 142},
		PromptFG: rgb{r: 158, g: 206, b: 106},
		BusyFG:   rgb{r: 122, g: 162, b: 247},
	},
	schema.ThemeLight: {
		BarBG:    rgb{r: 225, g: 226, b: 231},
		BarFG:    rgb{r: 52, g: 59, b: 88},
		EchoFG:   rgb{r: 110, g: 114, b: 138},
		ErrorFG:  rgb{r: 196, g: 40, b: 60},
		PromptFG: rgb{r: 56, g: 122, b: 32},
		BusyFG:   rgb{r: 46, g: 89, b: 200},
	},
}

func paletteFor(name schema.ThemeName) palette {
	if p, ok := palettes[name]; ok {
		return p
	}
	return palettes[schema.DefaultTheme]
}

func fg(c rgb) string {
	return "\x1b[38;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}

func bg(c rgb) string {
	return "\x1b[48;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}
