//go:build gui

package gui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"

	"speechkit/keyword"
)

var initialBackground = keyword.Color{R: 18, G: 18, B: 18}

// speechTheme is the dark theme with its background and text colors following the
// keyword background.
type speechTheme struct {
	background color.Color
	foreground color.Color
}

func newSpeechTheme(bg keyword.Color, keywordSet bool) *speechTheme {
	fg := color.Color(color.RGBA{200, 200, 200, 255})
	if keywordSet {
		fg = color.Black
		if bg.Dark() {
			fg = color.White
		}
	}
	return &speechTheme{background: bg.RGBA(), foreground: fg}
}

func (t *speechTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return t.background
	case theme.ColorNameForeground:
		return t.foreground
	}
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}

func (t *speechTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *speechTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *speechTheme) Size(name fyne.ThemeSizeName) float32 {
	return theme.DefaultTheme().Size(name)
}
