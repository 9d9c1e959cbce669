package garden

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Theme is a biome: a flower palette plus an artistic backdrop style.
type Theme string

const (
	ThemeSunset   Theme = "sunset"
	ThemeOcean    Theme = "ocean"
	ThemeForest   Theme = "forest"
	ThemeLavender Theme = "lavender"
)

// Themes lists all themes in cycling order.
var Themes = []Theme{ThemeSunset, ThemeOcean, ThemeForest, ThemeLavender}

// Palette is the colour bundle of a theme.
type Palette struct {
	Flowers []color.RGBA
	Sky     [3]color.RGBA
	Ground  color.RGBA
	Accent  color.RGBA
}

var palettes = map[Theme]Palette{
	ThemeSunset: {
		Flowers: hexColors("#FF9A9E", "#FECFEF", "#FF6B6B", "#FAD0C4"),
		Sky:     [3]color.RGBA{hex("#2D3436"), hex("#D63031"), hex("#E17055")},
		Ground:  hex("#2D3436"),
		Accent:  hex("#FAD390"),
	},
	ThemeOcean: {
		Flowers: hexColors("#4FACFE", "#00F2FE", "#43E97B", "#38F9D7"),
		Sky:     [3]color.RGBA{hex("#0984E3"), hex("#74B9FF"), hex("#81ECEC")},
		Ground:  hex("#006266"),
		Accent:  hex("#55EFC4"),
	},
	ThemeForest: {
		Flowers: hexColors("#11998E", "#38EF7D", "#A8E063", "#56AB2F"),
		Sky:     [3]color.RGBA{hex("#1B4F72"), hex("#2ECC71"), hex("#ABEBC6")},
		Ground:  hex("#186A3B"),
		Accent:  hex("#F4D03F"),
	},
	ThemeLavender: {
		Flowers: hexColors("#E0C3FC", "#8EC5FC", "#C2E9FB", "#A18CD1"),
		Sky:     [3]color.RGBA{hex("#4834D4"), hex("#686DE0"), hex("#BE90D4")},
		Ground:  hex("#30336B"),
		Accent:  hex("#EBBEBB"),
	},
}

// Palette returns the colours of the theme. Unknown themes use sunset.
func (t Theme) Palette() Palette {
	if p, ok := palettes[t]; ok {
		return p
	}
	return palettes[ThemeSunset]
}

// Next returns the theme after t in cycling order.
func (t Theme) Next() Theme {
	for i, th := range Themes {
		if th == t {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return ThemeSunset
}

// ParseTheme parses a theme name, case-insensitively.
func ParseTheme(s string) (Theme, error) {
	name := Theme(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := palettes[name]; ok {
		return name, nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

func hexColors(values ...string) []color.RGBA {
	out := make([]color.RGBA, len(values))
	for i, v := range values {
		out[i] = hex(v)
	}
	return out
}

// hex parses #RRGGBB. Malformed input yields opaque white.
func hex(s string) color.RGBA {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil || len(strings.TrimPrefix(s, "#")) != 6 {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}

// ParseColor parses a #RRGGBB string.
func ParseColor(s string) color.RGBA {
	return hex(s)
}

// ColorHex formats c as #RRGGBB.
func ColorHex(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
