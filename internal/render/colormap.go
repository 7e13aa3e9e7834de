package render

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
)

// DefaultColormap is used when no colormap is configured.
const DefaultColormap = "coolwarm"

// paletteSize is the number of discrete colors sampled from a colormap.
const paletteSize = 255

// Colormap names map to the closest gonum palettes. coolwarm is Moreland's smooth
// blue-red map itself; the others are perceptual stand-ins.
var colormaps = map[string]func() palette.Palette{
	"coolwarm": func() palette.Palette { return diverging(moreland.SmoothBlueRed()) },
	"viridis":  func() palette.Palette { return diverging(moreland.Kindlmann()) },
	"magma":    func() palette.Palette { return diverging(moreland.ExtendedBlackBody()) },
	"plasma":   func() palette.Palette { return diverging(moreland.SmoothPurpleOrange()) },
	"cividis":  func() palette.Palette { return diverging(moreland.SmoothGreenPurple()) },
	"heat":     func() palette.Palette { return palette.Heat(paletteSize, 1) },
}

func diverging(cm palette.ColorMap) palette.Palette {
	cm.SetMin(-1)
	cm.SetMax(1)
	return cm.Palette(paletteSize)
}

// Colormaps lists the accepted colormap names, sorted.
func Colormaps() []string {
	names := make([]string, 0, len(colormaps))
	for k := range colormaps {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// LookupColormap resolves a colormap name; empty selects DefaultColormap.
func LookupColormap(name string) (palette.Palette, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultColormap
	}
	mk, ok := colormaps[key]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q (available: %s)", name, strings.Join(Colormaps(), ", "))
	}
	return mk(), nil
}
