// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package surface

import (
	"image/color"
)

// Color is what the downward color sensor reports.
type Color int

const (
	ColorNone Color = iota
	ColorRed
	ColorGreen
	ColorBlue
	ColorYellow
	ColorWhite
	ColorBlack
)

func (c Color) String() string {
	switch c {
	case ColorRed:
		return "red"
	case ColorGreen:
		return "green"
	case ColorBlue:
		return "blue"
	case ColorYellow:
		return "yellow"
	case ColorWhite:
		return "white"
	case ColorBlack:
		return "black"
	default:
		return "none"
	}
}

// ParseColor is the inverse of Color.String.
func ParseColor(s string) Color {
	for c := ColorRed; c <= ColorBlack; c++ {
		if c.String() == s {
			return c
		}
	}
	return ColorNone
}

type paletteEntry struct {
	rgb   color.RGBA
	color Color
}

// Printed map colors.
var palette = []paletteEntry{
	{color.RGBA{237, 28, 36, 255}, ColorRed},
	{color.RGBA{0, 172, 70, 255}, ColorGreen},
	{color.RGBA{0, 117, 191, 255}, ColorBlue},
	{color.RGBA{255, 205, 3, 255}, ColorYellow},
	{color.RGBA{255, 255, 255, 255}, ColorWhite},
	{color.RGBA{0, 0, 0, 255}, ColorBlack},
	{color.RGBA{192, 192, 192, 255}, ColorWhite}, // grid lines read as white
}

// Classify maps a pixel to the closest palette color.
func Classify(c color.Color) Color {
	r, g, b, _ := c.RGBA()
	best, bestDist := ColorNone, uint64(1<<63)
	for _, e := range palette {
		dr := int64(r>>8) - int64(e.rgb.R)
		dg := int64(g>>8) - int64(e.rgb.G)
		db := int64(b>>8) - int64(e.rgb.B)
		d := uint64(dr*dr + dg*dg + db*db)
		if d < bestDist {
			best, bestDist = e.color, d
		}
	}
	return best
}

// Printed returns the map color for c.
func (c Color) Printed() color.RGBA {
	for _, e := range palette {
		if e.color == c {
			return e.rgb
		}
	}
	return color.RGBA{}
}
