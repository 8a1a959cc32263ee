// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Renderer is anything that can draw itself for an observer.
type Renderer interface {
	Render(c *Canvas)
}

// Canvas maps world coordinates (pose units) onto an image. Ratio is the
// number of pixels per world unit.
type Canvas struct {
	Dst   draw.Image
	Ratio float64
}

// NewCanvas allocates a white RGBA canvas of w×h pixels.
func NewCanvas(w, h int, ratio float64) *Canvas {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return &Canvas{Dst: img, Ratio: ratio}
}

// ToPixel converts a world coordinate to image space.
func (c *Canvas) ToPixel(x, y float64) (float32, float32) {
	return float32(x * c.Ratio), float32(y * c.Ratio)
}

// FillPolygon fills the closed polygon given in world coordinates.
func (c *Canvas) FillPolygon(col color.Color, xs, ys []float64) {
	if len(xs) < 3 || len(xs) != len(ys) {
		return
	}
	b := c.Dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	px, py := c.ToPixel(xs[0], ys[0])
	z.MoveTo(px-float32(b.Min.X), py-float32(b.Min.Y))
	for i := 1; i < len(xs); i++ {
		px, py = c.ToPixel(xs[i], ys[i])
		z.LineTo(px-float32(b.Min.X), py-float32(b.Min.Y))
	}
	z.ClosePath()
	z.Draw(c.Dst, b, image.NewUniform(col), image.Point{})
}

// Label draws s with its baseline starting at the given world coordinate.
func (c *Canvas) Label(col color.Color, x, y float64, s string) {
	px, py := c.ToPixel(x, y)
	d := font.Drawer{
		Dst:  c.Dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(px), int(py)),
	}
	d.DrawString(s)
}

// Draw renders every item onto the canvas in order.
func (c *Canvas) Draw(items ...Renderer) {
	for _, it := range items {
		it.Render(c)
	}
}
