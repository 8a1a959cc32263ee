package surface

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/relabs-tech/localizer/internal/geometry"
	"github.com/relabs-tech/localizer/internal/mcl"
	"github.com/relabs-tech/localizer/internal/render"
)

// twoTone is 20x10 pixels: red on the left half, blue on the right.
func twoTone() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	draw.Draw(img, image.Rect(0, 0, 10, 10), image.NewUniform(ColorRed.Printed()), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(10, 0, 20, 10), image.NewUniform(ColorBlue.Printed()), image.Point{}, draw.Src)
	return img
}

func encodePNG(t *testing.T, img image.Image) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestClassify(t *testing.T) {
	tests := []struct {
		in   color.Color
		want Color
	}{
		{color.RGBA{237, 28, 36, 255}, ColorRed},
		{color.RGBA{230, 35, 40, 255}, ColorRed},
		{color.RGBA{0, 172, 70, 255}, ColorGreen},
		{color.RGBA{0, 117, 191, 255}, ColorBlue},
		{color.RGBA{255, 205, 3, 255}, ColorYellow},
		{color.White, ColorWhite},
		{color.Black, ColorBlack},
		{color.RGBA{192, 192, 192, 255}, ColorWhite},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.in), "%v", tt.in)
	}
}

func TestParseColor(t *testing.T) {
	for c := ColorRed; c <= ColorBlack; c++ {
		assert.Equal(t, c, ParseColor(c.String()))
	}
	assert.Equal(t, ColorNone, ParseColor("purple"))
}

func TestDecodePNG(t *testing.T) {
	m, err := Decode(encodePNG(t, twoTone()), WithRatio(2))
	require.NoError(t, err)

	w, h := m.Size()
	assert.Equal(t, 10.0, w)
	assert.Equal(t, 5.0, h)

	assert.Equal(t, ColorRed, m.ColorAt(geometry.Point{X: 1, Y: 1}))
	assert.Equal(t, ColorBlue, m.ColorAt(geometry.Point{X: 8, Y: 4.9}))
	assert.Equal(t, ColorNone, m.ColorAt(geometry.Point{X: 10, Y: 1}))
	assert.Equal(t, ColorNone, m.ColorAt(geometry.Point{X: -0.1, Y: 1}))
	assert.False(t, m.Contains(geometry.Point{X: 3, Y: 5}))
}

func TestDecodeBMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, twoTone()))

	m, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, ColorRed, m.ColorAt(geometry.Point{X: 2, Y: 2}))
	assert.Equal(t, ColorBlue, m.ColorAt(geometry.Point{X: 15, Y: 2}))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, twoTone()).Bytes(), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ColorRed, m.ColorAt(geometry.Point{X: 0, Y: 0}))

	_, err = Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(twoTone(), WithRatio(0))
	assert.Error(t, err)
	_, err = New(twoTone(), WithMismatchWeight(2))
	assert.Error(t, err)
	_, err = New(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
	_, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestReading(t *testing.T) {
	m, err := New(twoTone(), WithRatio(2), WithMismatchWeight(0.25))
	require.NoError(t, err)

	reading := m.Reading(ColorRed)
	assert.Equal(t, 1.0, reading(geometry.Pose{X: 1, Y: 1, Heading: 90}))
	assert.Equal(t, 0.25, reading(geometry.Pose{X: 8, Y: 1}))
	assert.Equal(t, 0.0, reading(geometry.Pose{X: 50, Y: 1}))
}

func TestRandomPointStaysOnMap(t *testing.T) {
	m, err := New(twoTone(), WithRatio(2), WithSampler(mcl.NewSampler(4)))
	require.NoError(t, err)

	var oracle mcl.MapOracle = m
	for i := 0; i < 500; i++ {
		assert.True(t, m.Contains(oracle.RandomPoint()))
	}
}

func TestRender(t *testing.T) {
	m, err := New(twoTone(), WithRatio(2))
	require.NoError(t, err)

	// canvas at 4 px per unit doubles the map
	c := render.NewCanvas(50, 30, 4)
	m.Render(c)

	assert.Equal(t, ColorRed.Printed(), c.Dst.At(5, 5))
	assert.Equal(t, ColorBlue.Printed(), c.Dst.At(35, 15))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, c.Dst.At(45, 25))
}
