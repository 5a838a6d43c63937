package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawPolygon_ClosesShape(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	red := color.RGBA{R: 255, A: 255}
	DrawPolygon(dst, []Point{{2, 2}, {17, 2}, {17, 17}, {2, 17}}, red, 1)

	assert.Equal(t, red, dst.RGBAAt(10, 2))
	assert.Equal(t, red, dst.RGBAAt(17, 10))
	assert.Equal(t, red, dst.RGBAAt(10, 17))
	// closing edge
	assert.Equal(t, red, dst.RGBAAt(2, 10))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(10, 10))
}

func TestDrawPolygon_Diagonal(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	DrawPolygon(dst, []Point{{0, 0}, {9, 9}}, color.White, 1)
	for i := range 10 {
		assert.Equal(t, color.RGBA{255, 255, 255, 255}, dst.RGBAAt(i, i))
	}
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(9, 0))
}

func TestDrawPoints_ClipsToBounds(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 10, 10))
	green := color.RGBA{G: 255, A: 255}
	DrawPoints(dst, []Point{{0, 0}, {5.4, 5.6}}, green, 3)
	assert.Equal(t, green, dst.RGBAAt(0, 0))
	assert.Equal(t, green, dst.RGBAAt(1, 1))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(2, 2))
	assert.Equal(t, green, dst.RGBAAt(5, 6))
	assert.Equal(t, green, dst.RGBAAt(6, 7))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(8, 8))
}

func TestDrawLabel_WritesPixels(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 80, 20))
	DrawLabel(dst, 2, 14, "EAN 13", color.White)
	lit := 0
	for i := 3; i < len(dst.Pix); i += 4 {
		if dst.Pix[i] != 0 {
			lit++
		}
	}
	assert.Positive(t, lit)
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 12, 7))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, "frame.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	got, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Bounds().Dx())
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 7, meta.Height)

	_, _, err = LoadImage(filepath.Join(dir, "frame.gif"))
	require.ErrorIs(t, err, ErrUnsupportedImage)

	_, _, err = DecodeImage(nil)
	require.Error(t, err)
}
