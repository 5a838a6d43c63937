package utils

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LabelFace is the bitmap face used for overlay labels.
var LabelFace font.Face = basicfont.Face7x13

// DrawPolygon strokes the closed outline through pts.
func DrawPolygon(dst draw.Image, pts []Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	pen := image.NewUniform(col)
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		stroke(dst, roundPoint(p), roundPoint(q), pen, thickness)
	}
}

// DrawPoints stamps a filled square of side size centred on each point.
func DrawPoints(dst draw.Image, pts []Point, col color.Color, size int) {
	pen := image.NewUniform(col)
	for _, p := range pts {
		stamp(dst, roundPoint(p), pen, size)
	}
}

// DrawLabel writes text with its baseline-left corner at (x, y).
func DrawLabel(dst draw.Image, x, y int, text string, col color.Color) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: LabelFace,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func roundPoint(p Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// stroke walks the segment a-b with integer error accumulation and stamps
// the pen at every step.
func stroke(dst draw.Image, a, b image.Point, pen image.Image, width int) {
	d := b.Sub(a)
	steps := max(abs(d.X), abs(d.Y))
	if steps == 0 {
		stamp(dst, a, pen, width)
		return
	}
	for i := 0; i <= steps; i++ {
		p := image.Pt(
			a.X+roundDiv(d.X*i, steps),
			a.Y+roundDiv(d.Y*i, steps),
		)
		stamp(dst, p, pen, width)
	}
}

func stamp(dst draw.Image, c image.Point, pen image.Image, size int) {
	if size < 1 {
		size = 1
	}
	r := (size - 1) / 2
	rect := image.Rect(c.X-r, c.Y-r, c.X-r+size, c.Y-r+size).Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(dst, rect, pen, image.Point{}, draw.Over)
}

func roundDiv(n, d int) int {
	if n < 0 {
		return -((-n*2 + d) / (2 * d))
	}
	return (n*2 + d) / (2 * d)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
