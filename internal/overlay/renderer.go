package overlay

import (
	"image"
	"image/color"
	"slices"
	"sync/atomic"

	"github.com/MeKo-Tech/matrixscan/internal/utils"
)

// Frame is the set of shapes drawn for one analysed frame.
type Frame struct {
	Seq    uint64  `json:"seq"`
	Shapes []Shape `json:"shapes"`
}

// Renderer holds the shapes currently shown over the preview. Replace swaps
// the whole set at once, so readers see either the old frame or the new one.
type Renderer struct {
	current  atomic.Pointer[Frame]
	onRedraw func(Frame)
}

// NewRenderer returns an empty renderer. onRedraw, if set, is called after
// every accepted Replace.
func NewRenderer(onRedraw func(Frame)) *Renderer {
	r := &Renderer{onRedraw: onRedraw}
	r.current.Store(&Frame{})
	return r
}

// Replace discards the previous shapes and installs shapes for frame seq.
// A frame older than the one shown is ignored; the return value reports
// whether the set was installed.
func (r *Renderer) Replace(seq uint64, shapes []Shape) bool {
	next := &Frame{Seq: seq, Shapes: slices.Clone(shapes)}
	for {
		cur := r.current.Load()
		if cur.Seq > seq {
			return false
		}
		if r.current.CompareAndSwap(cur, next) {
			break
		}
	}
	if r.onRedraw != nil {
		r.onRedraw(*next)
	}
	return true
}

// Current returns the frame shown now. The returned shapes must not be modified.
func (r *Renderer) Current() Frame { return *r.current.Load() }

// Style configures Draw.
type Style struct {
	BoxColor   color.Color
	PointColor color.Color
	LabelColor color.Color
	Thickness  int
	PointSize  int
}

// DefaultStyle draws green boxes, red corner points and white labels.
func DefaultStyle() Style {
	return Style{
		BoxColor:   color.RGBA{G: 255, A: 255},
		PointColor: color.RGBA{R: 255, A: 255},
		LabelColor: color.White,
		Thickness:  2,
		PointSize:  5,
	}
}

// Draw paints the current shapes onto dst.
func (r *Renderer) Draw(dst *image.RGBA, style Style) {
	for _, s := range r.Current().Shapes {
		DrawShape(dst, s, style)
	}
}

// DrawShape paints one shape: its box, its corner points and its label
// just above the box.
func DrawShape(dst *image.RGBA, s Shape, style Style) {
	utils.DrawPolygon(dst, s.Box.Corners(), style.BoxColor, style.Thickness)
	if len(s.Corners) > 0 {
		utils.DrawPoints(dst, s.Corners, style.PointColor, style.PointSize)
	}
	if s.Label != "" {
		x := int(s.Box.MinX)
		y := int(s.Box.MinY) - 4
		if y < 13 {
			y = int(s.Box.MaxY) + 13
		}
		utils.DrawLabel(dst, x, y, s.Label, style.LabelColor)
	}
}
