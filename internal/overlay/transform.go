// Package overlay maps decoder geometry into display coordinates and keeps
// the per-frame set of shapes drawn over the live preview.
package overlay

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/matrixscan/internal/utils"
)

var (
	// ErrDisplayUnavailable is returned when no usable display size is known yet.
	ErrDisplayUnavailable = errors.New("overlay: display size unavailable")
	// ErrInvalidGeometry marks unsupported rotations or non-positive sizes.
	ErrInvalidGeometry = errors.New("overlay: invalid geometry")
)

// Transform is a 2D affine map: x' = A*x + B*y + C, y' = D*x + E*y + F.
type Transform struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transform.
func Identity() Transform { return Transform{A: 1, E: 1} }

// Apply maps one point.
func (t Transform) Apply(p utils.Point) utils.Point {
	return utils.Point{
		X: t.A*p.X + t.B*p.Y + t.C,
		Y: t.D*p.X + t.E*p.Y + t.F,
	}
}

// ApplyAll maps a slice of points into a new slice.
func (t Transform) ApplyAll(pts []utils.Point) []utils.Point {
	if pts == nil {
		return nil
	}
	out := make([]utils.Point, len(pts))
	for i, p := range pts {
		out[i] = t.Apply(p)
	}
	return out
}

// ApplyBox maps the four corners of b and returns their bounding box.
func (t Transform) ApplyBox(b utils.Box) utils.Box {
	return utils.BoundingBox(t.ApplyAll(b.Corners()))
}

// Then returns the transform that applies t first and u second.
func (t Transform) Then(u Transform) Transform {
	return Transform{
		A: u.A*t.A + u.B*t.D,
		B: u.A*t.B + u.B*t.E,
		C: u.A*t.C + u.B*t.F + u.C,
		D: u.D*t.A + u.E*t.D,
		E: u.D*t.B + u.E*t.E,
		F: u.D*t.C + u.E*t.F + u.F,
	}
}

// Inverse returns the transform undoing t.
func (t Transform) Inverse() (Transform, error) {
	det := t.A*t.E - t.B*t.D
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return Transform{}, fmt.Errorf("%w: singular transform", ErrInvalidGeometry)
	}
	a := t.E / det
	b := -t.B / det
	d := -t.D / det
	e := t.A / det
	return Transform{
		A: a, B: b, C: -(a*t.C + b*t.F),
		D: d, E: e, F: -(d*t.C + e*t.F),
	}, nil
}

// Geometry describes how an analysed image sits on the display.
type Geometry struct {
	ImageWidth    int
	ImageHeight   int
	DisplayWidth  int
	DisplayHeight int
	// Rotation is the clockwise rotation in degrees (0, 90, 180 or 270)
	// that makes the image upright on the display.
	Rotation int
	// Mirrored flips the result horizontally (front camera).
	Mirrored bool
}

// NormalizeRotation snaps any multiple of 90 into [0, 360). Other angles
// are returned unchanged and fail Validate.
func NormalizeRotation(deg int) int {
	if deg%90 != 0 {
		return deg
	}
	return ((deg % 360) + 360) % 360
}

// Validate checks sizes and rotation.
func (g Geometry) Validate() error {
	if g.DisplayWidth <= 0 || g.DisplayHeight <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrDisplayUnavailable, g.DisplayWidth, g.DisplayHeight)
	}
	if g.ImageWidth <= 0 || g.ImageHeight <= 0 {
		return fmt.Errorf("%w: image size %dx%d", ErrInvalidGeometry, g.ImageWidth, g.ImageHeight)
	}
	switch NormalizeRotation(g.Rotation) {
	case 0, 90, 180, 270:
		return nil
	}
	return fmt.Errorf("%w: rotation %d is not a multiple of 90", ErrInvalidGeometry, g.Rotation)
}

// EffectiveSize returns the image size after rotation.
func (g Geometry) EffectiveSize() (w, h int) {
	switch NormalizeRotation(g.Rotation) {
	case 90, 270:
		return g.ImageHeight, g.ImageWidth
	}
	return g.ImageWidth, g.ImageHeight
}

// Scale returns the display/effective-image scale factors.
func (g Geometry) Scale() (sx, sy float64) {
	ew, eh := g.EffectiveSize()
	return float64(g.DisplayWidth) / float64(ew), float64(g.DisplayHeight) / float64(eh)
}

// NewTransform builds the image-to-display transform: rotate into the
// upright frame, scale to the display, then mirror if requested.
func NewTransform(g Geometry) (Transform, error) {
	if err := g.Validate(); err != nil {
		return Transform{}, err
	}
	w, h := float64(g.ImageWidth), float64(g.ImageHeight)

	var rot Transform
	switch NormalizeRotation(g.Rotation) {
	case 0:
		rot = Identity()
	case 90:
		rot = Transform{A: 0, B: -1, C: h, D: 1, E: 0, F: 0}
	case 180:
		rot = Transform{A: -1, B: 0, C: w, D: 0, E: -1, F: h}
	case 270:
		rot = Transform{A: 0, B: 1, C: 0, D: -1, E: 0, F: w}
	}

	sx, sy := g.Scale()
	t := rot.Then(Transform{A: sx, E: sy})
	if g.Mirrored {
		t = t.Then(Transform{A: -1, C: float64(g.DisplayWidth), E: 1})
	}
	return t, nil
}
