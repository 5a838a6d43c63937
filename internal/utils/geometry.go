package utils

import (
	"image"
	"math"
)

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Box represents an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// NewBox constructs a Box from min/max coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// BoxFromRect converts an image.Rectangle to a Box.
func BoxFromRect(r image.Rectangle) Box {
	return NewBox(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y))
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Empty reports whether the box has no area.
func (b Box) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

// Corners returns the four corners clockwise from the top-left.
func (b Box) Corners() []Point {
	return []Point{
		{X: b.MinX, Y: b.MinY},
		{X: b.MaxX, Y: b.MinY},
		{X: b.MaxX, Y: b.MaxY},
		{X: b.MinX, Y: b.MaxY},
	}
}

// Pad grows the box by ratio of its size on every side.
func (b Box) Pad(ratio float64) Box {
	dx := b.Width() * ratio
	dy := b.Height() * ratio
	return Box{MinX: b.MinX - dx, MinY: b.MinY - dy, MaxX: b.MaxX + dx, MaxY: b.MaxY + dy}
}

// ToRect converts a Box to an image.Rectangle, clamped to image bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(int(math.Floor(b.MinX)), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(math.Floor(b.MinY)), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(math.Ceil(b.MaxX)), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(math.Ceil(b.MaxY)), bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rect(x1, y1, x2, y2)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OffsetPoints returns an offset copy of points.
func OffsetPoints(pts []Point, dx, dy float64) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{X: p.X + dx, Y: p.Y + dy}
	}
	return out
}

// BoundingBox returns the axis-aligned bounding box for a set of points.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}
