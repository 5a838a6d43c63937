package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolygonArea(t *testing.T) {
	tests := []struct {
		name string
		pts  []Point
		want float64
	}{
		{"empty", nil, 0},
		{"segment", []Point{{0, 0}, {4, 0}}, 0},
		{"unit square", []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, 1},
		{"ccw rectangle", []Point{{0, 0}, {0, 3}, {5, 3}, {5, 0}}, 15},
		{"triangle", []Point{{0, 0}, {4, 0}, {0, 3}}, 6},
		{"folded line", []Point{{0, 0}, {0, 4}, {4, 4}, {0, 4}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PolygonArea(tt.pts), 1e-9)
		})
	}
}

func TestPerimeter(t *testing.T) {
	assert.Zero(t, Perimeter([]Point{{1, 1}}))
	assert.InDelta(t, 14.0, Perimeter([]Point{{0, 0}, {4, 0}, {4, 3}, {0, 3}}), 1e-9)
	// A two-point contour walks the segment twice.
	assert.InDelta(t, 10.0, Perimeter([]Point{{0, 0}, {5, 0}}), 1e-9)
	assert.InDelta(t, 12.0, Perimeter([]Point{{0, 0}, {4, 0}, {0, 3}}), 1e-9)
}

func TestApproxPolygon_RectangleWithNoise(t *testing.T) {
	// Rectangle outline with slightly jittered intermediate points.
	pts := []Point{
		{0, 0}, {20, 0.3}, {40, 0}, {60, -0.2}, {80, 0},
		{80, 25}, {79.7, 50},
		{40, 50.4}, {0, 50},
		{0.2, 25},
	}
	eps := 0.02 * Perimeter(pts)
	got := ApproxPolygon(pts, eps)
	require.Len(t, got, 4)
	assert.Contains(t, got, Point{0, 0})
	assert.Contains(t, got, Point{80, 0})
	assert.Contains(t, got, Point{79.7, 50})
	assert.Contains(t, got, Point{0, 50})
}

func TestApproxPolygon_StartInsideEdge(t *testing.T) {
	// Contour starting mid-edge still reduces to the four corners.
	pts := []Point{{5, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	got := ApproxPolygon(pts, 0.5)
	require.Len(t, got, 4)
	assert.NotContains(t, got, Point{5, 0})
}

func TestApproxPolygon_Degenerate(t *testing.T) {
	assert.Len(t, ApproxPolygon([]Point{{1, 1}}, 1), 1)
	assert.Len(t, ApproxPolygon([]Point{{1, 1}, {3, 1}}, 1), 2)
	assert.Equal(t, []Point{{2, 2}}, ApproxPolygon([]Point{{2, 2}, {2, 2}, {2, 2}}, 1))
}

func TestApproxPolygon_LargerEpsilonFewerVertices(t *testing.T) {
	var circle []Point
	for i := range 64 {
		a := 2 * math.Pi * float64(i) / 64
		circle = append(circle, Point{X: 50 + 40*math.Cos(a), Y: 50 + 40*math.Sin(a)})
	}
	fine := ApproxPolygon(circle, 0.5)
	coarse := ApproxPolygon(circle, 5)
	assert.Greater(t, len(fine), len(coarse))
	assert.GreaterOrEqual(t, len(coarse), 3)
}

func TestBoundingBoxAndPad(t *testing.T) {
	b := BoundingBox([]Point{{3, 4}, {1, 9}, {7, 2}})
	assert.Equal(t, Box{MinX: 1, MinY: 2, MaxX: 7, MaxY: 9}, b)
	p := NewBox(10, 10, 20, 30).Pad(0.1)
	assert.InDelta(t, 9.0, p.MinX, 1e-9)
	assert.InDelta(t, 8.0, p.MinY, 1e-9)
	assert.InDelta(t, 21.0, p.MaxX, 1e-9)
	assert.InDelta(t, 32.0, p.MaxY, 1e-9)
	assert.True(t, NewBox(1, 1, 1, 5).Empty())
}
