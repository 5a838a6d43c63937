package utils

import "math"

// PolygonArea returns the unsigned shoelace area of a closed polygon.
func PolygonArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	sum := 0.0
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		sum += a.X*b.Y - b.X*a.Y
	}
	return math.Abs(sum) / 2
}

// Perimeter returns the closed-polygon perimeter (sum of Euclidean edge lengths,
// including the closing edge).
func Perimeter(pts []Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	total := 0.0
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		total += math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	return total
}

// ApproxPolygon simplifies a closed polygon with the Douglas-Peucker algorithm.
// The split starts at the first point and the point farthest from it.
// Larger epsilon yields fewer vertices.
func ApproxPolygon(pts []Point, epsilon float64) []Point {
	n := len(pts)
	if n <= 2 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}

	far := 0
	best := -1.0
	for i := 1; i < n; i++ {
		d := math.Hypot(pts[i].X-pts[0].X, pts[i].Y-pts[0].Y)
		if d > best {
			best = d
			far = i
		}
	}
	if best == 0 {
		return []Point{pts[0]}
	}

	// Open ring: 0..far..n-1, 0
	ring := make([]Point, 0, n+1)
	ring = append(ring, pts...)
	ring = append(ring, pts[0])

	keep := make([]bool, len(ring))
	keep[0] = true
	keep[far] = true
	dpSimplify(ring, 0, far, epsilon, keep)
	dpSimplify(ring, far, len(ring)-1, epsilon, keep)

	out := make([]Point, 0, n)
	for i := 0; i < len(ring)-1; i++ {
		if keep[i] {
			out = append(out, ring[i])
		}
	}
	// The seed is kept unconditionally; drop it when it lies on an edge.
	if len(out) > 3 && perpendicularDistance(out[0], out[len(out)-1], out[1]) <= epsilon {
		out = out[1:]
	}
	return out
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		keep[index] = true
		dpSimplify(pts, start, index, eps, keep)
		dpSimplify(pts, index, end, eps, keep)
	}
}

func perpendicularDistance(p, a, b Point) float64 {
	// Distance from point p to the line through a and b
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	return num / math.Hypot(vx, vy)
}
