package detector

import (
	"image"

	"github.com/MeKo-Tech/matrixscan/internal/mempool"
	"github.com/MeKo-Tech/matrixscan/internal/preprocess"
	"github.com/MeKo-Tech/matrixscan/internal/utils"
)

// Contour is the closed outer boundary of one edge component, in pixel
// coordinates of the edge map it was traced from.
type Contour struct {
	Points      []utils.Point
	FrameWidth  int
	FrameHeight int
}

// Area returns the polygon area enclosed by the contour.
func (c Contour) Area() float64 { return utils.PolygonArea(c.Points) }

// Perimeter returns the closed length of the contour.
func (c Contour) Perimeter() float64 { return utils.Perimeter(c.Points) }

// Bounds returns the contour's axis-aligned bounding box.
func (c Contour) Bounds() utils.Box { return utils.BoundingBox(c.Points) }

// ExtractContours traces the outer boundary of every 8-connected component
// in the edge map. Contours come out in raster order of each component's
// top-left pixel, so repeated calls on the same map give the same sequence.
// Runs of boundary pixels in one direction are collapsed to their end points.
func ExtractContours(e *preprocess.EdgeMap) ([]Contour, error) {
	if e == nil || e.Gray == nil {
		return nil, preprocess.ValidateFrame(nil)
	}
	if err := preprocess.ValidateFrame(e.Gray); err != nil {
		return nil, err
	}

	comps, labels := labelComponents(e)
	defer mempool.PutInt(labels)

	w, h := e.Width(), e.Height()
	out := make([]Contour, 0, len(comps))
	for _, c := range comps {
		ring := traceMoore(labels, w, h, c)
		out = append(out, Contour{Points: compressRuns(ring), FrameWidth: w, FrameHeight: h})
	}
	return out, nil
}

// dirIndex maps a unit step to its index in the clockwise neighbourhood.
func dirIndex(dx, dy int) int {
	for i := range 8 {
		if ndx[i] == dx && ndy[i] == dy {
			return i
		}
	}
	return -1
}

// traceMoore walks the outer boundary of component c clockwise, starting at
// its first raster pixel with the backtrack to the west. The walk ends when
// it is about to repeat its first move. An isolated pixel yields one point.
func traceMoore(labels []int, w, h int, c component) []image.Point {
	inside := func(p image.Point) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h && labels[p.Y*w+p.X] == c.label
	}

	start := image.Pt(c.startX, c.startY)
	pts := []image.Point{start}
	cur := start
	back := 4 // west

	var first image.Point
	moved := false
	// Each boundary pixel is entered at most once per incoming direction.
	for steps := 8*c.count + 8; steps > 0; steps-- {
		dir := -1
		for k := 1; k <= 8; k++ {
			d := (back + k) % 8
			if inside(cur.Add(image.Pt(ndx[d], ndy[d]))) {
				dir = d
				break
			}
		}
		if dir < 0 {
			break
		}
		nxt := cur.Add(image.Pt(ndx[dir], ndy[dir]))
		if moved && cur == start && nxt == first {
			break
		}
		if !moved {
			first, moved = nxt, true
		}
		prev := (dir + 7) % 8
		back = dirIndex(cur.X+ndx[prev]-nxt.X, cur.Y+ndy[prev]-nxt.Y)
		cur = nxt
		pts = append(pts, cur)
	}

	if len(pts) > 1 && pts[len(pts)-1] == start {
		pts = pts[:len(pts)-1]
	}
	return pts
}

// compressRuns drops every point whose incoming and outgoing steps point the
// same way, treating the sequence as closed.
func compressRuns(ring []image.Point) []utils.Point {
	n := len(ring)
	if n <= 2 {
		out := make([]utils.Point, n)
		for i, p := range ring {
			out[i] = utils.Pt(float64(p.X), float64(p.Y))
		}
		return out
	}
	out := make([]utils.Point, 0, n)
	for i, p := range ring {
		in := p.Sub(ring[(i+n-1)%n])
		outStep := ring[(i+1)%n].Sub(p)
		if in != outStep {
			out = append(out, utils.Pt(float64(p.X), float64(p.Y)))
		}
	}
	return out
}
