package detector

import (
	"github.com/MeKo-Tech/matrixscan/internal/mempool"
	"github.com/MeKo-Tech/matrixscan/internal/preprocess"
)

// component describes one 8-connected set of edge pixels.
type component struct {
	label  int
	count  int
	startX int // first pixel in raster order
	startY int
	minX   int
	minY   int
	maxX   int
	maxY   int
}

// 8-neighbourhood in clockwise order starting east (y grows downwards).
var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// labelComponents assigns a label (1..n) to every edge pixel so that pixels
// sharing a label are 8-connected. Components are numbered in raster order of
// their first pixel. The returned label slice comes from mempool; release it
// with mempool.PutInt.
func labelComponents(e *preprocess.EdgeMap) ([]component, []int) {
	w, h := e.Width(), e.Height()
	labels := mempool.GetInt(w * h)
	var comps []component
	var queue []int

	next := 1
	for y := range h {
		for x := range w {
			idx := y*w + x
			if labels[idx] != 0 || !e.IsEdge(x, y) {
				continue
			}
			c := component{label: next, startX: x, startY: y, minX: x, minY: y, maxX: x, maxY: y}
			labels[idx] = next
			queue = append(queue[:0], idx)
			for len(queue) > 0 {
				ci := queue[0]
				queue = queue[1:]
				cx, cy := ci%w, ci/w
				c.count++
				c.minX, c.maxX = min(c.minX, cx), max(c.maxX, cx)
				c.minY, c.maxY = min(c.minY, cy), max(c.maxY, cy)
				for d := range 8 {
					nx, ny := cx+ndx[d], cy+ndy[d]
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if labels[ni] == 0 && e.IsEdge(nx, ny) {
						labels[ni] = next
						queue = append(queue, ni)
					}
				}
			}
			comps = append(comps, c)
			next++
		}
	}
	return comps, labels
}
