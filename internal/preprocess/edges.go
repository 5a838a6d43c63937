package preprocess

import (
	"image"
	"math"

	"github.com/MeKo-Tech/matrixscan/internal/mempool"
)

// Edge pixel values.
const (
	EdgeOff uint8 = 0
	EdgeOn  uint8 = 255
)

// EdgeMap is a binary single-channel image; every pixel is EdgeOff or EdgeOn.
type EdgeMap struct {
	*image.Gray
}

// NewEdgeMap allocates an empty edge map of the given size.
func NewEdgeMap(w, h int) *EdgeMap {
	return &EdgeMap{Gray: image.NewGray(image.Rect(0, 0, w, h))}
}

// Width returns the map width.
func (e *EdgeMap) Width() int { return e.Rect.Dx() }

// Height returns the map height.
func (e *EdgeMap) Height() int { return e.Rect.Dy() }

// IsEdge reports whether (x, y) is inside the map and set.
func (e *EdgeMap) IsEdge(x, y int) bool {
	if x < 0 || y < 0 || x >= e.Width() || y >= e.Height() {
		return false
	}
	return e.Pix[y*e.Stride+x] != EdgeOff
}

// Set marks (x, y) as an edge pixel. Out-of-range coordinates are ignored.
func (e *EdgeMap) Set(x, y int) {
	if x < 0 || y < 0 || x >= e.Width() || y >= e.Height() {
		return
	}
	e.Pix[y*e.Stride+x] = EdgeOn
}

// Count returns the number of edge pixels.
func (e *EdgeMap) Count() int {
	n := 0
	for y := range e.Height() {
		for _, v := range e.Pix[y*e.Stride : y*e.Stride+e.Width()] {
			if v != EdgeOff {
				n++
			}
		}
	}
	return n
}

// tan(22.5°) and tan(67.5°) bound the four gradient direction sectors.
const (
	tan22 = 0.41421356
	tan67 = 2.41421356
)

// DetectEdges runs Canny edge detection: 3x3 Sobel gradients, non-maximum
// suppression along the gradient direction, and hysteresis linking. Pixels
// whose suppressed magnitude exceeds high are edges; pixels above low are
// edges only when 8-connected to one. low must be non-negative and strictly
// less than high.
func DetectEdges(src *image.Gray, low, high float64) (*EdgeMap, error) {
	if low < 0 || math.IsNaN(low) || math.IsNaN(high) {
		return nil, configErrorf("canny", "threshold %v must not be negative", low)
	}
	if low >= high {
		return nil, configErrorf("canny", "low threshold %v must be below high threshold %v", low, high)
	}
	if src == nil {
		return nil, ValidateFrame(nil)
	}
	if err := ValidateFrame(src); err != nil {
		return nil, err
	}

	gray := cloneGray(src)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	n := w * h

	gx := mempool.GetFloat32(n)
	gy := mempool.GetFloat32(n)
	mag := mempool.GetFloat32(n)
	defer func() {
		mempool.PutFloat32(gx)
		mempool.PutFloat32(gy)
		mempool.PutFloat32(mag)
	}()
	sobel(gray, gx, gy, mag)

	class := make([]uint8, n)
	for y := range h {
		for x := range w {
			i := y*w + x
			m := float64(mag[i])
			if m <= low || !isLocalMax(mag, gx[i], gy[i], x, y, w, h) {
				continue
			}
			if m > high {
				class[i] = strongEdge
			} else {
				class[i] = weakEdge
			}
		}
	}
	return hysteresis(class, w, h), nil
}

const (
	weakEdge   uint8 = 1
	strongEdge uint8 = 2
)

// hysteresis keeps every strong pixel and every weak pixel 8-connected to one.
// class is consumed.
func hysteresis(class []uint8, w, h int) *EdgeMap {
	edges := NewEdgeMap(w, h)
	var stack []int
	for i, c := range class {
		if c == strongEdge {
			stack = append(stack, i)
			edges.Pix[(i/w)*edges.Stride+i%w] = EdgeOn
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cy := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := cx+dx, cy+dy
				if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if class[j] == weakEdge {
					class[j] = strongEdge
					edges.Pix[ny*edges.Stride+nx] = EdgeOn
					stack = append(stack, j)
				}
			}
		}
	}
	return edges
}

// sobel fills the horizontal and vertical derivatives and their L2 magnitude.
func sobel(gray *image.Gray, gx, gy, mag []float32) {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	at := func(x, y int) float32 {
		return float32(gray.Pix[reflect101(y, h)*gray.Stride+reflect101(x, w)])
	}
	for y := range h {
		for x := range w {
			tl, tc, tr := at(x-1, y-1), at(x, y-1), at(x+1, y-1)
			ml, mr := at(x-1, y), at(x+1, y)
			bl, bc, br := at(x-1, y+1), at(x, y+1), at(x+1, y+1)
			dx := (tr + 2*mr + br) - (tl + 2*ml + bl)
			dy := (bl + 2*bc + br) - (tl + 2*tc + tr)
			i := y*w + x
			gx[i] = dx
			gy[i] = dy
			mag[i] = float32(math.Hypot(float64(dx), float64(dy)))
		}
	}
}

// isLocalMax compares a pixel with its two neighbours along the quantised
// gradient direction. Ties resolve toward the lower-index neighbour so a
// plateau two pixels wide yields a single-pixel ridge.
func isLocalMax(mag []float32, dx, dy float32, x, y, w, h int) bool {
	get := func(px, py int) float32 {
		if px < 0 || py < 0 || px >= w || py >= h {
			return 0
		}
		return mag[py*w+px]
	}
	m := mag[y*w+x]
	ax, ay := math.Abs(float64(dx)), math.Abs(float64(dy))

	var before, after float32
	switch {
	case ay <= ax*tan22:
		before, after = get(x-1, y), get(x+1, y)
	case ay >= ax*tan67:
		before, after = get(x, y-1), get(x, y+1)
	case (dx > 0) == (dy > 0):
		before, after = get(x-1, y-1), get(x+1, y+1)
	default:
		before, after = get(x+1, y-1), get(x-1, y+1)
	}
	return m > before && m >= after
}
