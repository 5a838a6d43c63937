package detector

import "github.com/MeKo-Tech/matrixscan/internal/preprocess"

func hline(e *preprocess.EdgeMap, x0, x1, y int) {
	for x := x0; x <= x1; x++ {
		e.Set(x, y)
	}
}

func vline(e *preprocess.EdgeMap, x, y0, y1 int) {
	for y := y0; y <= y1; y++ {
		e.Set(x, y)
	}
}

func fillRect(e *preprocess.EdgeMap, x0, y0, x1, y1 int) {
	for y := y0; y <= y1; y++ {
		hline(e, x0, x1, y)
	}
}

func ring(e *preprocess.EdgeMap, x0, y0, x1, y1 int) {
	hline(e, x0, x1, y0)
	hline(e, x0, x1, y1)
	vline(e, x0, y0, y1)
	vline(e, x1, y0, y1)
}

// scenarioMap holds one 60x40 rectangle outline and nine noise components,
// none of which touch each other.
func scenarioMap() *preprocess.EdgeMap {
	e := preprocess.NewEdgeMap(200, 150)
	ring(e, 20, 20, 79, 59)

	e.Set(100, 10)
	e.Set(150, 10)
	e.Set(190, 140)
	hline(e, 100, 110, 30)
	vline(e, 130, 30, 45)
	for i := range 9 {
		e.Set(140+i, 30+i)
	}
	// L shape
	hline(e, 100, 110, 60)
	vline(e, 100, 60, 70)
	// thick plus
	fillRect(e, 150, 80, 180, 84)
	fillRect(e, 163, 66, 167, 98)
	// filled right triangle
	for y := 100; y <= 115; y++ {
		hline(e, 20, 20+(y-100), y)
	}
	return e
}
