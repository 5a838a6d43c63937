package scanner

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
	"github.com/MeKo-Tech/matrixscan/internal/preprocess"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// whiteFrame returns a blank frame; the width doubles as a frame tag for
// fake decoders.
func whiteFrame(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// rectFrame draws a black rectangle inside a white frame.
func rectFrame(w, h int, r image.Rectangle) image.Image {
	img := whiteFrame(w, h).(*image.Gray)
	draw.Draw(img, r, image.NewUniform(color.Black), image.Point{}, draw.Src)
	return img
}

func ean(payload string, box image.Rectangle) barcode.RawDetection {
	return barcode.RawDetection{Symbology: barcode.EAN13, Payload: barcode.Text(payload), BBox: box}
}

// gatedDecoder blocks every call until release is closed or a value is
// sent on it. Calls record the decoded image width.
type gatedDecoder struct {
	entered chan int
	release chan struct{}
	result  func(width int) []barcode.RawDetection
	calls   atomic.Int32

	mu     sync.Mutex
	widths []int
}

func newGatedDecoder(result func(int) []barcode.RawDetection) *gatedDecoder {
	return &gatedDecoder{
		entered: make(chan int, 16),
		release: make(chan struct{}),
		result:  result,
	}
}

// Decode ignores ctx on purpose so tests can exercise a decode that outlives
// its session.
func (g *gatedDecoder) Decode(_ context.Context, img image.Image) ([]barcode.RawDetection, error) {
	w := img.Bounds().Dx()
	g.calls.Add(1)
	g.mu.Lock()
	g.widths = append(g.widths, w)
	g.mu.Unlock()
	g.entered <- w
	<-g.release
	if dets := g.result(w); len(dets) > 0 {
		return dets, nil
	}
	return nil, barcode.ErrNoResult
}

func (g *gatedDecoder) seen() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int(nil), g.widths...)
}

func newTestAnalyzer(dec barcode.Decoder, candidates bool) (*Analyzer, error) {
	cand := DefaultCandidateOptions()
	cand.Enabled = candidates
	return NewAnalyzer(dec, preprocess.DefaultOptions(), cand, quietLogger())
}
