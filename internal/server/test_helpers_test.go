package server

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
	"github.com/MeKo-Tech/matrixscan/internal/preprocess"
	"github.com/MeKo-Tech/matrixscan/internal/results"
	"github.com/MeKo-Tech/matrixscan/internal/scanner"
)

const testPayload = "4006381333931"

// fixedDecoder finds one EAN-13 in every image it is given.
func fixedDecoder() barcode.Decoder {
	return barcode.DecoderFunc(func(_ context.Context, img image.Image) ([]barcode.RawDetection, error) {
		b := img.Bounds()
		if b.Dx() < 20 {
			return nil, barcode.ErrNoResult
		}
		return []barcode.RawDetection{{
			Symbology: barcode.EAN13,
			Payload:   barcode.Text(testPayload),
			BBox:      image.Rect(4, 4, 20, 12),
		}}, nil
	})
}

func newTestServer(t *testing.T, rl *RateLimiter) *Server {
	t.Helper()
	cand := scanner.DefaultCandidateOptions()
	cand.Enabled = false
	s, err := NewServer(Config{
		CORSOrigin:  "*",
		MaxFrameMB:  1,
		IdleTimeout: 5 * time.Second,
		Decoder:     fixedDecoder(),
		Preprocess:  preprocess.DefaultOptions(),
		Candidates:  cand,
		LabelMode:   results.LabelCompat,
		RateLimiter: rl,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// pngFrame encodes a white w x h PNG.
func pngFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func defaultPreprocess() preprocess.Options { return preprocess.DefaultOptions() }
