package scanner

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
	"github.com/MeKo-Tech/matrixscan/internal/preprocess"
	"github.com/MeKo-Tech/matrixscan/internal/testutil"
)

func TestNewAnalyzer_Validation(t *testing.T) {
	dec := barcode.DecoderFunc(func(context.Context, image.Image) ([]barcode.RawDetection, error) {
		return nil, barcode.ErrNoResult
	})

	_, err := NewAnalyzer(nil, preprocess.DefaultOptions(), DefaultCandidateOptions(), nil)
	require.Error(t, err)

	bad := preprocess.DefaultOptions()
	bad.CannyLow = 200
	_, err = NewAnalyzer(dec, bad, DefaultCandidateOptions(), nil)
	require.ErrorIs(t, err, preprocess.ErrInvalidConfig)

	cand := DefaultCandidateOptions()
	cand.TopN = 0
	_, err = NewAnalyzer(dec, preprocess.DefaultOptions(), cand, nil)
	require.ErrorIs(t, err, preprocess.ErrInvalidConfig)

	// Candidate parameters are ignored when candidates are off.
	cand.Enabled = false
	_, err = NewAnalyzer(dec, preprocess.DefaultOptions(), cand, nil)
	require.NoError(t, err)
}

func TestAnalyze_RejectsEmptyFrame(t *testing.T) {
	var calls atomic.Int32
	dec := barcode.DecoderFunc(func(context.Context, image.Image) ([]barcode.RawDetection, error) {
		calls.Add(1)
		return nil, barcode.ErrNoResult
	})
	a, err := newTestAnalyzer(dec, true)
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), Frame{Image: image.NewGray(image.Rect(0, 0, 0, 10))})
	require.ErrorIs(t, err, preprocess.ErrInvalidFrame)
	_, err = a.Analyze(context.Background(), Frame{})
	require.ErrorIs(t, err, preprocess.ErrInvalidFrame)
	assert.Zero(t, calls.Load())
}

func TestAnalyze_StampsSourceGeometry(t *testing.T) {
	dec := barcode.DecoderFunc(func(context.Context, image.Image) ([]barcode.RawDetection, error) {
		return []barcode.RawDetection{ean("4006381333931", image.Rect(10, 10, 40, 20))}, nil
	})
	a, err := newTestAnalyzer(dec, false)
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), Frame{Seq: 7, Image: whiteFrame(64, 48), Rotation: 90})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), res.Seq)
	assert.Equal(t, 64, res.Width)
	assert.Equal(t, 48, res.Height)
	require.Len(t, res.Detections, 1)
	d := res.Detections[0]
	assert.Equal(t, 64, d.SourceWidth)
	assert.Equal(t, 48, d.SourceHeight)
	assert.Equal(t, 90, d.Rotation)
	assert.Empty(t, res.Candidates)
}

func TestAnalyze_DecoderFailureYieldsNoDetections(t *testing.T) {
	dec := barcode.DecoderFunc(func(context.Context, image.Image) ([]barcode.RawDetection, error) {
		return nil, errors.New("checksum mismatch")
	})
	a, err := newTestAnalyzer(dec, false)
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), Frame{Image: whiteFrame(32, 32)})
	require.NoError(t, err)
	assert.Empty(t, res.Detections)
}

func TestAnalyze_CandidateCropsAreTranslated(t *testing.T) {
	frame := rectFrame(200, 160, image.Rect(40, 40, 160, 120))
	var calls atomic.Int32
	dec := barcode.DecoderFunc(func(_ context.Context, img image.Image) ([]barcode.RawDetection, error) {
		calls.Add(1)
		if img.Bounds().Dx() == 200 {
			return nil, barcode.ErrNoResult
		}
		// Found in the crop at crop-local coordinates.
		return []barcode.RawDetection{ean("96385074", image.Rect(5, 5, 25, 15))}, nil
	})
	a, err := newTestAnalyzer(dec, true)
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), Frame{Seq: 1, Image: frame})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, int32(2), calls.Load())

	require.Len(t, res.Detections, 1)
	d := res.Detections[0]
	assert.Equal(t, 200, d.SourceWidth)
	assert.Equal(t, 160, d.SourceHeight)
	// The crop starts left of and above the rectangle.
	assert.Greater(t, d.BBox.Min.X, 5)
	assert.Greater(t, d.BBox.Min.Y, 5)
	assert.Equal(t, 20, d.BBox.Dx())
}

func TestAnalyze_DuplicateAcrossCropsCollapses(t *testing.T) {
	frame := rectFrame(200, 160, image.Rect(40, 40, 160, 120))
	dec := barcode.DecoderFunc(func(context.Context, image.Image) ([]barcode.RawDetection, error) {
		return []barcode.RawDetection{
			ean("4006381333931", image.Rect(0, 0, 10, 10)),
			{Symbology: barcode.QR, BBox: image.Rect(0, 0, 5, 5)},
		}, nil
	})
	a, err := newTestAnalyzer(dec, true)
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), Frame{Image: frame})
	require.NoError(t, err)
	// One EAN from the full frame; payload-less detections are all kept.
	var eans, bare int
	for _, d := range res.Detections {
		if d.HasPayload() {
			eans++
		} else {
			bare++
		}
	}
	assert.Equal(t, 1, eans)
	assert.Equal(t, 2, bare)
}

func TestAnalyze_TwoSymbolsOfOneKind(t *testing.T) {
	cfg := testutil.DefaultSymbolConfig(barcode.QR, "FIRST")
	cfg.Frame = testutil.ImageSize{Width: 560, Height: 260}
	cfg.Offset = image.Pt(20, 30)
	img := testutil.BarcodeFrame(t, cfg)

	cfg.Payload = "SECOND"
	cfg.Frame = testutil.ImageSize{Width: 240, Height: 260}
	cfg.Offset = image.Pt(20, 30)
	second := testutil.BarcodeFrame(t, cfg)
	draw.Draw(img, image.Rect(300, 0, 540, 260), second, image.Point{}, draw.Src)

	dec, err := barcode.NewDecoder(barcode.Options{Symbologies: []barcode.Symbology{barcode.QR}})
	require.NoError(t, err)
	a, err := newTestAnalyzer(dec, false)
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), Frame{Image: img})
	require.NoError(t, err)
	var got []string
	for _, d := range res.Detections {
		got = append(got, d.PayloadString())
	}
	assert.ElementsMatch(t, []string{"FIRST", "SECOND"}, got)
}

func TestAnalyze_CancelledDecodeIsAbandoned(t *testing.T) {
	g := newGatedDecoder(func(int) []barcode.RawDetection { return nil })
	defer close(g.release)
	a, err := newTestAnalyzer(g, false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := a.Analyze(ctx, Frame{Image: whiteFrame(32, 32)})
		done <- err
	}()
	<-g.entered
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("analysis did not return after cancel")
	}
}

func TestUniqueDetections(t *testing.T) {
	in := []barcode.RawDetection{
		ean("1", image.Rect(0, 0, 1, 1)),
		{Symbology: barcode.Code128, Payload: barcode.Text("1")},
		ean("1", image.Rect(5, 5, 6, 6)),
		ean("2", image.Rect(0, 0, 1, 1)),
	}
	out := uniqueDetections(in)
	require.Len(t, out, 3)
	assert.Equal(t, image.Rect(0, 0, 1, 1), out[0].BBox)
	assert.Equal(t, barcode.Code128, out[1].Symbology)
	assert.Equal(t, "2", out[2].PayloadString())
}
