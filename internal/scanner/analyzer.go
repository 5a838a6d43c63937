package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
	"github.com/MeKo-Tech/matrixscan/internal/detector"
	"github.com/MeKo-Tech/matrixscan/internal/preprocess"
)

// CandidateOptions controls contour-based candidate decoding.
type CandidateOptions struct {
	Enabled       bool
	TopN          int
	EpsilonFactor float64
	PaddingRatio  float64
}

// DefaultCandidateOptions enables candidates with the capture app's parameters.
func DefaultCandidateOptions() CandidateOptions {
	return CandidateOptions{
		Enabled:       true,
		TopN:          detector.DefaultTopN,
		EpsilonFactor: detector.DefaultEpsilonFactor,
		PaddingRatio:  0.1,
	}
}

// Analysis is the outcome of one frame.
type Analysis struct {
	Seq        uint64
	Width      int
	Height     int
	Rotation   int
	Mirrored   bool
	Detections []barcode.RawDetection
	Candidates []detector.CandidateRegion
	Duration   time.Duration
}

// Analyzer runs preprocessing, candidate extraction and decoding for one
// frame at a time. It holds no per-frame state.
type Analyzer struct {
	chain      *preprocess.Chain
	selector   detector.Selector
	candidates CandidateOptions
	decoder    barcode.Decoder
	log        *slog.Logger
}

// NewAnalyzer validates the preprocessing options and returns an analyzer.
func NewAnalyzer(dec barcode.Decoder, pre preprocess.Options, cand CandidateOptions, logger *slog.Logger) (*Analyzer, error) {
	if dec == nil {
		return nil, errors.New("scanner: nil decoder")
	}
	chain, err := preprocess.NewChain(pre)
	if err != nil {
		return nil, err
	}
	if cand.Enabled && (cand.TopN <= 0 || cand.EpsilonFactor <= 0 || cand.PaddingRatio < 0) {
		return nil, fmt.Errorf("%w: candidates top_n=%d epsilon_factor=%v padding_ratio=%v",
			preprocess.ErrInvalidConfig, cand.TopN, cand.EpsilonFactor, cand.PaddingRatio)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		chain:      chain,
		selector:   detector.Selector{TopN: cand.TopN, EpsilonFactor: cand.EpsilonFactor},
		candidates: cand,
		decoder:    dec,
		log:        logger,
	}, nil
}

// Analyze processes one frame. Frames with non-positive dimensions are
// rejected before reaching the decoder. Decoder failures are not errors:
// the frame yields no detections from that call. The only errors after
// validation are context cancellation and preprocessing failures.
func (a *Analyzer) Analyze(ctx context.Context, f Frame) (*Analysis, error) {
	start := time.Now()
	if err := preprocess.ValidateFrame(f.Image); err != nil {
		return nil, err
	}
	res, err := a.chain.Run(f.Image, a.candidates.Enabled)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", f.Seq, err)
	}
	w, h := res.Decode.Rect.Dx(), res.Decode.Rect.Dy()
	out := &Analysis{Seq: f.Seq, Width: w, Height: h, Rotation: f.Rotation, Mirrored: f.Mirrored}

	full, err := a.decode(ctx, res.Decode)
	if err != nil {
		return nil, err
	}
	dets := full

	if a.candidates.Enabled {
		contours, err := detector.ExtractContours(res.Edges)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", f.Seq, err)
		}
		out.Candidates = a.selector.Select(contours)
		for _, crop := range detector.CropCandidates(res.Decode, out.Candidates, a.candidates.PaddingRatio) {
			found, err := a.decode(ctx, crop.Image)
			if err != nil {
				return nil, err
			}
			for _, d := range found {
				dets = append(dets, d.Translate(crop.Offset.X, crop.Offset.Y, w, h))
			}
		}
	}

	out.Detections = uniqueDetections(dets)
	for i := range out.Detections {
		out.Detections[i].SourceWidth = w
		out.Detections[i].SourceHeight = h
		out.Detections[i].Rotation = f.Rotation
	}
	out.Duration = time.Since(start)
	return out, nil
}

// decode runs the decoder on its own goroutine so a cancelled session can
// walk away from a decode that is still running.
func (a *Analyzer) decode(ctx context.Context, img image.Image) ([]barcode.RawDetection, error) {
	type result struct {
		dets []barcode.RawDetection
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		dets, err := a.decoder.Decode(ctx, img)
		ch <- result{dets, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		switch {
		case r.err == nil:
			return r.dets, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(r.err, barcode.ErrNoResult):
			return nil, nil
		default:
			decodeFailures.Inc()
			a.log.Debug("decode failed", "error", r.err)
			return nil, nil
		}
	}
}

// uniqueDetections keeps the first detection of each (symbology, payload)
// pair. Detections without payload are all kept.
func uniqueDetections(dets []barcode.RawDetection) []barcode.RawDetection {
	type key struct {
		sym     barcode.Symbology
		payload string
	}
	seen := make(map[key]struct{}, len(dets))
	out := make([]barcode.RawDetection, 0, len(dets))
	for _, d := range dets {
		if d.Payload != nil {
			k := key{d.Symbology, *d.Payload}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, d)
	}
	return out
}
