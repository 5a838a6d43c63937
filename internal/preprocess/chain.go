package preprocess

import (
	"fmt"
	"image"
)

// Options configures the two preprocessing chains run on every frame.
type Options struct {
	// Decode chain: grayscale then a light blur before the decoder.
	DecodeBlurKernel int
	DecodeBlurSigma  float64

	// Edge chain: grayscale, optional normalisation, blur, Canny, morphology.
	Normalize      bool
	EdgeBlurKernel int
	EdgeBlurSigma  float64
	CannyLow       float64
	CannyHigh      float64
	Morph          MorphConfig
}

// DefaultOptions returns the chain parameters used by the capture app.
func DefaultOptions() Options {
	return Options{
		DecodeBlurKernel: 3,
		DecodeBlurSigma:  1.5,
		Normalize:        true,
		EdgeBlurKernel:   5,
		EdgeBlurSigma:    0,
		CannyLow:         50,
		CannyHigh:        150,
		Morph:            DefaultMorphConfig(),
	}
}

// Validate checks every parameter without touching a frame.
func (o Options) Validate() error {
	if o.DecodeBlurKernel < 1 || o.DecodeBlurKernel%2 == 0 {
		return configErrorf("decode blur", "kernel size %d must be odd and positive", o.DecodeBlurKernel)
	}
	if o.DecodeBlurSigma < 0 {
		return configErrorf("decode blur", "sigma %v must not be negative", o.DecodeBlurSigma)
	}
	if o.EdgeBlurKernel < 1 || o.EdgeBlurKernel%2 == 0 {
		return configErrorf("edge blur", "kernel size %d must be odd and positive", o.EdgeBlurKernel)
	}
	if o.EdgeBlurSigma < 0 {
		return configErrorf("edge blur", "sigma %v must not be negative", o.EdgeBlurSigma)
	}
	if o.CannyLow < 0 || o.CannyLow >= o.CannyHigh {
		return configErrorf("canny", "thresholds low=%v high=%v must satisfy 0 <= low < high", o.CannyLow, o.CannyHigh)
	}
	return o.Morph.Validate()
}

// Result holds the outputs of one chain run. Every image is owned by the caller.
type Result struct {
	Gray   *image.Gray // luminance of the source frame
	Decode *image.Gray // decode chain output
	Edges  *EdgeMap    // edge chain output
}

// Chain runs the decode and edge chains with a fixed, validated configuration.
type Chain struct {
	opts Options
}

// NewChain validates opts and returns a ready chain.
func NewChain(opts Options) (*Chain, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Chain{opts: opts}, nil
}

// Options returns the chain configuration.
func (c *Chain) Options() Options { return c.opts }

// Run preprocesses one frame. When withEdges is false only the decode chain runs.
func (c *Chain) Run(frame image.Image, withEdges bool) (*Result, error) {
	gray, err := ToGrayscale(frame)
	if err != nil {
		return nil, err
	}
	decode, err := Blur(gray, c.opts.DecodeBlurKernel, c.opts.DecodeBlurSigma)
	if err != nil {
		return nil, fmt.Errorf("decode chain: %w", err)
	}
	res := &Result{Gray: gray, Decode: decode}
	if !withEdges {
		return res, nil
	}

	edges, err := c.edgeChain(gray)
	if err != nil {
		return nil, fmt.Errorf("edge chain: %w", err)
	}
	res.Edges = edges
	return res, nil
}

func (c *Chain) edgeChain(gray *image.Gray) (*EdgeMap, error) {
	src := gray
	if c.opts.Normalize {
		n, err := Normalize(src)
		if err != nil {
			return nil, err
		}
		src = n
	}
	blurred, err := Blur(src, c.opts.EdgeBlurKernel, c.opts.EdgeBlurSigma)
	if err != nil {
		return nil, err
	}
	edges, err := DetectEdges(blurred, c.opts.CannyLow, c.opts.CannyHigh)
	if err != nil {
		return nil, err
	}
	return ApplyMorphology(edges, c.opts.Morph)
}
