package config

import (
	"fmt"
	"image/color"
	"slices"
	"strings"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
	"github.com/MeKo-Tech/matrixscan/internal/overlay"
	"github.com/MeKo-Tech/matrixscan/internal/preprocess"
	"github.com/MeKo-Tech/matrixscan/internal/results"
	"github.com/MeKo-Tech/matrixscan/internal/scanner"
)

// DefaultConfig returns the capture app's parameters.
func DefaultConfig() Config {
	pre := preprocess.DefaultOptions()
	cand := scanner.DefaultCandidateOptions()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Preprocess: PreprocessConfig{
			DecodeBlurKernel: pre.DecodeBlurKernel,
			DecodeBlurSigma:  pre.DecodeBlurSigma,
			Normalize:        pre.Normalize,
			EdgeBlurKernel:   pre.EdgeBlurKernel,
			EdgeBlurSigma:    pre.EdgeBlurSigma,
			CannyLow:         pre.CannyLow,
			CannyHigh:        pre.CannyHigh,
			Morph:            pre.Morph.Operation.String(),
			MorphSize:        pre.Morph.KernelSize,
			MorphIterations:  pre.Morph.Iterations,
		},
		Candidates: CandidatesConfig{
			Enabled:       cand.Enabled,
			TopN:          cand.TopN,
			EpsilonFactor: cand.EpsilonFactor,
			PaddingRatio:  cand.PaddingRatio,
		},
		Decoder: DecoderConfig{
			Formats:   []string{},
			TryHarder: true,
		},
		Labels: LabelsConfig{Mode: string(results.LabelCompat)},
		Output: OutputConfig{
			Format:            "text",
			OverlayBoxColor:   "#00FF00",
			OverlayPointColor: "#FF0000",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxFrameMB:      8,
			ShutdownTimeout: 10,
			IdleTimeoutSec:  60,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				SessionsPerMinute: 30,
				SessionsPerHour:   600,
			},
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "yaml"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if _, err := c.PreprocessOptions(); err != nil {
		return fmt.Errorf("invalid preprocess settings: %w", err)
	}
	if c.Candidates.Enabled {
		if c.Candidates.TopN <= 0 {
			return fmt.Errorf("invalid candidates.top_n: %d (must be positive)", c.Candidates.TopN)
		}
		if c.Candidates.EpsilonFactor <= 0 || c.Candidates.EpsilonFactor >= 1 {
			return fmt.Errorf("invalid candidates.epsilon_factor: %.3f (must be in (0, 1))", c.Candidates.EpsilonFactor)
		}
		if c.Candidates.PaddingRatio < 0 || c.Candidates.PaddingRatio > 1 {
			return fmt.Errorf("invalid candidates.padding_ratio: %.2f (must be between 0.0 and 1.0)", c.Candidates.PaddingRatio)
		}
	}
	if _, err := c.DecoderOptions(); err != nil {
		return err
	}
	if _, err := results.ParseLabelMode(c.Labels.Mode); err != nil {
		return err
	}

	if c.Display.Width < 0 || c.Display.Height < 0 {
		return fmt.Errorf("invalid display size: %dx%d (must not be negative)", c.Display.Width, c.Display.Height)
	}
	if c.Display.Rotation%90 != 0 {
		return fmt.Errorf("invalid display rotation: %d (must be a multiple of 90)", c.Display.Rotation)
	}
	if c.Output.OverlayBoxColor != "" && ParseHexColor(c.Output.OverlayBoxColor) == nil {
		return fmt.Errorf("invalid overlay box color: %q", c.Output.OverlayBoxColor)
	}
	if c.Output.OverlayPointColor != "" && ParseHexColor(c.Output.OverlayPointColor) == nil {
		return fmt.Errorf("invalid overlay point color: %q", c.Output.OverlayPointColor)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxFrameMB <= 0 {
		return fmt.Errorf("invalid max frame size: %d (must be positive)", c.Server.MaxFrameMB)
	}
	if c.Server.IdleTimeoutSec <= 0 {
		return fmt.Errorf("invalid idle timeout: %d (must be positive)", c.Server.IdleTimeoutSec)
	}
	rl := c.Server.RateLimit
	if rl.SessionsPerMinute < 0 || rl.SessionsPerHour < 0 || rl.MaxSessionsPerDay < 0 || rl.MaxFrameBytesDay < 0 {
		return fmt.Errorf("invalid rate limit: limits must not be negative")
	}

	return nil
}

// PreprocessOptions converts the preprocess section to chain options.
func (c *Config) PreprocessOptions() (preprocess.Options, error) {
	p := c.Preprocess
	op, err := preprocess.ParseMorphOp(p.Morph)
	if err != nil {
		return preprocess.Options{}, err
	}
	opts := preprocess.Options{
		DecodeBlurKernel: p.DecodeBlurKernel,
		DecodeBlurSigma:  p.DecodeBlurSigma,
		Normalize:        p.Normalize,
		EdgeBlurKernel:   p.EdgeBlurKernel,
		EdgeBlurSigma:    p.EdgeBlurSigma,
		CannyLow:         p.CannyLow,
		CannyHigh:        p.CannyHigh,
		Morph: preprocess.MorphConfig{
			Operation:  op,
			KernelSize: p.MorphSize,
			Iterations: p.MorphIterations,
		},
	}
	if err := opts.Validate(); err != nil {
		return preprocess.Options{}, err
	}
	return opts, nil
}

// CandidateOptions converts the candidates section.
func (c *Config) CandidateOptions() scanner.CandidateOptions {
	return scanner.CandidateOptions{
		Enabled:       c.Candidates.Enabled,
		TopN:          c.Candidates.TopN,
		EpsilonFactor: c.Candidates.EpsilonFactor,
		PaddingRatio:  c.Candidates.PaddingRatio,
	}
}

// DecoderOptions converts the decoder section. Unknown format names are errors.
func (c *Config) DecoderOptions() (barcode.Options, error) {
	opts := barcode.Options{TryHarder: c.Decoder.TryHarder}
	for _, name := range c.Decoder.Formats {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		sym, err := barcode.ParseSymbology(name)
		if err != nil {
			return barcode.Options{}, fmt.Errorf("invalid decoder format: %w", err)
		}
		opts.Symbologies = append(opts.Symbologies, sym)
	}
	return opts, nil
}

// LabelMode returns the configured label mode, falling back to compat.
func (c *Config) LabelMode() results.LabelMode {
	mode, err := results.ParseLabelMode(c.Labels.Mode)
	if err != nil {
		return results.LabelCompat
	}
	return mode
}

// OverlayStyle returns the default overlay style with the configured colors.
func (c *Config) OverlayStyle() overlay.Style {
	style := overlay.DefaultStyle()
	if col := ParseHexColor(c.Output.OverlayBoxColor); col != nil {
		style.BoxColor = col
	}
	if col := ParseHexColor(c.Output.OverlayPointColor); col != nil {
		style.PointColor = col
	}
	return style
}

// ParseHexColor parses colors like "#RRGGBB" or "RRGGBB". It returns nil
// for anything else.
func ParseHexColor(s string) color.Color {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return nil
	}
	var rv, gv, bv int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &rv, &gv, &bv); err != nil {
		return nil
	}
	return color.RGBA{uint8(rv), uint8(gv), uint8(bv), 255} //nolint:gosec // G115: %02x yields 0..255
}
