package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
	"github.com/MeKo-Tech/matrixscan/internal/config"
	"github.com/MeKo-Tech/matrixscan/internal/handoff"
	"github.com/MeKo-Tech/matrixscan/internal/overlay"
	"github.com/MeKo-Tech/matrixscan/internal/results"
	"github.com/MeKo-Tech/matrixscan/internal/scanner"
)

// newDecoder builds the barcode decoder. Tests replace it.
var newDecoder = barcode.NewDecoder

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [files or directories...]",
	Short: "Scan image files for barcodes",
	Long: `Scan image files as the frames of one scanning session.

Frames are analysed in order. Every barcode is listed once, in the order it
was first seen. Directories contribute their images in lexical order.

Supported formats: JPEG, PNG, BMP

Examples:
  matrixscan scan frame.png
  matrixscan scan frames/ --format json
  matrixscan scan frames/ --handoff scanned.json --overlay-dir overlays/
  matrixscan scan selfie.jpg --rotation 90 --mirrored`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		report, err := runScan(cmd, cfg, args)
		if err != nil {
			return err
		}

		if cfg.Output.HandoffFile != "" {
			if err := handoff.WriteFile(cfg.Output.HandoffFile, report.Barcodes); err != nil {
				return err
			}
			slog.Info("Hand-off written", "file", cfg.Output.HandoffFile, "barcodes", len(report.Barcodes))
		}

		var buf bytes.Buffer
		if err := writeScanReport(&buf, report, cfg.Output.Format); err != nil {
			return err
		}
		if cfg.Output.File != "" {
			if err := os.WriteFile(cfg.Output.File, buf.Bytes(), 0o600); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			return nil
		}
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
		return err
	},
}

// frameReport summarises one analysed frame.
type frameReport struct {
	File       string            `json:"file" yaml:"file"`
	Width      int               `json:"width" yaml:"width"`
	Height     int               `json:"height" yaml:"height"`
	Detections int               `json:"detections" yaml:"detections"`
	Candidates int               `json:"candidates" yaml:"candidates"`
	New        []results.Barcode `json:"new,omitempty" yaml:"new,omitempty"`
	DurationMS int64             `json:"duration_ms" yaml:"duration_ms"`
	Overlay    string            `json:"overlay,omitempty" yaml:"overlay,omitempty"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// scanReport is the result of a scan run.
type scanReport struct {
	Session  string            `json:"session" yaml:"session"`
	Frames   []frameReport     `json:"frames" yaml:"frames"`
	Barcodes []results.Barcode `json:"barcodes" yaml:"barcodes"`
}

func runScan(cmd *cobra.Command, cfg *config.Config, inputs []string) (*scanReport, error) {
	if !slices.Contains([]string{outputFormatText, outputFormatJSON, outputFormatYAML}, cfg.Output.Format) {
		return nil, fmt.Errorf("invalid output format: %s (must be one of: text, json, yaml)", cfg.Output.Format)
	}
	decOpts, err := cfg.DecoderOptions()
	if err != nil {
		return nil, err
	}
	preOpts, err := cfg.PreprocessOptions()
	if err != nil {
		return nil, err
	}
	dec, err := newDecoder(decOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	analyzer, err := scanner.NewAnalyzer(dec, preOpts, cfg.CandidateOptions(), slog.Default())
	if err != nil {
		return nil, err
	}
	src, err := scanner.NewFileSource(inputs, overlay.NormalizeRotation(cfg.Display.Rotation), cfg.Display.Mirrored)
	if err != nil {
		return nil, err
	}
	if cfg.Output.OverlayDir != "" {
		if err := os.MkdirAll(cfg.Output.OverlayDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create overlay directory: %w", err)
		}
	}

	// Callbacks run on the session loop; Drain orders them before the
	// per-frame bookkeeping below.
	var (
		lastAnalysis *scanner.Analysis
		added        []results.Barcode
	)
	sess := scanner.NewSession(analyzer, scanner.Options{
		LabelMode: cfg.LabelMode(),
		Logger:    slog.Default(),
		Callbacks: scanner.Callbacks{
			OnAnalysis: func(a *scanner.Analysis) { lastAnalysis = a },
			OnBarcode:  func(b results.Barcode) { added = append(added, b) },
		},
	})
	ctx := cmd.Context()
	sess.Start(ctx)
	defer sess.Close()

	var progress scanner.Progress = scanner.NewLogProgress(slog.Default(), slog.LevelDebug, 10)
	if show, _ := cmd.Flags().GetBool("progress"); show {
		progress = scanner.NewConsoleProgress(cmd.ErrOrStderr())
	}
	progress.OnStart(src.Len())

	report := &scanReport{Session: sess.ID()}
	style := cfg.OverlayStyle()
	for n := 1; ; n++ {
		frame, ok, err := src.Next()
		if !ok {
			break
		}
		fr := frameReport{File: frame.Source}
		if err != nil {
			slog.Warn("Skipping unreadable frame", "file", frame.Source, "error", err)
			progress.OnError(n, err)
			fr.Error = err.Error()
			report.Frames = append(report.Frames, fr)
			continue
		}
		fr.Width, fr.Height = frame.Size()

		geom := displayGeometry(cfg.Display, frame)
		sess.Mapper().SetDisplay(geom.DisplayWidth, geom.DisplayHeight, frame.Mirrored)

		lastAnalysis, added = nil, nil
		seq, err := sess.Submit(frame)
		if err != nil {
			return nil, err
		}
		if err := sess.Drain(ctx); err != nil {
			return nil, err
		}

		if lastAnalysis == nil || lastAnalysis.Seq != seq {
			fr.Error = "frame was not analysed"
			progress.OnError(n, errors.New(fr.Error))
			report.Frames = append(report.Frames, fr)
			continue
		}
		fr.Detections = len(lastAnalysis.Detections)
		fr.Candidates = len(lastAnalysis.Candidates)
		fr.DurationMS = lastAnalysis.Duration.Milliseconds()
		fr.New = added

		if cfg.Output.OverlayDir != "" {
			path, err := writeOverlay(cfg.Output.OverlayDir, frame, geom, sess.Renderer(), style)
			if err != nil {
				return nil, err
			}
			fr.Overlay = path
		}
		report.Frames = append(report.Frames, fr)
		progress.OnFrame(n, src.Len(), sess.List().Len())
	}

	report.Barcodes = sess.Close()
	progress.OnComplete(len(report.Barcodes))
	if report.Barcodes == nil {
		report.Barcodes = []results.Barcode{}
	}
	return report, nil
}

// displayGeometry places frame on the configured display, or on a display
// of the upright frame size when none is configured.
func displayGeometry(d config.DisplayConfig, frame scanner.Frame) overlay.Geometry {
	w, h := frame.Size()
	g := overlay.Geometry{
		ImageWidth:  w,
		ImageHeight: h,
		Rotation:    frame.Rotation,
		Mirrored:    frame.Mirrored,
	}
	if d.Width > 0 && d.Height > 0 {
		g.DisplayWidth, g.DisplayHeight = d.Width, d.Height
	} else {
		g.DisplayWidth, g.DisplayHeight = g.EffectiveSize()
	}
	return g
}

func writeOverlay(dir string, frame scanner.Frame, g overlay.Geometry, r *overlay.Renderer, style overlay.Style) (string, error) {
	img, err := overlay.Compose(frame.Image, g, r, style)
	if err != nil {
		return "", fmt.Errorf("failed to compose overlay: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(frame.Source), filepath.Ext(frame.Source))
	path := filepath.Join(dir, fmt.Sprintf("%s_overlay.png", base))
	f, err := os.Create(path) //nolint:gosec // G304: path is built from the overlay directory
	if err != nil {
		return "", fmt.Errorf("failed to create overlay file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to encode overlay: %w", err)
	}
	return path, f.Close()
}

func writeScanReport(w io.Writer, report *scanReport, format string) error {
	switch format {
	case outputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case outputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case outputFormatText:
		return writeScanText(w, report)
	}
	return fmt.Errorf("invalid output format: %s", format)
}

func writeScanText(w io.Writer, report *scanReport) error {
	var errs []error
	printf := func(format string, args ...any) {
		_, err := fmt.Fprintf(w, format, args...)
		errs = append(errs, err)
	}
	for _, fr := range report.Frames {
		if fr.Error != "" {
			printf("%s: error: %s\n", fr.File, fr.Error)
			continue
		}
		printf("%s: %d detection(s), %d new (%s)\n", fr.File, fr.Detections, len(fr.New),
			time.Duration(fr.DurationMS)*time.Millisecond)
	}
	printf("\n")
	writeBarcodeList(printf, report.Barcodes)
	return errors.Join(errs...)
}

// writeBarcodeList prints the list the way the review screen shows it.
func writeBarcodeList(printf func(string, ...any), list []results.Barcode) {
	if len(list) == 0 {
		printf("No barcodes scanned.\n")
		return
	}
	printf("%d barcode(s):\n", len(list))
	for i, b := range list {
		printf("%3d. %-8s %s\n", i+1, b.Type, b.Value)
	}
}

func init() {
	rootCmd.AddCommand(scanCmd)
	fs := scanCmd.Flags()
	fs.StringP("format", "f", outputFormatText, "output format (text, json, yaml)")
	fs.StringP("output", "o", "", "write the report to this file instead of stdout")
	fs.String("handoff", "", "write the final barcode list to this hand-off file (.json or .yaml)")
	fs.String("overlay-dir", "", "write frames with their overlay drawn as PNGs into this directory")
	fs.Int("rotation", 0, "clockwise rotation in degrees that makes the frames upright")
	fs.Bool("mirrored", false, "frames come from a front camera and are shown mirrored")
	fs.Int("display-width", 0, "display width for overlays (default: upright frame width)")
	fs.Int("display-height", 0, "display height for overlays (default: upright frame height)")
	fs.String("labels", string(results.LabelCompat), "label mode (compat, exact)")
	fs.StringSlice("formats", nil, "restrict decoding to these symbologies (e.g. EAN_13,QR)")
	fs.Bool("candidates", true, "decode contour candidate crops in addition to the full frame")
	fs.Bool("progress", false, "show a progress bar on stderr")

	bindFlag(fs, "format", "output.format")
	bindFlag(fs, "output", "output.file")
	bindFlag(fs, "handoff", "output.handoff_file")
	bindFlag(fs, "overlay-dir", "output.overlay_dir")
	bindFlag(fs, "rotation", "display.rotation")
	bindFlag(fs, "mirrored", "display.mirrored")
	bindFlag(fs, "display-width", "display.width")
	bindFlag(fs, "display-height", "display.height")
	bindFlag(fs, "labels", "labels.mode")
	bindFlag(fs, "formats", "decoder.formats")
	bindFlag(fs, "candidates", "candidates.enabled")
}
