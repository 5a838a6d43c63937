package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
)

// ImageSize represents frame dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// SmallFrame fits the default symbols with margin.
	SmallFrame = ImageSize{320, 240}
	// PreviewFrame is a typical camera preview size.
	PreviewFrame = ImageSize{640, 480}
)

// SymbolConfig describes a synthetic frame holding one barcode.
type SymbolConfig struct {
	Symbology barcode.Symbology
	Payload   string
	// Symbol is the size of the rendered barcode, Frame the size of the
	// white canvas it is placed on.
	Symbol ImageSize
	Frame  ImageSize
	// Offset is the symbol's top-left corner; a zero offset centres it.
	Offset image.Point
	// Rotation turns the finished frame clockwise by a multiple of 90 degrees,
	// as a sideways camera would deliver it.
	Rotation int
}

// DefaultSymbolConfig returns a centred symbol of the given kind on a small frame.
func DefaultSymbolConfig(sym barcode.Symbology, payload string) SymbolConfig {
	size := ImageSize{200, 200}
	if sym != barcode.QR {
		size = ImageSize{300, 80}
	}
	return SymbolConfig{Symbology: sym, Payload: payload, Symbol: size, Frame: SmallFrame}
}

// GenerateBarcodeFrame renders the configured barcode with gozxing's writers.
func GenerateBarcodeFrame(cfg SymbolConfig) (*image.NRGBA, error) {
	writer, format, err := symbolWriter(cfg.Symbology)
	if err != nil {
		return nil, err
	}
	sym, err := writer.Encode(cfg.Payload, format, cfg.Symbol.Width, cfg.Symbol.Height, nil)
	if err != nil {
		return nil, fmt.Errorf("encode %s %q: %w", cfg.Symbology, cfg.Payload, err)
	}

	sb := sym.Bounds()
	if sb.Dx() > cfg.Frame.Width || sb.Dy() > cfg.Frame.Height {
		return nil, fmt.Errorf("symbol %dx%d does not fit frame %dx%d", sb.Dx(), sb.Dy(), cfg.Frame.Width, cfg.Frame.Height)
	}
	at := cfg.Offset
	if at == (image.Point{}) {
		at = image.Pt((cfg.Frame.Width-sb.Dx())/2, (cfg.Frame.Height-sb.Dy())/2)
	}

	img := image.NewNRGBA(image.Rect(0, 0, cfg.Frame.Width, cfg.Frame.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(img, sb.Sub(sb.Min).Add(at), sym, sb.Min, draw.Src)

	switch ((cfg.Rotation % 360) + 360) % 360 {
	case 0:
		return img, nil
	case 90:
		return imaging.Rotate270(img), nil // imaging rotates counter-clockwise
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate90(img), nil
	}
	return nil, fmt.Errorf("rotation %d is not a multiple of 90", cfg.Rotation)
}

func symbolWriter(s barcode.Symbology) (gozxing.Writer, gozxing.BarcodeFormat, error) {
	switch s {
	case barcode.QR:
		return qrcode.NewQRCodeWriter(), gozxing.BarcodeFormat_QR_CODE, nil
	case barcode.Code128:
		return oned.NewCode128Writer(), gozxing.BarcodeFormat_CODE_128, nil
	case barcode.EAN13:
		return oned.NewEAN13Writer(), gozxing.BarcodeFormat_EAN_13, nil
	}
	return nil, 0, fmt.Errorf("no test writer for %s", s)
}

// BarcodeFrame is GenerateBarcodeFrame for tests.
func BarcodeFrame(t testing.TB, cfg SymbolConfig) *image.NRGBA {
	t.Helper()
	img, err := GenerateBarcodeFrame(cfg)
	require.NoError(t, err)
	return img
}

// BlankFrame returns a white frame without any barcode.
func BlankFrame(size ImageSize) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// EncodePNG returns img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePNG saves img as a PNG file, creating parent directories.
func WritePNG(img image.Image, path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// SaveImage is WritePNG for tests.
func SaveImage(t testing.TB, img image.Image, path string) {
	t.Helper()
	require.NoError(t, WritePNG(img, path))
}
