package cmd

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
)

const (
	eanPayload = "4006381333931"
	qrPayload  = "https://example.com/item/42"
	c39Payload = "PART-0042"
)

// stubDecoder recognises frames by their width: 64 px wide frames carry an
// EAN-13, 80 px a QR code, 96 px a Code 39 and anything else nothing.
func stubDecoder(barcode.Options) (barcode.Decoder, error) {
	return barcode.DecoderFunc(func(_ context.Context, img image.Image) ([]barcode.RawDetection, error) {
		det := barcode.RawDetection{BBox: image.Rect(8, 8, 40, 24)}
		switch img.Bounds().Dx() {
		case 64:
			det.Symbology, det.Payload = barcode.EAN13, barcode.Text(eanPayload)
		case 80:
			det.Symbology, det.Payload = barcode.QR, barcode.Text(qrPayload)
		case 96:
			det.Symbology, det.Payload = barcode.Code39, barcode.Text(c39Payload)
		default:
			return nil, barcode.ErrNoResult
		}
		return []barcode.RawDetection{det}, nil
	}), nil
}

func useStubDecoder(t *testing.T) {
	t.Helper()
	old := newDecoder
	newDecoder = stubDecoder
	t.Cleanup(func() { newDecoder = old })
}

// writeFrame writes a white w x h PNG into dir.
func writeFrame(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

// executeCommand runs the root command with args and returns its output.
// Flags are reset afterwards so runs do not influence each other.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
