package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/matrixscan/internal/utils"
)

// ErrNoResult is returned by a Decoder that found nothing in the image.
var ErrNoResult = errors.New("barcode: no result")

// Symbology is a barcode encoding standard.
type Symbology int

const (
	SymbologyUnknown Symbology = iota
	Code128
	EAN13
	QR
	Code39
	Code93
	EAN8
	Aztec
)

var symbologyNames = map[Symbology]string{
	SymbologyUnknown: "UNKNOWN",
	Code128:          "CODE_128",
	EAN13:            "EAN_13",
	QR:               "QR",
	Code39:           "CODE_39",
	Code93:           "CODE_93",
	EAN8:             "EAN_8",
	Aztec:            "AZTEC",
}

// AllSymbologies lists every known symbology except SymbologyUnknown.
func AllSymbologies() []Symbology {
	return []Symbology{Code128, EAN13, QR, Code39, Code93, EAN8, Aztec}
}

func (s Symbology) String() string {
	if n, ok := symbologyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Symbology(%d)", int(s))
}

// ParseSymbology accepts the canonical names ("EAN_13") case-insensitively,
// with '-' or ' ' in place of '_'. "QR_CODE" is accepted as QR.
func ParseSymbology(s string) (Symbology, error) {
	norm := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s)))
	if norm == "QR_CODE" {
		return QR, nil
	}
	for sym, name := range symbologyNames {
		if name == norm {
			return sym, nil
		}
	}
	return SymbologyUnknown, fmt.Errorf("barcode: unknown symbology %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Symbology) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Symbology) UnmarshalText(b []byte) error {
	v, err := ParseSymbology(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// RawDetection is one decoder output.
type RawDetection struct {
	Symbology Symbology
	Payload   *string // nil when the decoder produced no text
	// BBox is the axis-aligned box in source image pixels.
	BBox    image.Rectangle
	Corners []utils.Point
	// SourceWidth and SourceHeight are the dimensions of the decoded image.
	SourceWidth  int
	SourceHeight int
	// Rotation is the clockwise rotation, in degrees, that makes the source
	// image upright on the display.
	Rotation int
}

// Text returns a payload pointer for s.
func Text(s string) *string { return &s }

// HasPayload reports whether the detection carries text.
func (d RawDetection) HasPayload() bool { return d.Payload != nil }

// PayloadString returns the payload or "" when absent.
func (d RawDetection) PayloadString() string {
	if d.Payload == nil {
		return ""
	}
	return *d.Payload
}

// Translate returns a copy moved by (dx, dy) and re-based onto a source
// image of the given size. Used to lift crop detections into frame space.
func (d RawDetection) Translate(dx, dy, sourceW, sourceH int) RawDetection {
	out := d
	out.BBox = d.BBox.Add(image.Pt(dx, dy))
	out.Corners = utils.OffsetPoints(d.Corners, float64(dx), float64(dy))
	out.SourceWidth, out.SourceHeight = sourceW, sourceH
	return out
}

// Options controls decoding behaviour.
type Options struct {
	// Symbologies restricts the search; empty means all.
	Symbologies []Symbology
	// TryHarder spends more time per image for better recall.
	TryHarder bool
}

// Decoder is the barcode decoding collaborator. Implementations must honour
// ctx cancellation and return ErrNoResult (possibly wrapped) when nothing
// was found.
type Decoder interface {
	Decode(ctx context.Context, img image.Image) ([]RawDetection, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(ctx context.Context, img image.Image) ([]RawDetection, error)

// Decode calls f(ctx, img).
func (f DecoderFunc) Decode(ctx context.Context, img image.Image) ([]RawDetection, error) {
	return f(ctx, img)
}
