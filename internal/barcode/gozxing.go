package barcode

import (
	"context"
	"fmt"
	"image"
	"math"
	"slices"
	"sync"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
	"github.com/makiuchi-d/gozxing/multi"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/MeKo-Tech/matrixscan/internal/utils"
)

type symbolReader struct {
	sym    Symbology
	reader gozxing.Reader
}

// zxingDecoder runs one gozxing reader per enabled symbology over the image
// and reports every symbol each reader finds. Readers keep internal state,
// so calls are serialised.
type zxingDecoder struct {
	mu      sync.Mutex
	readers []symbolReader
	multiQR multi.MultipleBarcodeReader
	hints   map[gozxing.DecodeHintType]interface{}
}

// NewDecoder returns the gozxing-backed Decoder.
func NewDecoder(opts Options) (Decoder, error) {
	syms := opts.Symbologies
	if len(syms) == 0 {
		syms = AllSymbologies()
	}
	d := &zxingDecoder{
		multiQR: multiqr.NewQRCodeMultiReader(),
		hints:   map[gozxing.DecodeHintType]interface{}{},
	}
	if opts.TryHarder {
		d.hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	// 2D symbols first: they carry their own corner geometry.
	order := []Symbology{QR, Aztec, Code128, EAN13, EAN8, Code39, Code93}
	for _, s := range order {
		if !slices.Contains(syms, s) {
			continue
		}
		d.readers = append(d.readers, symbolReader{sym: s, reader: newReader(s)})
	}
	for _, s := range syms {
		if !slices.Contains(order, s) {
			return nil, fmt.Errorf("barcode: symbology %s has no decoder", s)
		}
	}
	return d, nil
}

func newReader(s Symbology) gozxing.Reader {
	switch s {
	case QR:
		return qrcode.NewQRCodeReader()
	case Aztec:
		return aztec.NewAztecReader()
	case Code128:
		return oned.NewCode128Reader()
	case EAN13:
		return oned.NewEAN13Reader()
	case EAN8:
		return oned.NewEAN8Reader()
	case Code39:
		return oned.NewCode39Reader()
	case Code93:
		return oned.NewCode93Reader()
	}
	return nil
}

func (d *zxingDecoder) Decode(ctx context.Context, img image.Image) ([]RawDetection, error) {
	if img == nil {
		return nil, fmt.Errorf("barcode: nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("barcode: empty image %v", b)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("barcode: binarize: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var out []RawDetection
	for _, sr := range d.readers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var found []located
		if sr.sym == QR {
			found = d.decodeMultiQR(bmp)
		}
		found = d.decodeRegions(ctx, sr.reader, bmp, image.Point{}, 0, found)
		for _, f := range found {
			out = append(out, toDetection(f.res, mapFormat(f.res.GetBarcodeFormat(), sr.sym), b, f.offset))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoResult
	}
	return out, nil
}

const (
	// Regions narrower or shorter than this are not searched again.
	minRegionSize  = 100
	maxRegionDepth = 4
)

// located is a reader result together with the offset of the region it
// was found in.
type located struct {
	res    *gozxing.Result
	offset image.Point
}

func containsText(found []located, text string) bool {
	for _, f := range found {
		if f.res.GetText() == text {
			return true
		}
	}
	return false
}

// decodeMultiQR runs the multi-symbol QR detector over the whole bitmap.
func (d *zxingDecoder) decodeMultiQR(bmp *gozxing.BinaryBitmap) []located {
	results, err := d.multiQR.DecodeMultiple(bmp, d.hints)
	if err != nil {
		return nil
	}
	var found []located
	for _, r := range results {
		if r != nil && !containsText(found, r.GetText()) {
			found = append(found, located{res: r})
		}
	}
	return found
}

// decodeRegions decodes bmp and, after each hit, searches the regions left,
// above, right and below the symbol for further symbols of the same kind.
func (d *zxingDecoder) decodeRegions(ctx context.Context, reader gozxing.Reader, bmp *gozxing.BinaryBitmap, offset image.Point, depth int, found []located) []located {
	if depth > maxRegionDepth || ctx.Err() != nil {
		return found
	}
	res, err := reader.Decode(bmp, d.hints)
	reader.Reset()
	if err != nil || res == nil {
		return found
	}
	if !containsText(found, res.GetText()) {
		found = append(found, located{res: res, offset: offset})
	}

	w, h := bmp.GetWidth(), bmp.GetHeight()
	minX, minY := float64(w), float64(h)
	maxX, maxY := 0.0, 0.0
	points := 0
	for _, p := range res.GetResultPoints() {
		if p == nil {
			continue
		}
		points++
		minX = math.Min(minX, p.GetX())
		minY = math.Min(minY, p.GetY())
		maxX = math.Max(maxX, p.GetX())
		maxY = math.Max(maxY, p.GetY())
	}
	if points == 0 || !bmp.IsCropSupported() {
		return found
	}

	regions := make([]image.Rectangle, 0, 4)
	if minX > minRegionSize {
		regions = append(regions, image.Rect(0, 0, int(minX), h))
	}
	if minY > minRegionSize {
		regions = append(regions, image.Rect(0, 0, w, int(minY)))
	}
	if maxX < float64(w-minRegionSize) {
		regions = append(regions, image.Rect(int(maxX), 0, w, h))
	}
	if maxY < float64(h-minRegionSize) {
		regions = append(regions, image.Rect(0, int(maxY), w, h))
	}
	for _, r := range regions {
		sub, err := bmp.Crop(r.Min.X, r.Min.Y, r.Dx(), r.Dy())
		if err != nil {
			continue
		}
		found = d.decodeRegions(ctx, reader, sub, offset.Add(r.Min), depth+1, found)
	}
	return found
}

func mapFormat(f gozxing.BarcodeFormat, fallback Symbology) Symbology {
	switch f {
	case gozxing.BarcodeFormat_QR_CODE:
		return QR
	case gozxing.BarcodeFormat_AZTEC:
		return Aztec
	case gozxing.BarcodeFormat_CODE_128:
		return Code128
	case gozxing.BarcodeFormat_EAN_13:
		return EAN13
	case gozxing.BarcodeFormat_EAN_8:
		return EAN8
	case gozxing.BarcodeFormat_CODE_39:
		return Code39
	case gozxing.BarcodeFormat_CODE_93:
		return Code93
	}
	return fallback
}

func toDetection(r *gozxing.Result, sym Symbology, bounds image.Rectangle, offset image.Point) RawDetection {
	det := RawDetection{
		Symbology:    sym,
		SourceWidth:  bounds.Dx(),
		SourceHeight: bounds.Dy(),
	}
	if text := r.GetText(); text != "" {
		det.Payload = Text(text)
	}
	for _, p := range r.GetResultPoints() {
		if p == nil {
			continue
		}
		det.Corners = append(det.Corners, utils.Pt(p.GetX()+float64(offset.X), p.GetY()+float64(offset.Y)))
	}
	det.BBox = rectFromPoints(det.Corners)
	return det
}

// rectFromPoints returns the pixel rectangle covering pts, or the zero
// rectangle when there are none.
func rectFromPoints(pts []utils.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	box := utils.BoundingBox(pts)
	return image.Rect(
		int(math.Floor(box.MinX)), int(math.Floor(box.MinY)),
		int(math.Floor(box.MaxX))+1, int(math.Floor(box.MaxY))+1,
	)
}
