package preprocess

import (
	"image"

	"github.com/disintegration/imaging"
)

// Luma weights in 1/65536 units (ITU-R BT.601). They sum to 65536, so a pixel
// whose three channels are equal keeps its value exactly.
const (
	lumaR = 19595
	lumaG = 38470
	lumaB = 7471
)

func luma(r, g, b uint8) uint8 {
	return uint8((lumaR*uint32(r) + lumaG*uint32(g) + lumaB*uint32(b) + 1<<15) >> 16)
}

// ToGrayscale converts a frame to single-channel luminance with fixed BT.601
// weights. The output has the input's dimensions and starts at the origin.
// Converting an already gray frame yields an identical copy.
func ToGrayscale(img image.Image) (*image.Gray, error) {
	if err := ValidateFrame(img); err != nil {
		return nil, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	switch src := img.(type) {
	case *image.Gray:
		for y := range h {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return dst, nil
	case *image.RGBA:
		for y := range h {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := range w {
				i := x * 4
				dst.Pix[y*dst.Stride+x] = luma(row[i], row[i+1], row[i+2])
			}
		}
		return dst, nil
	}

	// Everything else goes through NRGBA so YCbCr, paletted and 16-bit
	// frames share one conversion path.
	nrgba := imaging.Clone(img)
	for y := range h {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range w {
			i := x * 4
			dst.Pix[y*dst.Stride+x] = luma(row[i], row[i+1], row[i+2])
		}
	}
	return dst, nil
}

// cloneGray returns a copy of src re-based at the origin.
func cloneGray(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return dst
}
