package preprocess

import "image"

// Normalize stretches intensities linearly so the darkest pixel becomes 0
// and the brightest 255. A frame with a single intensity is returned as an
// unchanged copy.
func Normalize(src *image.Gray) (*image.Gray, error) {
	if src == nil {
		return nil, ValidateFrame(nil)
	}
	if err := ValidateFrame(src); err != nil {
		return nil, err
	}
	dst := cloneGray(src)
	w, h := dst.Rect.Dx(), dst.Rect.Dy()

	lo, hi := uint8(255), uint8(0)
	for y := range h {
		for _, v := range dst.Pix[y*dst.Stride : y*dst.Stride+w] {
			lo = min(lo, v)
			hi = max(hi, v)
		}
	}
	if lo == hi {
		return dst, nil
	}

	var lut [256]uint8
	span := float32(hi - lo)
	for v := int(lo); v <= int(hi); v++ {
		lut[v] = clampByte(float32(v-int(lo)) * 255 / span)
	}
	for y := range h {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x, v := range row {
			row[x] = lut[v]
		}
	}
	return dst, nil
}
