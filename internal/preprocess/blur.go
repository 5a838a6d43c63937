package preprocess

import (
	"image"
	"math"

	"github.com/MeKo-Tech/matrixscan/internal/mempool"
)

// Blur applies a Gaussian blur with a square kernel. kernelSize must be odd
// and positive. A sigma of zero derives the deviation from the kernel size as
// 0.3*((k-1)*0.5-1)+0.8; negative sigmas are rejected. Borders reflect
// without repeating the edge pixel.
func Blur(src *image.Gray, kernelSize int, sigma float64) (*image.Gray, error) {
	if kernelSize < 1 || kernelSize%2 == 0 {
		return nil, configErrorf("blur", "kernel size %d must be odd and positive", kernelSize)
	}
	if sigma < 0 || math.IsNaN(sigma) {
		return nil, configErrorf("blur", "sigma %v must not be negative", sigma)
	}
	if src == nil {
		return nil, ValidateFrame(nil)
	}
	if err := ValidateFrame(src); err != nil {
		return nil, err
	}
	gray := cloneGray(src)
	if kernelSize == 1 {
		return gray, nil
	}

	kernel := gaussianKernel(kernelSize, sigma)
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	half := kernelSize / 2

	tmp := mempool.GetFloat32(w * h)
	defer mempool.PutFloat32(tmp)

	for y := range h {
		row := gray.Pix[y*gray.Stride:]
		for x := range w {
			var acc float32
			for k, kw := range kernel {
				acc += kw * float32(row[reflect101(x+k-half, w)])
			}
			tmp[y*w+x] = acc
		}
	}

	dst := image.NewGray(gray.Rect)
	for y := range h {
		for x := range w {
			var acc float32
			for k, kw := range kernel {
				acc += kw * tmp[reflect101(y+k-half, h)*w+x]
			}
			dst.Pix[y*dst.Stride+x] = clampByte(acc)
		}
	}
	return dst, nil
}

func gaussianKernel(size int, sigma float64) []float32 {
	if sigma == 0 {
		sigma = 0.3*((float64(size)-1)*0.5-1) + 0.8
	}
	half := size / 2
	weights := make([]float64, size)
	sum := 0.0
	for i := range weights {
		d := float64(i - half)
		weights[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += weights[i]
	}
	kernel := make([]float32, size)
	for i, v := range weights {
		kernel[i] = float32(v / sum)
	}
	return kernel
}

// reflect101 maps an out-of-range index back into [0, n) by mirroring about
// the edge pixel (…2 1 | 0 1 2 … n-2 n-1 | n-2 …).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

func clampByte(v float32) uint8 {
	r := math.Round(float64(v))
	switch {
	case r < 0:
		return 0
	case r > 255:
		return 255
	}
	return uint8(r)
}
