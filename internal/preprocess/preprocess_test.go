package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grayFrom(w, h int, f func(x, y int) uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			g.SetGray(x, y, color.Gray{Y: f(x, y)})
		}
	}
	return g
}

func TestToGrayscale(t *testing.T) {
	t.Run("rgba weights", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 3, 1))
		img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
		img.SetRGBA(1, 0, color.RGBA{G: 255, A: 255})
		img.SetRGBA(2, 0, color.RGBA{R: 90, G: 90, B: 90, A: 255})
		g, err := ToGrayscale(img)
		require.NoError(t, err)
		assert.Equal(t, uint8(76), g.GrayAt(0, 0).Y)
		assert.Equal(t, uint8(150), g.GrayAt(1, 0).Y)
		assert.Equal(t, uint8(90), g.GrayAt(2, 0).Y)
	})

	t.Run("nrgba goes through clone path", func(t *testing.T) {
		img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
		img.SetNRGBA(1, 1, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
		g, err := ToGrayscale(img)
		require.NoError(t, err)
		assert.Equal(t, uint8(200), g.GrayAt(1, 1).Y)
		assert.Equal(t, uint8(0), g.GrayAt(0, 0).Y)
	})

	t.Run("sub image is rebased", func(t *testing.T) {
		src := grayFrom(10, 10, func(x, y int) uint8 { return uint8(x*10 + y) })
		sub := src.SubImage(image.Rect(4, 5, 8, 9))
		g, err := ToGrayscale(sub)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 4, 4), g.Bounds())
		assert.Equal(t, uint8(45), g.GrayAt(0, 0).Y)
	})

	t.Run("invalid frames", func(t *testing.T) {
		_, err := ToGrayscale(nil)
		require.ErrorIs(t, err, ErrInvalidFrame)
		_, err = ToGrayscale(image.NewRGBA(image.Rect(0, 0, 0, 5)))
		require.ErrorIs(t, err, ErrInvalidFrame)
	})
}

func TestBlur(t *testing.T) {
	src := grayFrom(9, 9, func(x, y int) uint8 {
		if x == 4 && y == 4 {
			return 255
		}
		return 0
	})

	t.Run("impulse spreads symmetrically", func(t *testing.T) {
		out, err := Blur(src, 3, 1.5)
		require.NoError(t, err)
		c := out.GrayAt(4, 4).Y
		assert.Less(t, c, uint8(255))
		assert.Positive(t, c)
		assert.Equal(t, out.GrayAt(3, 4), out.GrayAt(5, 4))
		assert.Equal(t, out.GrayAt(4, 3), out.GrayAt(4, 5))
		assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)
		// source untouched
		assert.Equal(t, uint8(255), src.GrayAt(4, 4).Y)
	})

	t.Run("kernel one copies", func(t *testing.T) {
		out, err := Blur(src, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, src.Pix, out.Pix)
	})

	t.Run("sigma zero derives from kernel", func(t *testing.T) {
		out, err := Blur(src, 5, 0)
		require.NoError(t, err)
		assert.Positive(t, out.GrayAt(2, 4).Y)
	})

	for _, k := range []int{0, -3, 2, 4} {
		_, err := Blur(src, k, 1)
		require.ErrorIs(t, err, ErrInvalidConfig, "kernel %d", k)
	}
	_, err := Blur(src, 3, -1)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = Blur(nil, 3, 1)
	require.ErrorIs(t, err, ErrInvalidFrame)
}

func TestReflect101(t *testing.T) {
	tests := []struct{ i, n, want int }{
		{-1, 5, 1},
		{-2, 5, 2},
		{5, 5, 3},
		{6, 5, 2},
		{3, 5, 3},
		{-4, 2, 0},
		{7, 1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reflect101(tt.i, tt.n), "reflect101(%d, %d)", tt.i, tt.n)
	}
}

func TestDetectEdges_VerticalStep(t *testing.T) {
	src := grayFrom(20, 20, func(x, _ int) uint8 {
		if x < 10 {
			return 0
		}
		return 255
	})
	edges, err := DetectEdges(src, 50, 150)
	require.NoError(t, err)
	assert.Equal(t, 20, edges.Width())
	assert.Equal(t, 20, edges.Height())

	for y := range 20 {
		assert.True(t, edges.IsEdge(9, y), "row %d", y)
		for x := range 20 {
			if x != 9 {
				assert.False(t, edges.IsEdge(x, y), "(%d,%d)", x, y)
			}
		}
	}
	assert.Equal(t, 20, edges.Count())
}

func TestDetectEdges_UniformHasNoEdges(t *testing.T) {
	src := grayFrom(16, 12, func(int, int) uint8 { return 128 })
	edges, err := DetectEdges(src, 10, 20)
	require.NoError(t, err)
	assert.Zero(t, edges.Count())
}

func TestHysteresis(t *testing.T) {
	const w, h = 6, 6
	class := make([]uint8, w*h)
	class[0] = strongEdge
	class[1*w+1] = weakEdge
	class[2*w+2] = weakEdge
	class[4*w+4] = weakEdge // separated by (3,3)

	edges := hysteresis(class, w, h)
	assert.True(t, edges.IsEdge(0, 0))
	assert.True(t, edges.IsEdge(1, 1))
	assert.True(t, edges.IsEdge(2, 2))
	assert.False(t, edges.IsEdge(4, 4))
	assert.Equal(t, 3, edges.Count())
}

func TestDetectEdges_WeakOnlyStepIsDropped(t *testing.T) {
	// Sobel response 4*20 = 80 sits between the thresholds with no strong seed.
	faint := grayFrom(20, 20, func(x, _ int) uint8 {
		if x < 10 {
			return 0
		}
		return 20
	})
	edges, err := DetectEdges(faint, 50, 150)
	require.NoError(t, err)
	assert.Zero(t, edges.Count())

	edges, err = DetectEdges(faint, 50, 70)
	require.NoError(t, err)
	assert.Equal(t, 20, edges.Count())
}

func TestDetectEdges_RejectsThresholds(t *testing.T) {
	src := grayFrom(4, 4, func(int, int) uint8 { return 0 })
	for _, tc := range [][2]float64{{150, 50}, {100, 100}, {-1, 10}} {
		_, err := DetectEdges(src, tc[0], tc[1])
		require.ErrorIs(t, err, ErrInvalidConfig, "low=%v high=%v", tc[0], tc[1])
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "canny", cfgErr.Operation)
	}
	_, err := DetectEdges(nil, 1, 2)
	require.ErrorIs(t, err, ErrInvalidFrame)
}

func TestNormalize(t *testing.T) {
	src := grayFrom(3, 1, func(x, _ int) uint8 { return uint8(50 + 50*x) })
	out, err := Normalize(src)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 128, 255}, out.Pix)
	assert.Equal(t, []uint8{50, 100, 150}, src.Pix)

	flat := grayFrom(4, 4, func(int, int) uint8 { return 77 })
	out, err = Normalize(flat)
	require.NoError(t, err)
	assert.Equal(t, flat.Pix, out.Pix)
	assert.NotSame(t, flat, out)
}

func morph(e *EdgeMap, op MorphOp, size int) (*EdgeMap, error) {
	return ApplyMorphology(e, MorphConfig{Operation: op, KernelSize: size, Iterations: 1})
}

func TestMorphology(t *testing.T) {
	single := NewEdgeMap(5, 5)
	single.Set(2, 2)

	t.Run("dilate grows a 3x3 block", func(t *testing.T) {
		out, err := morph(single, MorphDilate, 3)
		require.NoError(t, err)
		assert.Equal(t, 9, out.Count())
		assert.True(t, out.IsEdge(1, 1))
		assert.True(t, out.IsEdge(3, 3))
		assert.False(t, out.IsEdge(0, 0))
		assert.Equal(t, 1, single.Count())
	})

	t.Run("erode removes an isolated pixel", func(t *testing.T) {
		out, err := morph(single, MorphErode, 3)
		require.NoError(t, err)
		assert.Zero(t, out.Count())
	})

	t.Run("close bridges a one pixel gap", func(t *testing.T) {
		gap := NewEdgeMap(7, 5)
		gap.Set(1, 2)
		gap.Set(3, 2)
		out, err := morph(gap, MorphClose, 3)
		require.NoError(t, err)
		assert.True(t, out.IsEdge(2, 2))
		assert.False(t, out.IsEdge(0, 0))
	})

	t.Run("even kernel anchors at size/2", func(t *testing.T) {
		out, err := morph(single, MorphDilate, 2)
		require.NoError(t, err)
		assert.Equal(t, 4, out.Count())
		assert.True(t, out.IsEdge(3, 3))
		assert.False(t, out.IsEdge(1, 1))
	})

	_, err := morph(single, MorphDilate, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = ApplyMorphology(single, MorphConfig{Operation: MorphDilate, KernelSize: 3})
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = morph(nil, MorphDilate, 3)
	require.ErrorIs(t, err, ErrInvalidFrame)
}

func TestParseMorphOp(t *testing.T) {
	for _, op := range []MorphOp{MorphNone, MorphDilate, MorphErode, MorphOpen, MorphClose} {
		got, err := ParseMorphOp(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, got)
	}
	_, err := ParseMorphOp("smooth")
	require.ErrorIs(t, err, ErrInvalidConfig)
}
