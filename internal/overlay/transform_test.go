package overlay

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/matrixscan/internal/utils"
)

func assertPoint(t *testing.T, want, got utils.Point) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-6, "x of %v", got)
	assert.InDelta(t, want.Y, got.Y, 1e-6, "y of %v", got)
}

func TestNewTransform_Rotations(t *testing.T) {
	// 40x20 image shown 1:1 after rotation.
	tests := []struct {
		rot      int
		mirrored bool
		dispW    int
		dispH    int
		in, want utils.Point
	}{
		{0, false, 40, 20, utils.Pt(10, 5), utils.Pt(10, 5)},
		{90, false, 20, 40, utils.Pt(10, 5), utils.Pt(15, 10)},
		{180, false, 40, 20, utils.Pt(10, 5), utils.Pt(30, 15)},
		{270, false, 20, 40, utils.Pt(10, 5), utils.Pt(5, 30)},
		{0, true, 40, 20, utils.Pt(10, 5), utils.Pt(30, 5)},
		{90, true, 20, 40, utils.Pt(10, 5), utils.Pt(5, 10)},
		{-90, false, 20, 40, utils.Pt(10, 5), utils.Pt(5, 30)},
		{0, false, 80, 10, utils.Pt(10, 5), utils.Pt(20, 2.5)},
	}
	for _, tt := range tests {
		tr, err := NewTransform(Geometry{
			ImageWidth: 40, ImageHeight: 20,
			DisplayWidth: tt.dispW, DisplayHeight: tt.dispH,
			Rotation: tt.rot, Mirrored: tt.mirrored,
		})
		require.NoError(t, err)
		assertPoint(t, tt.want, tr.Apply(tt.in))
	}
}

// Fixed 1080x1920 source on a 1920x1080 display while the device turns
// from 0 to 90 degrees.
func TestMapper_RotationChangeMidSession(t *testing.T) {
	m := NewMapper()
	m.SetDisplay(1920, 1080, false)
	det := detection(1080, 1920, 0)

	s, err := m.Map(det)
	require.NoError(t, err)
	assert.InDelta(t, 0, s.Box.MinX, 1e-6)
	assert.InDelta(t, 0, s.Box.MinY, 1e-6)
	assert.InDelta(t, 100*1920.0/1080.0, s.Box.MaxX, 1e-6)
	assert.InDelta(t, 100*1080.0/1920.0, s.Box.MaxY, 1e-6)

	det.Rotation = 90
	s, err = m.Map(det)
	require.NoError(t, err)
	assert.Equal(t, utils.Box{MinX: 1820, MinY: 0, MaxX: 1920, MaxY: 100}, roundBox(s.Box))
	require.Len(t, s.Corners, 4)
	assertPoint(t, utils.Pt(1920, 0), s.Corners[0])   // image (0,0)
	assertPoint(t, utils.Pt(1920, 100), s.Corners[1]) // image (100,0)
	assertPoint(t, utils.Pt(1820, 100), s.Corners[2]) // image (100,100)
	assertPoint(t, utils.Pt(1820, 0), s.Corners[3])   // image (0,100)

	det.Rotation = 180
	s, err = m.Map(det)
	require.NoError(t, err)
	assert.InDelta(t, 980*1920.0/1080.0, s.Box.MinX, 1e-6)
	assert.InDelta(t, 1820*1080.0/1920.0, s.Box.MinY, 1e-6)
	assert.InDelta(t, 1920, s.Box.MaxX, 1e-6)
	assert.InDelta(t, 1080, s.Box.MaxY, 1e-6)

	m.SetDisplay(1920, 1080, true)
	det.Rotation = 90
	s, err = m.Map(det)
	require.NoError(t, err)
	assert.Equal(t, utils.Box{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}, roundBox(s.Box))
}

func roundBox(b utils.Box) utils.Box {
	r := func(v float64) float64 { return math.Round(v*1e6) / 1e6 }
	return utils.Box{MinX: r(b.MinX), MinY: r(b.MinY), MaxX: r(b.MaxX), MaxY: r(b.MaxY)}
}

func TestGeometry_Validate(t *testing.T) {
	ok := Geometry{ImageWidth: 10, ImageHeight: 10, DisplayWidth: 10, DisplayHeight: 10}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.Rotation = 45
	require.ErrorIs(t, bad.Validate(), ErrInvalidGeometry)

	bad = ok
	bad.ImageWidth = 0
	require.ErrorIs(t, bad.Validate(), ErrInvalidGeometry)

	bad = ok
	bad.DisplayHeight = 0
	require.ErrorIs(t, bad.Validate(), ErrDisplayUnavailable)

	assert.Equal(t, 270, NormalizeRotation(-90))
	assert.Equal(t, 90, NormalizeRotation(450))
	assert.Equal(t, 45, NormalizeRotation(45))
}

func TestTransform_Inverse(t *testing.T) {
	_, err := Transform{A: 1, B: 2, D: 2, E: 4}.Inverse()
	require.ErrorIs(t, err, ErrInvalidGeometry)

	tr := Transform{A: 2, B: 1, C: 3, D: -1, E: 0.5, F: 7}
	inv, err := tr.Inverse()
	require.NoError(t, err)
	assertPoint(t, utils.Pt(4, -2), inv.Apply(tr.Apply(utils.Pt(4, -2))))
	id := tr.Then(inv)
	assert.InDelta(t, 1, id.A, 1e-12)
	assert.InDelta(t, 0, id.C, 1e-12)
	assert.Nil(t, tr.ApplyAll(nil))
}

// TestTransform_RoundTrip maps points out and back for every rotation
// and mirroring.
func TestTransform_RoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("inverse mapping restores image coordinates", prop.ForAll(
		func(rot int, mirrored bool, iw, ih, dw, dh int, fx, fy float64) bool {
			g := Geometry{ImageWidth: iw, ImageHeight: ih, DisplayWidth: dw, DisplayHeight: dh, Rotation: rot, Mirrored: mirrored}
			in := []utils.Point{utils.Pt(fx*float64(iw), fy*float64(ih)), utils.Pt(0, 0), utils.Pt(float64(iw), float64(ih))}
			tr, err := NewTransform(g)
			if err != nil {
				return false
			}
			inv, err := tr.Inverse()
			if err != nil {
				return false
			}
			back := inv.ApplyAll(tr.ApplyAll(in))
			for i := range in {
				if math.Abs(in[i].X-back[i].X) > 1e-6 || math.Abs(in[i].Y-back[i].Y) > 1e-6 {
					return false
				}
			}
			return true
		},
		gen.OneConstOf(0, 90, 180, 270),
		gen.Bool(),
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.Property("mapped image corners land on display corners", prop.ForAll(
		func(rot int, mirrored bool, iw, ih int) bool {
			g := Geometry{ImageWidth: iw, ImageHeight: ih, DisplayWidth: 640, DisplayHeight: 480, Rotation: rot, Mirrored: mirrored}
			tr, err := NewTransform(g)
			if err != nil {
				return false
			}
			b := tr.ApplyBox(utils.Box{MaxX: float64(iw), MaxY: float64(ih)})
			return math.Abs(b.MinX) < 1e-6 && math.Abs(b.MinY) < 1e-6 &&
				math.Abs(b.MaxX-640) < 1e-6 && math.Abs(b.MaxY-480) < 1e-6
		},
		gen.OneConstOf(0, 90, 180, 270),
		gen.Bool(),
		gen.IntRange(1, 4000),
		gen.IntRange(1, 4000),
	))

	properties.TestingRun(t)
}
