package detector

import (
	"cmp"
	"slices"

	"github.com/MeKo-Tech/matrixscan/internal/utils"
)

// Defaults used by the capture app.
const (
	DefaultTopN          = 10
	DefaultEpsilonFactor = 0.02
)

// CandidateRegion is a contour whose approximation is a quadrilateral.
type CandidateRegion struct {
	Corners     [4]utils.Point
	Area        float64 // area of the source contour
	FrameWidth  int
	FrameHeight int
}

// Bounds returns the axis-aligned box around the four corners.
func (r CandidateRegion) Bounds() utils.Box { return utils.BoundingBox(r.Corners[:]) }

// Selector ranks contours and keeps the quadrilateral ones.
type Selector struct {
	TopN          int     // contours considered, largest first
	EpsilonFactor float64 // approximation tolerance as a fraction of perimeter
}

// DefaultSelector returns a selector with DefaultTopN and DefaultEpsilonFactor.
func DefaultSelector() Selector {
	return Selector{TopN: DefaultTopN, EpsilonFactor: DefaultEpsilonFactor}
}

// SelectCandidates applies the default tolerance to the topN largest contours.
func SelectCandidates(contours []Contour, topN int) []CandidateRegion {
	return Selector{TopN: topN, EpsilonFactor: DefaultEpsilonFactor}.Select(contours)
}

// Select ranks contours by area (ties keep input order), approximates the
// largest TopN with a tolerance of EpsilonFactor times their perimeter and
// returns those that reduce to exactly four vertices enclosing a non-zero area.
func (s Selector) Select(contours []Contour) []CandidateRegion {
	if s.TopN <= 0 || len(contours) == 0 {
		return nil
	}

	type ranked struct {
		c    Contour
		area float64
	}
	rs := make([]ranked, len(contours))
	for i, c := range contours {
		rs[i] = ranked{c: c, area: c.Area()}
	}
	slices.SortStableFunc(rs, func(a, b ranked) int { return cmp.Compare(b.area, a.area) })
	if len(rs) > s.TopN {
		rs = rs[:s.TopN]
	}

	var out []CandidateRegion
	for _, r := range rs {
		approx := utils.ApproxPolygon(r.c.Points, s.EpsilonFactor*r.c.Perimeter())
		if len(approx) != 4 || utils.PolygonArea(approx) == 0 {
			continue
		}
		region := CandidateRegion{Area: r.area, FrameWidth: r.c.FrameWidth, FrameHeight: r.c.FrameHeight}
		copy(region.Corners[:], approx)
		out = append(out, region)
	}
	return out
}
