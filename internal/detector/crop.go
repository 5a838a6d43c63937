package detector

import (
	"image"

	"github.com/disintegration/imaging"
)

// Crop is a padded candidate region cut out of a frame.
type Crop struct {
	Region CandidateRegion
	Image  *image.NRGBA
	// Offset is the crop's top-left corner in frame coordinates.
	Offset image.Point
}

// CropCandidates cuts each region's bounding box, grown by padding on every
// side and clamped to the frame, out of img. Regions that clamp to nothing
// are skipped.
func CropCandidates(img image.Image, regions []CandidateRegion, padding float64) []Crop {
	if img == nil || len(regions) == 0 {
		return nil
	}
	b := img.Bounds()
	frame := image.Rect(0, 0, b.Dx(), b.Dy())
	out := make([]Crop, 0, len(regions))
	for _, r := range regions {
		rect := r.Bounds().Pad(padding).ToRect(frame)
		if rect.Empty() {
			continue
		}
		out = append(out, Crop{
			Region: r,
			Image:  imaging.Crop(img, rect.Add(b.Min)),
			Offset: rect.Min,
		})
	}
	return out
}
