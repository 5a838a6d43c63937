package overlay

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// Preview renders src as the display would show it: rotated upright,
// mirrored if requested and resized to the display.
func Preview(src image.Image, g Geometry) (*image.NRGBA, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	var img *image.NRGBA
	switch NormalizeRotation(g.Rotation) {
	case 90:
		img = imaging.Rotate270(src) // imaging rotates counter-clockwise
	case 180:
		img = imaging.Rotate180(src)
	case 270:
		img = imaging.Rotate90(src)
	default:
		img = imaging.Clone(src)
	}
	if g.Mirrored {
		img = imaging.FlipH(img)
	}
	return imaging.Resize(img, g.DisplayWidth, g.DisplayHeight, imaging.Linear), nil
}

// Compose draws the renderer's current shapes over the preview of src.
func Compose(src image.Image, g Geometry, r *Renderer, style Style) (*image.RGBA, error) {
	bg, err := Preview(src, g)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(bg.Bounds())
	draw.Draw(dst, dst.Bounds(), bg, bg.Bounds().Min, draw.Src)
	r.Draw(dst, style)
	return dst, nil
}
