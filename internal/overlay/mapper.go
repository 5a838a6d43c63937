package overlay

import (
	"sync"

	"github.com/MeKo-Tech/matrixscan/internal/barcode"
	"github.com/MeKo-Tech/matrixscan/internal/utils"
)

// Shape is one detection drawn in display pixels for the current frame.
type Shape struct {
	Symbology barcode.Symbology `json:"symbology"`
	Box       utils.Box         `json:"box"`
	Corners   []utils.Point     `json:"corners,omitempty"`
	Label     string            `json:"label,omitempty"`
}

// Mapper maps detections onto a display whose size is learnt at runtime.
// It is safe for concurrent use.
type Mapper struct {
	mu       sync.RWMutex
	width    int
	height   int
	mirrored bool
}

// NewMapper returns a mapper with no display size yet.
func NewMapper() *Mapper { return &Mapper{} }

// SetDisplay records the display size and mirroring. Non-positive sizes
// mark the display as unavailable again.
func (m *Mapper) SetDisplay(width, height int, mirrored bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.width, m.height, m.mirrored = width, height, mirrored
}

// SetMirrored switches horizontal mirroring without touching the size.
func (m *Mapper) SetMirrored(mirrored bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mirrored = mirrored
}

// Geometry returns the geometry used for det on the current display.
func (m *Mapper) Geometry(det barcode.RawDetection) Geometry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Geometry{
		ImageWidth:    det.SourceWidth,
		ImageHeight:   det.SourceHeight,
		DisplayWidth:  m.width,
		DisplayHeight: m.height,
		Rotation:      det.Rotation,
		Mirrored:      m.mirrored,
	}
}

// Map converts one detection into a display-space shape. It returns
// ErrDisplayUnavailable until SetDisplay has been given a usable size.
func (m *Mapper) Map(det barcode.RawDetection) (Shape, error) {
	t, err := NewTransform(m.Geometry(det))
	if err != nil {
		return Shape{}, err
	}
	box := utils.BoxFromRect(det.BBox)
	if len(det.Corners) > 0 && box.Empty() {
		box = utils.BoundingBox(det.Corners)
	}
	return Shape{
		Symbology: det.Symbology,
		Box:       t.ApplyBox(box),
		Corners:   t.ApplyAll(det.Corners),
		Label:     asciiLabel(det.PayloadString()),
	}, nil
}

// MapAll maps a frame's detections. On error nothing is returned so the
// caller can skip the overlay for this frame.
func (m *Mapper) MapAll(dets []barcode.RawDetection) ([]Shape, error) {
	shapes := make([]Shape, 0, len(dets))
	for _, d := range dets {
		s, err := m.Map(d)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, s)
	}
	return shapes, nil
}
