package scanner

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/MeKo-Tech/matrixscan/internal/utils"
)

// Frame is one camera image with its orientation relative to the display.
type Frame struct {
	Seq      uint64
	Image    image.Image
	Rotation int  // clockwise degrees that make the image upright
	Mirrored bool // front camera
	Captured time.Time
	Source   string // file name or client id, for logs
}

// Size returns the image dimensions, or zero for a nil image.
func (f Frame) Size() (int, int) {
	if f.Image == nil {
		return 0, 0
	}
	b := f.Image.Bounds()
	return b.Dx(), b.Dy()
}

// FileSource yields frames from image files in a fixed order.
type FileSource struct {
	paths    []string
	next     int
	rotation int
	mirrored bool
}

// NewFileSource collects frames from the given files and directories.
// Directories contribute their supported images in lexical order; files
// with unsupported extensions are rejected.
func NewFileSource(inputs []string, rotation int, mirrored bool) (*FileSource, error) {
	var paths []string
	for _, in := range inputs {
		st, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("frame source: %w", err)
		}
		if !st.IsDir() {
			if !utils.IsSupportedImage(in) {
				return nil, fmt.Errorf("frame source %s: %w", in, utils.ErrUnsupportedImage)
			}
			paths = append(paths, in)
			continue
		}
		entries, err := os.ReadDir(in)
		if err != nil {
			return nil, fmt.Errorf("frame source: %w", err)
		}
		var dirPaths []string
		for _, e := range entries {
			if !e.IsDir() && utils.IsSupportedImage(e.Name()) {
				dirPaths = append(dirPaths, filepath.Join(in, e.Name()))
			}
		}
		slices.Sort(dirPaths)
		paths = append(paths, dirPaths...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("frame source: no images in %v", inputs)
	}
	return &FileSource{paths: paths, rotation: rotation, mirrored: mirrored}, nil
}

// Len returns the number of frames.
func (s *FileSource) Len() int { return len(s.paths) }

// Next loads the next frame. ok is false once every file was read.
func (s *FileSource) Next() (Frame, bool, error) {
	if s.next >= len(s.paths) {
		return Frame{}, false, nil
	}
	path := s.paths[s.next]
	s.next++
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return Frame{}, true, err
	}
	return Frame{
		Seq:      uint64(s.next),
		Image:    img,
		Rotation: s.rotation,
		Mirrored: s.mirrored,
		Captured: time.Now(),
		Source:   path,
	}, true, nil
}
