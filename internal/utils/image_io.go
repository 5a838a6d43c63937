package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
)

// ErrUnsupportedImage is returned for files whose extension is not a known image format.
var ErrUnsupportedImage = errors.New("unsupported image format")

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string
	Format    string
	SizeBytes int64
	Width     int
	Height    int
}

// LoadImage opens and decodes an image file, returning the image and metadata.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, errors.New("load image: empty path")
	}
	if !IsSupportedImage(path) {
		return nil, ImageMetadata{}, fmt.Errorf("load image %s: %w", path, ErrUnsupportedImage)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: reading user-provided frame paths is expected
	if err != nil {
		return nil, ImageMetadata{}, fmt.Errorf("load image: %w", err)
	}

	img, format, err := DecodeImage(data)
	if err != nil {
		return nil, ImageMetadata{}, fmt.Errorf("load image %s: %w", path, err)
	}

	b := img.Bounds()
	meta := ImageMetadata{
		Path:      path,
		Format:    format,
		SizeBytes: int64(len(data)),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	return img, meta, nil
}

// DecodeImage decodes an in-memory PNG, JPEG or BMP image.
func DecodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", errors.New("decode image: empty input")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}
