package preprocess

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrInvalidConfig marks a rejected preprocessing parameter.
	ErrInvalidConfig = errors.New("invalid preprocessing configuration")
	// ErrInvalidFrame marks a nil frame or one with non-positive dimensions.
	ErrInvalidFrame = errors.New("invalid frame")
)

// ConfigError describes a parameter rejected by a preprocessing operation.
type ConfigError struct {
	Operation string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Operation, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidConfig).
func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

func configErrorf(op, format string, args ...any) error {
	return &ConfigError{Operation: op, Reason: fmt.Sprintf(format, args...)}
}

// ValidateFrame rejects nil frames and frames whose width or height is not positive.
func ValidateFrame(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidFrame)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, b.Dx(), b.Dy())
	}
	return nil
}
