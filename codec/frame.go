package codec

import (
	"errors"
	"fmt"
)

// ErrShortFrame is returned when a frame buffer cannot hold Width*Height RGB triplets.
var ErrShortFrame = errors.New("frame buffer too small")

// Frame represents a raw RGB24 image (packed as [R G B], row-major, top-to-bottom).
type Frame struct {
	Data          []byte
	Width, Height int
}

// Size returns the number of bytes an RGB24 raster of w×h occupies.
func Size(w, h int) int {
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h * 3
}

// Validate checks the frame geometry against its buffer.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("bad frame size %dx%d", f.Width, f.Height)
	}
	if need := Size(f.Width, f.Height); len(f.Data) < need {
		return fmt.Errorf("%w: %d < %d", ErrShortFrame, len(f.Data), need)
	}
	return nil
}

// Pixel returns the RGB triplet at (x, y). The caller guarantees bounds.
func (f *Frame) Pixel(x, y int) (r, g, b uint8) {
	off := 3 * (x + y*f.Width)
	return f.Data[off], f.Data[off+1], f.Data[off+2]
}
