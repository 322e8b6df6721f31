package ui

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimensions is returned when fitting yields a non-positive output size.
var ErrInvalidDimensions = errors.New("invalid output dimensions")

// DefaultPixelAspect corrects for terminal cells being about twice as tall as wide:
// one source row maps to half a terminal row.
const DefaultPixelAspect = 0.5

// FitParams describes one fitting problem. Width and Height are explicit
// overrides; zero means unset.
type FitParams struct {
	SourceWidth  int
	SourceHeight int
	TermWidth    int
	TermHeight   int
	Width        int
	Height       int
	PixelAspect  float64
}

// Fixed reports whether both output dimensions are overridden, in which case
// the result does not depend on the source or the terminal.
func (p FitParams) Fixed() bool {
	return p.Width > 0 && p.Height > 0
}

// Fit computes the output raster size in cells.
//
// Without overrides the source is fitted inside the terminal preserving its
// (pixel-aspect corrected) proportions. With one override the other dimension
// is derived from the same aspect. With both, they are used as given.
func Fit(p FitParams) (width, height int, err error) {
	if p.Fixed() {
		return p.Width, p.Height, nil
	}
	if p.SourceWidth <= 0 || p.SourceHeight <= 0 {
		return 0, 0, fmt.Errorf("%w: source %dx%d", ErrInvalidDimensions, p.SourceWidth, p.SourceHeight)
	}
	par := p.PixelAspect
	if par <= 0 {
		par = DefaultPixelAspect
	}
	aspect := float64(p.SourceHeight) / float64(p.SourceWidth) * par

	switch {
	case p.Width > 0:
		width = p.Width
		height = round(aspect * float64(width))
	case p.Height > 0:
		height = p.Height
		width = round(float64(height) / aspect)
	default:
		width, height = p.TermWidth, p.TermHeight
		if round(aspect*float64(p.TermWidth)) > p.TermHeight {
			// Height binds: shrink the width.
			width = round(float64(p.TermHeight) / aspect)
		} else {
			height = round(aspect * float64(p.TermWidth))
		}
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d (source %dx%d, terminal %dx%d)", ErrInvalidDimensions,
			width, height, p.SourceWidth, p.SourceHeight, p.TermWidth, p.TermHeight)
	}
	return width, height, nil
}

func round(v float64) int {
	return int(math.Round(v))
}
