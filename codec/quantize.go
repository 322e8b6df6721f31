package codec

import (
	"fmt"
	"strings"
)

// Mode selects the quantization strategy.
type Mode int

const (
	// ModeFast scores one gray candidate against one cube candidate.
	ModeFast Mode = iota
	// ModeAccurate searches the whole palette.
	ModeAccurate
)

func (m Mode) String() string {
	switch m {
	case ModeFast:
		return "fast"
	case ModeAccurate:
		return "accurate"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "fast" or "accurate".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast", "":
		return ModeFast, nil
	case "accurate":
		return ModeAccurate, nil
	default:
		return ModeFast, fmt.Errorf("unknown quantization mode %q", s)
	}
}

// DefaultGrayBias is added to the gray candidate's error in fast mode so that
// saturated sources keep their color unless gray is clearly better.
const DefaultGrayBias = 12

// accurateCacheLimit bounds the memo of exact colors seen in accurate mode.
const accurateCacheLimit = 1 << 16

// Quantizer converts RGB triplets to palette indices. It is not safe for
// concurrent use; the player owns exactly one.
type Quantizer struct {
	Palette  *Palette
	Mode     Mode
	Padding  uint8
	GrayBias int

	// Cache mapping from exact RGB to its nearest index so runs of identical
	// pixels skip the palette scan.
	cache map[uint32]uint8
}

// NewQuantizer returns a quantizer over p with the default gray bias.
func NewQuantizer(p *Palette, mode Mode, padding uint8) *Quantizer {
	if p == nil {
		p = NewPalette()
	}
	return &Quantizer{
		Palette:  p,
		Mode:     mode,
		Padding:  padding,
		GrayBias: DefaultGrayBias,
	}
}

// Quantize returns the palette index for (r, g, b). Padding applies to fast mode only.
func (q *Quantizer) Quantize(r, g, b uint8) uint8 {
	if q.Mode == ModeAccurate {
		return q.accurate(r, g, b)
	}
	return q.fast(r, g, b)
}

func (q *Quantizer) accurate(r, g, b uint8) uint8 {
	key := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	if idx, ok := q.cache[key]; ok {
		return idx
	}
	idx := q.Palette.Nearest(r, g, b)
	if q.cache == nil || len(q.cache) >= accurateCacheLimit {
		q.cache = make(map[uint32]uint8, 1024)
	}
	q.cache[key] = idx
	return idx
}

func (q *Quantizer) fast(r, g, b uint8) uint8 {
	pr, pg, pb := floor(r, q.Padding), floor(g, q.Padding), floor(b, q.Padding)

	// rawLum is the 1-based gray ramp step of the unweighted average.
	lum := (int(pr) + int(pg) + int(pb)) / 3
	rawLum := lum*grayLevels/256 + 1
	gray := uint8(grayOffset - 1 + rawLum)
	if rawLum == 1 {
		// Near black: a cube pick here tends to tint the shadows.
		return gray
	}

	color := CubeIndex(cubeLevel(pr), cubeLevel(pg), cubeLevel(pb))

	grayErr := q.Palette.absError(gray, r, g, b)
	colorErr := q.Palette.absError(color, r, g, b)
	if grayErr+q.GrayBias < colorErr {
		return gray
	}
	return color
}

// floor lowers v by pad, clamping at zero.
func floor(v, pad uint8) uint8 {
	if v <= pad {
		return 0
	}
	return v - pad
}
