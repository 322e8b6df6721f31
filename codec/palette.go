package codec

import "math"

// Color is a palette entry in 8-bit RGB.
type Color [3]uint8

const (
	PaletteSize = 256

	// Indices below cubeOffset are the terminal's system colors. Their actual
	// values depend on the user's theme, so the quantizer never selects them.
	cubeOffset = 16
	grayOffset = 232
	grayLevels = 24
)

// cubeLevels are the channel intensities of the xterm 6×6×6 color cube.
var cubeLevels = [6]uint8{0, 95, 135, 175, 215, 255}

var systemColors = [cubeOffset]Color{
	{0, 0, 0}, {128, 0, 0}, {0, 128, 0}, {128, 128, 0},
	{0, 0, 128}, {128, 0, 128}, {0, 128, 128}, {192, 192, 192},
	{128, 128, 128}, {255, 0, 0}, {0, 255, 0}, {255, 255, 0},
	{0, 0, 255}, {255, 0, 255}, {0, 255, 255}, {255, 255, 255},
}

// Palette is the fixed 256-color terminal table. It is built once and only read afterwards,
// so a single instance can be shared by every pipeline stage without locking.
type Palette struct {
	colors [PaletteSize]Color
}

// NewPalette builds the xterm 256-color table.
func NewPalette() *Palette {
	p := &Palette{}
	copy(p.colors[:cubeOffset], systemColors[:])
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				p.colors[CubeIndex(r, g, b)] = Color{cubeLevels[r], cubeLevels[g], cubeLevels[b]}
			}
		}
	}
	for i := 0; i < grayLevels; i++ {
		v := uint8(8 + 10*i)
		p.colors[grayOffset+i] = Color{v, v, v}
	}
	return p
}

// Color returns the RGB value of palette index idx.
func (p *Palette) Color(idx uint8) Color {
	return p.colors[idx]
}

// CubeIndex maps cube coordinates (each 0..5) to a palette index.
func CubeIndex(r, g, b int) uint8 {
	return uint8(cubeOffset + 36*r + 6*g + b)
}

// Nearest returns the index in 16..255 with the smallest squared RGB distance to (r, g, b).
// Ties resolve to the lowest index.
func (p *Palette) Nearest(r, g, b uint8) uint8 {
	best := cubeOffset
	bestDist := math.MaxInt
	for i := cubeOffset; i < PaletteSize; i++ {
		c := p.colors[i]
		dr := int(r) - int(c[0])
		dg := int(g) - int(c[1])
		db := int(b) - int(c[2])
		d := dr*dr + dg*dg + db*db
		if d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	return uint8(best)
}

// absError is the summed per-channel absolute difference between idx and (r, g, b).
func (p *Palette) absError(idx uint8, r, g, b uint8) int {
	c := p.colors[idx]
	return absDiff(r, c[0]) + absDiff(g, c[1]) + absDiff(b, c[2])
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// cubeLevel picks the closest cube level for one channel. Thresholds are the
// midpoints between adjacent entries of cubeLevels.
func cubeLevel(v uint8) int {
	switch {
	case v < 48:
		return 0
	case v < 115:
		return 1
	case v < 155:
		return 2
	case v < 195:
		return 3
	case v < 235:
		return 4
	default:
		return 5
	}
}
