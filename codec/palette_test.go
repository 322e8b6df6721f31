package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceColor computes palette entries from the xterm formulas without touching Palette.
func referenceColor(idx int) [3]int {
	if idx >= 232 {
		v := 8 + 10*(idx-232)
		return [3]int{v, v, v}
	}
	levels := []int{0, 95, 135, 175, 215, 255}
	i := idx - 16
	return [3]int{levels[i/36], levels[(i/6)%6], levels[i%6]}
}

func referenceNearest(r, g, b int) int {
	best, bestDist := -1, 1<<31
	for idx := 16; idx < 256; idx++ {
		c := referenceColor(idx)
		d := (r-c[0])*(r-c[0]) + (g-c[1])*(g-c[1]) + (b-c[2])*(b-c[2])
		if d < bestDist {
			best, bestDist = idx, d
		}
	}
	return best
}

func TestNewPalette_Layout(t *testing.T) {
	p := NewPalette()

	assert.Equal(t, Color{0, 0, 0}, p.Color(16))
	assert.Equal(t, Color{255, 255, 255}, p.Color(231))
	assert.Equal(t, Color{255, 0, 0}, p.Color(196))
	assert.Equal(t, Color{8, 8, 8}, p.Color(232))
	assert.Equal(t, Color{238, 238, 238}, p.Color(255))
	assert.Equal(t, uint8(196), CubeIndex(5, 0, 0))
	assert.Equal(t, uint8(46), CubeIndex(0, 5, 0))
	assert.Equal(t, uint8(21), CubeIndex(0, 0, 5))

	for idx := 16; idx < 256; idx++ {
		c := p.Color(uint8(idx))
		ref := referenceColor(idx)
		require.Equal(t, ref, [3]int{int(c[0]), int(c[1]), int(c[2])}, "index %d", idx)
	}
}

func TestPalette_NearestExactEntries(t *testing.T) {
	p := NewPalette()
	for idx := 16; idx < 256; idx++ {
		c := p.Color(uint8(idx))
		assert.Equal(t, uint8(idx), p.Nearest(c[0], c[1], c[2]), "index %d", idx)
	}
}

func TestQuantizer_AccurateMatchesBruteForce(t *testing.T) {
	step := 5
	if testing.Short() {
		step = 17
	}
	q := NewQuantizer(NewPalette(), ModeAccurate, 0)
	for r := 0; r < 256; r += step {
		for g := 0; g < 256; g += step {
			for b := 0; b < 256; b += step {
				got := q.Quantize(uint8(r), uint8(g), uint8(b))
				want := referenceNearest(r, g, b)
				if int(got) != want {
					t.Fatalf("rgb(%d,%d,%d): got %d, want %d", r, g, b, got, want)
				}
			}
		}
	}
	// Channel extremes are not always on the stride grid.
	for _, v := range []int{0, 1, 254, 255} {
		assert.Equal(t, referenceNearest(v, 255-v, v), int(q.Quantize(uint8(v), uint8(255-v), uint8(v))))
	}
}

func TestQuantizer_AccurateIgnoresPadding(t *testing.T) {
	p := NewPalette()
	plain := NewQuantizer(p, ModeAccurate, 0)
	padded := NewQuantizer(p, ModeAccurate, 200)
	for _, c := range [][3]uint8{{255, 0, 0}, {10, 200, 30}, {128, 128, 128}} {
		assert.Equal(t, plain.Quantize(c[0], c[1], c[2]), padded.Quantize(c[0], c[1], c[2]))
	}
}

func TestQuantizer_Deterministic(t *testing.T) {
	p := NewPalette()
	for _, mode := range []Mode{ModeFast, ModeAccurate} {
		q := NewQuantizer(p, mode, 16)
		for _, c := range [][3]uint8{{1, 2, 3}, {255, 128, 0}, {40, 40, 41}, {200, 10, 250}} {
			first := q.Quantize(c[0], c[1], c[2])
			for i := 0; i < 10; i++ {
				require.Equal(t, first, q.Quantize(c[0], c[1], c[2]), "mode %s rgb %v", mode, c)
			}
		}
	}
}

func TestQuantizer_Fast(t *testing.T) {
	q := NewQuantizer(NewPalette(), ModeFast, 0)

	tests := []struct {
		name    string
		r, g, b uint8
		want    uint8
	}{
		{name: "pure red", r: 255, g: 0, b: 0, want: 196},
		{name: "pure green", r: 0, g: 255, b: 0, want: 46},
		{name: "pure blue", r: 0, g: 0, b: 255, want: 21},
		{name: "white", r: 255, g: 255, b: 255, want: 231},
		{name: "black forces lowest gray", r: 0, g: 0, b: 0, want: 232},
		{name: "near black stays gray", r: 9, g: 0, b: 20, want: 232},
		{name: "mid gray uses ramp", r: 128, g: 128, b: 128, want: 244},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, q.Quantize(tt.r, tt.g, tt.b))
		})
	}
}

func TestQuantizer_FastPadding(t *testing.T) {
	p := NewPalette()
	q := NewQuantizer(p, ModeFast, 255)
	assert.Equal(t, uint8(232), q.Quantize(255, 0, 0), "fully padded input collapses to the lowest gray")

	q = NewQuantizer(p, ModeFast, 60)
	bright := NewQuantizer(p, ModeFast, 0)
	got := p.Color(q.Quantize(180, 180, 180))
	ref := p.Color(bright.Quantize(180, 180, 180))
	assert.Less(t, int(got[0]), int(ref[0]), "padding darkens the result")
}

func TestQuantizer_FastNeverUsesSystemColors(t *testing.T) {
	q := NewQuantizer(NewPalette(), ModeFast, 8)
	for r := 0; r < 256; r += 15 {
		for g := 0; g < 256; g += 15 {
			for b := 0; b < 256; b += 15 {
				require.GreaterOrEqual(t, q.Quantize(uint8(r), uint8(g), uint8(b)), uint8(16))
			}
		}
	}
}

func TestQuantizer_GrayBiasFavorsColor(t *testing.T) {
	p := NewPalette()
	q := NewQuantizer(p, ModeFast, 0)

	// (100,100,110): gray 241 (98) errs by 2+2+12=16, cube (95,95,95) by 5+5+15=25.
	q.GrayBias = 0
	assert.Equal(t, uint8(241), q.Quantize(100, 100, 110))
	q.GrayBias = DefaultGrayBias
	assert.Equal(t, CubeIndex(1, 1, 1), q.Quantize(100, 100, 110))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Accurate")
	require.NoError(t, err)
	assert.Equal(t, ModeAccurate, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeFast, m)

	_, err = ParseMode("dither")
	assert.Error(t, err)
}
