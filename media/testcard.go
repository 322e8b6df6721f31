package media

import (
	"context"
	"fmt"
	"time"

	"github.com/svanichkin/ttydisp/codec"
)

var (
	testCardTopBars = []codec.Color{
		{255, 255, 255}, // white
		{255, 255, 0},   // yellow
		{0, 255, 255},   // cyan
		{0, 255, 0},     // green
		{255, 0, 255},   // magenta
		{255, 0, 0},     // red
		{0, 0, 255},     // blue
	}
	testCardMiddleBars = []codec.Color{
		{0, 0, 255},
		{16, 16, 16},
		{255, 0, 255},
		{16, 16, 16},
		{0, 255, 255},
		{16, 16, 16},
		{255, 255, 255},
	}
	testCardBottomBars = []codec.Color{
		{16, 16, 16},
		{64, 64, 64},
		{96, 96, 96},
		{128, 128, 128},
		{160, 160, 160},
		{192, 192, 192},
		{224, 224, 224},
	}
	testCardAccent     = codec.Color{235, 235, 235}
	testCardBackground = codec.Color{12, 12, 12}
)

// TestCard is a synthetic source drawing color bars with a box that sweeps
// across the middle band, one step per frame.
type TestCard struct {
	width, height int
	period        time.Duration
	frames        int
	index         int
}

// NewTestCard returns a width x height test card at fps frames per second.
// frames bounds the stream length; zero means endless.
func NewTestCard(width, height int, fps float64, frames int) (*TestCard, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("test card: invalid size %dx%d", width, height)
	}
	period := PeriodFromFPS(fps)
	if period <= 0 {
		period = time.Second / DefaultFrameRate
	}
	return &TestCard{width: width, height: height, period: period, frames: frames}, nil
}

func (tc *TestCard) NextFrame(ctx context.Context) (*codec.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrEndOfStream
	}
	if tc.frames > 0 && tc.index >= tc.frames {
		return nil, ErrEndOfStream
	}
	f := tc.draw(tc.index)
	tc.index++
	return f, nil
}

func (tc *TestCard) FrameDuration() time.Duration { return tc.period }

func (tc *TestCard) SeekStart() error {
	tc.index = 0
	return nil
}

func (tc *TestCard) Close() error { return nil }

func (tc *TestCard) draw(n int) *codec.Frame {
	cols, rows := tc.width, tc.height
	f := &codec.Frame{Width: cols, Height: rows, Data: make([]byte, codec.Size(cols, rows))}

	fillRect := func(x0, y0, w, h int, c codec.Color) {
		x1, y1 := min(x0+w, cols), min(y0+h, rows)
		x0, y0 = max(x0, 0), max(y0, 0)
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				i := 3 * (x + y*cols)
				f.Data[i], f.Data[i+1], f.Data[i+2] = c[0], c[1], c[2]
			}
		}
	}
	fillBars := func(y0, h int, bars []codec.Color) {
		if h <= 0 {
			return
		}
		barWidth := max(1, cols/len(bars))
		x := 0
		for i, c := range bars {
			w := barWidth
			if i == len(bars)-1 {
				w = cols - x
			}
			fillRect(x, y0, w, h, c)
			x += w
			if x >= cols {
				break
			}
		}
	}

	fillRect(0, 0, cols, rows, testCardBackground)

	topHeight := max(1, (rows*2)/3)
	midHeight := max(1, rows/6)
	if topHeight+midHeight >= rows {
		topHeight = max(1, rows-2)
		midHeight = 1
	}
	bottomHeight := rows - topHeight - midHeight

	fillBars(0, topHeight, testCardTopBars)
	fillBars(topHeight, midHeight, testCardMiddleBars)
	fillBars(topHeight+midHeight, bottomHeight, testCardBottomBars)

	boxWidth := max(1, cols/8)
	span := max(1, cols-boxWidth+1)
	fillRect(n%span, topHeight, boxWidth, midHeight, testCardAccent)
	return f
}
