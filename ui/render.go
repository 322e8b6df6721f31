package ui

import (
	"bufio"
	"io"
	"strconv"

	"github.com/svanichkin/ttydisp/codec"
)

const (
	styleReset      = "\x1b[0m"
	cursorUp        = "\x1b[A"
	eraseBelow      = "\x1b[J"
	syncOutputBegin = "\x1b[?2026h"
	syncOutputEnd   = "\x1b[?2026l"
)

// Renderer writes frames as rows of background-colored spaces. Every frame
// after the first is drawn over the previous one: the cursor is returned to
// the first row of the last frame instead of scrolling.
type Renderer struct {
	out        *bufio.Writer
	quantizer  *codec.Quantizer
	syncOutput bool

	// Escape sequence per palette index, built once.
	background [codec.PaletteSize]string

	prevWidth  int
	prevHeight int
}

// NewRenderer returns a renderer writing to w. When syncOutput is set each
// frame is wrapped in the synchronized-output mode (DEC 2026) so terminals that
// support it swap the whole frame at once.
func NewRenderer(w io.Writer, q *codec.Quantizer, syncOutput bool) *Renderer {
	r := &Renderer{
		out:        bufio.NewWriterSize(w, 64*1024),
		quantizer:  q,
		syncOutput: syncOutput,
	}
	for i := range r.background {
		r.background[i] = "\x1b[48;5;" + strconv.Itoa(i) + "m"
	}
	return r
}

// Render emits f. The frame is fully written and flushed before Render returns.
func (r *Renderer) Render(f *codec.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if r.syncOutput {
		r.out.WriteString(syncOutputBegin)
	}
	if r.prevHeight > 0 {
		// The cursor sits on the last row of the previous frame.
		r.out.WriteByte('\r')
		for i := 1; i < r.prevHeight; i++ {
			r.out.WriteString(cursorUp)
		}
		if f.Width != r.prevWidth || f.Height != r.prevHeight {
			r.out.WriteString(eraseBelow)
		}
	}

	for y := 0; y < f.Height; y++ {
		last := -1
		for x := 0; x < f.Width; x++ {
			idx := int(r.quantizer.Quantize(f.Pixel(x, y)))
			if idx != last {
				r.out.WriteString(r.background[idx])
				last = idx
			}
			r.out.WriteByte(' ')
		}
		if y < f.Height-1 {
			r.out.WriteByte('\n')
		}
	}
	r.out.WriteString(styleReset)
	if r.syncOutput {
		r.out.WriteString(syncOutputEnd)
	}
	r.prevWidth, r.prevHeight = f.Width, f.Height
	return r.out.Flush()
}

// Finish leaves the cursor on the line below the last frame.
func (r *Renderer) Finish() error {
	if r.prevHeight == 0 {
		return nil
	}
	r.out.WriteString(styleReset)
	r.out.WriteByte('\n')
	r.prevWidth, r.prevHeight = 0, 0
	return r.out.Flush()
}
