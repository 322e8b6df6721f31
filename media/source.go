package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/svanichkin/ttydisp/codec"
)

var (
	// ErrEndOfStream is returned by NextFrame once the source is drained.
	ErrEndOfStream = errors.New("end of stream")
	// ErrDecode marks a malformed or undecodable stream.
	ErrDecode = errors.New("decode failed")
	// ErrSeek is returned when a source cannot rewind to its first frame.
	ErrSeek = errors.New("seek failed")
)

// DefaultFrameRate is assumed when a stream advertises no usable rate.
const DefaultFrameRate = 25

// Source produces decoded RGB frames in presentation order.
//
// NextFrame blocks until a frame is ready. Implementations retry internally
// while the decoder needs more input, so callers only ever see a frame,
// ErrEndOfStream, or a fatal error.
type Source interface {
	NextFrame(ctx context.Context) (*codec.Frame, error)
	// FrameDuration is the nominal display time of one frame.
	FrameDuration() time.Duration
	// SeekStart rewinds to the first frame. Errors wrap ErrSeek.
	SeekStart() error
	Close() error
}

// FrameDuration converts a rational frame rate into a per-frame duration.
// Candidates are tried in order and the first positive rate wins; when none
// is usable DefaultFrameRate applies.
func FrameDuration(rates ...Rational) time.Duration {
	for _, r := range rates {
		if r.Valid() {
			return time.Duration(float64(time.Second) * float64(r.Den) / float64(r.Num))
		}
	}
	return time.Second / DefaultFrameRate
}

// Rational is a frame rate expressed as Num/Den frames per second.
type Rational struct {
	Num int
	Den int
}

// Valid reports whether the rate is positive and finite.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// PeriodFromFPS returns the frame period for an fps override, or zero when
// fps is not positive.
func PeriodFromFPS(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

// StreamInfo describes the selected video stream for verbose dumps.
type StreamInfo struct {
	Path        string
	Container   string
	Codec       string
	Width       int
	Height      int
	PixelFormat string
	Rate        Rational
	Index       int
}

func (si StreamInfo) String() string {
	rate := "unknown"
	if si.Rate.Valid() {
		rate = strconv.FormatFloat(float64(si.Rate.Num)/float64(si.Rate.Den), 'f', 3, 64) + " fps"
	}
	return fmt.Sprintf("%s: stream #%d %s %dx%d %s (%s) in %s", si.Path, si.Index, si.Codec, si.Width, si.Height, si.PixelFormat, rate, si.Container)
}
