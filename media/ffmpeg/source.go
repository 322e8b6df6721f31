// Package ffmpeg decodes video files through FFmpeg and hands out RGB24
// frames at the stream's native size.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/svanichkin/ttydisp/codec"
	"github.com/svanichkin/ttydisp/logs"
	"github.com/svanichkin/ttydisp/media"
)

var logOnce sync.Once

// routeLogs sends libav's own messages to the debug log instead of stderr,
// where they would tear the picture.
func routeLogs() {
	logOnce.Do(func() {
		if logs.Verbose() {
			astiav.SetLogLevel(astiav.LogLevelInfo)
		} else {
			astiav.SetLogLevel(astiav.LogLevelError)
		}
		astiav.SetLogCallback(func(_ astiav.Classer, _ astiav.LogLevel, _, msg string) {
			msg = strings.TrimRight(msg, "\r\n")
			if msg == "" {
				return
			}
			logs.Debugf("[ffmpeg] %s", msg)
		})
	})
}

// Source is a media.Source reading the first video stream of a file.
type Source struct {
	path string

	input   *astiav.FormatContext
	stream  *astiav.Stream
	decoder *astiav.Codec
	dec     *astiav.CodecContext

	packet  *astiav.Packet
	decoded *astiav.Frame
	rgb     *astiav.Frame

	sws        *astiav.SoftwareScaleContext
	swsW, swsH int
	swsFormat  astiav.PixelFormat
	draining   bool
	period     time.Duration
}

// Open opens path and prepares a decoder for its first video stream.
func Open(path string) (*Source, error) {
	routeLogs()

	s := &Source{path: path}
	s.input = astiav.AllocFormatContext()
	if s.input == nil {
		return nil, errors.New("ffmpeg: alloc format context failed")
	}
	if err := s.input.OpenInput(path, nil, nil); err != nil {
		s.input.Free()
		return nil, fmt.Errorf("open %s: %w: %w", path, media.ErrDecode, err)
	}
	if err := s.input.FindStreamInfo(nil); err != nil {
		s.Close()
		return nil, fmt.Errorf("probe %s: %w: %w", path, media.ErrDecode, err)
	}

	for _, st := range s.input.Streams() {
		if st.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			s.stream = st
			break
		}
	}
	if s.stream == nil {
		s.Close()
		return nil, fmt.Errorf("%s: no video stream: %w", path, media.ErrDecode)
	}
	s.decoder = astiav.FindDecoder(s.stream.CodecParameters().CodecID())
	if s.decoder == nil {
		s.Close()
		return nil, fmt.Errorf("%s: no decoder for %s: %w", path, s.stream.CodecParameters().CodecID(), media.ErrDecode)
	}
	if err := s.openDecoder(); err != nil {
		s.Close()
		return nil, err
	}

	s.packet = astiav.AllocPacket()
	s.decoded = astiav.AllocFrame()
	s.rgb = astiav.AllocFrame()

	avg, guessed := s.stream.AvgFrameRate(), s.stream.RFrameRate()
	s.period = media.FrameDuration(
		media.Rational{Num: avg.Num(), Den: avg.Den()},
		media.Rational{Num: guessed.Num(), Den: guessed.Den()},
	)
	logs.LogV("[media] opened %s, frame period %s", path, s.period)
	return s, nil
}

func (s *Source) openDecoder() error {
	dec := astiav.AllocCodecContext(s.decoder)
	if dec == nil {
		return fmt.Errorf("%s: alloc codec context: %w", s.path, media.ErrDecode)
	}
	if err := s.stream.CodecParameters().ToCodecContext(dec); err != nil {
		dec.Free()
		return fmt.Errorf("%s: codec parameters: %w: %w", s.path, media.ErrDecode, err)
	}
	if err := dec.Open(s.decoder, nil); err != nil {
		dec.Free()
		return fmt.Errorf("%s: open decoder: %w: %w", s.path, media.ErrDecode, err)
	}
	s.dec = dec
	return nil
}

// Info describes the selected stream.
func (s *Source) Info() media.StreamInfo {
	cp := s.stream.CodecParameters()
	rate := s.stream.AvgFrameRate()
	info := media.StreamInfo{
		Path:        s.path,
		Codec:       s.decoder.Name(),
		Width:       cp.Width(),
		Height:      cp.Height(),
		PixelFormat: s.dec.PixelFormat().String(),
		Rate:        media.Rational{Num: rate.Num(), Den: rate.Den()},
		Index:       s.stream.Index(),
	}
	if f := s.input.InputFormat(); f != nil {
		info.Container = f.Name()
	}
	return info
}

func (s *Source) FrameDuration() time.Duration { return s.period }

// NextFrame decodes the next picture. EAGAIN from the decoder feeds it another
// packet and retries; the caller never sees it.
func (s *Source) NextFrame(ctx context.Context) (*codec.Frame, error) {
	for {
		if ctx.Err() != nil {
			return nil, media.ErrEndOfStream
		}
		err := s.dec.ReceiveFrame(s.decoded)
		switch {
		case err == nil:
			f, cerr := s.toRGB()
			s.decoded.Unref()
			return f, cerr
		case errors.Is(err, astiav.ErrEof):
			return nil, media.ErrEndOfStream
		case !errors.Is(err, astiav.ErrEagain):
			return nil, fmt.Errorf("%s: receive frame: %w: %w", s.path, media.ErrDecode, err)
		}
		if s.draining {
			return nil, media.ErrEndOfStream
		}
		if err := s.feed(); err != nil {
			return nil, err
		}
	}
}

// feed sends one packet of the video stream to the decoder, or the flush
// packet once the container is exhausted.
func (s *Source) feed() error {
	for {
		err := s.input.ReadFrame(s.packet)
		if errors.Is(err, astiav.ErrEof) {
			s.draining = true
			if err := s.dec.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
				return fmt.Errorf("%s: flush decoder: %w: %w", s.path, media.ErrDecode, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: read packet: %w: %w", s.path, media.ErrDecode, err)
		}
		if s.packet.StreamIndex() != s.stream.Index() {
			s.packet.Unref()
			continue
		}
		err = s.dec.SendPacket(s.packet)
		s.packet.Unref()
		if err != nil && !errors.Is(err, astiav.ErrEagain) {
			return fmt.Errorf("%s: send packet: %w: %w", s.path, media.ErrDecode, err)
		}
		return nil
	}
}

// toRGB converts the decoded picture to packed RGB24 at its own size. The
// scale context is rebuilt only when the source geometry or format changes.
func (s *Source) toRGB() (*codec.Frame, error) {
	w, h, pf := s.decoded.Width(), s.decoded.Height(), s.decoded.PixelFormat()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%s: empty picture %dx%d: %w", s.path, w, h, media.ErrDecode)
	}
	if s.sws == nil || s.swsW != w || s.swsH != h || s.swsFormat != pf {
		if s.sws != nil {
			s.sws.Free()
		}
		sws, err := astiav.CreateSoftwareScaleContext(w, h, pf, w, h, astiav.PixelFormatRgb24,
			astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear))
		if err != nil {
			s.sws = nil
			return nil, fmt.Errorf("%s: scale context: %w: %w", s.path, media.ErrDecode, err)
		}
		s.sws, s.swsW, s.swsH, s.swsFormat = sws, w, h, pf
		logs.LogV("[media] pixel conversion %s %dx%d -> rgb24", pf, w, h)
	}

	s.rgb.Unref()
	if err := s.sws.ScaleFrame(s.decoded, s.rgb); err != nil {
		return nil, fmt.Errorf("%s: convert: %w: %w", s.path, media.ErrDecode, err)
	}
	data, err := s.rgb.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("%s: frame data: %w: %w", s.path, media.ErrDecode, err)
	}
	f := &codec.Frame{Width: w, Height: h, Data: data}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", s.path, media.ErrDecode, err)
	}
	return f, nil
}

// SeekStart rewinds to the first keyframe. The decoder is reopened so no
// frames buffered before the seek leak into the next pass.
func (s *Source) SeekStart() error {
	if err := s.input.SeekFrame(s.stream.Index(), 0, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("%s: %w: %w", s.path, media.ErrSeek, err)
	}
	s.dec.Free()
	s.dec = nil
	if err := s.openDecoder(); err != nil {
		return fmt.Errorf("%w: %w", media.ErrSeek, err)
	}
	s.draining = false
	return nil
}

func (s *Source) Close() error {
	if s.sws != nil {
		s.sws.Free()
		s.sws = nil
	}
	if s.rgb != nil {
		s.rgb.Free()
		s.rgb = nil
	}
	if s.decoded != nil {
		s.decoded.Free()
		s.decoded = nil
	}
	if s.packet != nil {
		s.packet.Free()
		s.packet = nil
	}
	if s.dec != nil {
		s.dec.Free()
		s.dec = nil
	}
	if s.input != nil {
		s.input.CloseInput()
		s.input.Free()
		s.input = nil
	}
	return nil
}
