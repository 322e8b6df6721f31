// Package camera streams frames from the system camera.
package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/svanichkin/gocam"

	"github.com/svanichkin/ttydisp/codec"
	"github.com/svanichkin/ttydisp/logs"
	"github.com/svanichkin/ttydisp/media"
)

// DefaultFrameRate paces camera frames when no override is given.
const DefaultFrameRate = 30

// Source is a live media.Source. It never ends on its own and cannot rewind.
type Source struct {
	cancel context.CancelFunc
	frames chan gocam.Frame
	period time.Duration

	mu      sync.Mutex
	dropped int
}

// Open starts capture. Capture stops when ctx is done or Close is called.
func Open(ctx context.Context) (*Source, error) {
	ctx, cancel := context.WithCancel(ctx)
	src, err := gocam.StartStream(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("camera start: %w", err)
	}

	s := &Source{
		cancel: cancel,
		frames: make(chan gocam.Frame, 1),
		period: time.Second / DefaultFrameRate,
	}
	go s.pump(ctx, src)
	logs.LogV("[media] camera started")
	return s, nil
}

// pump keeps only the newest frame so a slow terminal never plays back
// stale video.
func (s *Source) pump(ctx context.Context, src <-chan gocam.Frame) {
	defer close(s.frames)
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-src:
			if !ok {
				return
			}
			select {
			case s.frames <- f:
			default:
				select {
				case <-s.frames:
					s.mu.Lock()
					s.dropped++
					s.mu.Unlock()
				default:
				}
				s.frames <- f
			}
		}
	}
}

func (s *Source) NextFrame(ctx context.Context) (*codec.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, media.ErrEndOfStream
	case f, ok := <-s.frames:
		if !ok {
			return nil, media.ErrEndOfStream
		}
		out := &codec.Frame{Width: f.Width, Height: f.Height, Data: f.Data}
		if err := out.Validate(); err != nil {
			return nil, fmt.Errorf("camera: %w: %w", media.ErrDecode, err)
		}
		return out, nil
	}
}

func (s *Source) FrameDuration() time.Duration { return s.period }

// SeekStart always fails: live capture has no beginning to return to.
func (s *Source) SeekStart() error {
	return fmt.Errorf("camera: %w: live source", media.ErrSeek)
}

// Dropped reports how many frames were replaced before being consumed.
func (s *Source) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Source) Close() error {
	s.cancel()
	if n := s.Dropped(); n > 0 {
		logs.LogV("[media] camera dropped %d frames", n)
	}
	return nil
}
