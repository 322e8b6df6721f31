package player

import (
	"fmt"
	"time"
)

// State is the scheduler's position in its per-frame cycle.
type State int32

const (
	StateIdle State = iota
	StateDecoding
	StateFitting
	StateRendering
	StateWaiting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDecoding:
		return "decoding"
	case StateFitting:
		return "fitting"
	case StateRendering:
		return "rendering"
	case StateWaiting:
		return "waiting"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// MissedDeadline reports a frame whose render finished after its display
// deadline. It is informational; playback continues.
type MissedDeadline struct {
	Frame uint64
	Late  time.Duration
}

func (m *MissedDeadline) Error() string {
	return fmt.Sprintf("frame %d missed its deadline by %s", m.Frame, m.Late)
}

// FrameEvent describes one rendered frame.
type FrameEvent struct {
	Index    uint64
	Width    int
	Height   int
	Started  time.Time
	Deadline time.Time
	// Completed is when the frame's wait ended and the next decode may start.
	Completed time.Time
	Missed    *MissedDeadline
}

// Stats summarizes a finished run.
type Stats struct {
	Frames  uint64
	Missed  uint64
	Loops   int
	Elapsed time.Duration
}

// FPS is the average rate over the whole run.
func (s Stats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// fpsCounter measures the displayed rate over one-second windows.
type fpsCounter struct {
	frames   int
	lastTick time.Time
	current  int
}

// recordFrame counts a frame and reports whether a new window closed.
func (fc *fpsCounter) recordFrame(now time.Time) bool {
	if fc.lastTick.IsZero() {
		fc.lastTick = now
	}
	fc.frames++
	elapsed := now.Sub(fc.lastTick)
	if elapsed < time.Second {
		return false
	}
	fc.current = int(float64(fc.frames) / elapsed.Seconds())
	fc.frames = 0
	fc.lastTick = now
	return true
}
