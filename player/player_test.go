package player

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svanichkin/ttydisp/codec"
	"github.com/svanichkin/ttydisp/conf"
	"github.com/svanichkin/ttydisp/logs"
	"github.com/svanichkin/ttydisp/media"
	"github.com/svanichkin/ttydisp/ui"
)

type fakeSource struct {
	frames  int
	period  time.Duration
	next    int
	seeks   int
	seekErr error
	failAt  int
	failErr error
}

func (s *fakeSource) NextFrame(ctx context.Context) (*codec.Frame, error) {
	if ctx.Err() != nil {
		return nil, media.ErrEndOfStream
	}
	if s.failErr != nil && s.next == s.failAt {
		return nil, s.failErr
	}
	if s.next >= s.frames {
		return nil, media.ErrEndOfStream
	}
	s.next++
	return &codec.Frame{Width: 8, Height: 4, Data: bytes.Repeat([]byte{200, 10, 10}, 32)}, nil
}

func (s *fakeSource) FrameDuration() time.Duration { return s.period }

func (s *fakeSource) SeekStart() error {
	s.seeks++
	if s.seekErr != nil {
		return s.seekErr
	}
	s.next = 0
	return nil
}

func (s *fakeSource) Close() error { return nil }

type fakeTerminal struct {
	cols, rows  int
	interactive bool
	sizeCalls   atomic.Int32
}

func (t *fakeTerminal) Size() (int, int, error) {
	t.sizeCalls.Add(1)
	return t.cols, t.rows, nil
}

func (t *fakeTerminal) Interactive() bool { return t.interactive }

type countingRenderer struct {
	renders int
	delay   time.Duration
	after   func(n int)
	sizes   [][2]int
}

func (r *countingRenderer) Render(f *codec.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.renders++
	r.sizes = append(r.sizes, [2]int{f.Width, f.Height})
	if r.after != nil {
		r.after(r.renders)
	}
	return nil
}

func testConfig() conf.RenderConfig {
	return conf.DefaultRenderConfig()
}

func TestPlayer_PacesFramesToDuration(t *testing.T) {
	const d = 20 * time.Millisecond
	src := &fakeSource{frames: 5, period: d}
	term := &fakeTerminal{cols: 40, rows: 20, interactive: true}
	cfg := testConfig()
	p := New(src, term, &countingRenderer{}, cfg)

	var events []FrameEvent
	p.OnFrame(func(ev FrameEvent) { events = append(events, ev) })

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.EqualValues(t, 5, stats.Frames)
	assert.Zero(t, stats.Missed)

	for i, ev := range events {
		assert.Nil(t, ev.Missed, "frame %d", i)
		assert.False(t, ev.Completed.Before(ev.Deadline), "frame %d completed early", i)
		if i > 0 {
			gap := ev.Completed.Sub(events[i-1].Completed)
			assert.GreaterOrEqual(t, gap, d-cfg.SpinReserve, "frame %d", i)
		}
	}
	assert.Equal(t, StateDone, p.State())
}

func TestPlayer_LoopUntilCancelled(t *testing.T) {
	src := &fakeSource{frames: 3, period: time.Millisecond}
	term := &fakeTerminal{cols: 40, rows: 20}
	cfg := testConfig()
	cfg.Loop = true

	r := &countingRenderer{}
	p := New(src, term, r, cfg)
	r.after = func(n int) {
		if n == 5 {
			p.Cancel()
		}
	}

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, r.renders)
	assert.EqualValues(t, 5, stats.Frames)
	assert.Equal(t, 1, stats.Loops)
	assert.Equal(t, 1, src.seeks)
	assert.True(t, p.Cancelled())
}

func TestPlayer_EndOfStreamWithoutLoop(t *testing.T) {
	src := &fakeSource{frames: 3, period: time.Millisecond}
	r := &countingRenderer{}
	p := New(src, &fakeTerminal{cols: 40, rows: 20}, r, testConfig())

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, r.renders)
	assert.EqualValues(t, 3, stats.Frames)
	assert.Zero(t, src.seeks)
	assert.Equal(t, StateDone, p.State())
}

func TestPlayer_SeekFailureIsFatalWhenLooping(t *testing.T) {
	for _, seekErr := range []error{media.ErrSeek, errors.New("device busy")} {
		src := &fakeSource{frames: 2, period: time.Millisecond, seekErr: seekErr}
		cfg := testConfig()
		cfg.Loop = true
		p := New(src, &fakeTerminal{cols: 40, rows: 20}, &countingRenderer{}, cfg)

		stats, err := p.Run(context.Background())
		assert.ErrorIs(t, err, media.ErrSeek)
		assert.EqualValues(t, 2, stats.Frames)
	}
}

func TestPlayer_EmptySourceDoesNotSpinWhenLooping(t *testing.T) {
	src := &fakeSource{frames: 0, period: time.Millisecond}
	cfg := testConfig()
	cfg.Loop = true
	p := New(src, &fakeTerminal{cols: 40, rows: 20}, &countingRenderer{}, cfg)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Frames)
	assert.Zero(t, src.seeks)
}

func TestPlayer_DecodeErrorIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "classified", err: media.ErrDecode},
		{name: "unclassified", err: errors.New("corrupt packet")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{frames: 5, period: time.Millisecond, failAt: 2, failErr: tt.err}
			r := &countingRenderer{}
			p := New(src, &fakeTerminal{cols: 40, rows: 20}, r, testConfig())

			_, err := p.Run(context.Background())
			assert.ErrorIs(t, err, media.ErrDecode)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 2, r.renders)
		})
	}
}

func TestPlayer_InvalidDimensions(t *testing.T) {
	src := &fakeSource{frames: 3, period: time.Millisecond}
	r := &countingRenderer{}
	p := New(src, &fakeTerminal{cols: 0, rows: 0}, r, testConfig())

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ui.ErrInvalidDimensions)
	assert.Zero(t, r.renders)
}

func TestPlayer_NonInteractiveSkipsWaiting(t *testing.T) {
	src := &fakeSource{frames: 3, period: time.Second}
	p := New(src, &fakeTerminal{cols: 40, rows: 20}, &countingRenderer{}, testConfig())

	start := time.Now()
	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Frames)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestPlayer_FPSOverride(t *testing.T) {
	src := &fakeSource{frames: 2, period: time.Second}
	cfg := testConfig()
	cfg.FPS = 100
	p := New(src, &fakeTerminal{cols: 40, rows: 20}, &countingRenderer{}, cfg)

	var events []FrameEvent
	p.OnFrame(func(ev FrameEvent) { events = append(events, ev) })
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, 10*time.Millisecond, ev.Deadline.Sub(ev.Started))
	}
}

func TestPlayer_MissedDeadlinesAreCountedNotFatal(t *testing.T) {
	src := &fakeSource{frames: 3, period: 2 * time.Millisecond}
	r := &countingRenderer{delay: 10 * time.Millisecond}
	p := New(src, &fakeTerminal{cols: 40, rows: 20, interactive: true}, r, testConfig())

	var missed []*MissedDeadline
	p.OnFrame(func(ev FrameEvent) {
		if ev.Missed != nil {
			missed = append(missed, ev.Missed)
		}
	})
	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Missed)
	require.Len(t, missed, 3)
	assert.Positive(t, missed[0].Late)
	assert.Contains(t, missed[0].Error(), "missed its deadline")
}

func TestPlayer_MissedDeadlinesReachLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttydisp.log")
	require.NoError(t, logs.Setup(path, false))
	defer logs.Close()

	src := &fakeSource{frames: 3, period: 2 * time.Millisecond}
	r := &countingRenderer{delay: 10 * time.Millisecond}
	p := New(src, &fakeTerminal{cols: 40, rows: 20, interactive: true}, r, testConfig())

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.Missed)

	require.NoError(t, logs.Flush())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "missed deadline"))
	assert.Contains(t, string(data), "frame=0")
}

func TestPlayer_FixedSizeSkipsTerminalQuery(t *testing.T) {
	src := &fakeSource{frames: 4, period: time.Millisecond}
	term := &fakeTerminal{}
	cfg := testConfig()
	cfg.Width, cfg.Height = 6, 3
	r := &countingRenderer{}
	p := New(src, term, r, cfg)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, term.sizeCalls.Load())
	for _, sz := range r.sizes {
		assert.Equal(t, [2]int{6, 3}, sz)
	}
}

func TestPlayer_FitsToTerminalEveryFrame(t *testing.T) {
	src := &fakeSource{frames: 3, period: time.Millisecond}
	term := &fakeTerminal{cols: 40, rows: 20}
	r := &countingRenderer{}
	p := New(src, term, r, testConfig())

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, term.sizeCalls.Load())
	// 8x4 source at pixel aspect 0.5: 40 columns give 10 rows.
	assert.Equal(t, [2]int{40, 10}, r.sizes[0])
}

func TestPlayer_ContextCancelStops(t *testing.T) {
	src := &fakeSource{frames: 1 << 30, period: time.Millisecond}
	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())
	r := &countingRenderer{after: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	p := New(src, &fakeTerminal{cols: 40, rows: 20, interactive: true}, r, cfg)

	stats, err := p.Run(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.Frames, uint64(3))
	assert.Less(t, stats.Frames, uint64(10))
}

func TestPlayer_EndToEndWithRenderer(t *testing.T) {
	tc, err := media.NewTestCard(64, 32, 200, 4)
	require.NoError(t, err)
	var out bytes.Buffer
	q := codec.NewQuantizer(codec.NewPalette(), codec.ModeFast, 0)
	p := New(tc, &fakeTerminal{cols: 32, rows: 12}, ui.NewRenderer(&out, q, false), testConfig())

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Frames)
	assert.Equal(t, 4, strings.Count(out.String(), "\x1b[0m"))
	assert.Equal(t, 3, strings.Count(out.String(), "\r"), "every frame after the first redraws in place")
}

func TestWaitUntil_SpinsInsideReserve(t *testing.T) {
	p := New(&fakeSource{}, &fakeTerminal{}, &countingRenderer{}, testConfig())
	var slept []time.Duration
	p.sleep = func(d time.Duration) {
		slept = append(slept, d)
		time.Sleep(d)
	}

	deadline := time.Now().Add(300 * time.Microsecond)
	p.waitUntil(deadline)
	assert.Empty(t, slept, "inside the spin reserve there is nothing to sleep")
	assert.False(t, time.Now().Before(deadline))

	deadline = time.Now().Add(10 * time.Millisecond)
	p.waitUntil(deadline)
	require.Len(t, slept, 1)
	assert.LessOrEqual(t, slept[0], 9*time.Millisecond)
	assert.False(t, time.Now().Before(deadline))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "waiting", StateWaiting.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestStatsFPS(t *testing.T) {
	assert.Zero(t, Stats{}.FPS())
	assert.InDelta(t, 25, Stats{Frames: 50, Elapsed: 2 * time.Second}.FPS(), 1e-9)
}

func TestFPSCounter(t *testing.T) {
	var fc fpsCounter
	t0 := time.Unix(0, 0)
	for i := 0; i < 30; i++ {
		assert.False(t, fc.recordFrame(t0.Add(time.Duration(i)*30*time.Millisecond)))
	}
	assert.True(t, fc.recordFrame(t0.Add(time.Second)))
	assert.Equal(t, 31, fc.current)
}
