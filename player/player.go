// Package player paces decoded frames onto the terminal.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/svanichkin/ttydisp/codec"
	"github.com/svanichkin/ttydisp/conf"
	"github.com/svanichkin/ttydisp/logs"
	"github.com/svanichkin/ttydisp/media"
	"github.com/svanichkin/ttydisp/ui"
)

// Terminal answers geometry questions about the output.
type Terminal interface {
	Size() (cols, rows int, err error)
	// Interactive is false when output is redirected; frames are then
	// written back to back without pacing.
	Interactive() bool
}

// FrameRenderer draws a fitted frame.
type FrameRenderer interface {
	Render(f *codec.Frame) error
}

// Player runs the decode, fit, convert, render, wait cycle.
type Player struct {
	src      media.Source
	term     Terminal
	renderer FrameRenderer
	conv     *codec.Converter
	cfg      conf.RenderConfig

	cancelled atomic.Bool
	state     atomic.Int32

	onFrame func(FrameEvent)

	now   func() time.Time
	sleep func(time.Duration)

	fixedW, fixedH int
}

// New wires a player. cfg must already be validated.
func New(src media.Source, term Terminal, r FrameRenderer, cfg conf.RenderConfig) *Player {
	return &Player{
		src:      src,
		term:     term,
		renderer: r,
		conv:     codec.NewConverter(cfg.Scaler),
		cfg:      cfg,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// OnFrame registers a hook called after every frame's wait, on the playback
// goroutine.
func (p *Player) OnFrame(fn func(FrameEvent)) { p.onFrame = fn }

// Cancel asks Run to stop before the next frame. Safe from any goroutine.
func (p *Player) Cancel() { p.cancelled.Store(true) }

// Cancelled reports whether Cancel was called.
func (p *Player) Cancelled() bool { return p.cancelled.Load() }

// State is the current scheduler state.
func (p *Player) State() State { return State(p.state.Load()) }

func (p *Player) setState(s State) { p.state.Store(int32(s)) }

// Run plays until the source ends (and looping is off), Cancel is called,
// ctx is done, or a fatal error occurs. Cancellation is not an error.
func (p *Player) Run(ctx context.Context) (stats Stats, err error) {
	stop := context.AfterFunc(ctx, p.Cancel)
	defer stop()

	begin := p.now()
	var fps fpsCounter
	framesThisPass := 0
	defer func() {
		stats.Elapsed = p.now().Sub(begin)
		p.setState(StateDone)
	}()

	for !p.cancelled.Load() {
		p.setState(StateDecoding)
		started := p.now()
		frame, err := p.src.NextFrame(ctx)
		if errors.Is(err, media.ErrEndOfStream) {
			if !p.cfg.Loop || p.cancelled.Load() || framesThisPass == 0 {
				logs.LogV("[player] end of stream after %d frames", stats.Frames)
				return stats, nil
			}
			if err := p.src.SeekStart(); err != nil {
				if !errors.Is(err, media.ErrSeek) {
					err = fmt.Errorf("%w: %w", media.ErrSeek, err)
				}
				return stats, fmt.Errorf("loop: %w", err)
			}
			stats.Loops++
			framesThisPass = 0
			logs.LogV("[player] loop %d", stats.Loops)
			continue
		}
		if err != nil {
			if !errors.Is(err, media.ErrDecode) {
				err = fmt.Errorf("%w: %w", media.ErrDecode, err)
			}
			return stats, err
		}
		framesThisPass++

		wait := p.frameWait()

		p.setState(StateFitting)
		w, h, err := p.fit(frame)
		if err != nil {
			return stats, err
		}
		scaled, err := p.conv.Convert(frame, w, h)
		if err != nil {
			return stats, fmt.Errorf("convert: %w", err)
		}

		p.setState(StateRendering)
		err = p.renderer.Render(scaled)
		p.conv.Release(scaled)
		if err != nil {
			return stats, fmt.Errorf("render: %w", err)
		}

		ev := FrameEvent{
			Index:    stats.Frames,
			Width:    w,
			Height:   h,
			Started:  started,
			Deadline: started.Add(wait),
		}
		stats.Frames++

		if p.term.Interactive() {
			p.setState(StateWaiting)
			if late := p.now().Sub(ev.Deadline); late > 0 {
				ev.Missed = &MissedDeadline{Frame: ev.Index, Late: late}
				stats.Missed++
				logs.WithFields(logrus.Fields{
					"frame": ev.Index,
					"late":  late,
				}).Debug("[player] missed deadline")
			} else {
				p.waitUntil(ev.Deadline)
			}
		}
		ev.Completed = p.now()
		if fps.recordFrame(ev.Completed) {
			logs.LogV("[player] %d fps (%d missed so far)", fps.current, stats.Missed)
		}
		if p.onFrame != nil {
			p.onFrame(ev)
		}
	}
	logs.LogV("[player] cancelled after %d frames", stats.Frames)
	return stats, nil
}

// frameWait is the display time of one frame: the fps override when set,
// otherwise the source's own rate.
func (p *Player) frameWait() time.Duration {
	if d := media.PeriodFromFPS(p.cfg.FPS); d > 0 {
		return d
	}
	return p.src.FrameDuration()
}

// fit picks the output size for f. With both dimensions fixed the answer
// never changes and the terminal is not consulted.
func (p *Player) fit(f *codec.Frame) (int, int, error) {
	params := ui.FitParams{
		SourceWidth:  f.Width,
		SourceHeight: f.Height,
		Width:        p.cfg.Width,
		Height:       p.cfg.Height,
		PixelAspect:  p.cfg.PixelAspect,
	}
	if params.Fixed() {
		if p.fixedW == 0 {
			w, h, err := ui.Fit(params)
			if err != nil {
				return 0, 0, err
			}
			p.fixedW, p.fixedH = w, h
		}
		return p.fixedW, p.fixedH, nil
	}
	cols, rows, err := p.term.Size()
	if err != nil {
		return 0, 0, err
	}
	params.TermWidth, params.TermHeight = cols, rows
	return ui.Fit(params)
}

// waitUntil sleeps until SpinReserve before deadline, then spins. Sleeping
// alone overshoots by the scheduler's wakeup latency.
func (p *Player) waitUntil(deadline time.Time) {
	if d := deadline.Sub(p.now()) - p.cfg.SpinReserve; d > 0 {
		p.sleep(d)
	}
	for p.now().Before(deadline) {
		if p.cancelled.Load() {
			return
		}
	}
}
