package conf

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/svanichkin/ttydisp/codec"
	"github.com/svanichkin/ttydisp/ui"
)

// DefaultSpinReserve is how long before a deadline the scheduler stops
// sleeping and starts spinning.
const DefaultSpinReserve = time.Millisecond

// RenderConfig holds every knob of the rendering pipeline. It is fixed once
// playback starts.
type RenderConfig struct {
	Width   int     // 0 = fit to terminal
	Height  int     // 0 = fit to terminal
	FPS     float64 // 0 = source frame rate
	Padding uint8
	Mode    codec.Mode
	Loop    bool
	Verbose bool

	SpinReserve time.Duration
	PixelAspect float64
	GrayBias    int
	Scaler      codec.Kernel
}

// DefaultRenderConfig returns the configuration used when neither a profile
// nor flags say otherwise.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Mode:        codec.ModeFast,
		SpinReserve: DefaultSpinReserve,
		PixelAspect: ui.DefaultPixelAspect,
		GrayBias:    codec.DefaultGrayBias,
		Scaler:      codec.KernelBicubic,
	}
}

// Validate rejects values the pipeline cannot work with.
func (c RenderConfig) Validate() error {
	switch {
	case c.Width < 0:
		return fmt.Errorf("width %d is negative", c.Width)
	case c.Height < 0:
		return fmt.Errorf("height %d is negative", c.Height)
	case c.FPS < 0:
		return fmt.Errorf("fps %g is negative", c.FPS)
	case c.SpinReserve < 0:
		return fmt.Errorf("spin reserve %s is negative", c.SpinReserve)
	case c.PixelAspect <= 0:
		return fmt.Errorf("pixel aspect %g must be positive", c.PixelAspect)
	}
	return nil
}

// profile mirrors the JSON config file. Absent keys leave defaults alone.
type profile struct {
	Width    *int     `json:"width"`
	Height   *int     `json:"height"`
	FPS      *float64 `json:"fps"`
	Padding  *int     `json:"padding"`
	Mode     *string  `json:"mode"`
	Loop     *bool    `json:"loop"`
	Verbose  *bool    `json:"verbose"`
	Spin     *string  `json:"spin"`
	Aspect   *float64 `json:"aspect"`
	GrayBias *int     `json:"gray_bias"`
	Scaler   *string  `json:"scaler"`
	Log      *string  `json:"log"`
}

// loadProfile applies the JSON file at path on top of opts. A missing file
// is not an error.
func loadProfile(path string, opts *AppOptions) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	var p profile
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}

	rc := &opts.Render
	if p.Width != nil {
		rc.Width = *p.Width
	}
	if p.Height != nil {
		rc.Height = *p.Height
	}
	if p.FPS != nil {
		rc.FPS = *p.FPS
	}
	if p.Padding != nil {
		pad, err := paddingValue(*p.Padding)
		if err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
		rc.Padding = pad
	}
	if p.Mode != nil {
		m, err := codec.ParseMode(*p.Mode)
		if err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
		rc.Mode = m
	}
	if p.Loop != nil {
		rc.Loop = *p.Loop
	}
	if p.Verbose != nil {
		rc.Verbose = *p.Verbose
	}
	if p.Spin != nil {
		d, err := time.ParseDuration(*p.Spin)
		if err != nil {
			return fmt.Errorf("config %s: spin: %w", path, err)
		}
		rc.SpinReserve = d
	}
	if p.Aspect != nil {
		rc.PixelAspect = *p.Aspect
	}
	if p.GrayBias != nil {
		rc.GrayBias = *p.GrayBias
	}
	if p.Scaler != nil {
		k, err := codec.ParseKernel(*p.Scaler)
		if err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
		rc.Scaler = k
	}
	if p.Log != nil {
		opts.LogPath = strings.TrimSpace(*p.Log)
	}
	return nil
}

func paddingValue(v int) (uint8, error) {
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("padding %d out of range 0-255", v)
	}
	return uint8(v), nil
}
