package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/svanichkin/ttydisp/codec"
	"github.com/svanichkin/ttydisp/conf"
	"github.com/svanichkin/ttydisp/device"
	"github.com/svanichkin/ttydisp/logs"
	"github.com/svanichkin/ttydisp/media"
	"github.com/svanichkin/ttydisp/media/camera"
	"github.com/svanichkin/ttydisp/media/ffmpeg"
	"github.com/svanichkin/ttydisp/player"
	"github.com/svanichkin/ttydisp/record"
	"github.com/svanichkin/ttydisp/ui"
)

var version = "dev"

// Test card geometry before fitting; 16:9 like most footage.
const (
	testCardWidth  = 320
	testCardHeight = 180
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "[ttydisp] %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	opts, err := conf.ParseCLI(os.Args[1:])
	if err != nil {
		return err
	}
	if opts.ShowHelp {
		conf.Usage(os.Stdout, filepath.Base(os.Args[0]))
		return nil
	}
	if opts.ShowVersion {
		printVersion()
		return nil
	}
	cfg := opts.Render

	if logErr := logs.Setup(opts.LogPath, cfg.Verbose); logErr != nil {
		fmt.Fprintf(os.Stderr, "[ttydisp] log file disabled (%v)\n", logErr)
		if cfg.Verbose {
			logs.SetOutput(nil, true)
		}
	}
	defer logs.Close()
	defer func() {
		if err != nil {
			logs.Warnf("[ttydisp] %v", err)
		}
	}()
	logs.LogV("[ttydisp] %s, config %s", appVersion(), opts.ConfigPath)

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer appCancel()

	term := device.NewTerminal(os.Stdin, os.Stdout)

	src, err := openSource(appCtx, opts)
	if err != nil {
		return err
	}
	defer src.Close()

	out := term.Writer()
	if opts.RecordPath != "" {
		rec, err := record.Create(opts.RecordPath)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := rec.Close(); cerr != nil {
				logs.Warnf("[record] %v", cerr)
			}
			logs.LogV("[record] %d bytes of output saved to %s", rec.Written(), opts.RecordPath)
		}()
		out = io.MultiWriter(out, rec)
	}

	q := codec.NewQuantizer(codec.NewPalette(), cfg.Mode, cfg.Padding)
	q.GrayBias = cfg.GrayBias
	renderer := ui.NewRenderer(out, q, term.SyncOutput())

	p := player.New(src, term, renderer, cfg)
	stop := context.AfterFunc(appCtx, p.Cancel)
	defer stop()
	if term.Interactive() {
		device.WatchKeys(appCtx, os.Stdin, p.Cancel)
	}

	term.Prepare()
	stats, err := p.Run(appCtx)
	if ferr := renderer.Finish(); ferr != nil && err == nil {
		err = ferr
	}
	term.Restore()

	logs.LogV("[player] %d frames, %d missed, %d loops in %s (%.1f fps)",
		stats.Frames, stats.Missed, stats.Loops, stats.Elapsed.Round(time.Millisecond), stats.FPS())
	return err
}

func openSource(ctx context.Context, opts *conf.AppOptions) (media.Source, error) {
	switch opts.Source {
	case conf.SourceCamera:
		return camera.Open(ctx)
	case conf.SourceTestCard:
		return media.NewTestCard(testCardWidth, testCardHeight, opts.Render.FPS, 0)
	default:
		src, err := ffmpeg.Open(opts.Path)
		if err != nil {
			return nil, err
		}
		logs.LogV("[media] %s", src.Info())
		return src, nil
	}
}

func appVersion() string {
	v := strings.TrimSpace(version)
	if v == "" {
		v = "dev"
	}
	if bi, ok := debug.ReadBuildInfo(); ok && v == "dev" {
		if ver := strings.TrimSpace(bi.Main.Version); ver != "" && ver != "(devel)" {
			return ver
		}
		if derived := vcsVersion(bi); derived != "" {
			return derived
		}
	}
	return v
}

func vcsVersion(bi *debug.BuildInfo) string {
	revision := buildInfoSetting(bi, "vcs.revision")
	if revision == "" {
		return ""
	}
	short := revision
	if len(short) > 12 {
		short = short[:12]
	}
	dirty := ""
	if buildInfoSetting(bi, "vcs.modified") == "true" {
		dirty = "+dirty"
	}
	if ts := buildInfoSetting(bi, "vcs.time"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return fmt.Sprintf("v0.0.0-%s-%s%s", t.UTC().Format("20060102150405"), short, dirty)
		}
	}
	return short + dirty
}

func buildInfoSetting(bi *debug.BuildInfo, key string) string {
	for _, setting := range bi.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printVersion() {
	fmt.Printf("ttydisp %s\n", appVersion())
}
