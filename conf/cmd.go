package conf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/svanichkin/ttydisp/codec"
)

// SourceKind picks where frames come from.
type SourceKind int

const (
	SourceFile SourceKind = iota
	SourceCamera
	SourceTestCard
)

func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceCamera:
		return "camera"
	case SourceTestCard:
		return "testcard"
	default:
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
}

// AppOptions aggregates all CLI flags and configuration options required by the application.
type AppOptions struct {
	Render RenderConfig

	Source     SourceKind
	Path       string
	ConfigPath string
	LogPath    string
	RecordPath string

	ShowVersion bool
	ShowHelp    bool
}

// ParseCLI parses command-line arguments (without the program name) into
// AppOptions. Defaults come first, then the JSON profile named by -config (or
// the default profile), then flags. It performs only argument parsing and
// normalization; nothing is printed.
func ParseCLI(args []string) (*AppOptions, error) {
	opts := &AppOptions{Render: DefaultRenderConfig()}

	rawArgs := compactArgs(args)
	flagTokens, consumed := collectDashPrefixedArgs(rawArgs)

	configArg, err := findConfigArg(flagTokens)
	if err != nil {
		return nil, err
	}
	resolvedCfg, err := resolveConfigPath(configArg)
	if err != nil {
		return nil, fmt.Errorf("config path error: %w", err)
	}
	opts.ConfigPath = resolvedCfg
	if err := loadProfile(resolvedCfg, opts); err != nil {
		return nil, err
	}

	if err := applyFlagTokens(flagTokens, opts); err != nil {
		return nil, err
	}
	if opts.ShowHelp || opts.ShowVersion {
		return opts, nil
	}

	extra := remainingArgs(rawArgs, consumed)
	if len(extra) > 1 {
		return nil, fmt.Errorf("unexpected extra positional arguments: %v", extra[1:])
	}
	if len(extra) == 1 {
		if opts.Path != "" && opts.Path != extra[0] {
			return nil, fmt.Errorf("input given twice: %q and %q", opts.Path, extra[0])
		}
		opts.Path = extra[0]
	}

	switch {
	case opts.Source != SourceFile && opts.Path != "":
		return nil, fmt.Errorf("-%s cannot be combined with input file %q", opts.Source, opts.Path)
	case opts.Source == SourceFile && opts.Path == "":
		return nil, fmt.Errorf("no input file (use -f <file>, -camera or -testcard)")
	}

	if opts.LogPath == "" {
		opts.LogPath = filepath.Join(filepath.Dir(resolvedCfg), "ttydisp.log")
	}
	if err := opts.Render.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Usage writes the flag summary.
func Usage(w io.Writer, prog string) {
	fmt.Fprintf(w, `Usage: %s [flags] <file>

Input:
  -f, -file <path>     video file to play (or give it as the last argument)
  -camera              play the system camera
  -testcard            play a generated test card

Rendering:
  -width <cols>        output width in cells (default: fit terminal)
  -height <rows>       output height in cells (default: fit terminal)
  -fps <rate>          override the source frame rate
  -pad, -padding <n>   darken channels by n before matching (fast mode, 0-255)
  -fast                quick gray-or-cube color match (default)
  -accurate            nearest color over the whole palette
  -graybias <n>        fast mode: how much a gray must beat a color by (default %d)
  -aspect <ratio>      cell width/height ratio (default 0.5)
  -scaler <name>       bicubic, bilinear, nearest or lanczos
  -loop                restart at end of stream
  -spin <dur>          busy-wait this long before each deadline (default %s)

Other:
  -record <path>       save the output as a zstd-compressed escape stream
  -config <path|name>  JSON profile (default $XDG_CONFIG_HOME/ttydisp/config.json)
  -log <path>          log file (default ttydisp.log beside the profile)
  -v, -verbose         log to stderr as well and dump stream info
  -version             print version
  -h, -help            this help

Press q to stop playback.
`, prog, codec.DefaultGrayBias, DefaultSpinReserve)
}

// resolveConfigPath normalizes the config file path, expanding "~" and
// converting it to an absolute path. When cfg is empty it defaults to
// $XDG_CONFIG_HOME/ttydisp/config.json. A bare name without an extension
// (e.g. "night") is a profile inside the default config directory
// ("night.json").
func resolveConfigPath(cfg string) (string, error) {
	raw := strings.TrimSpace(cfg)

	switch {
	case raw == "":
		if dir, err := defaultConfigDir(); err == nil {
			raw = filepath.Join(dir, "config.json")
		} else {
			raw = "config.json"
		}
	case filepath.Base(raw) == raw && filepath.Ext(raw) == "":
		if dir, err := defaultConfigDir(); err == nil {
			raw = filepath.Join(dir, raw+".json")
		} else {
			raw = raw + ".json"
		}
	}

	if strings.HasPrefix(raw, "~/") {
		if h, err := os.UserHomeDir(); err == nil {
			raw = filepath.Join(h, raw[2:])
		}
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", err
	}
	return abs, nil
}

func defaultConfigDir() (string, error) {
	d, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "ttydisp"), nil
}

func compactArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}
	out := make([]string, 0, len(args))
	for _, raw := range args {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func collectDashPrefixedArgs(args []string) ([]string, map[int]struct{}) {
	consumed := make(map[int]struct{})
	if len(args) == 0 {
		return nil, consumed
	}
	flags := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		token := args[i]
		if token == "--" {
			consumed[i] = struct{}{}
			break
		}
		if !strings.HasPrefix(token, "-") || token == "-" || isNumber(token) {
			continue
		}
		consumed[i] = struct{}{}
		keyToken := token
		if idx := strings.Index(token, "="); idx != -1 {
			keyToken = token[:idx]
		}
		key := normalizeFlagKey(keyToken)
		combined := token
		if !strings.Contains(token, "=") && flagRequiresValue(key) && i+1 < len(args) {
			next := args[i+1]
			if next != "--" && (!strings.HasPrefix(next, "-") || isNumber(next)) {
				consumed[i+1] = struct{}{}
				combined = fmt.Sprintf("%s=%s", token, next)
				i++
			}
		}
		flags = append(flags, combined)
	}
	return flags, consumed
}

func remainingArgs(args []string, consumed map[int]struct{}) []string {
	if len(args) == 0 {
		return nil
	}
	extra := make([]string, 0, len(args))
	for idx, token := range args {
		if _, ok := consumed[idx]; ok {
			continue
		}
		trimmed := strings.TrimSpace(token)
		if trimmed == "" {
			continue
		}
		extra = append(extra, trimmed)
	}
	return extra
}

func findConfigArg(tokens []string) (string, error) {
	var path string
	for _, token := range tokens {
		key, value, hasValue := splitFlagToken(token)
		if key != "config" {
			continue
		}
		if !hasValue || value == "" {
			return "", fmt.Errorf("-config requires a value")
		}
		if path != "" && path != value {
			return "", fmt.Errorf("-config specified multiple times")
		}
		path = value
	}
	return path, nil
}

func applyFlagTokens(tokens []string, opts *AppOptions) error {
	rc := &opts.Render
	for _, token := range tokens {
		key, value, hasValue := splitFlagToken(token)
		if flagRequiresValue(key) && (!hasValue || value == "") {
			return fmt.Errorf("-%s requires a value", key)
		}
		switch key {
		case "v", "verbose":
			b, err := boolFlag(key, value, hasValue)
			if err != nil {
				return err
			}
			rc.Verbose = b
		case "loop":
			b, err := boolFlag(key, value, hasValue)
			if err != nil {
				return err
			}
			rc.Loop = b
		case "accurate":
			rc.Mode = codec.ModeAccurate
		case "fast":
			rc.Mode = codec.ModeFast
		case "h", "help":
			opts.ShowHelp = true
		case "version":
			opts.ShowVersion = true
		case "camera":
			if err := opts.setSource(SourceCamera); err != nil {
				return err
			}
		case "testcard":
			if err := opts.setSource(SourceTestCard); err != nil {
				return err
			}
		case "config":
			// consumed by findConfigArg
		case "f", "file":
			if opts.Path != "" && opts.Path != value {
				return fmt.Errorf("-%s specified multiple times", key)
			}
			opts.Path = value
		case "log":
			opts.LogPath = value
		case "record":
			opts.RecordPath = value
		case "width", "height":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid %s %q", key, value)
			}
			if key == "width" {
				rc.Width = n
			} else {
				rc.Height = n
			}
		case "fps":
			fps, err := strconv.ParseFloat(value, 64)
			if err != nil || fps < 0 {
				return fmt.Errorf("invalid fps %q", value)
			}
			rc.FPS = fps
		case "pad", "padding":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid padding %q", value)
			}
			pad, err := paddingValue(n)
			if err != nil {
				return err
			}
			rc.Padding = pad
		case "spin":
			d, err := time.ParseDuration(value)
			if err != nil || d < 0 {
				return fmt.Errorf("invalid spin %q", value)
			}
			rc.SpinReserve = d
		case "aspect":
			a, err := strconv.ParseFloat(value, 64)
			if err != nil || a <= 0 {
				return fmt.Errorf("invalid aspect %q", value)
			}
			rc.PixelAspect = a
		case "graybias":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid graybias %q", value)
			}
			rc.GrayBias = n
		case "scaler":
			k, err := codec.ParseKernel(value)
			if err != nil {
				return err
			}
			rc.Scaler = k
		default:
			return fmt.Errorf("unknown flag %q", token)
		}
	}
	return nil
}

func (opts *AppOptions) setSource(kind SourceKind) error {
	if opts.Source == SourceFile || opts.Source == kind {
		opts.Source = kind
		return nil
	}
	return fmt.Errorf("conflicting sources: -%s and -%s", opts.Source, kind)
}

func boolFlag(key, value string, hasValue bool) (bool, error) {
	if !hasValue || value == "" {
		return true, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid value for -%s: %q", key, value)
	}
	return b, nil
}

func splitFlagToken(token string) (string, string, bool) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", "", false
	}
	parts := strings.SplitN(trimmed, "=", 2)
	key := normalizeFlagKey(parts[0])
	if len(parts) == 1 {
		return key, "", false
	}
	return key, parts[1], true
}

func normalizeFlagKey(raw string) string {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimLeft(trimmed, "-")
	return strings.ToLower(trimmed)
}

func flagRequiresValue(key string) bool {
	switch key {
	case "config", "f", "file", "log", "record",
		"width", "height", "fps", "pad", "padding",
		"spin", "aspect", "graybias", "scaler":
		return true
	default:
		return false
	}
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
