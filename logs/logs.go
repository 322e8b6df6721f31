package logs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// DefaultFileName is the log file created beside the config profile.
const DefaultFileName = "ttydisp.log"

var (
	verbose atomic.Bool

	mu   sync.Mutex
	sink *lockedWriter
	file *os.File
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
		DisableColors:   true,
	})
	logrus.SetOutput(io.Discard)
}

// lockedWriter serializes the buffered sink so Flush can run while the
// player is still logging.
type lockedWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (l *lockedWriter) flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Flush()
}

// Setup routes the standard logrus logger to the file at path (buffered).
// Every level down to debug reaches the file; v additionally mirrors each
// entry to stderr. An empty path keeps no file.
func Setup(path string, v bool) error {
	mu.Lock()
	defer mu.Unlock()

	if err := closeLocked(); err != nil {
		return err
	}

	var out io.Writer = io.Discard
	if path != "" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("log dir: %w", err)
			}
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("log file: %w", err)
		}
		file = f
		sink = &lockedWriter{w: bufio.NewWriterSize(f, 32*1024)}
		out = sink
	}
	configure(out, os.Stderr, v)
	return nil
}

// SetOutput replaces the destination without a file sink. A nil writer
// discards. With v set entries are mirrored to stderr as well.
func SetOutput(w io.Writer, v bool) {
	mu.Lock()
	defer mu.Unlock()
	_ = closeLocked()
	if w == nil {
		w = io.Discard
	}
	configure(w, os.Stderr, v)
}

func configure(out, screen io.Writer, v bool) {
	verbose.Store(v)
	logrus.SetOutput(out)
	logrus.SetLevel(logrus.DebugLevel)
	hooks := make(logrus.LevelHooks)
	if v {
		hooks.Add(&mirrorHook{w: screen})
	}
	logrus.StandardLogger().ReplaceHooks(hooks)
}

// mirrorHook echoes formatted entries to the screen in verbose mode.
type mirrorHook struct {
	mu sync.Mutex
	w  io.Writer
}

func (h *mirrorHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *mirrorHook) Fire(e *logrus.Entry) error {
	b, err := e.Bytes()
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(b)
	return err
}

// Verbose reports whether verbose logging is enabled.
func Verbose() bool {
	return verbose.Load()
}

// LogV records an info message. It always reaches the log file and shows on
// stderr only when verbose logging is enabled.
func LogV(format string, args ...interface{}) {
	logrus.Infof(format, args...)
}

// Warnf logs at warning level.
func Warnf(format string, args ...interface{}) {
	logrus.Warnf(format, args...)
}

// Debugf logs at debug level.
func Debugf(format string, args ...interface{}) {
	logrus.Debugf(format, args...)
}

// WithFields returns a structured entry on the shared logger.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logrus.WithFields(fields)
}

// Flush writes buffered log lines to the log file.
func Flush() error {
	mu.Lock()
	defer mu.Unlock()
	if sink == nil {
		return nil
	}
	return sink.flush()
}

// Close flushes and closes the log file. Logging afterwards is discarded.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	err := closeLocked()
	logrus.SetOutput(io.Discard)
	return err
}

func closeLocked() error {
	if sink == nil {
		return nil
	}
	err := sink.flush()
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	sink = nil
	file = nil
	return err
}
