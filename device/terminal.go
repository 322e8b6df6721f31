package device

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/term"
)

const (
	hideCursor = "\x1b[?25l"
	showCursor = "\x1b[?25h"
)

// Fallback geometry when neither the tty nor the environment knows it.
const (
	fallbackCols = 80
	fallbackRows = 24
)

// Terminal is the output tty the video is drawn to.
type Terminal struct {
	in  *os.File
	out *os.File

	interactive bool
	restoreEcho func()
}

// NewTerminal wraps the given input and output files, usually os.Stdin and
// os.Stdout.
func NewTerminal(in, out *os.File) *Terminal {
	return &Terminal{
		in:          in,
		out:         out,
		interactive: out != nil && term.IsTerminal(int(out.Fd())),
	}
}

// Writer is where frames go.
func (t *Terminal) Writer() io.Writer { return t.out }

// Interactive reports whether output is a terminal. Redirected output is
// not paced and gets no cursor control.
func (t *Terminal) Interactive() bool { return t.interactive }

// SyncOutput reports whether frames should be wrapped in synchronized
// output mode.
func (t *Terminal) SyncOutput() bool { return t.interactive && supportsSyncOutput }

// Size returns the terminal size in character cells. Without a usable tty
// it falls back to $COLUMNS/$LINES and then to 80x24; an interactive
// terminal that cannot report its size and has no environment hint is an
// error.
func (t *Terminal) Size() (cols, rows int, err error) {
	if t.interactive {
		cols, rows, err = term.GetSize(int(t.out.Fd()))
		if err == nil && cols > 0 && rows > 0 {
			return cols, rows, nil
		}
	}
	envCols, envRows := sizeFromEnv(os.Getenv("COLUMNS"), os.Getenv("LINES"))
	if err != nil && envCols == 0 && envRows == 0 {
		return 0, 0, fmt.Errorf("terminal size: %w", err)
	}
	return cmpOr(envCols, fallbackCols), cmpOr(envRows, fallbackRows), nil
}

func sizeFromEnv(colsEnv, rowsEnv string) (cols, rows int) {
	if v, err := strconv.Atoi(colsEnv); err == nil && v > 0 {
		cols = v
	}
	if v, err := strconv.Atoi(rowsEnv); err == nil && v > 0 {
		rows = v
	}
	return cols, rows
}

func cmpOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Prepare hides the cursor and turns off input echo so keystrokes do not
// scribble over the picture. Restore undoes both.
func (t *Terminal) Prepare() {
	if !t.interactive {
		return
	}
	fmt.Fprint(t.out, hideCursor)
	if t.in == nil || !term.IsTerminal(int(t.in.Fd())) {
		return
	}
	restore, err := disableEcho(int(t.in.Fd()))
	if err != nil {
		return
	}
	t.restoreEcho = restore
}

// Restore puts the terminal back the way Prepare found it.
func (t *Terminal) Restore() {
	if !t.interactive {
		return
	}
	if t.restoreEcho != nil {
		t.restoreEcho()
		t.restoreEcho = nil
	}
	fmt.Fprint(t.out, showCursor)
}
