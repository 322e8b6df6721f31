//go:build windows

package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

const utf8CodePage = 65001

// Windows consoles do not understand synchronized output.
const supportsSyncOutput = false

// 256-color background escapes need VT processing on the console.
func init() {
	enableVirtualTerminalProcessing()
	forceUTF8ConsoleEncoding()
}

func enableVirtualTerminalProcessing() {
	handles := []windows.Handle{
		windows.Handle(os.Stdout.Fd()),
		windows.Handle(os.Stderr.Fd()),
	}

	for _, h := range handles {
		if h == windows.InvalidHandle {
			continue
		}

		// not a console, e.g. redirected to a file
		var mode uint32
		if err := windows.GetConsoleMode(h, &mode); err != nil {
			continue
		}

		mode |= windows.ENABLE_PROCESSED_OUTPUT | windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING
		mode &^= windows.DISABLE_NEWLINE_AUTO_RETURN

		_ = windows.SetConsoleMode(h, mode)
	}
}

func forceUTF8ConsoleEncoding() {
	_ = windows.SetConsoleOutputCP(utf8CodePage)
	_ = windows.SetConsoleCP(utf8CodePage)
}

// disableEcho switches console input to unbuffered, unechoed reads so single
// key presses reach the key watcher.
func disableEcho(fd int) (func(), error) {
	handle := windows.Handle(uintptr(fd))
	if handle == windows.InvalidHandle {
		return nil, fmt.Errorf("stdin handle is invalid")
	}
	var original uint32
	if err := windows.GetConsoleMode(handle, &original); err != nil {
		return nil, err
	}
	mode := original &^ (windows.ENABLE_LINE_INPUT | windows.ENABLE_ECHO_INPUT)
	if err := windows.SetConsoleMode(handle, mode); err != nil {
		return nil, err
	}
	return func() {
		_ = windows.SetConsoleMode(handle, original)
	}, nil
}
