//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package device

import "golang.org/x/sys/unix"

// disableEcho turns off canonical mode and echo on fd, leaving signal keys
// alone so Ctrl-C still interrupts.
func disableEcho(fd int) (func(), error) {
	orig, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, err
	}
	state := *orig
	state.Lflag &^= unix.ICANON | unix.ECHO
	state.Cc[unix.VMIN] = 1
	state.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &state); err != nil {
		return nil, err
	}
	return func() {
		_ = unix.IoctlSetTermios(fd, ioctlSetTermios, orig)
	}, nil
}
