//go:build !windows && !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package device

import "errors"

func disableEcho(int) (func(), error) {
	return nil, errors.New("echo control not supported on this platform")
}
