package device

import (
	"context"
	"io"
)

// WatchKeys reads single bytes from r and calls quit when q or Q is
// pressed. It returns when r fails, quit fires, or ctx is done; a read that
// is already blocked keeps the goroutine alive until the process exits.
func WatchKeys(ctx context.Context, r io.Reader, quit func()) {
	if r == nil || quit == nil {
		return
	}
	go func() {
		buf := make([]byte, 1)
		for {
			if ctx.Err() != nil {
				return
			}
			n, err := r.Read(buf)
			if n == 1 && isQuitKey(buf[0]) {
				if ctx.Err() == nil {
					quit()
				}
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

func isQuitKey(b byte) bool {
	switch b {
	case 'q', 'Q':
		return true
	}
	return false
}
