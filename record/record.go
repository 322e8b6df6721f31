// Package record saves the rendered escape stream to a zstd file. Playing it
// back is `zstdcat file` in a terminal of the same size.
package record

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var encoderLevel = zstd.SpeedBetterCompression

// Recorder is an io.WriteCloser compressing everything written to it.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	enc     *zstd.Encoder
	written int64
	closed  bool
}

// Create truncates path and starts a recording.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(encoderLevel))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("record: %w", err)
	}
	return &Recorder{file: f, enc: enc}, nil
}

func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, os.ErrClosed
	}
	n, err := r.enc.Write(p)
	r.written += int64(n)
	return n, err
}

// Written is the number of uncompressed bytes recorded so far.
func (r *Recorder) Written() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close finishes the zstd frame and closes the file. Safe to call twice.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.enc.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Open returns a reader over the decompressed contents of a recording.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("record: %w", err)
	}
	return &reader{file: f, dec: dec}, nil
}

type reader struct {
	file *os.File
	dec  *zstd.Decoder
}

func (r *reader) Read(p []byte) (int, error) { return r.dec.Read(p) }

func (r *reader) Close() error {
	r.dec.Close()
	return r.file.Close()
}
