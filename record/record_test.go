package record

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.zst")
	rec, err := Create(path)
	require.NoError(t, err)

	frame := bytes.Repeat([]byte("\x1b[48;5;196m "), 500)
	for i := 0; i < 4; i++ {
		n, err := rec.Write(frame)
		require.NoError(t, err)
		assert.Equal(t, len(frame), n)
	}
	assert.EqualValues(t, 4*len(frame), rec.Written())
	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, st.Size(), int64(len(frame)), "repetitive escapes compress well")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat(frame, 4), got)
}

func TestRecorder_WriteAfterClose(t *testing.T) {
	rec, err := Create(filepath.Join(t.TempDir(), "out.zst"))
	require.NoError(t, err)
	require.NoError(t, rec.Close())
	_, err = rec.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestCreate_BadPath(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing", "dir", "out.zst"))
	assert.Error(t, err)
}
