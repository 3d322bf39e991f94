package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-stepio/transport"
)

func TestWriteReadAcrossTransports(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	w, err := New(dir)
	require.NoError(t, err)

	first, err := w.Write(ctx, "a", []byte("hello"))
	require.NoError(t, err)
	second, err := w.Write(ctx, "b", []byte("world!"))
	require.NoError(t, err)
	assert.EqualValues(t, 0, first.Offset)
	assert.EqualValues(t, 5, second.Offset)
	require.NoError(t, w.Flush(ctx))

	r, err := New(dir)
	require.NoError(t, err)
	defer r.Close(ctx)

	got, err := r.Read(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "world!", string(got))

	require.NoError(t, w.Close(ctx))
	assert.EqualValues(t, 11, w.Stats().BytesInUse)
}

func TestReopenAppends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	w, err := New(dir, WithFileName("run.stp"), WithSync(false))
	require.NoError(t, err)
	_, err = w.Write(ctx, "a", []byte("1234"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	w2, err := New(dir, WithFileName("run.stp"))
	require.NoError(t, err)
	loc, err := w2.Write(ctx, "b", []byte("56"))
	require.NoError(t, err)
	assert.EqualValues(t, 4, loc.Offset)
	require.NoError(t, w2.Close(ctx))

	data, err := os.ReadFile(filepath.Join(dir, "run.stp"))
	require.NoError(t, err)
	assert.Equal(t, "123456", string(data))
}

func TestReadMissing(t *testing.T) {
	ctx := context.Background()
	tr, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = tr.Read(ctx, transport.Locator{Key: "nope.stp", Length: 4})
	assert.ErrorIs(t, err, transport.ErrNotFound)

	_, err = tr.Read(ctx, transport.Locator{Key: "../etc/passwd", Length: 4})
	assert.ErrorIs(t, err, transport.ErrNotFound)

	loc, err := tr.Write(ctx, "a", []byte("ab"))
	require.NoError(t, err)
	loc.Length = 10
	_, err = tr.Read(ctx, loc)
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

func TestRejectsEscapingFileName(t *testing.T) {
	_, err := New(t.TempDir(), WithFileName("../x"))
	assert.Error(t, err)
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	tr, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, tr.Close(ctx))

	_, err = tr.Write(ctx, "a", nil)
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.ErrorIs(t, tr.Close(ctx), transport.ErrClosed)
}
