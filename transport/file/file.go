// Package file provides a transport that appends block records to a data
// file in a directory. Each transport owns one data file; readers open
// any data file in the directory named by a locator.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/robert-malhotra/go-stepio/internal/alloc"
	"github.com/robert-malhotra/go-stepio/transport"
)

// Option configures a Transport.
type Option func(*Transport)

// WithFileName sets the data file name instead of a generated one.
// Reopening an existing file appends after its current end.
func WithFileName(name string) Option {
	return func(t *Transport) {
		t.fileName = name
	}
}

// WithSync controls whether Flush calls fsync. Enabled by default.
func WithSync(sync bool) Option {
	return func(t *Transport) {
		t.sync = sync
	}
}

// Transport appends records to <dir>/<file name>.
type Transport struct {
	dir      string
	fileName string
	sync     bool

	mu      sync.Mutex
	f       *os.File
	space   *alloc.Allocator
	readers map[string]*os.File
	closed  bool
}

// New creates the directory if needed and opens the data file lazily on
// first write.
func New(dir string, opts ...Option) (*Transport, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	t := &Transport{
		dir:      dir,
		fileName: "data." + uuid.NewString() + ".stp",
		sync:     true,
		space:    alloc.New(0),
		readers:  make(map[string]*os.File),
	}
	for _, opt := range opts {
		opt(t)
	}
	if !filepath.IsLocal(t.fileName) {
		return nil, fmt.Errorf("data file name %q escapes %s", t.fileName, dir)
	}
	return t, nil
}

// Name returns "file:<dir>".
func (t *Transport) Name() string {
	return "file:" + t.dir
}

// Path returns the data file path.
func (t *Transport) Path() string {
	return filepath.Join(t.dir, t.fileName)
}

func (t *Transport) openLocked() error {
	if t.f != nil {
		return nil
	}
	f, err := os.OpenFile(t.Path(), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open data file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat data file: %w", err)
	}
	t.space.SetEnd(uint64(info.Size()))
	t.f = f
	return nil
}

// Write places data at the next free offset of the data file.
func (t *Transport) Write(ctx context.Context, key string, data []byte) (transport.Locator, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.Locator{}, transport.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return transport.Locator{}, err
	}
	if err := t.openLocked(); err != nil {
		return transport.Locator{}, err
	}

	off := t.space.AllocTagged(uint64(len(data)), key)
	if _, err := t.f.WriteAt(data, int64(off)); err != nil {
		t.space.Free(off, uint64(len(data)))
		return transport.Locator{}, fmt.Errorf("write %s: %w", key, err)
	}
	return transport.Locator{
		Transport: t.Name(),
		Key:       t.fileName,
		Offset:    int64(off),
		Length:    int64(len(data)),
	}, nil
}

// Read returns the bytes at loc from the data file it names.
func (t *Transport) Read(ctx context.Context, loc transport.Locator) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, transport.ErrClosed
	}
	if !filepath.IsLocal(loc.Key) {
		return nil, fmt.Errorf("%w: invalid data file %q", transport.ErrNotFound, loc.Key)
	}

	f, ok := t.readers[loc.Key]
	if !ok {
		var err error
		f, err = os.Open(filepath.Join(t.dir, loc.Key))
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", transport.ErrNotFound, loc.Key)
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", loc.Key, err)
		}
		t.readers[loc.Key] = f
	}

	buf := make([]byte, loc.Length)
	n, err := f.ReadAt(buf, loc.Offset)
	if int64(n) < loc.Length {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s truncated at %d", transport.ErrNotFound, loc.Key, loc.Offset+int64(n))
		}
		return nil, fmt.Errorf("read %s: %w", loc.Key, err)
	}
	return buf, nil
}

// Flush syncs the data file.
func (t *Transport) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.ErrClosed
	}
	return t.syncLocked()
}

func (t *Transport) syncLocked() error {
	if t.f == nil || !t.sync {
		return nil
	}
	if err := t.f.Sync(); err != nil {
		return fmt.Errorf("sync data file: %w", err)
	}
	return nil
}

// Close syncs and closes every open file.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.ErrClosed
	}
	t.closed = true

	err := t.syncLocked()
	if t.f != nil {
		if cerr := t.f.Close(); err == nil {
			err = cerr
		}
	}
	for _, f := range t.readers {
		f.Close()
	}
	t.readers = nil
	return err
}

// Stats returns the space statistics of the data file.
func (t *Transport) Stats() alloc.Stats {
	return t.space.Stats()
}

var _ transport.Transport = (*Transport)(nil)
