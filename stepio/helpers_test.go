package stepio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	catalogmemory "github.com/robert-malhotra/go-stepio/catalog/memory"
	"github.com/robert-malhotra/go-stepio/transport"
	"github.com/robert-malhotra/go-stepio/transport/memory"
)

// recorder logs transport calls across several fakes in call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// fakeTransport is an in-memory transport with injectable failures.
type fakeTransport struct {
	name string
	rec  *recorder

	failWrite error
	failFlush error
	failClose error

	mu      sync.Mutex
	records map[string][]byte
	closed  bool
}

func newFake(name string, rec *recorder) *fakeTransport {
	return &fakeTransport{name: name, rec: rec, records: make(map[string][]byte)}
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Write(ctx context.Context, key string, data []byte) (transport.Locator, error) {
	f.rec.add(f.name + ":write")
	if f.failWrite != nil {
		return transport.Locator{}, f.failWrite
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key] = append([]byte(nil), data...)
	return transport.Locator{Transport: f.name, Key: key, Length: int64(len(data))}, nil
}

func (f *fakeTransport) Read(ctx context.Context, loc transport.Locator) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.records[loc.Key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrNotFound, loc.Key)
	}
	return b, nil
}

func (f *fakeTransport) Flush(ctx context.Context) error {
	f.rec.add(f.name + ":flush")
	return f.failFlush
}

func (f *fakeTransport) Close(ctx context.Context) error {
	f.rec.add(f.name + ":close")
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return f.failClose
}

func (f *fakeTransport) put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[key] = data
}

var errBoom = errors.New("boom")

// mustBegin begins a step and requires StepOK.
func mustBegin(t *testing.T, e *Engine) {
	t.Helper()
	st, err := e.BeginStep(context.Background(), StepNext, -1)
	require.NoError(t, err)
	require.Equal(t, StepOK, st)
}

// mustEnd ends a step.
func mustEnd(t *testing.T, e *Engine) {
	t.Helper()
	require.NoError(t, e.EndStep(context.Background()))
}

// rig shares one catalog and one transport store between sessions, the
// way separate processes share a catalog database and a filesystem.
type rig struct {
	cat   *catalogmemory.Catalog
	store *memory.Store
}

func newRig(name string) *rig {
	return &rig{cat: catalogmemory.New(), store: memory.NewStore(name)}
}

// open opens name in a session of its own.
func (g *rig) open(t *testing.T, name string, mode Mode, opts ...EngineOption) *Engine {
	t.Helper()
	ctx := context.Background()
	s := NewSession(WithCatalog(g.cat))
	t.Cleanup(func() { _ = s.Close(ctx) })
	opts = append([]EngineOption{WithTransports(memory.New(g.store))}, opts...)
	e, err := s.Open(ctx, name, mode, opts...)
	require.NoError(t, err)
	return e
}
