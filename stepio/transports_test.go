package stepio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-stepio/transport"
	"github.com/robert-malhotra/go-stepio/transport/memory"
)

func TestWriteFailureAccumulates(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	bad := newFake("bad", rec)
	bad.failWrite = errBoom
	good := newFake("good", rec)

	s := NewSession()
	defer s.Close(ctx)
	w, err := s.Open(ctx, "acc", ModeWrite, WithTransports(bad, good))
	require.NoError(t, err)
	v, err := DefineVariable[int32](w, "v", nil, nil, nil)
	require.NoError(t, err)

	mustBegin(t, w)
	err = PutValue(w, v, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, errBoom)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 0, terr.Index)
	assert.Equal(t, "bad", terr.Name)
	assert.Equal(t, "write", terr.Op)

	assert.Len(t, good.records, 1, "the healthy transport still got the record")

	err = w.EndStep(ctx)
	assert.ErrorIs(t, err, ErrTransport, "the step carries the failure")
	assert.Equal(t, 1, w.Steps())
}

func TestFlushFailureDiscardsStep(t *testing.T) {
	ctx := context.Background()
	g := newRig("discard")
	rec := &recorder{}
	flaky := newFake("flaky", rec)
	flaky.failFlush = errBoom

	w := g.open(t, "d", ModeWrite)
	idx, err := w.AttachTransport(flaky)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, 2, w.Transports())

	v, err := DefineVariable[int64](w, "v", nil, nil, nil)
	require.NoError(t, err)

	mustBegin(t, w)
	require.NoError(t, PutValue(w, v, 100))
	err = w.EndStep(ctx)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, terr.Index)
	assert.Equal(t, "flush", terr.Op)

	flaky.failFlush = nil
	mustBegin(t, w)
	cur, err := w.CurrentStep()
	require.NoError(t, err)
	assert.Equal(t, 1, cur, "the failed step number is not reused")
	require.NoError(t, PutValue(w, v, 101))
	mustEnd(t, w)
	require.NoError(t, w.Close(ctx, AllTransports))

	r := g.open(t, "d", ModeRead)
	mustBegin(t, r)
	cur, err = r.CurrentStep()
	require.NoError(t, err)
	assert.Equal(t, 1, cur, "the aborted step is skipped")
	rv, err := InquireVariable[int64](r, "v")
	require.NoError(t, err)
	got, err := GetValue(r, rv)
	require.NoError(t, err)
	assert.Equal(t, int64(101), got)
	mustEnd(t, r)

	st, err := r.BeginStep(ctx, StepNext, 0)
	require.NoError(t, err)
	assert.Equal(t, StepEndOfStream, st)
}

func TestFlushAddressesTransports(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	a, b := newFake("a", rec), newFake("b", rec)
	a.failFlush = errBoom

	s := NewSession()
	defer s.Close(ctx)
	w, err := s.Open(ctx, "flush", ModeWrite, WithTransports(a, b))
	require.NoError(t, err)

	require.NoError(t, w.Flush(ctx, 1))
	assert.Equal(t, []string{"b:flush"}, rec.list())

	err = w.Flush(ctx, AllTransports)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"b:flush", "a:flush", "b:flush"}, rec.list(), "b is flushed although a failed")
}

func TestCloseOrder(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	a, b, c := newFake("a", rec), newFake("b", rec), newFake("c", rec)
	a.failClose = errBoom

	s := NewSession()
	defer s.Close(ctx)
	w, err := s.Open(ctx, "order", ModeWrite, WithTransports(a, b, c))
	require.NoError(t, err)

	err = w.Close(ctx, 1)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, []string{"b:close", "a:close", "c:close"}, rec.list())
	assert.True(t, a.closed && b.closed && c.closed)

	assert.ErrorIs(t, w.Close(ctx, AllTransports), ErrUseAfterClose, "the engine is closed despite the error")
}

func TestReadFallsBackToLaterLocator(t *testing.T) {
	ctx := context.Background()
	g := newRig("fallback")
	primary := memory.NewStore("a")
	mirror := memory.NewStore("b")

	w2, err := NewSession(WithCatalog(g.cat)).Open(ctx, "fb2", ModeWrite,
		WithTransports(memory.New(primary), memory.New(mirror)))
	require.NoError(t, err)

	v, err := DefineVariable[float32](w2, "v", []uint64{3}, nil, nil)
	require.NoError(t, err)
	mustBegin(t, w2)
	require.NoError(t, Put(w2, v, []float32{1.5, 2.5, 3.5}, Deferred))
	mustEnd(t, w2)
	require.NoError(t, w2.Close(ctx, AllTransports))

	blocks, err := g.cat.Step(ctx, "fb2", 0)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Len(t, blocks[0].Locators, 2)
	assert.Equal(t, "memory:a", blocks[0].Locators[0].Transport)
	assert.Equal(t, "memory:b", blocks[0].Locators[1].Transport)

	// The reader's "a" is a different, empty store with the same name.
	lost := memory.NewStore("a")
	r, err := NewSession(WithCatalog(g.cat)).Open(ctx, "fb2", ModeRead,
		WithTransports(memory.New(lost), memory.New(mirror)))
	require.NoError(t, err)
	mustBegin(t, r)
	got := make([]float32, 3)
	require.NoError(t, GetNamed(r, "v", got, Sync))
	assert.Equal(t, []float32{1.5, 2.5, 3.5}, got)
	require.NoError(t, r.Close(ctx, AllTransports))

	r, err = NewSession(WithCatalog(g.cat)).Open(ctx, "fb2", ModeRead,
		WithTransports(memory.New(lost)))
	require.NoError(t, err)
	mustBegin(t, r)
	err = GetNamed(r, "v", got, Sync)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

func TestReadRejectsForeignRecord(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	f := newFake("f", rec)

	s := NewSession()
	defer s.Close(ctx)
	w, err := s.Open(ctx, "foreign", ModeWrite, WithTransports(f))
	require.NoError(t, err)
	v, err := DefineVariable[int32](w, "v", nil, nil, nil)
	require.NoError(t, err)
	mustBegin(t, w)
	require.NoError(t, PutValue(w, v, 5))
	mustEnd(t, w)

	// Overwrite the record with garbage behind the catalog's back.
	f.put(blockKey("foreign", 0, 0, "v", 0), []byte("not a record"))
	require.NoError(t, w.Close(ctx, AllTransports))

	r, err := s.Open(ctx, "foreign", ModeRead, WithTransports(f))
	require.NoError(t, err)
	mustBegin(t, r)
	rv, err := InquireVariable[int32](r, "v")
	require.NoError(t, err)
	_, err = GetValue(r, rv)
	assert.ErrorIs(t, err, ErrTransport)
}
