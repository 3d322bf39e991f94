package stepio

import (
	"context"
	"fmt"
	"slices"

	"github.com/robert-malhotra/go-stepio/internal/index"
)

// Sync transfers take no context; use Deferred with PerformPuts or
// PerformGets to bound transport I/O with a context.

func activeWriter(impl engineImpl) (*writer, error) {
	w, ok := impl.(*writer)
	if !ok {
		return nil, fmt.Errorf("%w: put on a %s", ErrInvalidState, impl.role())
	}
	if err := w.requireActive(); err != nil {
		return nil, err
	}
	return w, nil
}

func activeReader(impl engineImpl) (*reader, error) {
	r, ok := impl.(*reader)
	if !ok {
		return nil, fmt.Errorf("%w: get on a %s", ErrInvalidState, impl.role())
	}
	if err := r.requireActive(); err != nil {
		return nil, err
	}
	return r, nil
}

// Put writes data as the current selection of v. The caller may reuse
// data as soon as Put returns in either mode: deferred puts keep an
// encoded copy until they are materialised.
func Put[T Element](e *Engine, v *Variable[T], data []T, mode TransferMode) error {
	impl, vv, err := handle(e, v)
	if err != nil {
		return err
	}
	w, err := activeWriter(impl)
	if err != nil {
		return err
	}
	if want := w.selectionSize(vv); uint64(len(data)) != want {
		return fmt.Errorf("%w: %q selection holds %d elements, got %d", ErrShapeMismatch, vv.name, want, len(data))
	}

	p := encodePayload(data)
	r := putRequest{
		v:      vv,
		box:    vv.snapshot(),
		encode: func() payload { return p },
	}

	if mode == Sync {
		return w.materialize(context.Background(), r)
	}
	w.q.addPut(r)
	return nil
}

// PutValue writes a single value synchronously.
func PutValue[T Element](e *Engine, v *Variable[T], x T) error {
	return Put(e, v, []T{x}, Sync)
}

// PutNamed looks a variable up by name and puts data.
func PutNamed[T Element](e *Engine, name string, data []T, mode TransferMode) error {
	v, err := InquireVariable[T](e, name)
	if err != nil {
		return err
	}
	return Put(e, v, data, mode)
}

// PutSpan reserves an engine-owned buffer for the current selection of v
// and queues it as a deferred put. The caller fills the span before the
// next PerformPuts or EndStep, after which the span is invalid.
func PutSpan[T Element](e *Engine, v *Variable[T]) (*Span[T], error) {
	impl, vv, err := handle(e, v)
	if err != nil {
		return nil, err
	}
	w, err := activeWriter(impl)
	if err != nil {
		return nil, err
	}
	s, err := newSpan[T](w.arena, w.selectionSize(vv))
	if err != nil {
		return nil, err
	}

	w.q.addPut(putRequest{
		v:      vv,
		box:    vv.snapshot(),
		encode: func() payload { return encodePayload(s.data) },
	})
	setSpanBytes(w.opts.metrics, w.arena.inUse())
	return s, nil
}

// PutSpanFill is PutSpan with every element set to init.
func PutSpanFill[T Element](e *Engine, v *Variable[T], init T) (*Span[T], error) {
	s, err := PutSpan(e, v)
	if err != nil {
		return nil, err
	}
	if err := s.Fill(init); err != nil {
		return nil, err
	}
	return s, nil
}

// Get reads the current selection of v into dst. Sync fills dst before
// returning; Deferred fills it during the next PerformGets or EndStep and
// never earlier.
func Get[T Element](e *Engine, v *Variable[T], dst []T, mode TransferMode) error {
	impl, vv, err := handle(e, v)
	if err != nil {
		return err
	}
	r, err := activeReader(impl)
	if err != nil {
		return err
	}
	sel := r.selectionOf(vv)
	want, err := r.selectionSize(vv, sel)
	if err != nil {
		return err
	}
	if uint64(len(dst)) != want {
		return fmt.Errorf("%w: %q selection holds %d elements, buffer %d", ErrShapeMismatch, vv.name, want, len(dst))
	}

	fill := func(ctx context.Context) error {
		return readInto(ctx, r, vv, sel, dst)
	}
	if mode == Sync {
		return fill(context.Background())
	}
	r.q.addGet(getRequest{v: vv, fill: fill})
	return nil
}

// GetValue reads a value synchronously.
func GetValue[T Element](e *Engine, v *Variable[T]) (T, error) {
	var out [1]T
	if err := Get(e, v, out[:], Sync); err != nil {
		var zero T
		return zero, err
	}
	return out[0], nil
}

// GetNamed looks a variable up by name and gets it into dst.
func GetNamed[T Element](e *Engine, name string, dst []T, mode TransferMode) error {
	v, err := InquireVariable[T](e, name)
	if err != nil {
		return err
	}
	return Get(e, v, dst, mode)
}

// GetInto resizes *dst to the selection of v, reusing its capacity, and
// gets into it.
func GetInto[T Element](e *Engine, v *Variable[T], dst *[]T, mode TransferMode) error {
	impl, vv, err := handle(e, v)
	if err != nil {
		return err
	}
	r, err := activeReader(impl)
	if err != nil {
		return err
	}
	n, err := r.selectionSize(vv, r.selectionOf(vv))
	if err != nil {
		return err
	}
	*dst = slices.Grow((*dst)[:0], int(n))[:n]
	return Get(e, v, *dst, mode)
}

// ledgerOf returns the block ledger of e for v.
func ledgerOf[T Element](e *Engine, v *Variable[T]) (engineImpl, *index.Index, string, error) {
	impl, vv, err := handle(e, v)
	if err != nil {
		return nil, nil, "", err
	}
	idx, err := impl.blockIndex(context.Background())
	if err != nil {
		return nil, nil, "", err
	}
	return impl, idx, vv.name, nil
}

// BlocksInfo returns the blocks of v in step. A writer knows its own
// blocks, a reader every block of the steps visible to it. A step that is
// not finalised returns ErrNotFound.
func BlocksInfo[T Element](e *Engine, v *Variable[T], step int) ([]BlockInfo, error) {
	impl, idx, name, err := ledgerOf(e, v)
	if err != nil {
		return nil, err
	}
	if !impl.finalized(step) {
		return nil, fmt.Errorf("%w: step %d is not finalised", ErrNotFound, step)
	}
	return idx.Blocks(name, step), nil
}

// AllStepsBlocksInfo returns the blocks of v keyed by step.
func AllStepsBlocksInfo[T Element](e *Engine, v *Variable[T]) (map[int][]BlockInfo, error) {
	_, idx, name, err := ledgerOf(e, v)
	if err != nil {
		return nil, err
	}
	return idx.AllSteps(name), nil
}

// GetAbsoluteSteps returns the ascending steps in which v has blocks.
func GetAbsoluteSteps[T Element](e *Engine, v *Variable[T]) ([]int, error) {
	_, idx, name, err := ledgerOf(e, v)
	if err != nil {
		return nil, err
	}
	return idx.Steps(name), nil
}
