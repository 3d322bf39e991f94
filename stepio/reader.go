package stepio

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/internal/dtype"
	"github.com/robert-malhotra/go-stepio/internal/format"
	"github.com/robert-malhotra/go-stepio/internal/index"
	"github.com/robert-malhotra/go-stepio/internal/layout"
	"github.com/robert-malhotra/go-stepio/internal/logger"
)

// reader consumes the visible steps of a dataset from the catalog.
type reader struct {
	*engineCore
	status catalog.Status
	// last is the most recent step read, -1 before the first.
	last   int
	locked bool
	eos    bool
	// payloads caches decoded block payloads of the active step.
	payloads map[string][]byte
}

func openReader(ctx context.Context, c *engineCore) (*reader, error) {
	r := &reader{engineCore: c, last: -1, payloads: make(map[string][]byte)}
	st, err := c.cat.Status(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", c.name, err)
	}
	r.status = st
	if err := r.refreshVariables(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *reader) role() role { return roleReader }

func (r *reader) core() *engineCore { return r.engineCore }

// refreshVariables adds definitions that appeared in the catalog.
func (r *reader) refreshVariables(ctx context.Context) error {
	defs, err := r.cat.Variables(ctx, r.name)
	if err != nil {
		return fmt.Errorf("variables of %q: %w", r.name, err)
	}
	for _, d := range defs {
		if _, ok := r.reg.byName[d.Name]; ok {
			continue
		}
		v := &variable{
			name:     d.Name,
			kind:     d.Type,
			shape:    d.Shape,
			dims:     slices.Clone(d.Dims),
			constant: d.Constant,
		}
		if d.Shape == catalog.ShapeGlobalArray {
			v.start = make([]uint64, len(d.Dims))
			v.count = slices.Clone(d.Dims)
		}
		if err := r.reg.add(v); err != nil {
			return err
		}
	}
	return nil
}

// pick selects the step mode asks for among the visible unread steps.
func (r *reader) pick(st catalog.Status, mode StepMode) (int, bool) {
	var unread []int
	for _, s := range st.Steps {
		if s > r.last {
			unread = append(unread, s)
		}
	}
	if len(unread) == 0 {
		return 0, false
	}
	if mode == StepLatest {
		return unread[len(unread)-1], true
	}
	return unread[0], true
}

func (r *reader) beginStep(ctx context.Context, mode StepMode, timeout time.Duration) (StepStatus, error) {
	if r.active {
		return StepNotReady, fmt.Errorf("%w: step %d is active", ErrInvalidState, r.step)
	}
	if r.eos {
		return StepEndOfStream, nil
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		st, err := r.cat.Status(ctx, r.name)
		if err != nil {
			return StepNotReady, err
		}
		r.status = st

		if step, ok := r.pick(st, mode); ok {
			if err := r.load(ctx, step); err != nil {
				return StepNotReady, err
			}
			return StepOK, nil
		}
		if st.Finished {
			r.eos = true
			r.log.Debug("end of stream", logger.KeyStep, r.last)
			return StepEndOfStream, nil
		}

		wait := r.opts.pollInterval
		switch {
		case timeout == 0:
			return StepNotReady, nil
		case timeout > 0:
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return StepNotReady, nil
			}
			wait = min(wait, remaining)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return StepNotReady, ctx.Err()
		case <-timer.C:
		}
	}
}

// load makes step the active step.
func (r *reader) load(ctx context.Context, step int) error {
	blocks, err := r.cat.Step(ctx, r.name, step)
	if err != nil {
		return fmt.Errorf("load step %d: %w", step, err)
	}
	if err := r.refreshVariables(ctx); err != nil {
		return err
	}
	r.idx.Load(step, blocks)
	r.step = step
	r.active = true
	r.log.Debug("begin step", logger.KeyStep, step, logger.KeyBlocks, len(blocks))
	return nil
}

func (r *reader) endStep(ctx context.Context) error {
	if err := r.requireActive(); err != nil {
		return err
	}
	ctx, span := r.startSpan(ctx, "EndStep")
	start := time.Now()

	err := r.performGets(ctx)
	clear(r.payloads)
	r.last = r.step
	r.active = false

	observeStep(r.opts.metrics, string(roleReader), time.Since(start), err)
	endSpan(span, err)
	return err
}

func (r *reader) steps() int { return len(r.status.Steps) }

// blockIndex loads the visible steps the reader has not begun, including
// steps StepLatest skipped.
func (r *reader) blockIndex(ctx context.Context) (*index.Index, error) {
	for _, step := range r.status.Steps {
		if r.idx.Has(step) {
			continue
		}
		blocks, err := r.cat.Step(ctx, r.name, step)
		if err != nil {
			return nil, fmt.Errorf("load step %d: %w", step, err)
		}
		r.idx.Load(step, blocks)
	}
	return r.idx, nil
}

func (r *reader) finalized(step int) bool {
	return slices.Contains(r.status.Steps, step)
}

func (r *reader) performPuts(context.Context) error {
	return fmt.Errorf("%w: PerformPuts on a reader", ErrInvalidState)
}

func (r *reader) performDataWrite(context.Context) error {
	return fmt.Errorf("%w: PerformDataWrite on a reader", ErrInvalidState)
}

func (r *reader) performGets(ctx context.Context) error {
	if err := r.requireActive(); err != nil {
		return err
	}
	var first error
	for _, g := range r.q.takeGets() {
		if err := g.fill(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *reader) lockDefinitions() error {
	return fmt.Errorf("%w: LockWriterDefinitions on a reader", ErrInvalidState)
}

func (r *reader) lockSelections() error {
	r.locked = true
	return nil
}

func (r *reader) inquire(name string) (*variable, error) {
	v, err := r.reg.lookup(name)
	if err != nil {
		return nil, err
	}
	if r.locked && !v.inquired {
		return nil, fmt.Errorf("%w: selections are locked; %q was not inquired before", ErrInvalidState, name)
	}
	v.inquired = true
	return v, nil
}

func (r *reader) canSelect(*variable) error {
	if r.locked {
		return fmt.Errorf("%w: selections are locked", ErrInvalidState)
	}
	return nil
}

func (r *reader) close(ctx context.Context, idx int) error {
	var first error
	if r.active {
		first = r.endStep(ctx)
	}
	if err := r.ts.close(ctx, idx); err != nil && first == nil {
		first = err
	}
	return first
}

// selection is a read request's snapshot of a variable's selection.
type selection struct {
	box     layout.Box
	blockID int
}

func (r *reader) selectionOf(v *variable) selection {
	return selection{
		box:     v.snapshot(),
		blockID: v.blockID,
	}
}

// selectedBlock returns the block a value or local array read addresses.
func (r *reader) selectedBlock(v *variable, sel selection) (catalog.Block, error) {
	blocks := r.idx.Blocks(v.name, r.step)
	if sel.blockID >= len(blocks) {
		return catalog.Block{}, fmt.Errorf("%w: block %d of %q in step %d (have %d)",
			ErrNotFound, sel.blockID, v.name, r.step, len(blocks))
	}
	return blocks[sel.blockID], nil
}

// selectionSize returns the element count a read of sel produces.
func (r *reader) selectionSize(v *variable, sel selection) (uint64, error) {
	switch v.shape {
	case catalog.ShapeGlobalArray:
		return sel.box.Elements(), nil
	case catalog.ShapeValue:
		if _, err := r.selectedBlock(v, sel); err != nil {
			return 0, err
		}
		return 1, nil
	default:
		b, err := r.selectedBlock(v, sel)
		if err != nil {
			return 0, err
		}
		return layout.Elements(b.Count), nil
	}
}

// payload returns the decoded payload bytes of b, reading through the
// block's locators in order.
func (r *reader) payload(ctx context.Context, b catalog.Block) ([]byte, error) {
	key := blockKey(r.name, b.Step, b.WriterID, b.Variable, b.BlockID)
	if p, ok := r.payloads[key]; ok {
		return p, nil
	}

	var p []byte
	_, err := r.ts.read(ctx, b.Locators, func(record []byte) error {
		h, data, err := format.Decode(record)
		if err != nil {
			return err
		}
		if h.Variable != b.Variable || h.Kind != b.Type || int(h.Step) != b.Step {
			return fmt.Errorf("record %s/%d does not match block %s/%d",
				h.Variable, h.Step, b.Variable, b.Step)
		}
		p = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	recordBytes(r.opts.metrics, "get", len(p))
	r.payloads[key] = p
	return p, nil
}

// readInto copies the selection of v in the active step into dst, whose
// length was checked against the selection when the request was issued.
func readInto[T Element](ctx context.Context, r *reader, v *variable, sel selection, dst []T) error {
	decode := func(b catalog.Block) ([]T, error) {
		p, err := r.payload(ctx, b)
		if err != nil {
			return nil, err
		}
		n := layout.Elements(b.Count)
		if b.IsValue {
			n = 1
		}
		out := make([]T, n)
		if _, err := dtype.DecodeInto(out, p); err != nil {
			return nil, fmt.Errorf("decode %q block %d: %w", b.Variable, b.BlockID, err)
		}
		return out, nil
	}

	if v.shape != catalog.ShapeGlobalArray {
		b, err := r.selectedBlock(v, sel)
		if err != nil {
			return err
		}
		data, err := decode(b)
		if err != nil {
			return err
		}
		if len(data) != len(dst) {
			return fmt.Errorf("%w: block has %d elements, buffer %d", ErrShapeMismatch, len(data), len(dst))
		}
		copy(dst, data)
		return nil
	}

	covered := layout.NewCovered(sel.box)
	for _, b := range r.idx.Blocks(v.name, r.step) {
		box := layout.NewBox(b.Start, b.Count)
		if _, ok := layout.Intersect(sel.box, box); !ok {
			continue
		}
		data, err := decode(b)
		if err != nil {
			return err
		}
		layout.CopyOverlap(dst, sel.box, data, box)
		covered.Mark(box)
	}
	if !covered.Complete() {
		return fmt.Errorf("%w: selection %s of %q not fully written in step %d",
			ErrNotFound, sel.box, v.name, r.step)
	}
	return nil
}
