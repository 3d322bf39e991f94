package stepio

import (
	"context"
	"fmt"
	"time"

	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/internal/format"
	"github.com/robert-malhotra/go-stepio/internal/index"
	"github.com/robert-malhotra/go-stepio/internal/logger"
)

// writer produces steps of a dataset. Blocks are staged in the engine's
// index while the step is active and published to the catalog at EndStep.
type writer struct {
	*engineCore
	arena    *arena
	blockIDs map[string]int
	// stepErr is the first failure of the active step.
	stepErr error
	// used lists variables with a block in the active step.
	used map[*variable]bool
}

func openWriter(ctx context.Context, c *engineCore, mode Mode) (*writer, error) {
	st, err := c.cat.Status(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", c.name, err)
	}
	if st.Writers != 0 && st.Writers != c.opts.writers {
		return nil, fmt.Errorf("%w: dataset %q has %d writers, opened with %d",
			ErrInvalidState, c.name, st.Writers, c.opts.writers)
	}
	if mode == ModeWrite && st.Settled > 0 {
		return nil, fmt.Errorf("%w: dataset %q already has %d steps; open it with ModeAppend",
			ErrInvalidState, c.name, st.Settled)
	}

	w := &writer{
		engineCore: c,
		arena:      newArena(c.opts.spanPageSize),
		blockIDs:   make(map[string]int),
		used:       make(map[*variable]bool),
	}
	if mode == ModeAppend {
		w.step = st.Settled
	}
	return w, nil
}

func (w *writer) role() role { return roleWriter }

func (w *writer) core() *engineCore { return w.engineCore }

func (w *writer) beginStep(ctx context.Context, _ StepMode, _ time.Duration) (StepStatus, error) {
	if w.active {
		return StepNotReady, fmt.Errorf("%w: step %d is active", ErrInvalidState, w.step)
	}
	w.active = true
	w.log.Debug("begin step", logger.KeyStep, w.step)
	return StepOK, nil
}

func (w *writer) fail(err error) {
	if err != nil && w.stepErr == nil {
		w.stepErr = err
	}
}

func (w *writer) selectionSize(v *variable) uint64 {
	if v.shape == catalog.ShapeValue {
		return 1
	}
	return v.box().Elements()
}

// materialize encodes one request into a block record, writes it to every
// transport and stages its metadata.
func (w *writer) materialize(ctx context.Context, r putRequest) error {
	p := r.encode()
	v := r.v
	id := w.blockIDs[v.name]
	w.blockIDs[v.name]++

	h := format.Header{
		Variable:  v.name,
		Kind:      v.kind,
		Step:      uint64(w.step),
		Writer:    uint32(w.opts.rank),
		BlockID:   uint32(id),
		IsValue:   v.shape == catalog.ShapeValue,
		Shape:     v.dims,
		Start:     r.box.Start,
		Count:     r.box.Count,
		Operators: v.operators,
		Elements:  p.elements,
	}
	if v.shape != catalog.ShapeGlobalArray {
		h.Start = nil
	}
	if h.IsValue {
		h.Count = nil
	}
	record, err := format.Encode(h, p.data)
	if err != nil {
		err = fmt.Errorf("encode %q: %w", v.name, err)
		w.fail(err)
		return err
	}

	locs, err := w.ts.write(ctx, blockKey(w.name, w.step, w.opts.rank, v.name, id), record)
	recordBytes(w.opts.metrics, "put", len(p.data))
	if len(locs) > 0 {
		w.idx.Stage(catalog.Block{
			Variable: v.name,
			Step:     w.step,
			WriterID: w.opts.rank,
			BlockID:  id,
			Type:     v.kind,
			Shape:    h.Shape,
			Start:    h.Start,
			Count:    h.Count,
			Locators: locs,
			Min:      p.min,
			Max:      p.max,
			IsValue:  h.IsValue,
		})
		w.used[v] = true
	}
	if err == nil && len(locs) == 0 {
		err = fmt.Errorf("%w: no transport attached", ErrTransport)
	}
	w.fail(err)
	return err
}

// blockKey names the record of one block on the transports.
func blockKey(dataset string, step, rank int, variable string, id int) string {
	return fmt.Sprintf("%s/%d/%d/%s/%d", dataset, step, rank, variable, id)
}

func (w *writer) performPuts(ctx context.Context) error {
	if err := w.requireActive(); err != nil {
		return err
	}
	var first error
	for _, r := range w.q.takePuts() {
		if err := w.materialize(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	w.arena.reset()
	setSpanBytes(w.opts.metrics, 0)
	return first
}

func (w *writer) performGets(context.Context) error {
	return fmt.Errorf("%w: PerformGets on a writer", ErrInvalidState)
}

func (w *writer) performDataWrite(ctx context.Context) error {
	if err := w.requireActive(); err != nil {
		return err
	}
	err := w.performPuts(ctx)
	if ferr := w.ts.flush(ctx, AllTransports); ferr != nil {
		w.fail(ferr)
		if err == nil {
			err = ferr
		}
	}
	return err
}

// publishDefinitions sends definitions the catalog has not seen yet.
func (w *writer) publishDefinitions(ctx context.Context) error {
	var defs []catalog.Variable
	var vars []*variable
	for _, v := range w.reg.order {
		if !v.published {
			defs = append(defs, v.definition())
			vars = append(vars, v)
		}
	}
	if len(defs) == 0 {
		return nil
	}
	if err := w.cat.DefineVariables(ctx, w.name, defs); err != nil {
		return fmt.Errorf("define variables: %w", err)
	}
	for _, v := range vars {
		v.published = true
	}
	return nil
}

func (w *writer) endStep(ctx context.Context) error {
	if err := w.requireActive(); err != nil {
		return err
	}
	ctx, span := w.startSpan(ctx, "EndStep")
	start := time.Now()

	_ = w.performPuts(ctx)
	if err := w.ts.flush(ctx, AllTransports); err != nil {
		w.fail(err)
	}
	if w.stepErr == nil {
		w.fail(w.publishDefinitions(ctx))
	}
	if w.stepErr == nil {
		blocks := w.idx.Staged()
		if err := w.cat.CommitStep(ctx, w.name, w.opts.rank, w.opts.writers, w.step, blocks); err != nil {
			w.fail(fmt.Errorf("commit step %d: %w", w.step, err))
		}
	}

	err := w.stepErr
	if err == nil {
		blocks := w.idx.Commit(w.step)
		for v := range w.used {
			if v.constant {
				v.frozen = true
			}
		}
		w.log.Debug("end step", logger.KeyStep, w.step, logger.KeyBlocks, len(blocks),
			logger.KeyDurationMs, logger.Duration(start))
	} else {
		w.idx.Discard()
		if aerr := w.cat.AbortStep(ctx, w.name, w.opts.rank, w.opts.writers, w.step); aerr != nil {
			w.log.Error("abort step", logger.KeyStep, w.step, logger.Err(aerr))
		}
		w.log.Warn("step failed", logger.KeyStep, w.step, logger.Err(err))
	}

	w.step++
	w.active = false
	w.stepErr = nil
	clear(w.blockIDs)
	clear(w.used)

	observeStep(w.opts.metrics, string(roleWriter), time.Since(start), err)
	endSpan(span, err)
	return err
}

func (w *writer) steps() int { return w.step }

func (w *writer) blockIndex(context.Context) (*index.Index, error) { return w.idx, nil }

// finalized reports whether step ended on this writer. Steps before an
// appending writer's first step count as ended.
func (w *writer) finalized(step int) bool { return step >= 0 && step < w.step }

func (w *writer) lockDefinitions() error {
	w.reg.locked = true
	return nil
}

func (w *writer) lockSelections() error {
	return fmt.Errorf("%w: LockReaderSelections on a writer", ErrInvalidState)
}

func (w *writer) inquire(name string) (*variable, error) {
	return w.reg.lookup(name)
}

func (w *writer) canSelect(v *variable) error {
	if w.reg.locked {
		return fmt.Errorf("%w: definitions are locked", ErrInvalidState)
	}
	if v.frozen {
		return fmt.Errorf("%w: %q is constant", ErrInvalidState, v.name)
	}
	return nil
}

func (w *writer) close(ctx context.Context, idx int) error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if w.active {
		keep(w.endStep(ctx))
	}
	keep(w.cat.Finish(ctx, w.name, w.opts.rank, w.opts.writers))
	keep(w.ts.close(ctx, idx))
	w.arena.reset()
	return first
}
