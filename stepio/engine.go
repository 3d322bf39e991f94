package stepio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/internal/index"
	"github.com/robert-malhotra/go-stepio/internal/logger"
	"github.com/robert-malhotra/go-stepio/transport"
)

type role string

const (
	roleWriter role = "writer"
	roleReader role = "reader"
)

// engineImpl is the behaviour behind an Engine handle. The writer and the
// reader are the two variants.
type engineImpl interface {
	role() role
	core() *engineCore

	beginStep(ctx context.Context, mode StepMode, timeout time.Duration) (StepStatus, error)
	endStep(ctx context.Context) error
	steps() int
	// blockIndex returns the ledger with every finalised step this engine
	// can see; finalized reports whether step is one of them.
	blockIndex(ctx context.Context) (*index.Index, error)
	finalized(step int) bool

	performPuts(ctx context.Context) error
	performGets(ctx context.Context) error
	performDataWrite(ctx context.Context) error

	lockDefinitions() error
	lockSelections() error

	inquire(name string) (*variable, error)
	canSelect(v *variable) error

	close(ctx context.Context, idx int) error
}

// engineCore is the state both variants share.
type engineCore struct {
	name   string
	opts   *engineOptions
	cat    catalog.Catalog
	reg    *registry
	idx    *index.Index
	ts     *transports
	q      queue
	log    *slog.Logger
	tracer trace.Tracer

	active bool
	step   int
}

func newEngineCore(name string, o *engineOptions, log *slog.Logger) *engineCore {
	c := &engineCore{
		name:   name,
		opts:   o,
		cat:    o.catalog,
		reg:    newRegistry(),
		idx:    index.New(),
		log:    log,
		tracer: o.tracer,
	}
	c.ts = &transports{log: log, metrics: o.metrics}
	for _, t := range o.transports {
		c.ts.attach(t)
	}
	return c
}

func (c *engineCore) requireActive() error {
	if !c.active {
		return fmt.Errorf("%w: no active step", ErrInvalidState)
	}
	return nil
}

func (c *engineCore) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "stepio."+op, trace.WithAttributes(
		attribute.String("stepio.engine", c.name),
		attribute.Int("stepio.step", c.step),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Engine is a handle to an open writer or reader. It is driven by one
// goroutine; concurrent calls on the same Engine are not supported. After
// Close every method fails with ErrUseAfterClose.
type Engine struct {
	name    string
	mode    Mode
	kind    role
	impl    engineImpl
	session *Session
}

func (e *Engine) get() (engineImpl, error) {
	if e == nil || e.impl == nil {
		return nil, ErrUseAfterClose
	}
	return e.impl, nil
}

// Name returns the dataset name the engine was opened with.
func (e *Engine) Name() string { return e.name }

// Type returns "writer" or "reader".
func (e *Engine) Type() string { return string(e.kind) }

// OpenMode returns the mode the engine was opened with.
func (e *Engine) OpenMode() Mode { return e.mode }

func (e *Engine) String() string {
	return fmt.Sprintf("Engine(Name: %q, Type: %q)", e.name, e.kind)
}

// BeginStep starts a step.
//
// Writers always get StepOK and ignore mode and timeout. Readers wait for
// a step selected by mode: a negative timeout waits until one is available
// or ctx ends, zero checks once, and a positive timeout bounds the wait.
// StepNotReady reports an expired timeout and StepEndOfStream a finished
// dataset with nothing left to read; neither is an error.
func (e *Engine) BeginStep(ctx context.Context, mode StepMode, timeout time.Duration) (StepStatus, error) {
	impl, err := e.get()
	if err != nil {
		return StepNotReady, err
	}
	return impl.beginStep(ctx, mode, timeout)
}

// EndStep materialises every deferred request of the step, flushes all
// transports and publishes the step's blocks. On failure the step's blocks
// are discarded and the first error is returned; the step number is not
// reused either way.
func (e *Engine) EndStep(ctx context.Context) error {
	impl, err := e.get()
	if err != nil {
		return err
	}
	return impl.endStep(ctx)
}

// CurrentStep returns the step being written or read. It fails outside a
// step.
func (e *Engine) CurrentStep() (int, error) {
	impl, err := e.get()
	if err != nil {
		return 0, err
	}
	c := impl.core()
	if err := c.requireActive(); err != nil {
		return 0, err
	}
	return c.step, nil
}

// Steps returns the number of steps written by a writer, or the number of
// steps currently visible to a reader. It returns 0 after Close.
func (e *Engine) Steps() int {
	impl, err := e.get()
	if err != nil {
		return 0
	}
	return impl.steps()
}

// PerformPuts materialises the deferred puts of the current step. All
// spans become invalid.
func (e *Engine) PerformPuts(ctx context.Context) error {
	impl, err := e.get()
	if err != nil {
		return err
	}
	return impl.performPuts(ctx)
}

// PerformGets fills the buffers of the deferred gets of the current step.
func (e *Engine) PerformGets(ctx context.Context) error {
	impl, err := e.get()
	if err != nil {
		return err
	}
	return impl.performGets(ctx)
}

// PerformDataWrite materialises deferred puts and flushes every transport
// without ending the step.
func (e *Engine) PerformDataWrite(ctx context.Context) error {
	impl, err := e.get()
	if err != nil {
		return err
	}
	return impl.performDataWrite(ctx)
}

// LockWriterDefinitions freezes the variable definitions and selections of
// a writer. It cannot be undone.
func (e *Engine) LockWriterDefinitions() error {
	impl, err := e.get()
	if err != nil {
		return err
	}
	return impl.lockDefinitions()
}

// LockReaderSelections freezes the set of inquired variables and their
// selections of a reader. It cannot be undone.
func (e *Engine) LockReaderSelections() error {
	impl, err := e.get()
	if err != nil {
		return err
	}
	return impl.lockSelections()
}

// Flush pushes written bytes of transport idx, or of every transport for
// AllTransports, to their visible boundary. Every addressed transport is
// flushed even if an earlier one fails; the first failure is returned.
func (e *Engine) Flush(ctx context.Context, idx int) error {
	impl, err := e.get()
	if err != nil {
		return err
	}
	c := impl.core()
	ctx, span := c.startSpan(ctx, "Flush")
	err = c.ts.flush(ctx, idx)
	endSpan(span, err)
	return err
}

// Close ends an active step, marks a writer finished, closes transport
// idx and then every other transport, and releases the handle. The handle
// is closed even when an error is returned; closing it again fails with
// ErrUseAfterClose.
func (e *Engine) Close(ctx context.Context, idx int) error {
	impl, err := e.get()
	if err != nil {
		return err
	}
	c := impl.core()
	if _, err := c.ts.targets(idx); err != nil {
		return err
	}

	ctx, span := c.startSpan(ctx, "Close")
	err = impl.close(ctx, idx)
	endSpan(span, err)

	e.impl = nil
	if e.session != nil {
		e.session.remove(e.name, e)
	}
	c.log.Debug("engine closed", logger.Err(err))
	return err
}

// AttachTransport adds a transport and returns its index.
func (e *Engine) AttachTransport(t transport.Transport) (int, error) {
	impl, err := e.get()
	if err != nil {
		return 0, err
	}
	if t == nil {
		return 0, fmt.Errorf("%w: nil transport", ErrInvalidState)
	}
	return impl.core().ts.attach(t), nil
}

// Transports returns the number of attached transports.
func (e *Engine) Transports() int {
	impl, err := e.get()
	if err != nil {
		return 0
	}
	return impl.core().ts.len()
}

// Variables returns the variable names known to the engine in definition
// order.
func (e *Engine) Variables() []string {
	impl, err := e.get()
	if err != nil {
		return nil
	}
	return impl.core().reg.names()
}

// DebugDataBufferSize returns the bytes reserved in the span arena.
func (e *Engine) DebugDataBufferSize() uint64 {
	impl, err := e.get()
	if err != nil {
		return 0
	}
	if w, ok := impl.(*writer); ok {
		return w.arena.inUse()
	}
	return 0
}
