package stepio

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robert-malhotra/go-stepio/catalog"
	"github.com/robert-malhotra/go-stepio/internal/dtype"
	"github.com/robert-malhotra/go-stepio/internal/layout"
	"github.com/robert-malhotra/go-stepio/internal/operator"
)

// variable is the engine's record of one variable.
type variable struct {
	name      string
	kind      dtype.Kind
	shape     catalog.Shape
	dims      []uint64
	start     []uint64
	count     []uint64
	blockID   int
	constant  bool
	operators []operator.Spec
	order     int

	// inquired is set once a reader asked for the variable.
	inquired bool
	// frozen is set for constant variables after their first step.
	frozen bool
	// published is set once the definition reached the catalog.
	published bool
}

func (v *variable) definition() catalog.Variable {
	ops := make([]string, len(v.operators))
	for i, s := range v.operators {
		ops[i] = s.String()
	}
	return catalog.Variable{
		Name:      v.name,
		Type:      v.kind,
		Shape:     v.shape,
		Dims:      slices.Clone(v.dims),
		Constant:  v.constant,
		Operators: strings.Join(ops, ","),
	}
}

// box returns the current selection.
func (v *variable) box() layout.Box {
	return layout.NewBox(v.start, v.count)
}

// snapshot returns a copy of the current selection.
func (v *variable) snapshot() layout.Box {
	return layout.NewBox(slices.Clone(v.start), slices.Clone(v.count))
}

// registry maps names to variables and remembers registration order.
type registry struct {
	byName map[string]*variable
	order  []*variable
	locked bool
}

func newRegistry() *registry {
	return &registry{byName: make(map[string]*variable)}
}

func (r *registry) add(v *variable) error {
	if _, ok := r.byName[v.name]; ok {
		return fmt.Errorf("%w: variable %q already defined", ErrInvalidState, v.name)
	}
	v.order = len(r.order)
	r.byName[v.name] = v
	r.order = append(r.order, v)
	return nil
}

func (r *registry) lookup(name string) (*variable, error) {
	v, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: variable %q", ErrNotFound, name)
	}
	return v, nil
}

// names returns the variable names in registration order.
func (r *registry) names() []string {
	out := make([]string, len(r.order))
	for i, v := range r.order {
		out[i] = v.name
	}
	return out
}

// Variable is a typed handle to a variable of an engine.
type Variable[T Element] struct {
	e *Engine
	v *variable
}

// Name returns the variable name.
func (v *Variable[T]) Name() string { return v.v.name }

// Type returns the element type.
func (v *Variable[T]) Type() Kind { return v.v.kind }

// ShapeKind reports whether the variable is a value, a global array or a
// local array.
func (v *Variable[T]) ShapeKind() catalog.Shape { return v.v.shape }

// Shape returns the global dimensions, nil for values and local arrays.
func (v *Variable[T]) Shape() []uint64 { return slices.Clone(v.v.dims) }

// Start returns the selection start.
func (v *Variable[T]) Start() []uint64 { return slices.Clone(v.v.start) }

// Count returns the selection count.
func (v *Variable[T]) Count() []uint64 { return slices.Clone(v.v.count) }

// Constant reports whether the variable was defined with WithConstant.
func (v *Variable[T]) Constant() bool { return v.v.constant }

// SetSelection sets the box of a global array a writer writes next or a
// reader reads next. Writers may also resize local arrays with a nil
// start.
func (v *Variable[T]) SetSelection(start, count []uint64) error {
	impl, err := v.e.get()
	if err != nil {
		return err
	}
	if err := impl.canSelect(v.v); err != nil {
		return err
	}

	switch v.v.shape {
	case catalog.ShapeValue:
		return fmt.Errorf("%w: %q is a value", ErrInvalidState, v.v.name)
	case catalog.ShapeLocalArray:
		if slices.ContainsFunc(start, func(s uint64) bool { return s != 0 }) {
			return fmt.Errorf("%w: local array %q has no start", ErrShapeMismatch, v.v.name)
		}
		if impl.role() == roleReader {
			return fmt.Errorf("%w: select a block of local array %q with SetBlockSelection", ErrInvalidState, v.v.name)
		}
		if err := layout.Validate(nil, nil, count); err != nil {
			return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
		}
		v.v.count = slices.Clone(count)
		return nil
	}

	if err := layout.Validate(v.v.dims, start, count); err != nil {
		return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	v.v.start = slices.Clone(start)
	if v.v.start == nil {
		v.v.start = make([]uint64, len(count))
	}
	v.v.count = slices.Clone(count)
	return nil
}

// SetBlockSelection makes a reader read block id (in writer order) of the
// current step. It applies to values and local arrays.
func (v *Variable[T]) SetBlockSelection(id int) error {
	impl, err := v.e.get()
	if err != nil {
		return err
	}
	if impl.role() != roleReader {
		return fmt.Errorf("%w: block selection is a read operation", ErrInvalidState)
	}
	if err := impl.canSelect(v.v); err != nil {
		return err
	}
	if id < 0 {
		return fmt.Errorf("%w: block %d", ErrNotFound, id)
	}
	v.v.blockID = id
	return nil
}

// DefineVariable defines a variable on a writer.
//
// A nil shape and nil count define a single value. A non-nil shape defines
// a global array of which this writer writes the box start/count (nil
// start means the origin). A nil shape with a count defines a local array.
func DefineVariable[T Element](e *Engine, name string, shape, start, count []uint64, opts ...VariableOption) (*Variable[T], error) {
	impl, err := e.get()
	if err != nil {
		return nil, err
	}
	w, ok := impl.(*writer)
	if !ok {
		return nil, fmt.Errorf("%w: DefineVariable on a %s", ErrInvalidState, impl.role())
	}
	if w.reg.locked {
		return nil, fmt.Errorf("%w: definitions are locked", ErrInvalidState)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: empty variable name", ErrInvalidState)
	}

	o := &variableOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.err != nil {
		return nil, o.err
	}

	v := &variable{
		name:      name,
		kind:      dtype.Of[T](),
		constant:  o.constant,
		operators: w.opts.operators,
	}
	if o.hasOps {
		v.operators = o.operators
	}

	switch {
	case shape == nil && count == nil:
		if start != nil {
			return nil, fmt.Errorf("%w: value %q with a start", ErrShapeMismatch, name)
		}
		v.shape = catalog.ShapeValue
	case shape == nil:
		if slices.ContainsFunc(start, func(s uint64) bool { return s != 0 }) {
			return nil, fmt.Errorf("%w: local array %q has no start", ErrShapeMismatch, name)
		}
		if err := layout.Validate(nil, nil, count); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
		}
		v.shape = catalog.ShapeLocalArray
		v.count = slices.Clone(count)
	default:
		if count == nil {
			count = shape
		}
		if err := layout.Validate(shape, start, count); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrShapeMismatch, err)
		}
		v.shape = catalog.ShapeGlobalArray
		v.dims = slices.Clone(shape)
		v.start = slices.Clone(start)
		if v.start == nil {
			v.start = make([]uint64, len(shape))
		}
		v.count = slices.Clone(count)
	}
	if err := w.reg.add(v); err != nil {
		return nil, err
	}
	return &Variable[T]{e: e, v: v}, nil
}

// InquireVariable returns a handle to an existing variable. On a reader it
// also marks the variable as selected for reading.
func InquireVariable[T Element](e *Engine, name string) (*Variable[T], error) {
	impl, err := e.get()
	if err != nil {
		return nil, err
	}
	v, err := impl.inquire(name)
	if err != nil {
		return nil, err
	}
	if want := dtype.Of[T](); v.kind != want {
		return nil, fmt.Errorf("%w: %q is %s, not %s", ErrTypeMismatch, name, v.kind, want)
	}
	return &Variable[T]{e: e, v: v}, nil
}

// handle resolves a typed handle against e.
func handle[T Element](e *Engine, v *Variable[T]) (engineImpl, *variable, error) {
	impl, err := e.get()
	if err != nil {
		return nil, nil, err
	}
	if v == nil || v.e != e {
		return nil, nil, fmt.Errorf("%w: variable does not belong to %s", ErrNotFound, e.name)
	}
	if want := dtype.Of[T](); v.v.kind != want {
		return nil, nil, fmt.Errorf("%w: %q is %s, not %s", ErrTypeMismatch, v.v.name, v.v.kind, want)
	}
	return impl, v.v, nil
}
