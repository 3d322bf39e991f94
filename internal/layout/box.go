package layout

import (
	"fmt"
	"math/bits"
	"slices"
)

// Box is a hyper-rectangle in a global index space.
type Box struct {
	Start []uint64
	Count []uint64
}

// NewBox returns a box, substituting zero starts when start is nil.
func NewBox(start, count []uint64) Box {
	if start == nil {
		start = make([]uint64, len(count))
	}
	return Box{Start: start, Count: count}
}

// Rank returns the number of dimensions.
func (b Box) Rank() int {
	return len(b.Count)
}

// Elements returns the number of elements in the box. A rank-0 box holds
// one element.
func (b Box) Elements() uint64 {
	return Elements(b.Count)
}

// Empty reports whether any dimension has zero extent.
func (b Box) Empty() bool {
	return slices.Contains(b.Count, 0)
}

// String renders the box as [start:end, ...].
func (b Box) String() string {
	s := "["
	for i := range b.Count {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d:%d", b.Start[i], b.Start[i]+b.Count[i])
	}
	return s + "]"
}

// Elements returns the product of count.
func Elements(count []uint64) uint64 {
	n := uint64(1)
	for _, c := range count {
		n *= c
	}
	return n
}

// Strides returns row-major element strides for a box of the given count.
func Strides(count []uint64) []uint64 {
	strides := make([]uint64, len(count))
	s := uint64(1)
	for i := len(count) - 1; i >= 0; i-- {
		strides[i] = s
		s *= count[i]
	}
	return strides
}

// Validate checks that start/count describe a box inside shape. A nil
// start is the origin. With a nil shape only the element count is checked.
func Validate(shape, start, count []uint64) error {
	if start == nil {
		start = make([]uint64, len(count))
	}
	if len(start) != len(count) {
		return fmt.Errorf("start has %d dimensions, count has %d", len(start), len(count))
	}
	n := uint64(1)
	for i, c := range count {
		hi, lo := bits.Mul64(n, c)
		if hi != 0 {
			return fmt.Errorf("dimension %d: element count overflows", i)
		}
		n = lo
	}
	if shape == nil {
		return nil
	}
	if len(shape) != len(count) {
		return fmt.Errorf("shape has %d dimensions, selection has %d", len(shape), len(count))
	}
	for i := range shape {
		if start[i] > shape[i] || count[i] > shape[i]-start[i] {
			return fmt.Errorf("dimension %d: %d+%d exceeds extent %d", i, start[i], count[i], shape[i])
		}
	}
	return nil
}

// Intersect returns the overlap of a and b. ok is false if they are
// disjoint or of different rank.
func Intersect(a, b Box) (Box, bool) {
	if a.Rank() != b.Rank() {
		return Box{}, false
	}
	out := Box{Start: make([]uint64, a.Rank()), Count: make([]uint64, a.Rank())}
	for i := range a.Count {
		lo := max(a.Start[i], b.Start[i])
		hi := min(a.Start[i]+a.Count[i], b.Start[i]+b.Count[i])
		if hi <= lo {
			return Box{}, false
		}
		out.Start[i] = lo
		out.Count[i] = hi - lo
	}
	return out, true
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner Box) bool {
	if outer.Rank() != inner.Rank() {
		return false
	}
	for i := range outer.Count {
		if inner.Start[i] < outer.Start[i] || inner.Start[i]+inner.Count[i] > outer.Start[i]+outer.Count[i] {
			return false
		}
	}
	return true
}
