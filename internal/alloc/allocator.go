package alloc

import (
	"fmt"
	"slices"
	"sync"
)

// Allocator manages ranges of a linear offset space.
type Allocator struct {
	mu sync.Mutex

	// end is the next offset handed out by append allocation.
	end  uint64
	base uint64

	live []Allocation
	free []Range

	stats Stats
}

// Allocation is a live range.
type Allocation struct {
	Offset uint64
	Size   uint64
	Tag    string
}

// Range is a freed range available for reuse.
type Range struct {
	Offset uint64
	Size   uint64
}

// Stats contains allocation statistics.
type Stats struct {
	Allocations    uint64 // ranges handed out since the last Reset
	BytesAllocated uint64
	BytesFreed     uint64
	BytesInUse     uint64
	Largest        uint64
	Reused         uint64 // allocations satisfied from freed ranges
}

// New creates an allocator whose first range starts at base.
func New(base uint64) *Allocator {
	return &Allocator{end: base, base: base}
}

// Alloc returns the offset of a new range of the given size.
func (a *Allocator) Alloc(size uint64) uint64 {
	return a.AllocTagged(size, "")
}

// AllocTagged allocates a range and records tag with it.
func (a *Allocator) AllocTagged(size uint64, tag string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.allocLocked(size, 1, tag)
}

// AllocAligned returns a range whose offset is a multiple of alignment.
func (a *Allocator) AllocAligned(size, alignment uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.allocLocked(size, alignment, "")
}

func (a *Allocator) allocLocked(size, alignment uint64, tag string) uint64 {
	if alignment == 0 {
		alignment = 1
	}
	if size == 0 {
		return alignUp(a.end, alignment)
	}

	off, ok := a.takeFreeLocked(size, alignment)
	if ok {
		a.stats.Reused++
	} else {
		off = alignUp(a.end, alignment)
		a.end = off + size
	}

	a.live = append(a.live, Allocation{Offset: off, Size: size, Tag: tag})
	a.stats.Allocations++
	a.stats.BytesAllocated += size
	a.stats.BytesInUse += size
	a.stats.Largest = max(a.stats.Largest, size)
	return off
}

// takeFreeLocked carves an aligned range out of the first free range
// large enough to hold it. Leftovers on either side stay free.
func (a *Allocator) takeFreeLocked(size, alignment uint64) (uint64, bool) {
	for i, r := range a.free {
		off := alignUp(r.Offset, alignment)
		if off+size > r.Offset+r.Size {
			continue
		}
		var rest []Range
		if off > r.Offset {
			rest = append(rest, Range{Offset: r.Offset, Size: off - r.Offset})
		}
		if tail := r.Offset + r.Size - (off + size); tail > 0 {
			rest = append(rest, Range{Offset: off + size, Size: tail})
		}
		a.free = slices.Replace(a.free, i, i+1, rest...)
		return off, true
	}
	return 0, false
}

// Free returns a live range for reuse. Unknown ranges are ignored.
func (a *Allocator) Free(offset, size uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := slices.IndexFunc(a.live, func(l Allocation) bool {
		return l.Offset == offset && l.Size == size
	})
	if i < 0 {
		return
	}
	a.live = slices.Delete(a.live, i, i+1)
	a.free = append(a.free, Range{Offset: offset, Size: size})
	a.stats.BytesFreed += size
	a.stats.BytesInUse -= size
}

// End returns the offset one past the highest range ever handed out.
func (a *Allocator) End() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.end
}

// SetEnd moves the append point, e.g. to the size of a reopened file.
func (a *Allocator) SetEnd(offset uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.end = offset
}

// Base returns the first allocatable offset.
func (a *Allocator) Base() uint64 {
	return a.base
}

// Stats returns a copy of the allocation statistics.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Allocations returns a copy of the live ranges.
func (a *Allocator) Allocations() []Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.live)
}

// Validate checks that live ranges are within bounds and disjoint.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, l := range a.live {
		if l.Offset < a.base {
			return fmt.Errorf("range at 0x%x is before base 0x%x", l.Offset, a.base)
		}
		if l.Offset+l.Size > a.end {
			return fmt.Errorf("range at 0x%x size %d extends past end 0x%x", l.Offset, l.Size, a.end)
		}
	}

	sorted := slices.Clone(a.live)
	slices.SortFunc(sorted, func(x, y Allocation) int {
		return compareUint64(x.Offset, y.Offset)
	})
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Offset+prev.Size > cur.Offset {
			return fmt.Errorf("overlapping ranges: [0x%x, size %d] and [0x%x, size %d]",
				prev.Offset, prev.Size, cur.Offset, cur.Size)
		}
	}
	return nil
}

// Reset forgets every range and restarts at base. Offsets handed out
// before the reset will be handed out again.
func (a *Allocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.end = a.base
	a.live = nil
	a.free = nil
	a.stats = Stats{}
}

func alignUp(v, alignment uint64) uint64 {
	if alignment <= 1 {
		return v
	}
	if r := v % alignment; r != 0 {
		return v + alignment - r
	}
	return v
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
