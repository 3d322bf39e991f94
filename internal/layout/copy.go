package layout

import "slices"

// CopyOverlap copies the elements of src (laid out over srcBox) that fall
// inside dstBox into dst (laid out over dstBox) and returns the number of
// elements copied. Elements outside the overlap are left untouched.
func CopyOverlap[T any](dst []T, dstBox Box, src []T, srcBox Box) uint64 {
	if dstBox.Rank() == 0 && srcBox.Rank() == 0 {
		if len(dst) > 0 && len(src) > 0 {
			dst[0] = src[0]
			return 1
		}
		return 0
	}

	overlap, ok := Intersect(dstBox, srcBox)
	if !ok {
		return 0
	}

	c := overlapCopier[T]{
		dst:        dst,
		src:        src,
		overlap:    overlap,
		dstStart:   dstBox.Start,
		srcStart:   srcBox.Start,
		dstStrides: Strides(dstBox.Count),
		srcStrides: Strides(srcBox.Count),
	}
	c.copy(0, 0, 0)
	return overlap.Elements()
}

type overlapCopier[T any] struct {
	dst, src               []T
	overlap                Box
	dstStart, srcStart     []uint64
	dstStrides, srcStrides []uint64
}

func (c *overlapCopier[T]) copy(dim int, dstIdx, srcIdx uint64) {
	lo := c.overlap.Start[dim]
	n := c.overlap.Count[dim]

	if dim == c.overlap.Rank()-1 {
		// Innermost dimension: one contiguous run on both sides.
		d := dstIdx + (lo - c.dstStart[dim])
		s := srcIdx + (lo - c.srcStart[dim])
		if s+n <= uint64(len(c.src)) && d+n <= uint64(len(c.dst)) {
			copy(c.dst[d:d+n], c.src[s:s+n])
		}
		return
	}

	for i := lo; i < lo+n; i++ {
		c.copy(dim+1,
			dstIdx+(i-c.dstStart[dim])*c.dstStrides[dim],
			srcIdx+(i-c.srcStart[dim])*c.srcStrides[dim],
		)
	}
}

// Covered tracks which parts of a selection the blocks of a step fill.
// Blocks may overlap each other.
type Covered struct {
	scalar bool
	marked bool
	gaps   []Box
}

// NewCovered returns a tracker for box.
func NewCovered(box Box) *Covered {
	c := &Covered{scalar: box.Rank() == 0}
	if !c.scalar && !box.Empty() {
		c.gaps = []Box{box}
	}
	return c
}

// Mark removes the overlap of block with the selection from the gaps.
func (c *Covered) Mark(block Box) {
	if c.scalar {
		c.marked = true
		return
	}
	var next []Box
	for _, g := range c.gaps {
		overlap, ok := Intersect(g, block)
		if !ok {
			next = append(next, g)
			continue
		}
		next = append(next, subtract(g, overlap)...)
	}
	c.gaps = next
}

// Complete reports whether the marked blocks cover the selection.
func (c *Covered) Complete() bool {
	if c.scalar {
		return c.marked
	}
	return len(c.gaps) == 0
}

// subtract returns disjoint boxes covering g minus o, where o lies inside g.
func subtract(g, o Box) []Box {
	var out []Box
	cur := Box{Start: slices.Clone(g.Start), Count: slices.Clone(g.Count)}
	for d := range g.Count {
		lo, hi := cur.Start[d], cur.Start[d]+cur.Count[d]
		olo, ohi := o.Start[d], o.Start[d]+o.Count[d]
		if olo > lo {
			below := Box{Start: slices.Clone(cur.Start), Count: slices.Clone(cur.Count)}
			below.Count[d] = olo - lo
			out = append(out, below)
		}
		if ohi < hi {
			above := Box{Start: slices.Clone(cur.Start), Count: slices.Clone(cur.Count)}
			above.Start[d] = ohi
			above.Count[d] = hi - ohi
			out = append(out, above)
		}
		cur.Start[d] = olo
		cur.Count[d] = ohi - olo
	}
	return out
}
