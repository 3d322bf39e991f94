package stepio

import (
	"fmt"
	"sort"
	"unsafe"

	"github.com/robert-malhotra/go-stepio/internal/alloc"
	"github.com/robert-malhotra/go-stepio/internal/dtype"
)

// arena hands out 8-byte aligned slots for spans. Slots live in pages that
// are kept across resets, so a slot handed out after a reset reuses memory
// of an earlier, now invalid, span. Every reset bumps the generation, which
// is how stale spans detect that their slot is gone.
type arena struct {
	alloc    *alloc.Allocator
	pages    []arenaPage
	pageSize uint64
	capacity uint64
	gen      uint64
}

type arenaPage struct {
	base uint64
	buf  []uint64
}

func newArena(pageSize int) *arena {
	return &arena{alloc: alloc.New(0), pageSize: uint64(pageSize)}
}

// reserve returns a zeroed slot of size bytes.
func (a *arena) reserve(size uint64) []byte {
	if size == 0 {
		return []byte{}
	}
	size = (size + 7) &^ 7

	if !a.fits(a.alloc.End(), size) {
		// Move to the start of a page that holds the whole slot.
		if !a.reusePage(size) {
			n := max(a.pageSize, size)
			a.pages = append(a.pages, arenaPage{base: a.capacity, buf: make([]uint64, n/8)})
			a.alloc.SetEnd(a.capacity)
			a.capacity += n
		}
	}

	off := a.alloc.AllocAligned(size, 8)
	p := a.page(off)
	words := p.buf[(off-p.base)/8 : (off-p.base+size)/8]
	clear(words)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
}

// fits reports whether [off, off+size) lies inside one page.
func (a *arena) fits(off, size uint64) bool {
	if off >= a.capacity {
		return false
	}
	p := a.page(off)
	return off+size <= p.base+uint64(len(p.buf))*8
}

// reusePage reports whether a page after the append point is large enough
// for size, moving the append point to it.
func (a *arena) reusePage(size uint64) bool {
	end := a.alloc.End()
	for _, p := range a.pages {
		if p.base >= end && uint64(len(p.buf))*8 >= size {
			a.alloc.SetEnd(p.base)
			return true
		}
	}
	return false
}

func (a *arena) page(off uint64) arenaPage {
	i := sort.Search(len(a.pages), func(i int) bool {
		return a.pages[i].base+uint64(len(a.pages[i].buf))*8 > off
	})
	return a.pages[i]
}

// reset invalidates every span and makes all pages reusable.
func (a *arena) reset() {
	a.alloc.Reset()
	a.gen++
}

// inUse returns the bytes reserved since the last reset.
func (a *arena) inUse() uint64 {
	return a.alloc.Stats().BytesInUse
}

// Span is an engine-owned buffer a writer fills in place of passing its own
// slice to Put. It is valid until the next PerformPuts, PerformDataWrite or
// EndStep; afterwards every accessor returns ErrSpanInvalid, even if the
// underlying memory was handed to a newer span.
type Span[T Element] struct {
	data  []T
	arena *arena
	gen   uint64
}

func (s *Span[T]) valid() error {
	if s.arena.gen != s.gen {
		return ErrSpanInvalid
	}
	return nil
}

// Len returns the number of elements.
func (s *Span[T]) Len() int { return len(s.data) }

// Data returns the span's elements. The slice must not be used after the
// span became invalid.
func (s *Span[T]) Data() ([]T, error) {
	if err := s.valid(); err != nil {
		return nil, err
	}
	return s.data, nil
}

// At returns element i.
func (s *Span[T]) At(i int) (T, error) {
	var zero T
	if err := s.valid(); err != nil {
		return zero, err
	}
	if i < 0 || i >= len(s.data) {
		return zero, fmt.Errorf("%w: index %d of %d", ErrShapeMismatch, i, len(s.data))
	}
	return s.data[i], nil
}

// Set stores x at element i.
func (s *Span[T]) Set(i int, x T) error {
	if err := s.valid(); err != nil {
		return err
	}
	if i < 0 || i >= len(s.data) {
		return fmt.Errorf("%w: index %d of %d", ErrShapeMismatch, i, len(s.data))
	}
	s.data[i] = x
	return nil
}

// Fill stores x in every element.
func (s *Span[T]) Fill(x T) error {
	if err := s.valid(); err != nil {
		return err
	}
	for i := range s.data {
		s.data[i] = x
	}
	return nil
}

// Copy copies src into the span and returns the number of elements copied.
func (s *Span[T]) Copy(src []T) (int, error) {
	if err := s.valid(); err != nil {
		return 0, err
	}
	return copy(s.data, src), nil
}

func newSpan[T Element](a *arena, n uint64) (*Span[T], error) {
	k := dtype.Of[T]()
	if !k.IsNumeric() {
		return nil, fmt.Errorf("%w: spans of %s", ErrUnsupported, k)
	}
	buf := a.reserve(n * uint64(k.Size()))
	data, err := dtype.View[T](buf)
	if err != nil {
		return nil, err
	}
	return &Span[T]{data: data[:n], arena: a, gen: a.gen}, nil
}
