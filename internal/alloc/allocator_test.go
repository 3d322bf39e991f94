package alloc

import (
	"sync"
	"testing"
)

func TestAllocatorAppend(t *testing.T) {
	a := New(1024)

	if off := a.Alloc(100); off != 1024 {
		t.Errorf("first allocation: got 0x%x, want 0x%x", off, 1024)
	}
	if off := a.Alloc(200); off != 1124 {
		t.Errorf("second allocation: got 0x%x, want 0x%x", off, 1124)
	}
	if a.End() != 1324 {
		t.Errorf("end: got 0x%x, want 0x%x", a.End(), 1324)
	}
}

func TestAllocatorZeroSize(t *testing.T) {
	a := New(100)

	if off := a.Alloc(0); off != 100 {
		t.Errorf("zero allocation: got 0x%x, want 0x%x", off, 100)
	}
	if a.End() != 100 {
		t.Errorf("end after zero alloc: got 0x%x, want 0x%x", a.End(), 100)
	}
	if n := len(a.Allocations()); n != 0 {
		t.Errorf("zero allocation tracked %d ranges", n)
	}
}

func TestAllocatorAligned(t *testing.T) {
	a := New(100)
	a.Alloc(13)

	off := a.AllocAligned(50, 8)
	if off != 120 {
		t.Errorf("aligned allocation: got 0x%x, want 0x%x", off, 120)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestAllocatorReuse(t *testing.T) {
	a := New(0)
	first := a.AllocAligned(64, 8)
	a.AllocAligned(16, 8)

	a.Free(first, 64)
	if s := a.Stats(); s.BytesInUse != 16 || s.BytesFreed != 64 {
		t.Fatalf("unexpected stats after free: %+v", s)
	}

	// A smaller request lands inside the freed range.
	got := a.AllocAligned(24, 8)
	if got != first {
		t.Errorf("expected reuse at 0x%x, got 0x%x", first, got)
	}
	// The tail of the freed range is still available.
	tail := a.AllocAligned(40, 8)
	if tail != first+24 {
		t.Errorf("expected tail reuse at 0x%x, got 0x%x", first+24, tail)
	}
	if a.End() != 80 {
		t.Errorf("reuse must not grow the space: end 0x%x", a.End())
	}
	if s := a.Stats(); s.Reused != 2 {
		t.Errorf("expected 2 reused allocations, got %d", s.Reused)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestAllocatorFreeUnknown(t *testing.T) {
	a := New(0)
	a.Alloc(8)
	a.Free(4, 4)
	if s := a.Stats(); s.BytesFreed != 0 || s.BytesInUse != 8 {
		t.Errorf("freeing an unknown range changed stats: %+v", s)
	}
}

func TestAllocatorStats(t *testing.T) {
	a := New(0)
	a.Alloc(100)
	a.AllocTagged(500, "span:temperature")
	a.Alloc(50)

	s := a.Stats()
	if s.Allocations != 3 {
		t.Errorf("Allocations: got %d, want 3", s.Allocations)
	}
	if s.BytesAllocated != 650 || s.BytesInUse != 650 {
		t.Errorf("bytes: got %d allocated, %d in use", s.BytesAllocated, s.BytesInUse)
	}
	if s.Largest != 500 {
		t.Errorf("Largest: got %d, want 500", s.Largest)
	}
	if tag := a.Allocations()[1].Tag; tag != "span:temperature" {
		t.Errorf("tag: got %q", tag)
	}
}

func TestAllocatorReset(t *testing.T) {
	a := New(16)
	first := a.Alloc(32)
	a.Alloc(32)
	a.Reset()

	if a.End() != 16 {
		t.Errorf("end after reset: got %d, want 16", a.End())
	}
	if s := a.Stats(); s != (Stats{}) {
		t.Errorf("stats after reset: %+v", s)
	}
	if off := a.Alloc(32); off != first {
		t.Errorf("expected offset 0x%x after reset, got 0x%x", first, off)
	}
}

func TestAllocatorSetEnd(t *testing.T) {
	a := New(0)
	a.SetEnd(4096)
	if off := a.Alloc(10); off != 4096 {
		t.Errorf("expected allocation at 4096, got %d", off)
	}
}

func TestAllocatorValidateOutOfBounds(t *testing.T) {
	a := New(0)
	a.Alloc(100)
	a.SetEnd(50)
	if err := a.Validate(); err == nil {
		t.Error("expected error for range past end")
	}
}

func TestAllocatorConcurrent(t *testing.T) {
	a := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.AllocAligned(24, 8)
			}
		}()
	}
	wg.Wait()

	if s := a.Stats(); s.Allocations != 800 {
		t.Errorf("expected 800 allocations, got %d", s.Allocations)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}
