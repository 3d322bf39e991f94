package layout

import (
	"math"
	"slices"
	"testing"
)

func TestStrides(t *testing.T) {
	got := Strides([]uint64{2, 3, 4})
	want := []uint64{12, 4, 1}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		shape   []uint64
		start   []uint64
		count   []uint64
		wantErr bool
	}{
		{"inside", []uint64{10, 10}, []uint64{2, 3}, []uint64{8, 7}, false},
		{"past extent", []uint64{10}, []uint64{5}, []uint64{6}, true},
		{"rank mismatch", []uint64{10, 10}, []uint64{0}, []uint64{10}, true},
		{"start/count mismatch", []uint64{10}, []uint64{0, 0}, []uint64{10}, true},
		{"local array", nil, []uint64{0}, []uint64{99}, false},
		{"nil start", []uint64{3}, nil, []uint64{3}, false},
		{"nil start local array", nil, nil, []uint64{5}, false},
		{"nil start past extent", []uint64{3}, nil, []uint64{4}, true},
		{"empty at extent", []uint64{10}, []uint64{10}, []uint64{0}, false},
		{"start past extent", []uint64{10}, []uint64{11}, []uint64{0}, true},
		{"start wraps", []uint64{10}, []uint64{math.MaxUint64}, []uint64{2}, true},
		{"count wraps", []uint64{10}, []uint64{2}, []uint64{math.MaxUint64}, true},
		{"element count overflow", nil, nil, []uint64{1 << 40, 1 << 40}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.shape, tt.start, tt.count)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIntersect(t *testing.T) {
	a := NewBox([]uint64{0, 0}, []uint64{4, 4})
	b := NewBox([]uint64{2, 3}, []uint64{4, 4})

	got, ok := Intersect(a, b)
	if !ok {
		t.Fatal("expected overlap")
	}
	if !slices.Equal(got.Start, []uint64{2, 3}) || !slices.Equal(got.Count, []uint64{2, 1}) {
		t.Errorf("unexpected overlap %s", got)
	}

	if _, ok := Intersect(a, NewBox([]uint64{4, 0}, []uint64{1, 1})); ok {
		t.Error("touching boxes must not overlap")
	}
	if !Contains(a, got) {
		t.Error("overlap must lie inside a")
	}
	if Contains(got, a) {
		t.Error("a does not lie inside the overlap")
	}
}

func TestCopyOverlap1D(t *testing.T) {
	src := []int{10, 11, 12, 13}
	srcBox := NewBox([]uint64{4}, []uint64{4})

	dst := make([]int, 6)
	dstBox := NewBox([]uint64{2}, []uint64{6})

	n := CopyOverlap(dst, dstBox, src, srcBox)
	if n != 4 {
		t.Fatalf("expected 4 copied, got %d", n)
	}
	want := []int{0, 0, 10, 11, 12, 13}
	if !slices.Equal(dst, want) {
		t.Errorf("expected %v, got %v", want, dst)
	}
}

func TestCopyOverlap2D(t *testing.T) {
	// Global 4x6; writer block rows 0-1, cols 2-5.
	src := []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
	}
	srcBox := NewBox([]uint64{0, 2}, []uint64{2, 4})

	// Reader selection rows 1-2, cols 1-3.
	dst := make([]float64, 6)
	dstBox := NewBox([]uint64{1, 1}, []uint64{2, 3})

	n := CopyOverlap(dst, dstBox, src, srcBox)
	if n != 2 {
		t.Fatalf("expected 2 copied, got %d", n)
	}
	want := []float64{
		0, 5, 6,
		0, 0, 0,
	}
	if !slices.Equal(dst, want) {
		t.Errorf("expected %v, got %v", want, dst)
	}
}

func TestCopyOverlapStrings(t *testing.T) {
	src := []string{"a", "b", "c"}
	dst := make([]string, 2)
	CopyOverlap(dst, NewBox([]uint64{1}, []uint64{2}), src, NewBox(nil, []uint64{3}))
	if dst[0] != "b" || dst[1] != "c" {
		t.Errorf("unexpected %v", dst)
	}
}

func TestCopyOverlapScalar(t *testing.T) {
	dst := make([]int32, 1)
	if n := CopyOverlap(dst, Box{}, []int32{42}, Box{}); n != 1 || dst[0] != 42 {
		t.Errorf("scalar copy = %d, %v", n, dst)
	}
}

func TestCovered(t *testing.T) {
	sel := NewBox([]uint64{0}, []uint64{8})
	c := NewCovered(sel)

	c.Mark(NewBox([]uint64{0}, []uint64{4}))
	if c.Complete() {
		t.Fatal("half the selection is not complete")
	}
	c.Mark(NewBox([]uint64{4}, []uint64{4}))
	if !c.Complete() {
		t.Error("expected complete coverage")
	}

	if !NewCovered(NewBox(nil, []uint64{0})).Complete() {
		t.Error("an empty selection is always complete")
	}

	if s := sel.String(); s != "[0:8]" {
		t.Errorf("unexpected String() %q", s)
	}
	if sel.Empty() || !NewBox(nil, []uint64{3, 0}).Empty() {
		t.Error("Empty() mismatch")
	}
}

func TestCoveredOverlappingBlocks(t *testing.T) {
	c := NewCovered(NewBox(nil, []uint64{4}))
	c.Mark(NewBox([]uint64{0}, []uint64{2}))
	c.Mark(NewBox([]uint64{0}, []uint64{2}))
	if c.Complete() {
		t.Fatal("the same block twice covers only half")
	}
	c.Mark(NewBox([]uint64{1}, []uint64{3}))
	if !c.Complete() {
		t.Error("expected complete coverage")
	}
}

func TestCovered2D(t *testing.T) {
	sel := NewBox([]uint64{1, 1}, []uint64{4, 4})
	c := NewCovered(sel)

	// Overlapping quadrants that leave the bottom-right cell out.
	c.Mark(NewBox([]uint64{0, 0}, []uint64{4, 6}))
	c.Mark(NewBox([]uint64{2, 0}, []uint64{4, 4}))
	if c.Complete() {
		t.Fatal("cell (4,4) is not covered")
	}
	c.Mark(NewBox([]uint64{4, 4}, []uint64{1, 1}))
	if !c.Complete() {
		t.Error("expected complete coverage")
	}
}

func TestCoveredScalar(t *testing.T) {
	c := NewCovered(Box{})
	if c.Complete() {
		t.Fatal("unmarked scalar is not complete")
	}
	c.Mark(Box{})
	if !c.Complete() {
		t.Error("marked scalar is complete")
	}
}
