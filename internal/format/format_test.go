package format

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/robert-malhotra/go-stepio/internal/dtype"
	"github.com/robert-malhotra/go-stepio/internal/operator"
)

func sampleHeader() Header {
	return Header{
		Variable: "temperature",
		Kind:     dtype.Float64,
		Step:     7,
		Writer:   2,
		BlockID:  0,
		Shape:    []uint64{16, 4},
		Start:    []uint64{8, 0},
		Count:    []uint64{4, 4},
		Elements: 16,
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ops  string
	}{
		{"plain", ""},
		{"checksum", "fletcher32"},
		{"shuffle deflate", "shuffle,deflate:6"},
		{"zstd", "zstd:3"},
	}

	values := make([]float64, 16)
	for i := range values {
		values[i] = float64(i) * 0.5
	}
	payload := dtype.Encode(nil, values)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs, err := operator.ParseSpecs(tt.ops)
			if err != nil {
				t.Fatalf("ParseSpecs failed: %v", err)
			}
			h := sampleHeader()
			h.Operators = specs

			record, err := Encode(h, payload)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			got, data, err := Decode(record)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got.Variable != h.Variable || got.Kind != h.Kind || got.Step != h.Step ||
				got.Writer != h.Writer || got.Elements != h.Elements {
				t.Errorf("header mismatch: %+v", got)
			}
			if !slices.Equal(got.Shape, h.Shape) || !slices.Equal(got.Start, h.Start) || !slices.Equal(got.Count, h.Count) {
				t.Errorf("dims mismatch: %+v", got)
			}
			if len(got.Operators) != len(specs) {
				t.Errorf("expected %d operators, got %d", len(specs), len(got.Operators))
			}

			out, err := dtype.Decode[float64](data, 16)
			if err != nil {
				t.Fatalf("dtype.Decode failed: %v", err)
			}
			if !slices.Equal(out, values) {
				t.Errorf("payload mismatch: %v", out)
			}
		})
	}
}

func TestValueRecord(t *testing.T) {
	h := Header{Variable: "label", Kind: dtype.String, IsValue: true, Elements: 1}
	record, err := Encode(h, dtype.Encode(nil, []string{"run-42"}))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got, data, err := Decode(record)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !got.IsValue || got.Shape != nil || got.Count != nil {
		t.Errorf("unexpected header %+v", got)
	}
	s, err := dtype.Decode[string](data, 1)
	if err != nil || s[0] != "run-42" {
		t.Errorf("payload = %v, %v", s, err)
	}
}

func TestCorruption(t *testing.T) {
	record, err := Encode(sampleHeader(), make([]byte, 128))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	flipped := slices.Clone(record)
	flipped[len(flipped)/2] ^= 0x01
	if _, _, err := Decode(flipped); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}

	if _, _, err := Decode([]byte(strings.Repeat("x", 32))); !errors.Is(err, ErrBadMagic) {
		t.Errorf("expected ErrBadMagic, got %v", err)
	}
	if _, _, err := Decode(nil); !errors.Is(err, ErrBadMagic) {
		t.Errorf("expected ErrBadMagic for empty input, got %v", err)
	}
}

func TestEncodeInvalidKind(t *testing.T) {
	h := sampleHeader()
	h.Kind = dtype.Invalid
	if _, err := Encode(h, nil); err == nil {
		t.Error("expected error for invalid kind")
	}
}
