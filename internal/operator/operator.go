package operator

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies an operator in stored block headers.
type ID uint16

const (
	Deflate    ID = 1
	Shuffle    ID = 2
	Fletcher32 ID = 3
	Zstd       ID = 4
)

// Operator transforms payload bytes.
type Operator interface {
	// ID returns the operator identifier.
	ID() ID

	// Encode transforms data to its stored form.
	Encode(input []byte) ([]byte, error)

	// Decode reverses Encode.
	Decode(input []byte) ([]byte, error)
}

// Spec names an operator and its parameters.
type Spec struct {
	ID     ID
	Params []uint32
}

// Registry maps operator IDs to constructors. elemSize is the encoded size
// of one element of the variable the pipeline serves.
var Registry = map[ID]func(params []uint32, elemSize int) Operator{
	Deflate:    func(p []uint32, _ int) Operator { return NewDeflate(p) },
	Shuffle:    func(_ []uint32, size int) Operator { return NewShuffle(size) },
	Fletcher32: func(_ []uint32, _ int) Operator { return NewFletcher32() },
	Zstd:       func(p []uint32, _ int) Operator { return NewZstd(p) },
}

var names = map[ID]string{
	Deflate:    "deflate",
	Shuffle:    "shuffle",
	Fletcher32: "fletcher32",
	Zstd:       "zstd",
}

// String returns the operator name.
func (id ID) String() string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("operator(%d)", uint16(id))
}

// New creates an operator from a spec.
func New(spec Spec, elemSize int) (Operator, error) {
	constructor, ok := Registry[spec.ID]
	if !ok {
		return nil, fmt.Errorf("unsupported operator ID: %d", spec.ID)
	}
	return constructor(spec.Params, elemSize), nil
}

// String renders the spec in the form ParseSpecs accepts.
func (s Spec) String() string {
	if len(s.Params) == 0 {
		return s.ID.String()
	}
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = strconv.FormatUint(uint64(p), 10)
	}
	return s.ID.String() + ":" + strings.Join(parts, ":")
}

// ParseSpecs parses a comma-separated list such as "shuffle,deflate:9".
// An empty string yields no specs.
func ParseSpecs(text string) ([]Spec, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var specs []Spec
	for _, item := range strings.Split(text, ",") {
		fields := strings.Split(strings.TrimSpace(item), ":")
		id, ok := lookup(fields[0])
		if !ok {
			return nil, fmt.Errorf("unknown operator %q", fields[0])
		}
		spec := Spec{ID: id}
		for _, f := range fields[1:] {
			v, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("operator %s parameter %q: %w", id, f, err)
			}
			spec.Params = append(spec.Params, uint32(v))
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func lookup(name string) (ID, bool) {
	for id, n := range names {
		if n == name {
			return id, true
		}
	}
	return 0, false
}
