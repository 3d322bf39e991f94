package operator

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-stepio/internal/binary"
)

// Fletcher32Op appends a little-endian Fletcher-32 checksum on encode and
// verifies and strips it on decode.
type Fletcher32Op struct{}

// NewFletcher32 creates a checksum operator.
func NewFletcher32() *Fletcher32Op {
	return &Fletcher32Op{}
}

func (o *Fletcher32Op) ID() ID {
	return Fletcher32
}

func (o *Fletcher32Op) Encode(input []byte) ([]byte, error) {
	out := make([]byte, len(input), len(input)+4)
	copy(out, input)
	return binary.LittleEndian.AppendUint32(out, binpkg.Fletcher32(input)), nil
}

func (o *Fletcher32Op) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: input too short for checksum")
	}

	data := input[:len(input)-4]
	stored := binary.LittleEndian.Uint32(input[len(input)-4:])
	computed := binpkg.Fletcher32(data)
	if stored != computed {
		return nil, fmt.Errorf("fletcher32: checksum mismatch (stored=0x%08x, computed=0x%08x)",
			stored, computed)
	}
	return data, nil
}
