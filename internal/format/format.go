// Package format frames one block of one variable as a self-describing
// byte record.
//
// Record layout (little-endian):
//
//	magic "STPB" | version u8 | kind u8 | flags u8 | reserved u8
//	variable (u32 len + bytes) | step u64 | writer u32 | block u32
//	shape, start, count (u32 rank + u64 each)
//	operator count u8, then per operator: id u16 | nparams u8 | u32 params
//	skip mask u32 | elements u64 | payload (u32 len + bytes)
//	lookup3 checksum u32 over everything before it
//
// The payload is the dtype encoding of the block elements after the
// operator pipeline ran over it.
package format

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-stepio/internal/binary"
	"github.com/robert-malhotra/go-stepio/internal/dtype"
	"github.com/robert-malhotra/go-stepio/internal/operator"
)

const (
	Magic   = "STPB"
	Version = 1

	flagValue = 1 << 0
)

var (
	// ErrBadMagic is returned when bytes are not a block record.
	ErrBadMagic = errors.New("format: not a block record")

	// ErrChecksum is returned when the record checksum does not match.
	ErrChecksum = errors.New("format: checksum mismatch")
)

// Header describes the block carried by a record.
type Header struct {
	Variable  string
	Kind      dtype.Kind
	Step      uint64
	Writer    uint32
	BlockID   uint32
	IsValue   bool
	Shape     []uint64
	Start     []uint64
	Count     []uint64
	Operators []operator.Spec
	Elements  uint64
}

func pipelineFor(h Header) (*operator.Pipeline, error) {
	return operator.NewPipeline(h.Operators, max(h.Kind.Size(), 1))
}

// Encode frames payload, the dtype encoding of h.Elements elements, into
// a record.
func Encode(h Header, payload []byte) ([]byte, error) {
	if !h.Kind.Valid() {
		return nil, fmt.Errorf("format: invalid element type %d", h.Kind)
	}
	if len(h.Operators) > 255 {
		return nil, fmt.Errorf("format: %d operators", len(h.Operators))
	}
	p, err := pipelineFor(h)
	if err != nil {
		return nil, err
	}
	stored, mask, err := p.Encode(payload)
	if err != nil {
		return nil, err
	}

	buf := binary.NewBuffer(64 + len(h.Variable) + len(stored))
	w := binary.NewWriter(buf, binary.DefaultConfig())

	var flags uint8
	if h.IsValue {
		flags |= flagValue
	}
	fields := []func() error{
		func() error { return w.WriteBytes([]byte(Magic)) },
		func() error { return w.WriteUint8(Version) },
		func() error { return w.WriteUint8(uint8(h.Kind)) },
		func() error { return w.WriteUint8(flags) },
		func() error { return w.WriteUint8(0) },
		func() error { return w.WriteString(h.Variable) },
		func() error { return w.WriteUint64(h.Step) },
		func() error { return w.WriteUint32(h.Writer) },
		func() error { return w.WriteUint32(h.BlockID) },
		func() error { return w.WriteDims(h.Shape) },
		func() error { return w.WriteDims(h.Start) },
		func() error { return w.WriteDims(h.Count) },
		func() error { return writeOperators(w, h.Operators) },
		func() error { return w.WriteUint32(mask) },
		func() error { return w.WriteUint64(h.Elements) },
		func() error { return w.WritePrefixed(stored) },
	}
	for _, f := range fields {
		if err := f(); err != nil {
			return nil, fmt.Errorf("format: encode: %w", err)
		}
	}
	if err := w.WriteUint32(binary.Lookup3Checksum(buf.Bytes())); err != nil {
		return nil, fmt.Errorf("format: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func writeOperators(w *binary.Writer, specs []operator.Spec) error {
	if err := w.WriteUint8(uint8(len(specs))); err != nil {
		return err
	}
	for _, s := range specs {
		if len(s.Params) > 255 {
			return fmt.Errorf("operator %s has %d parameters", s.ID, len(s.Params))
		}
		if err := w.WriteUint16(uint16(s.ID)); err != nil {
			return err
		}
		if err := w.WriteUint8(uint8(len(s.Params))); err != nil {
			return err
		}
		for _, p := range s.Params {
			if err := w.WriteUint32(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// Decode verifies a record and returns its header and decoded payload.
func Decode(record []byte) (Header, []byte, error) {
	if len(record) < len(Magic)+8 || string(record[:len(Magic)]) != Magic {
		return Header{}, nil, ErrBadMagic
	}
	body := record[:len(record)-4]
	stored := uint32(record[len(record)-4]) | uint32(record[len(record)-3])<<8 |
		uint32(record[len(record)-2])<<16 | uint32(record[len(record)-1])<<24
	if binary.Lookup3Checksum(body) != stored {
		return Header{}, nil, ErrChecksum
	}

	h, mask, payload, err := readHeader(binary.NewReader(binary.BufferOf(body), binary.DefaultConfig()))
	if err != nil {
		return Header{}, nil, fmt.Errorf("format: decode: %w", err)
	}
	p, err := pipelineFor(h)
	if err != nil {
		return Header{}, nil, err
	}
	data, err := p.Decode(payload, mask)
	if err != nil {
		return Header{}, nil, fmt.Errorf("format: decode %s: %w", h.Variable, err)
	}
	return h, data, nil
}

func readHeader(r *binary.Reader) (Header, uint32, []byte, error) {
	var h Header
	r.Skip(int64(len(Magic)))

	version, err := r.ReadUint8()
	if err != nil {
		return h, 0, nil, err
	}
	if version != Version {
		return h, 0, nil, fmt.Errorf("unsupported record version %d", version)
	}
	kind, err := r.ReadUint8()
	if err != nil {
		return h, 0, nil, err
	}
	h.Kind = dtype.Kind(kind)
	if !h.Kind.Valid() {
		return h, 0, nil, fmt.Errorf("invalid element type %d", kind)
	}
	flags, err := r.ReadUint8()
	if err != nil {
		return h, 0, nil, err
	}
	h.IsValue = flags&flagValue != 0
	r.Skip(1)

	if h.Variable, err = r.ReadString(); err != nil {
		return h, 0, nil, err
	}
	if h.Step, err = r.ReadUint64(); err != nil {
		return h, 0, nil, err
	}
	if h.Writer, err = r.ReadUint32(); err != nil {
		return h, 0, nil, err
	}
	if h.BlockID, err = r.ReadUint32(); err != nil {
		return h, 0, nil, err
	}
	if h.Shape, err = r.ReadDims(); err != nil {
		return h, 0, nil, err
	}
	if h.Start, err = r.ReadDims(); err != nil {
		return h, 0, nil, err
	}
	if h.Count, err = r.ReadDims(); err != nil {
		return h, 0, nil, err
	}
	if h.Operators, err = readOperators(r); err != nil {
		return h, 0, nil, err
	}
	mask, err := r.ReadUint32()
	if err != nil {
		return h, 0, nil, err
	}
	if h.Elements, err = r.ReadUint64(); err != nil {
		return h, 0, nil, err
	}
	payload, err := r.ReadPrefixed()
	if err != nil {
		return h, 0, nil, err
	}
	return h, mask, payload, nil
}

func readOperators(r *binary.Reader) ([]operator.Spec, error) {
	n, err := r.ReadUint8()
	if err != nil || n == 0 {
		return nil, err
	}
	specs := make([]operator.Spec, n)
	for i := range specs {
		id, err := r.ReadUint16()
		if err != nil {
			return nil, err
		}
		np, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		specs[i].ID = operator.ID(id)
		for j := 0; j < int(np); j++ {
			p, err := r.ReadUint32()
			if err != nil {
				return nil, err
			}
			specs[i].Params = append(specs[i].Params, p)
		}
	}
	return specs, nil
}
