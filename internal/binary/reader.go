package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrTooLarge is returned when a length prefix exceeds the sanity limit.
var ErrTooLarge = errors.New("binary: length prefix too large")

// MaxPrefixed bounds length-prefixed fields read from untrusted bytes.
const MaxPrefixed = 1 << 30

// ByteOrder decodes and appends fixed-width integers. binary.LittleEndian
// and binary.BigEndian implement it.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Config holds reader and writer configuration.
type Config struct {
	ByteOrder ByteOrder
}

// DefaultConfig returns the little-endian configuration used by block
// records.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian}
}

// Reader reads fixed and prefixed fields from an io.ReaderAt.
type Reader struct {
	r     io.ReaderAt
	order ByteOrder
	pos   int64
}

// NewReader creates a binary reader with the given configuration.
func NewReader(r io.ReaderAt, cfg Config) *Reader {
	return &Reader{r: r, order: cfg.ByteOrder}
}

// At returns a new reader positioned at the given offset.
// The new reader shares the underlying io.ReaderAt but has independent position.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{r: r.r, order: r.order, pos: offset}
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// ReadBytes reads exactly n bytes from the current position.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := r.r.ReadAt(buf, r.pos)
	if read < n {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(buf), nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(buf), nil
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(buf), nil
}

// ReadPrefixed reads a uint32 length followed by that many bytes.
func (r *Reader) ReadPrefixed() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > MaxPrefixed {
		return nil, fmt.Errorf("%w: %d", ErrTooLarge, n)
	}
	return r.ReadBytes(int(n))
}

// ReadString reads a length-prefixed string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadPrefixed()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadDims reads a uint32 count followed by that many uint64 values.
func (r *Reader) ReadDims() ([]uint64, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > MaxPrefixed/8 {
		return nil, fmt.Errorf("%w: %d dimensions", ErrTooLarge, n)
	}
	if n == 0 {
		return nil, nil
	}
	dims := make([]uint64, n)
	for i := range dims {
		if dims[i], err = r.ReadUint64(); err != nil {
			return nil, err
		}
	}
	return dims, nil
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int64) {
	r.pos += n
}
