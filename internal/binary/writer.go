package binary

import (
	"fmt"
	"io"
)

// Writer writes fixed and prefixed fields to an io.WriterAt.
type Writer struct {
	w     io.WriterAt
	order ByteOrder
	pos   int64
}

// NewWriter creates a binary writer with the given configuration.
func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{w: w, order: cfg.ByteOrder}
}

// At returns a new writer positioned at the given offset.
// The new writer shares the underlying io.WriterAt but has independent position.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{w: w.w, order: w.order, pos: offset}
}

// Pos returns the current write position.
func (w *Writer) Pos() int64 {
	return w.pos
}

// WriteBytes writes the given bytes at the current position.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteUint8 writes an unsigned 8-bit integer.
func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	return w.WriteBytes(w.order.AppendUint16(nil, v))
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	return w.WriteBytes(w.order.AppendUint32(nil, v))
}

// WriteUint64 writes an unsigned 64-bit integer.
func (w *Writer) WriteUint64(v uint64) error {
	return w.WriteBytes(w.order.AppendUint64(nil, v))
}

// WritePrefixed writes len(data) as uint32 followed by data.
func (w *Writer) WritePrefixed(data []byte) error {
	if len(data) > MaxPrefixed {
		return fmt.Errorf("%w: %d", ErrTooLarge, len(data))
	}
	if err := w.WriteUint32(uint32(len(data))); err != nil {
		return err
	}
	return w.WriteBytes(data)
}

// WriteString writes a length-prefixed string.
func (w *Writer) WriteString(s string) error {
	return w.WritePrefixed([]byte(s))
}

// WriteDims writes a uint32 count followed by the uint64 values.
func (w *Writer) WriteDims(dims []uint64) error {
	buf := w.order.AppendUint32(make([]byte, 0, 4+8*len(dims)), uint32(len(dims)))
	for _, d := range dims {
		buf = w.order.AppendUint64(buf, d)
	}
	return w.WriteBytes(buf)
}

// Skip advances the position by n bytes without writing.
func (w *Writer) Skip(n int64) {
	w.pos += n
}
