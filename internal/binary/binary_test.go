package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestWriterReaderFields(t *testing.T) {
	buf := NewBuffer(0)
	w := NewWriter(buf, DefaultConfig())

	if err := w.WriteUint8(0x7f); err != nil {
		t.Fatalf("WriteUint8 failed: %v", err)
	}
	if err := w.WriteUint16(0x0102); err != nil {
		t.Fatalf("WriteUint16 failed: %v", err)
	}
	if err := w.WriteUint32(0xdeadbeef); err != nil {
		t.Fatalf("WriteUint32 failed: %v", err)
	}
	if err := w.WriteString("temperature"); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}
	if err := w.WriteDims([]uint64{4, 1 << 40}); err != nil {
		t.Fatalf("WriteDims failed: %v", err)
	}
	if err := w.WriteDims(nil); err != nil {
		t.Fatalf("WriteDims(nil) failed: %v", err)
	}
	if w.Pos() != int64(buf.Len()) {
		t.Fatalf("writer at %d, buffer holds %d", w.Pos(), buf.Len())
	}

	r := NewReader(buf, DefaultConfig())
	if v, err := r.ReadUint8(); err != nil || v != 0x7f {
		t.Fatalf("ReadUint8 = %x, %v", v, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != 0x0102 {
		t.Fatalf("ReadUint16 = %x, %v", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 0xdeadbeef {
		t.Fatalf("ReadUint32 = %x, %v", v, err)
	}
	if s, err := r.ReadString(); err != nil || s != "temperature" {
		t.Fatalf("ReadString = %q, %v", s, err)
	}
	dims, err := r.ReadDims()
	if err != nil {
		t.Fatalf("ReadDims failed: %v", err)
	}
	if len(dims) != 2 || dims[0] != 4 || dims[1] != 1<<40 {
		t.Errorf("unexpected dims %v", dims)
	}
	if dims, err := r.ReadDims(); err != nil || dims != nil {
		t.Errorf("empty dims = %v, %v", dims, err)
	}
	if r.Pos() != int64(buf.Len()) {
		t.Errorf("reader stopped at %d of %d", r.Pos(), buf.Len())
	}
}

func TestByteOrders(t *testing.T) {
	tests := []struct {
		name  string
		order ByteOrder
		want  []byte
	}{
		{"little", binary.LittleEndian, []byte{0x02, 0x01, 0x04, 0x03, 0x02, 0x01}},
		{"big", binary.BigEndian, []byte{0x01, 0x02, 0x01, 0x02, 0x03, 0x04}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{ByteOrder: tt.order}
			buf := NewBuffer(0)
			w := NewWriter(buf, cfg)
			if err := w.WriteUint16(0x0102); err != nil {
				t.Fatalf("WriteUint16 failed: %v", err)
			}
			if err := w.WriteUint32(0x01020304); err != nil {
				t.Fatalf("WriteUint32 failed: %v", err)
			}
			if err := w.WriteUint64(0x0102030405060708); err != nil {
				t.Fatalf("WriteUint64 failed: %v", err)
			}
			if err := w.WriteDims([]uint64{7, 1 << 33}); err != nil {
				t.Fatalf("WriteDims failed: %v", err)
			}
			if got := buf.Bytes()[:6]; !bytes.Equal(got, tt.want) {
				t.Fatalf("encoded % x, want % x", got, tt.want)
			}

			r := NewReader(buf, cfg)
			if v, err := r.ReadUint16(); err != nil || v != 0x0102 {
				t.Fatalf("ReadUint16 = %x, %v", v, err)
			}
			if v, err := r.ReadUint32(); err != nil || v != 0x01020304 {
				t.Fatalf("ReadUint32 = %x, %v", v, err)
			}
			if v, err := r.ReadUint64(); err != nil || v != 0x0102030405060708 {
				t.Fatalf("ReadUint64 = %x, %v", v, err)
			}
			dims, err := r.ReadDims()
			if err != nil {
				t.Fatalf("ReadDims failed: %v", err)
			}
			if len(dims) != 2 || dims[0] != 7 || dims[1] != 1<<33 {
				t.Errorf("unexpected dims %v", dims)
			}
			if r.Pos() != int64(buf.Len()) {
				t.Errorf("reader stopped at %d of %d", r.Pos(), buf.Len())
			}
		})
	}
}

func TestReaderShortRead(t *testing.T) {
	r := NewReader(BufferOf([]byte{1, 2}), DefaultConfig())
	_, err := r.ReadUint32()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
	if r.Pos() != 0 {
		t.Errorf("failed read moved position to %d", r.Pos())
	}
}

func TestReaderPrefixTooLarge(t *testing.T) {
	buf := NewBuffer(0)
	if err := NewWriter(buf, DefaultConfig()).WriteUint32(MaxPrefixed + 1); err != nil {
		t.Fatal(err)
	}
	_, err := NewReader(buf, DefaultConfig()).ReadString()
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestReaderAtSkip(t *testing.T) {
	r := NewReader(BufferOf([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8}), DefaultConfig())

	r.Skip(3)
	if v, err := r.ReadUint8(); err != nil || v != 3 {
		t.Fatalf("after Skip(3) read %d, %v", v, err)
	}

	r2 := r.At(8)
	if v, err := r2.ReadUint8(); err != nil || v != 8 {
		t.Errorf("At(8) read %d, %v", v, err)
	}
	if r.Pos() != 4 {
		t.Errorf("At changed the parent position to %d", r.Pos())
	}
}

func TestBufferSparseWrite(t *testing.T) {
	buf := NewBuffer(2)
	if _, err := buf.WriteAt([]byte{9}, 5); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	got := buf.Bytes()
	if len(got) != 6 || got[5] != 9 || got[0] != 0 {
		t.Fatalf("unexpected contents % x", got)
	}

	p := make([]byte, 4)
	n, err := buf.ReadAt(p, 4)
	if n != 2 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadAt past end = %d, %v", n, err)
	}
	if _, err := buf.ReadAt(p, 6); !errors.Is(err, io.EOF) {
		t.Errorf("ReadAt at end = %v", err)
	}
}
