package operator

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// DeflateOp compresses with a zlib stream.
type DeflateOp struct {
	level int
}

// NewDeflate creates a deflate operator.
// Params: [0] = compression level (0-9, default 6).
func NewDeflate(params []uint32) *DeflateOp {
	level := 6
	if len(params) > 0 && params[0] <= 9 {
		level = int(params[0])
	}
	return &DeflateOp{level: level}
}

func (o *DeflateOp) ID() ID {
	return Deflate
}

func (o *DeflateOp) Encode(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, o.level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := w.Write(input); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (o *DeflateOp) Decode(input []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer r.Close()

	output, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	return output, nil
}
