package operator

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// decoder is shared; DecodeAll is safe for concurrent use.
var (
	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func sharedDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return decoder, decoderErr
}

// ZstdOp compresses with a Zstandard frame.
type ZstdOp struct {
	level zstd.EncoderLevel

	once sync.Once
	enc  *zstd.Encoder
	err  error
}

// NewZstd creates a zstd operator.
// Params: [0] = zstd level (1-22, default 3).
func NewZstd(params []uint32) *ZstdOp {
	level := 3
	if len(params) > 0 && params[0] > 0 {
		level = int(params[0])
	}
	return &ZstdOp{level: zstd.EncoderLevelFromZstd(level)}
}

func (o *ZstdOp) ID() ID {
	return Zstd
}

func (o *ZstdOp) Encode(input []byte) ([]byte, error) {
	o.once.Do(func() {
		o.enc, o.err = zstd.NewWriter(nil, zstd.WithEncoderLevel(o.level))
	})
	if o.err != nil {
		return nil, fmt.Errorf("zstd writer: %w", o.err)
	}
	return o.enc.EncodeAll(input, nil), nil
}

func (o *ZstdOp) Decode(input []byte) ([]byte, error) {
	d, err := sharedDecoder()
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	out, err := d.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
