// Package operator implements the per-block operator pipeline applied to
// encoded payload bytes before they reach a transport.
//
// Operators run in declaration order when a block is written and in
// reverse order when it is read. The pipeline records, per block, a mask
// of operators that were skipped at write time; a compressor is skipped
// when its output would not be smaller than its input, so incompressible
// blocks are stored as-is.
//
// # Operators
//
//   - deflate (ID 1): zlib stream via github.com/klauspost/compress/zlib.
//     Parameter 0 is the level (0-9, default 6).
//   - shuffle (ID 2): byte transposition that groups byte i of every
//     element together. The element size comes from the variable type.
//   - fletcher32 (ID 3): appends a Fletcher-32 checksum on write and
//     verifies it on read.
//   - zstd (ID 4): Zstandard frame via github.com/klauspost/compress/zstd.
//     Parameter 0 is the zstd level (1-22, default 3).
//
// # Pipeline
//
//	p, err := operator.NewPipeline([]operator.Spec{{ID: operator.Shuffle}, {ID: operator.Zstd}}, 8)
//	out, mask, err := p.Encode(payload)
//	payload, err = p.Decode(out, mask)
//
// Specs can also be parsed from text such as "shuffle,zstd:5" with
// [ParseSpecs], which is how engine options and config files name them.
package operator
