// Package binary provides positioned binary I/O for block records.
//
// [Reader] and [Writer] wrap io.ReaderAt / io.WriterAt with an explicit
// position and a configured byte order. Both sides understand the small
// set of compound fields block records use:
//
//   - fixed-width unsigned integers (1, 2, 4, 8 bytes)
//   - length-prefixed strings (uint32 length, then bytes)
//   - dimension vectors (uint32 count, then uint64 values)
//
// [Buffer] is a growable in-memory io.WriterAt/io.ReaderAt so records can
// be assembled before their final size is known.
//
// The package also carries the two checksums used on stored bytes:
// Jenkins lookup3 for record integrity and Fletcher-32 for the checksum
// operator.
package binary
