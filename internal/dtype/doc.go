// Package dtype defines the closed set of element types the engine moves
// and their byte encoding.
//
// Every variable carries exactly one [Kind]. The Go side of a kind is
// expressed through the [Element] constraint, so a type outside the set is
// a compile error rather than a runtime one.
//
// # Type Mapping
//
//	Kind        | Go type     | Encoded size
//	------------|-------------|------------------------------
//	Int8..64    | int8..int64 | 1, 2, 4, 8
//	Uint8..64   | uint8..64   | 1, 2, 4, 8
//	Float32/64  | float32/64  | 4, 8 (IEEE 754 bits)
//	Complex64   | complex64   | 8 (real, imag as float32)
//	Complex128  | complex128  | 16 (real, imag as float64)
//	String      | string      | 4-byte length + UTF-8 bytes
//
// All encodings are little-endian. On little-endian hosts numeric slices
// are copied with a single memmove, mirroring a direct memory copy fast
// path; other hosts fall back to per-element encoding.
//
// # Encoding
//
//	buf := dtype.Encode(nil, []float64{1, 2, 3})
//	out := make([]float64, 3)
//	n, err := dtype.DecodeInto(out, buf)
//
// # Typed Views
//
// [View] reinterprets an aligned byte slice as a slice of a numeric
// element type without copying. The span arena uses it to hand out
// writable typed regions of its pages.
package dtype
