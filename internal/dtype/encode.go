package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"
)

var le = binary.LittleEndian

// EncodedLen returns the number of bytes Encode appends for src.
func EncodedLen[T Element](src []T) int {
	if ss, ok := any(src).([]string); ok {
		n := 0
		for _, s := range ss {
			n += 4 + len(s)
		}
		return n
	}
	return len(src) * Of[T]().Size()
}

// Encode appends the little-endian encoding of src to dst.
func Encode[T Element](dst []byte, src []T) []byte {
	dst = slices.Grow(dst, EncodedLen(src))
	if hostLittleEndian && Of[T]().IsNumeric() {
		return append(dst, bytesOf(src)...)
	}

	switch s := any(src).(type) {
	case []int8:
		for _, v := range s {
			dst = append(dst, byte(v))
		}
	case []uint8:
		dst = append(dst, s...)
	case []int16:
		for _, v := range s {
			dst = le.AppendUint16(dst, uint16(v))
		}
	case []uint16:
		for _, v := range s {
			dst = le.AppendUint16(dst, v)
		}
	case []int32:
		for _, v := range s {
			dst = le.AppendUint32(dst, uint32(v))
		}
	case []uint32:
		for _, v := range s {
			dst = le.AppendUint32(dst, v)
		}
	case []int64:
		for _, v := range s {
			dst = le.AppendUint64(dst, uint64(v))
		}
	case []uint64:
		for _, v := range s {
			dst = le.AppendUint64(dst, v)
		}
	case []float32:
		for _, v := range s {
			dst = le.AppendUint32(dst, math.Float32bits(v))
		}
	case []float64:
		for _, v := range s {
			dst = le.AppendUint64(dst, math.Float64bits(v))
		}
	case []complex64:
		for _, v := range s {
			dst = le.AppendUint32(dst, math.Float32bits(real(v)))
			dst = le.AppendUint32(dst, math.Float32bits(imag(v)))
		}
	case []complex128:
		for _, v := range s {
			dst = le.AppendUint64(dst, math.Float64bits(real(v)))
			dst = le.AppendUint64(dst, math.Float64bits(imag(v)))
		}
	case []string:
		for _, v := range s {
			dst = le.AppendUint32(dst, uint32(len(v)))
			dst = append(dst, v...)
		}
	}
	return dst
}

// DecodeInto fills dst from the encoding in src and returns the number of
// bytes consumed.
func DecodeInto[T Element](dst []T, src []byte) (int, error) {
	kind := Of[T]()
	if kind == String {
		return decodeStrings(any(dst).([]string), src)
	}

	need := len(dst) * kind.Size()
	if len(src) < need {
		return 0, fmt.Errorf("dtype: %s decode needs %d bytes, have %d", kind, need, len(src))
	}
	if hostLittleEndian {
		copy(bytesOf(dst), src[:need])
		return need, nil
	}

	switch d := any(dst).(type) {
	case []int8:
		for i := range d {
			d[i] = int8(src[i])
		}
	case []uint8:
		copy(d, src)
	case []int16:
		for i := range d {
			d[i] = int16(le.Uint16(src[2*i:]))
		}
	case []uint16:
		for i := range d {
			d[i] = le.Uint16(src[2*i:])
		}
	case []int32:
		for i := range d {
			d[i] = int32(le.Uint32(src[4*i:]))
		}
	case []uint32:
		for i := range d {
			d[i] = le.Uint32(src[4*i:])
		}
	case []int64:
		for i := range d {
			d[i] = int64(le.Uint64(src[8*i:]))
		}
	case []uint64:
		for i := range d {
			d[i] = le.Uint64(src[8*i:])
		}
	case []float32:
		for i := range d {
			d[i] = math.Float32frombits(le.Uint32(src[4*i:]))
		}
	case []float64:
		for i := range d {
			d[i] = math.Float64frombits(le.Uint64(src[8*i:]))
		}
	case []complex64:
		for i := range d {
			re := math.Float32frombits(le.Uint32(src[8*i:]))
			im := math.Float32frombits(le.Uint32(src[8*i+4:]))
			d[i] = complex(re, im)
		}
	case []complex128:
		for i := range d {
			re := math.Float64frombits(le.Uint64(src[16*i:]))
			im := math.Float64frombits(le.Uint64(src[16*i+8:]))
			d[i] = complex(re, im)
		}
	}
	return need, nil
}

func decodeStrings(dst []string, src []byte) (int, error) {
	pos := 0
	for i := range dst {
		if len(src)-pos < 4 {
			return 0, fmt.Errorf("dtype: truncated string length at element %d", i)
		}
		n := int(le.Uint32(src[pos:]))
		pos += 4
		if len(src)-pos < n {
			return 0, fmt.Errorf("dtype: truncated string at element %d: need %d bytes, have %d", i, n, len(src)-pos)
		}
		dst[i] = string(src[pos : pos+n])
		pos += n
	}
	return pos, nil
}

// Decode returns n elements decoded from src.
func Decode[T Element](src []byte, n int) ([]T, error) {
	out := make([]T, n)
	if _, err := DecodeInto(out, src); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeKind decodes n elements of kind k into a freshly allocated slice
// returned as any ([]int8, []float64, ...). Callers that only know the kind
// at run time use it for display.
func DecodeKind(k Kind, src []byte, n int) (any, error) {
	switch k {
	case Int8:
		return Decode[int8](src, n)
	case Int16:
		return Decode[int16](src, n)
	case Int32:
		return Decode[int32](src, n)
	case Int64:
		return Decode[int64](src, n)
	case Uint8:
		return Decode[uint8](src, n)
	case Uint16:
		return Decode[uint16](src, n)
	case Uint32:
		return Decode[uint32](src, n)
	case Uint64:
		return Decode[uint64](src, n)
	case Float32:
		return Decode[float32](src, n)
	case Float64:
		return Decode[float64](src, n)
	case Complex64:
		return Decode[complex64](src, n)
	case Complex128:
		return Decode[complex128](src, n)
	case String:
		return Decode[string](src, n)
	}
	return nil, fmt.Errorf("dtype: decode of %s", k)
}

// FormatValue renders a single encoded element, as stored for block
// min/max, in its natural text form. An empty encoding renders as "-".
func FormatValue(k Kind, src []byte) string {
	if len(src) == 0 {
		return "-"
	}
	v, err := DecodeKind(k, src, 1)
	if err != nil {
		return "?"
	}
	return strings.TrimSuffix(strings.TrimPrefix(fmt.Sprint(v), "["), "]")
}

// MinMax returns the smallest and largest element of src. ok is false for
// empty input and for complex kinds, which have no ordering.
func MinMax[T Element](src []T) (lo, hi T, ok bool) {
	if len(src) == 0 || !Of[T]().Ordered() {
		return lo, hi, false
	}
	switch s := any(src).(type) {
	case []int8:
		a, b := minMax(s)
		return any(a).(T), any(b).(T), true
	case []int16:
		a, b := minMax(s)
		return any(a).(T), any(b).(T), true
	case []int32:
		a, b := minMax(s)
		return any(a).(T), any(b).(T), true
	case []int64:
		a, b := minMax(s)
		return any(a).(T), any(b).(T), true
	case []uint8:
		a, b := minMax(s)
		return any(a).(T), any(b).(T), true
	case []uint16:
		a, b := minMax(s)
		return any(a).(T), any(b).(T), true
	case []uint32:
		a, b := minMax(s)
		return any(a).(T), any(b).(T), true
	case []uint64:
		a, b := minMax(s)
		return any(a).(T), any(b).(T), true
	case []float32:
		a, b := minMax(s)
		return any(a).(T), any(b).(T), true
	case []float64:
		a, b := minMax(s)
		return any(a).(T), any(b).(T), true
	case []string:
		a, b := minMax(s)
		return any(a).(T), any(b).(T), true
	}
	return lo, hi, false
}

type ordered interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~string
}

func minMax[T ordered](s []T) (T, T) {
	lo, hi := s[0], s[0]
	for _, v := range s[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
