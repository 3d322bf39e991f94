package dtype

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrUnsupported is returned for operations a kind cannot perform, such as
// a typed view over strings.
var ErrUnsupported = errors.New("dtype: unsupported for kind")

// Kind identifies an element type.
type Kind uint8

const (
	Invalid Kind = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	Complex64
	Complex128
	String
)

var kindNames = [...]string{
	Invalid:    "invalid",
	Int8:       "int8",
	Int16:      "int16",
	Int32:      "int32",
	Int64:      "int64",
	Uint8:      "uint8",
	Uint16:     "uint16",
	Uint32:     "uint32",
	Uint64:     "uint64",
	Float32:    "float32",
	Float64:    "float64",
	Complex64:  "complex64",
	Complex128: "complex128",
	String:     "string",
}

var kindSizes = [...]int{
	Int8: 1, Int16: 2, Int32: 4, Int64: 8,
	Uint8: 1, Uint16: 2, Uint32: 4, Uint64: 8,
	Float32: 4, Float64: 8,
	Complex64: 8, Complex128: 16,
}

// Element is the set of Go types a variable may hold.
type Element interface {
	int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64 |
		complex64 | complex128 |
		string
}

// String returns the Go name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Size returns the encoded size of one element, or 0 for String whose
// elements are variable length.
func (k Kind) Size() int {
	if k == String || int(k) >= len(kindSizes) {
		return 0
	}
	return kindSizes[k]
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k > Invalid && k <= String
}

// IsNumeric reports whether k has a fixed-size encoding.
func (k Kind) IsNumeric() bool {
	return k.Valid() && k != String
}

// Ordered reports whether elements of k can be compared with < and >.
func (k Kind) Ordered() bool {
	return k.Valid() && k != Complex64 && k != Complex128
}

// ParseKind maps a Go type name back to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if k != int(Invalid) && n == name {
			return Kind(k), nil
		}
	}
	return Invalid, fmt.Errorf("dtype: unknown element type %q", name)
}

// Of returns the Kind of T.
func Of[T Element]() Kind {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	case complex64:
		return Complex64
	case complex128:
		return Complex128
	case string:
		return String
	}
	return Invalid
}

// hostLittleEndian is true when the in-memory layout of numeric elements
// already matches the encoded layout.
var hostLittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// View reinterprets b as a slice of T. b must be aligned for T and its
// length a multiple of the element size. The result aliases b. Strings
// have no fixed layout and return ErrUnsupported.
func View[T Element](b []byte) ([]T, error) {
	if !Of[T]().IsNumeric() {
		return nil, fmt.Errorf("%w: view of %s", ErrUnsupported, Of[T]())
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	if len(b)%size != 0 {
		return nil, fmt.Errorf("dtype: %d bytes is not a multiple of %s size %d", len(b), Of[T](), size)
	}
	if len(b) == 0 {
		return []T{}, nil
	}
	if uintptr(unsafe.Pointer(&b[0]))%unsafe.Alignof(zero) != 0 {
		return nil, fmt.Errorf("dtype: buffer not aligned for %s", Of[T]())
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), len(b)/size), nil
}

// bytesOf returns the raw memory of a numeric slice.
func bytesOf[T Element](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}
