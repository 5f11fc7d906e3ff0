package api

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Buffer is a flat run of cells of one type. Numeric cells live in Raw in
// the host byte order; string cells live in Strings.
type Buffer struct {
	Type    ExtendedDataType
	Raw     []byte
	Strings []string
}

// NewBuffer allocates a zeroed buffer of n cells.
func NewBuffer(dt ExtendedDataType, n int) Buffer {
	b := Buffer{Type: dt}
	if dt.Class() == ClassString {
		b.Strings = make([]string, n)
	} else {
		b.Raw = make([]byte, n*dt.Size())
	}
	return b
}

// StringBuffer wraps vals without copying.
func StringBuffer(vals []string) Buffer {
	return Buffer{Type: NewString(0), Strings: vals}
}

// Len is the number of cells the buffer can hold.
func (b Buffer) Len() int {
	if b.Type.Class() == ClassString {
		return len(b.Strings)
	}
	sz := b.Type.Size()
	if sz == 0 {
		return 0
	}
	return len(b.Raw) / sz
}

// Number is the set of Go types with a matching NumericType.
type Number interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 |
		float32 | float64 | complex64 | complex128
}

// NumericTypeOf maps a Go number type to its NumericType.
func NumericTypeOf[T Number]() NumericType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case uint8:
		return UInt8
	case int16:
		return Int16
	case uint16:
		return UInt16
	case int32:
		return Int32
	case uint32:
		return UInt32
	case int64:
		return Int64
	case uint64:
		return UInt64
	case float32:
		return Float32
	case float64:
		return Float64
	case complex64:
		return CFloat32
	case complex128:
		return CFloat64
	}
	return Unknown
}

// BufferOf encodes vals into a new Buffer of the matching numeric type.
func BufferOf[T Number](vals []T) Buffer {
	dt := NewNumeric(NumericTypeOf[T]())
	var bb bytes.Buffer
	bb.Grow(len(vals) * dt.Size())
	// Writing fixed-size values to a bytes.Buffer cannot fail.
	_ = binary.Write(&bb, binary.NativeEndian, vals)
	return Buffer{Type: dt, Raw: bb.Bytes()}
}

// Values decodes the cells of b. The buffer type must match T exactly.
func Values[T Number](b Buffer) ([]T, error) {
	want := NumericTypeOf[T]()
	if b.Type.Numeric() != want {
		return nil, fmt.Errorf("%w: buffer holds %v, not %v",
			ErrInvalidArgument, b.Type, want)
	}
	out := make([]T, b.Len())
	if err := binary.Read(bytes.NewReader(b.Raw), binary.NativeEndian, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return out, nil
}
