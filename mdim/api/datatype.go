package api

import "fmt"

// Class is the broad category of an ExtendedDataType.
type Class int

const (
	ClassNumeric Class = iota
	ClassString
	// ClassCompound is recognized but no backend builds compound types.
	ClassCompound
)

func (c Class) String() string {
	switch c {
	case ClassNumeric:
		return "numeric"
	case ClassString:
		return "string"
	case ClassCompound:
		return "compound"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// NumericType enumerates the numeric kinds. Complex kinds hold two values
// (real, imaginary) of the base kind per cell.
type NumericType int

const (
	Unknown NumericType = iota
	Int8
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Int64
	UInt64
	Float32
	Float64
	CInt16
	CInt32
	CFloat32
	CFloat64
)

var numericNames = map[NumericType]string{
	Int8:     "Int8",
	UInt8:    "UInt8",
	Int16:    "Int16",
	UInt16:   "UInt16",
	Int32:    "Int32",
	UInt32:   "UInt32",
	Int64:    "Int64",
	UInt64:   "UInt64",
	Float32:  "Float32",
	Float64:  "Float64",
	CInt16:   "CInt16",
	CInt32:   "CInt32",
	CFloat32: "CFloat32",
	CFloat64: "CFloat64",
}

// NumericTypes lists every supported numeric kind, in declaration order.
var NumericTypes = []NumericType{
	Int8, UInt8, Int16, UInt16, Int32, UInt32, Int64, UInt64,
	Float32, Float64, CInt16, CInt32, CFloat32, CFloat64,
}

func (t NumericType) String() string {
	if s, ok := numericNames[t]; ok {
		return s
	}
	return "Unknown"
}

// ParseNumericType is the inverse of String.
func ParseNumericType(s string) (NumericType, error) {
	for t, name := range numericNames {
		if name == s {
			return t, nil
		}
	}
	return Unknown, fmt.Errorf("%w: numeric type %q", ErrNotSupported, s)
}

// Size is the byte size of one cell.
func (t NumericType) Size() int {
	switch t {
	case Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32, CInt16:
		return 4
	case Int64, UInt64, Float64, CInt32, CFloat32:
		return 8
	case CFloat64:
		return 16
	}
	return 0
}

// IsComplex reports whether cells hold a (real, imaginary) pair.
func (t NumericType) IsComplex() bool {
	return t == CInt16 || t == CInt32 || t == CFloat32 || t == CFloat64
}

// IsInteger reports whether the base kind is an integer.
func (t NumericType) IsInteger() bool {
	switch t {
	case Int8, UInt8, Int16, UInt16, Int32, UInt32, Int64, UInt64, CInt16, CInt32:
		return true
	}
	return false
}

// IsSigned is false only for the unsigned integer kinds.
func (t NumericType) IsSigned() bool {
	switch t {
	case UInt8, UInt16, UInt32, UInt64:
		return false
	}
	return true
}

// Base returns the component kind of a complex kind, and t itself otherwise.
func (t NumericType) Base() NumericType {
	switch t {
	case CInt16:
		return Int16
	case CInt32:
		return Int32
	case CFloat32:
		return Float32
	case CFloat64:
		return Float64
	}
	return t
}

// ComplexOf returns the complex kind whose components are of kind t.
func ComplexOf(t NumericType) (NumericType, bool) {
	switch t {
	case Int16:
		return CInt16, true
	case Int32:
		return CInt32, true
	case Float32:
		return CFloat32, true
	case Float64:
		return CFloat64, true
	}
	return Unknown, false
}

// ExtendedDataType describes the type of the cells of an array or attribute.
type ExtendedDataType struct {
	class        Class
	numeric      NumericType
	maxStringLen int
}

// NewNumeric returns a numeric ExtendedDataType.
func NewNumeric(t NumericType) ExtendedDataType {
	return ExtendedDataType{class: ClassNumeric, numeric: t}
}

// NewString returns a string ExtendedDataType. A zero maxLength means
// unbounded.
func NewString(maxLength int) ExtendedDataType {
	return ExtendedDataType{class: ClassString, maxStringLen: maxLength}
}

func (dt ExtendedDataType) Class() Class { return dt.class }

// Numeric is Unknown for non numeric types.
func (dt ExtendedDataType) Numeric() NumericType {
	if dt.class != ClassNumeric {
		return Unknown
	}
	return dt.numeric
}

// MaxStringLength is zero for unbounded strings and for numeric types.
func (dt ExtendedDataType) MaxStringLength() int { return dt.maxStringLen }

// Size is the byte size of one numeric cell, or 0 for strings.
func (dt ExtendedDataType) Size() int {
	if dt.class != ClassNumeric {
		return 0
	}
	return dt.numeric.Size()
}

// IsValid rejects the zero value and unknown numeric kinds.
func (dt ExtendedDataType) IsValid() bool {
	switch dt.class {
	case ClassNumeric:
		return dt.numeric.Size() > 0
	case ClassString:
		return dt.maxStringLen >= 0
	}
	return false
}

// Equal compares class, numeric kind and string length.
func (dt ExtendedDataType) Equal(other ExtendedDataType) bool {
	return dt == other
}

// CanConvertTo reports whether cell values can be converted to other.
func (dt ExtendedDataType) CanConvertTo(other ExtendedDataType) bool {
	if !dt.IsValid() || !other.IsValid() {
		return false
	}
	switch {
	case dt.class == ClassNumeric && other.class == ClassNumeric:
		return true
	case dt.class == ClassString && other.class == ClassString:
		return true
	case dt.class == ClassNumeric && other.class == ClassString:
		return !dt.numeric.IsComplex()
	case dt.class == ClassString && other.class == ClassNumeric:
		return !other.numeric.IsComplex()
	}
	return false
}

func (dt ExtendedDataType) String() string {
	switch dt.class {
	case ClassNumeric:
		return dt.numeric.String()
	case ClassString:
		if dt.maxStringLen > 0 {
			return fmt.Sprintf("String(%d)", dt.maxStringLen)
		}
		return "String"
	}
	return dt.class.String()
}
