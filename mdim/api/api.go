// Package api is common to the different implementations of the
// multidimensional model (in memory, or on the dense tile store).
package api

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// Options carries creation and open options as upper-case key/value pairs.
type Options map[string]string

// Recognized option keys.
const (
	OptBlockSize        = "BLOCKSIZE"
	OptCompression      = "COMPRESSION"
	OptCompressionLevel = "COMPRESSION_LEVEL"
	OptURI              = "URI"
	OptTimestamp        = "TIMESTAMP"
	OptStats            = "STATS"
	OptInMemory         = "IN_MEMORY"
	OptShowAll          = "SHOW_ALL"
)

// Get is safe on a nil map.
func (o Options) Get(key string) (string, bool) {
	if o == nil {
		return "", false
	}
	v, ok := o[key]
	return v, ok
}

// Bool parses a boolean option, returning def when it is absent. YES/NO
// and ON/OFF are accepted besides the usual true/false forms.
func (o Options) Bool(key string, def bool) (bool, error) {
	v, ok := o.Get(key)
	if !ok {
		return def, nil
	}
	return ParseBool(v)
}

// ParseBool accepts YES, NO, ON, OFF, TRUE, FALSE, 1 and 0 in any case.
func ParseBool(v string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "YES", "ON":
		return true, nil
	case "NO", "OFF":
		return false, nil
	}
	b, err := cast.ToBoolE(strings.ToLower(strings.TrimSpace(v)))
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidArgument, v)
	}
	return b, nil
}

// Well-known dimension type tags.
const (
	DimTypeHorizontalX = "HORIZONTAL_X"
	DimTypeHorizontalY = "HORIZONTAL_Y"
	DimTypeVertical    = "VERTICAL"
	DimTypeTemporal    = "TEMPORAL"
	DimTypeParametric  = "PARAMETRIC"
)

// Well-known dimension direction tags.
const (
	DirectionEast   = "EAST"
	DirectionWest   = "WEST"
	DirectionNorth  = "NORTH"
	DirectionSouth  = "SOUTH"
	DirectionUp     = "UP"
	DirectionDown   = "DOWN"
	DirectionFuture = "FUTURE"
	DirectionPast   = "PAST"
)

// SpatialRef is an opaque coordinate reference system description. The
// definition (WKT, PROJJSON or an authority code) is stored verbatim.
// DataAxisToSRSAxis gives, for each SRS axis, the 1-based index of the
// array dimension that carries it.
type SpatialRef struct {
	Definition        string
	DataAxisToSRSAxis []int
}

// Clone returns a deep copy. A nil receiver returns nil.
func (s *SpatialRef) Clone() *SpatialRef {
	if s == nil {
		return nil
	}
	c := &SpatialRef{Definition: s.Definition}
	c.DataAxisToSRSAxis = append([]int(nil), s.DataAxisToSRSAxis...)
	return c
}

type Attribute interface {
	Name() string
	FullName() string
	Rename(newName string) error

	// DataType is the type of the attribute cells.
	DataType() ExtendedDataType
	// DimensionsSize is empty for a scalar, or holds the single length of a
	// vector attribute.
	DimensionsSize() []uint64

	Read(start, count []uint64, step, stride []int64, dst Buffer) error
	Write(start, count []uint64, step, stride []int64, src Buffer) error

	ReadAsString() (string, error)
	ReadAsStrings() ([]string, error)
	ReadAsInt() (int, error)
	ReadAsFloat64() (float64, error)
	ReadAsFloat64s() ([]float64, error)

	WriteString(s string) error
	WriteStrings(s []string) error
	WriteInt(v int) error
	WriteFloat64(v float64) error
	WriteFloat64s(v []float64) error
}

// AttributeHolder is implemented by groups and arrays.
type AttributeHolder interface {
	GetAttribute(name string) (Attribute, error)
	// ListAttributes returns attributes in creation order.
	ListAttributes(opts Options) []Attribute
	// CreateAttribute creates a scalar (dims empty) or vector attribute.
	CreateAttribute(name string, dims []uint64, dt ExtendedDataType, opts Options) (Attribute, error)
	DeleteAttribute(name string, opts Options) error
}

type Dimension interface {
	Name() string
	FullName() string
	Rename(newName string) error

	// Type is a semantic tag such as DimTypeHorizontalX, or empty.
	Type() string
	// Direction is a tag such as DirectionEast, or empty.
	Direction() string
	Size() uint64
	// Resize changes the size and resizes every array using the dimension.
	Resize(newSize uint64) error

	// IndexingVariable returns nil if the dimension has none.
	IndexingVariable() MDArray
	SetIndexingVariable(v MDArray) error
}

type MDArray interface {
	AttributeHolder

	Name() string
	FullName() string
	Rename(newName string) error

	Dimensions() []Dimension
	Shape() []uint64
	DataType() ExtendedDataType
	// BlockSize is the preferred I/O granularity, 0 where there is none.
	BlockSize() []uint64
	IsWritable() bool

	// Read copies the selection into dst. step and stride may be nil for
	// all ones and row-major contiguous, respectively. Strides are counted
	// in cells.
	Read(start, count []uint64, step, stride []int64, dst Buffer) error
	Write(start, count []uint64, step, stride []int64, src Buffer) error
	Resize(newSizes []uint64, opts Options) error

	// RawNoDataValue is nil when no no-data value is set. Otherwise it is
	// one cell in the array's own encoding.
	RawNoDataValue() []byte
	SetRawNoDataValue(raw []byte) error
	NoDataValue() (float64, bool)
	SetNoDataValue(v float64) error

	Unit() string
	SetUnit(unit string) error
	Scale() (float64, bool)
	SetScale(v float64) error
	Offset() (float64, bool)
	SetOffset(v float64) error

	// SpatialRef returns nil when none is associated.
	SpatialRef() *SpatialRef
	SetSpatialRef(srs *SpatialRef) error
}

type Group interface {
	AttributeHolder

	Name() string
	FullName() string
	Rename(newName string) error

	// Close releases the group. Deferred arrays still pending are
	// committed; failures are logged, not returned.
	Close()

	ListGroups(opts Options) []string
	GetGroup(name string, opts Options) (Group, error)
	CreateGroup(name string, opts Options) (Group, error)
	DeleteGroup(name string, opts Options) error

	ListMDArrays(opts Options) []string
	GetMDArray(name string, opts Options) (MDArray, error)
	CreateMDArray(name string, dims []Dimension, dt ExtendedDataType, opts Options) (MDArray, error)
	DeleteMDArray(name string, opts Options) error

	ListDimensions(opts Options) []Dimension
	CreateDimension(name, typ, direction string, size uint64, opts Options) (Dimension, error)
}

// ElementCount is the product of shape, 1 for a scalar.
func ElementCount(shape []uint64) uint64 {
	n := uint64(1)
	for _, s := range shape {
		n *= s
	}
	return n
}

// ReadAll reads the full extent of a in row-major order, converted to dt.
func ReadAll(a MDArray, dt ExtendedDataType) (Buffer, error) {
	shape := a.Shape()
	n := ElementCount(shape)
	if n > uint64(int(^uint(0)>>1)) {
		return Buffer{}, fmt.Errorf("%w: array too large", ErrInvalidArgument)
	}
	buf := NewBuffer(dt, int(n))
	start := make([]uint64, len(shape))
	if err := a.Read(start, shape, nil, nil, buf); err != nil {
		return Buffer{}, err
	}
	return buf, nil
}

// WriteAll writes buf over the full extent of a, in row-major order.
func WriteAll(a MDArray, buf Buffer) error {
	shape := a.Shape()
	start := make([]uint64, len(shape))
	return a.Write(start, shape, nil, nil, buf)
}
