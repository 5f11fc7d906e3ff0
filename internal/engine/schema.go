package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/util"
)

// DimensionUInt64 is the only dimension type the engine creates.
const DimensionUInt64 = "UINT64"

// Compression filters.
const (
	CompressionNone = ""
	CompressionGzip = "gzip"
	CompressionZstd = "zst"
)

type DimensionSchema struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Lo     uint64 `json:"lo"`
	Hi     uint64 `json:"hi"`
	Extent uint64 `json:"extent"`
}

// Size is the number of cells along the dimension.
func (d DimensionSchema) Size() uint64 {
	return d.Hi - d.Lo + 1
}

// AttributeSchema describes one value per cell. Type names a real numeric
// kind; CellValNum is 2 for the complex forms.
type AttributeSchema struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	CellValNum int    `json:"cell_val_num"`
	// Fill is one cell in the host byte order; nil means zeros.
	Fill []byte `json:"fill,omitempty"`
}

// CellSize is the byte size of one cell of the attribute.
func (a AttributeSchema) CellSize() int {
	t, err := api.ParseNumericType(a.Type)
	if err != nil {
		return 0
	}
	return t.Size() * a.CellValNum
}

// Schema is fixed at creation, except for attribute fill values. A
// CompressionLevel of 0 is the filter's default.
type Schema struct {
	Dimensions       []DimensionSchema `json:"dimensions"`
	Attributes       []AttributeSchema `json:"attributes"`
	Compression      string            `json:"compression,omitempty"`
	CompressionLevel int               `json:"compression_level,omitempty"`
	ByteOrder        string            `json:"byte_order"`
}

func hostByteOrder() string {
	var b [2]byte
	util.NativeByteOrder.PutUint16(b[:], 1)
	if b[0] == 1 {
		return "little"
	}
	return "big"
}

// Validate checks the schema for internal consistency.
func (s *Schema) Validate() error {
	if len(s.Dimensions) == 0 {
		return errorf(ErrUnsupported, "an array needs at least one dimension")
	}
	seen := map[string]bool{}
	for _, d := range s.Dimensions {
		if d.Type != DimensionUInt64 {
			return errorf(ErrUnsupported, "dimension %q of type %s", d.Name, d.Type)
		}
		if d.Name == "" || seen[d.Name] {
			return errorf(ErrInvalid, "dimension name %q", d.Name)
		}
		seen[d.Name] = true
		if d.Hi < d.Lo {
			return errorf(ErrInvalid, "dimension %q: empty domain", d.Name)
		}
		if d.Extent == 0 || d.Extent > d.Size() {
			return errorf(ErrInvalid, "dimension %q: tile extent %d for %d cells",
				d.Name, d.Extent, d.Size())
		}
	}
	if len(s.Attributes) == 0 {
		return errorf(ErrInvalid, "an array needs at least one attribute")
	}
	for _, a := range s.Attributes {
		t, err := api.ParseNumericType(a.Type)
		if err != nil || t.IsComplex() {
			return errorf(ErrUnsupported, "attribute %q of type %s", a.Name, a.Type)
		}
		if a.CellValNum != 1 && a.CellValNum != 2 {
			return errorf(ErrUnsupported, "attribute %q with %d values per cell", a.Name, a.CellValNum)
		}
		if a.Fill != nil && len(a.Fill) != a.CellSize() {
			return errorf(ErrInvalid, "attribute %q: fill value of %d bytes", a.Name, len(a.Fill))
		}
		if a.Name == "" || seen[a.Name] {
			return errorf(ErrInvalid, "attribute name %q", a.Name)
		}
		seen[a.Name] = true
	}
	switch s.Compression {
	case CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return errorf(ErrUnsupported, "compression %q", s.Compression)
	}
	return checkLevel(s.Compression, s.CompressionLevel)
}

func (s *Schema) attribute(name string) (*AttributeSchema, error) {
	for i := range s.Attributes {
		if s.Attributes[i].Name == name {
			return &s.Attributes[i], nil
		}
	}
	return nil, errorf(ErrNotFound, "attribute %q", name)
}

// Shape is the number of cells along each dimension.
func (s *Schema) Shape() []uint64 {
	shape := make([]uint64, len(s.Dimensions))
	for i, d := range s.Dimensions {
		shape[i] = d.Size()
	}
	return shape
}

// TileShape is the tile extent along each dimension.
func (s *Schema) TileShape() []uint64 {
	ext := make([]uint64, len(s.Dimensions))
	for i, d := range s.Dimensions {
		ext[i] = d.Extent
	}
	return ext
}

// gridShape is the number of tiles along each dimension.
func gridShape(shape, extents []uint64) []uint64 {
	grid := make([]uint64, len(shape))
	for i := range shape {
		grid[i] = (shape[i] + extents[i] - 1) / extents[i]
	}
	return grid
}

// tileKey names a tile from its grid indices, e.g. "1.4".
func tileKey(indices []uint64) string {
	if len(indices) == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, idx := range indices {
		if i > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(strconv.FormatUint(idx, 10))
	}
	return sb.String()
}

func (s *Schema) String() string {
	var sb strings.Builder
	for i, d := range s.Dimensions {
		if i > 0 {
			sb.WriteString(" x ")
		}
		fmt.Fprintf(&sb, "%s[%d..%d/%d]", d.Name, d.Lo, d.Hi, d.Extent)
	}
	return sb.String()
}
