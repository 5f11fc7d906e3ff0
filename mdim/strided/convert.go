package strided

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/util"
)

// cellCopier copies cell si of src into cell di of dst, converting as needed.
type cellCopier func(dst api.Buffer, di int64, src api.Buffer, si int64)

type valueKind int

const (
	kindFloat valueKind = iota
	kindSigned
	kindUnsigned
)

// scalar is the intermediate form of one numeric cell. Integer values keep
// their exact 64-bit representation alongside the float one.
type scalar struct {
	kind   valueKind
	re, im float64
	i      int64
	u      uint64
}

func copierFor(src, dst api.ExtendedDataType) (cellCopier, error) {
	if !src.CanConvertTo(dst) {
		return nil, fmt.Errorf("%w: cannot convert %v to %v", api.ErrNotSupported, src, dst)
	}
	switch {
	case src.Class() == api.ClassNumeric && dst.Class() == api.ClassNumeric:
		st, dt := src.Numeric(), dst.Numeric()
		if st == dt {
			sz := int64(st.Size())
			return func(d api.Buffer, di int64, s api.Buffer, si int64) {
				copy(d.Raw[di*sz:(di+1)*sz], s.Raw[si*sz:(si+1)*sz])
			}, nil
		}
		ss, ds := int64(st.Size()), int64(dt.Size())
		return func(d api.Buffer, di int64, s api.Buffer, si int64) {
			store(dt, d.Raw[di*ds:(di+1)*ds], load(st, s.Raw[si*ss:(si+1)*ss]))
		}, nil
	case src.Class() == api.ClassString && dst.Class() == api.ClassString:
		maxLen := dst.MaxStringLength()
		return func(d api.Buffer, di int64, s api.Buffer, si int64) {
			d.Strings[di] = truncate(s.Strings[si], maxLen)
		}, nil
	case src.Class() == api.ClassNumeric:
		st := src.Numeric()
		ss := int64(st.Size())
		maxLen := dst.MaxStringLength()
		return func(d api.Buffer, di int64, s api.Buffer, si int64) {
			d.Strings[di] = truncate(format(load(st, s.Raw[si*ss:(si+1)*ss]), st), maxLen)
		}, nil
	default:
		dt := dst.Numeric()
		ds := int64(dt.Size())
		return func(d api.Buffer, di int64, s api.Buffer, si int64) {
			store(dt, d.Raw[di*ds:(di+1)*ds], parse(s.Strings[si], dt))
		}, nil
	}
}

func truncate(s string, maxLen int) string {
	if maxLen > 0 && len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}

func load(t api.NumericType, b []byte) scalar {
	bo := util.NativeByteOrder
	switch t {
	case api.Int8:
		return signed(int64(int8(b[0])))
	case api.UInt8:
		return unsigned(uint64(b[0]))
	case api.Int16:
		return signed(int64(int16(bo.Uint16(b))))
	case api.UInt16:
		return unsigned(uint64(bo.Uint16(b)))
	case api.Int32:
		return signed(int64(int32(bo.Uint32(b))))
	case api.UInt32:
		return unsigned(uint64(bo.Uint32(b)))
	case api.Int64:
		return signed(int64(bo.Uint64(b)))
	case api.UInt64:
		return unsigned(bo.Uint64(b))
	case api.Float32:
		return scalar{kind: kindFloat, re: float64(math.Float32frombits(bo.Uint32(b)))}
	case api.Float64:
		return scalar{kind: kindFloat, re: math.Float64frombits(bo.Uint64(b))}
	}
	// complex kinds: two cells of the base kind
	base := t.Base()
	half := base.Size()
	re := load(base, b[:half])
	im := load(base, b[half:2*half])
	re.im = im.re
	return re
}

func signed(v int64) scalar {
	return scalar{kind: kindSigned, re: float64(v), i: v}
}

func unsigned(v uint64) scalar {
	return scalar{kind: kindUnsigned, re: float64(v), u: v}
}

func store(t api.NumericType, b []byte, v scalar) {
	bo := util.NativeByteOrder
	switch t {
	case api.Int8:
		b[0] = byte(int8(toSigned(v, math.MinInt8, math.MaxInt8)))
	case api.UInt8:
		b[0] = uint8(toUnsigned(v, math.MaxUint8))
	case api.Int16:
		bo.PutUint16(b, uint16(int16(toSigned(v, math.MinInt16, math.MaxInt16))))
	case api.UInt16:
		bo.PutUint16(b, uint16(toUnsigned(v, math.MaxUint16)))
	case api.Int32:
		bo.PutUint32(b, uint32(int32(toSigned(v, math.MinInt32, math.MaxInt32))))
	case api.UInt32:
		bo.PutUint32(b, uint32(toUnsigned(v, math.MaxUint32)))
	case api.Int64:
		bo.PutUint64(b, uint64(toSigned(v, math.MinInt64, math.MaxInt64)))
	case api.UInt64:
		bo.PutUint64(b, toUnsigned(v, math.MaxUint64))
	case api.Float32:
		bo.PutUint32(b, math.Float32bits(float32(v.re)))
	case api.Float64:
		bo.PutUint64(b, math.Float64bits(v.re))
	default:
		base := t.Base()
		half := base.Size()
		store(base, b[:half], v)
		store(base, b[half:2*half], scalar{kind: kindFloat, re: v.im})
	}
}

// toSigned rounds half away from zero and clamps to [lo, hi].
func toSigned(v scalar, lo, hi int64) int64 {
	switch v.kind {
	case kindSigned:
		return clampInt(v.i, lo, hi)
	case kindUnsigned:
		if v.u > uint64(hi) {
			return hi
		}
		return int64(v.u)
	}
	f := math.Round(v.re)
	switch {
	case math.IsNaN(f):
		return 0
	case f <= float64(lo):
		return lo
	case f >= float64(hi):
		return hi
	}
	return int64(f)
}

func toUnsigned(v scalar, hi uint64) uint64 {
	switch v.kind {
	case kindSigned:
		if v.i < 0 {
			return 0
		}
		if uint64(v.i) > hi {
			return hi
		}
		return uint64(v.i)
	case kindUnsigned:
		if v.u > hi {
			return hi
		}
		return v.u
	}
	f := math.Round(v.re)
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= float64(hi):
		return hi
	}
	return uint64(f)
}

func clampInt(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func format(v scalar, t api.NumericType) string {
	switch v.kind {
	case kindSigned:
		return strconv.FormatInt(v.i, 10)
	case kindUnsigned:
		return strconv.FormatUint(v.u, 10)
	}
	bits := 64
	if t == api.Float32 {
		bits = 32
	}
	return strconv.FormatFloat(v.re, 'g', -1, bits)
}

// parse follows atof semantics: anything unparsable becomes zero.
func parse(s string, t api.NumericType) scalar {
	s = strings.TrimSpace(s)
	if t.IsInteger() {
		if t.IsSigned() {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return signed(i)
			}
		} else if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return unsigned(u)
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && f == 0 {
		return scalar{kind: kindFloat}
	}
	return scalar{kind: kindFloat, re: f}
}

// ConvertCell converts a single cell. It is used for no-data values and
// attributes where running the full engine would be overkill.
func ConvertCell(src api.Buffer, dst api.Buffer) error {
	copier, err := copierFor(src.Type, dst.Type)
	if err != nil {
		return err
	}
	if src.Len() < 1 || dst.Len() < 1 {
		return fmt.Errorf("%w: empty buffer", api.ErrInvalidArgument)
	}
	copier(dst, 0, src, 0)
	return nil
}
