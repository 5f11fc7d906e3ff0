package mem

import (
	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/strided"
)

// MDArray is a handle on an array of an in-memory tree.
type MDArray struct {
	a *arena
	h handle
}

var _ api.MDArray = (*MDArray)(nil)

// NewMDArray creates a zero-filled array that belongs to no group. context
// is the full name of the group it should appear to belong to. The
// dimensions are copied.
func NewMDArray(context, name string, dims []api.Dimension, dt api.ExtendedDataType) (*MDArray, error) {
	if err := checkName("array", name); err != nil {
		return nil, err
	}
	if err := checkDataType(dt); err != nil {
		return nil, err
	}
	a := &arena{}
	handles := make([]handle, len(dims))
	shape := make([]uint64, len(dims))
	for i, d := range dims {
		h, err := a.importDim(d)
		if err != nil {
			return nil, err
		}
		handles[i] = h
		shape[i] = a.dims[h].size
	}
	st, err := newStorage(dt, shape)
	if err != nil {
		return nil, err
	}
	return a.newArray(name, noHandle, context, handles, st).pub, nil
}

func (m *MDArray) entry() *arrayEntry {
	return m.a.arrays[m.h]
}

func (m *MDArray) Name() string {
	return m.entry().name
}

func (m *MDArray) FullName() string {
	return m.a.arrayFullName(m.h)
}

func (m *MDArray) Rename(newName string) error {
	e, err := m.a.array(m.h)
	if err != nil {
		return err
	}
	if err := checkName("array", newName); err != nil {
		return err
	}
	if m.a.live(e.group) {
		if err := renameChild(m.a.groups[e.group].arrays, "array", e.name, newName); err != nil {
			return err
		}
	}
	e.name = newName
	return nil
}

func (m *MDArray) GetAttribute(name string) (api.Attribute, error) {
	e, err := m.a.array(m.h)
	if err != nil {
		return nil, err
	}
	return e.attrs.Get(name)
}

func (m *MDArray) ListAttributes(opts api.Options) []api.Attribute {
	e, err := m.a.array(m.h)
	if err != nil {
		return nil
	}
	return e.attrs.List(showAll(opts))
}

func (m *MDArray) CreateAttribute(name string, dims []uint64, dt api.ExtendedDataType, opts api.Options) (api.Attribute, error) {
	e, err := m.a.array(m.h)
	if err != nil {
		return nil, err
	}
	return e.attrs.Create(name, dims, dt)
}

func (m *MDArray) DeleteAttribute(name string, opts api.Options) error {
	e, err := m.a.array(m.h)
	if err != nil {
		return err
	}
	return e.attrs.Delete(name)
}

func (m *MDArray) Dimensions() []api.Dimension {
	e := m.entry()
	ret := make([]api.Dimension, len(e.dims))
	for i, h := range e.dims {
		ret[i] = m.a.dims[h].pub
	}
	return ret
}

func (m *MDArray) Shape() []uint64 {
	return append([]uint64(nil), m.entry().st.shape...)
}

func (m *MDArray) DataType() api.ExtendedDataType {
	return m.entry().st.buf.Type
}

// BlockSize is all zeros: memory has no preferred granularity.
func (m *MDArray) BlockSize() []uint64 {
	return make([]uint64, len(m.entry().dims))
}

func (m *MDArray) IsWritable() bool {
	return true
}

func (m *MDArray) Read(start, count []uint64, step, stride []int64, dst api.Buffer) error {
	e, err := m.a.array(m.h)
	if err != nil {
		return err
	}
	return e.st.read(start, count, step, stride, dst)
}

func (m *MDArray) Write(start, count []uint64, step, stride []int64, src api.Buffer) error {
	e, err := m.a.array(m.h)
	if err != nil {
		return err
	}
	return e.st.write(start, count, step, stride, src)
}

// Resize resizes the dimensions of the array, and thereby every other
// array sharing them.
func (m *MDArray) Resize(newSizes []uint64, opts api.Options) error {
	e, err := m.a.array(m.h)
	if err != nil {
		return err
	}
	if len(newSizes) != len(e.dims) {
		return failf(api.ErrInvalidArgument, "expected %d sizes, got %d", len(e.dims), len(newSizes))
	}
	wanted := map[handle]uint64{}
	for i, h := range e.dims {
		if prev, has := wanted[h]; has && prev != newSizes[i] {
			return failf(api.ErrInvalidArgument,
				"dimension %q is repeated with different sizes", m.a.dims[h].name)
		}
		wanted[h] = newSizes[i]
	}
	for _, h := range e.dims {
		if err := m.a.dims[h].pub.Resize(wanted[h]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MDArray) RawNoDataValue() []byte {
	e := m.entry()
	if e.nodata == nil {
		return nil
	}
	return append([]byte(nil), e.nodata...)
}

func (m *MDArray) SetRawNoDataValue(raw []byte) error {
	e, err := m.a.array(m.h)
	if err != nil {
		return err
	}
	if raw == nil {
		e.nodata = nil
		return nil
	}
	dt := e.st.buf.Type
	if dt.Class() != api.ClassNumeric {
		return failf(api.ErrNotSupported, "no-data value on %v array", dt)
	}
	if len(raw) != dt.Size() {
		return failf(api.ErrInvalidArgument, "no-data value of %d bytes for %v", len(raw), dt)
	}
	e.nodata = append([]byte(nil), raw...)
	return nil
}

func (m *MDArray) NoDataValue() (float64, bool) {
	return NoDataAsFloat64(m.DataType(), m.RawNoDataValue())
}

func (m *MDArray) SetNoDataValue(v float64) error {
	raw, err := NoDataFromFloat64(m.DataType(), v)
	if err != nil {
		return err
	}
	return m.SetRawNoDataValue(raw)
}

// NoDataAsFloat64 converts a raw no-data cell of type dt.
func NoDataAsFloat64(dt api.ExtendedDataType, raw []byte) (float64, bool) {
	if raw == nil {
		return 0, false
	}
	dst := api.NewBuffer(api.NewNumeric(api.Float64), 1)
	if err := strided.ConvertCell(api.Buffer{Type: dt, Raw: raw}, dst); err != nil {
		logger.Warn(err)
		return 0, false
	}
	vals, _ := api.Values[float64](dst)
	return vals[0], true
}

// NoDataFromFloat64 encodes v as one cell of type dt.
func NoDataFromFloat64(dt api.ExtendedDataType, v float64) ([]byte, error) {
	if dt.Class() != api.ClassNumeric {
		return nil, failf(api.ErrNotSupported, "no-data value on %v array", dt)
	}
	dst := api.NewBuffer(dt, 1)
	if err := strided.ConvertCell(api.BufferOf([]float64{v}), dst); err != nil {
		return nil, fail(err)
	}
	return dst.Raw, nil
}

func (m *MDArray) Unit() string {
	return m.entry().unit
}

func (m *MDArray) SetUnit(unit string) error {
	e, err := m.a.array(m.h)
	if err != nil {
		return err
	}
	e.unit = unit
	return nil
}

func (m *MDArray) Scale() (float64, bool) {
	e := m.entry()
	return e.scale, e.hasScale
}

func (m *MDArray) SetScale(v float64) error {
	e, err := m.a.array(m.h)
	if err != nil {
		return err
	}
	e.scale, e.hasScale = v, true
	return nil
}

func (m *MDArray) Offset() (float64, bool) {
	e := m.entry()
	return e.offset, e.hasOff
}

func (m *MDArray) SetOffset(v float64) error {
	e, err := m.a.array(m.h)
	if err != nil {
		return err
	}
	e.offset, e.hasOff = v, true
	return nil
}

func (m *MDArray) SpatialRef() *api.SpatialRef {
	return m.entry().srs.Clone()
}

func (m *MDArray) SetSpatialRef(srs *api.SpatialRef) error {
	e, err := m.a.array(m.h)
	if err != nil {
		return err
	}
	e.srs = srs.Clone()
	return nil
}
