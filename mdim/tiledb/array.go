package tiledb

import (
	"math"

	"github.com/batchatco/go-native-mdim/internal"
	"github.com/batchatco/go-native-mdim/internal/engine"
	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/mem"
	"github.com/batchatco/go-native-mdim/mdim/strided"
)

type arrayState int

const (
	// stateCreated arrays only exist as a schema.
	stateCreated arrayState = iota
	stateFinalized
	// stateFailed arrays could not be committed and are unusable.
	stateFailed
)

func (s arrayState) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateFinalized:
		return "finalized"
	}
	return "failed"
}

// MDArray is an array of a store. Arrays made by CreateMDArray are
// committed by Finalize, which also happens on the first value I/O, when
// a no-data value is set and on Close.
type MDArray struct {
	group *Group
	name  string
	rel   string
	path  string
	dims  []api.Dimension
	dt    api.ExtendedDataType

	schema *engine.Schema
	ea     *engine.Array
	attrs  *mem.AttributeStore

	state      arrayState
	finalErr   error
	committing bool
	deleted    bool
	closed     bool

	nodata       []byte
	unit         string
	scale        float64
	offset       float64
	hasScale     bool
	hasOffset    bool
	srs          *api.SpatialRef
	geoTransform []float64
}

var _ api.MDArray = (*MDArray)(nil)

func newArray(g *Group, name, rel string, dims []api.Dimension, dt api.ExtendedDataType,
	schema *engine.Schema, state arrayState) *MDArray {
	m := &MDArray{
		group:  g,
		name:   name,
		rel:    rel,
		path:   engine.Join(g.path, rel),
		dims:   dims,
		dt:     dt,
		schema: schema,
		state:  state,
	}
	m.attrs = mem.NewAttributeStore(m.FullName, mem.AttributeHooks{
		Written: func(a *mem.Attribute) error {
			return m.persist(func(ea *engine.Array) error { return ea.PutMetadata(toMetadata(a)) })
		},
		Deleted: func(name string) error {
			return m.persist(func(ea *engine.Array) error { return ea.DeleteMetadata(name) })
		},
		Renamed: func(oldName, newName string) error {
			return m.persist(func(ea *engine.Array) error { return renameMetadata(ea, oldName, newName) })
		},
	})
	for _, d := range dims {
		if td, ok := d.(*Dimension); ok {
			td.users = append(td.users, m)
		}
	}
	g.res.ctx.Retain()
	return m
}

// CreateMDArray defines an array. Nothing is stored until the array is
// finalized. IN_MEMORY returns a transient in-memory array instead, which
// the group does not list.
func (g *Group) CreateMDArray(name string, dims []api.Dimension, dt api.ExtendedDataType, opts api.Options) (api.MDArray, error) {
	if err := g.live(); err != nil {
		return nil, err
	}
	if err := checkName("array", name); err != nil {
		return nil, err
	}
	o, err := decodeOptions(opts)
	if err != nil {
		return nil, err
	}
	if o.InMemory {
		a, err := mem.NewMDArray(g.FullName(), name, dims, dt)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	if err := g.checkFree(name); err != nil {
		return nil, err
	}
	if dt.Class() != api.ClassNumeric || !dt.IsValid() {
		return nil, failf(api.ErrNotSupported, "array %q of type %v", name, dt)
	}
	if len(dims) == 0 {
		return nil, failf(api.ErrNotSupported, "array %q: scalar arrays cannot be stored", name)
	}
	shape := make([]uint64, len(dims))
	seen := map[string]bool{}
	for i, d := range dims {
		if d == nil || d.Size() == 0 {
			return nil, failf(api.ErrInvalidArgument, "array %q: dimension %d is empty", name, i)
		}
		if seen[d.Name()] {
			return nil, failf(api.ErrNotSupported, "array %q uses dimension %q twice", name, d.Name())
		}
		seen[d.Name()] = true
		shape[i] = d.Size()
	}
	block, err := o.blockSize(shape)
	if err != nil {
		return nil, err
	}
	comp, err := o.compression()
	if err != nil {
		return nil, err
	}
	level, err := o.compressionLevel(comp)
	if err != nil {
		return nil, err
	}
	rel, err := g.placement(name, o)
	if err != nil {
		return nil, err
	}

	schema := &engine.Schema{Compression: comp, CompressionLevel: level}
	for i, d := range dims {
		schema.Dimensions = append(schema.Dimensions, engine.DimensionSchema{
			Name:   d.Name(),
			Type:   engine.DimensionUInt64,
			Hi:     d.Size() - 1,
			Extent: block[i],
		})
	}
	t, cells := dt.Numeric(), 1
	if t.IsComplex() {
		t, cells = t.Base(), 2
	}
	schema.Attributes = []engine.AttributeSchema{{Name: valuesAttr, Type: t.String(), CellValNum: cells}}

	m := newArray(g, name, rel, append([]api.Dimension(nil), dims...), dt, schema, stateCreated)
	g.arrays.Add(name, m)
	return m, nil
}

func (m *MDArray) live() error {
	switch {
	case m.deleted:
		return failf(api.ErrNotFound, "array %q was deleted", m.name)
	case m.closed:
		return failf(api.ErrIOFailure, "array %q is closed", m.name)
	}
	return nil
}

// Finalize commits a pending array: the engine array is created with its
// metadata and dimension labels, then registered in the group. Only the
// first call does work; later ones return its outcome.
func (m *MDArray) Finalize() error {
	if m.deleted {
		return failf(api.ErrNotFound, "array %q was deleted", m.name)
	}
	if m.committing {
		return failf(api.ErrNotSupported, "array %q is being committed", m.name)
	}
	if m.state != stateCreated {
		return m.finalErr
	}
	m.committing = true
	err := m.commit()
	m.committing = false
	if err != nil {
		m.state, m.finalErr = stateFailed, err
		return err
	}
	m.state = stateFinalized
	return nil
}

// IsFinalized reports whether the array is stored.
func (m *MDArray) IsFinalized() bool {
	return m.state == stateFinalized
}

func (m *MDArray) commit() error {
	if err := m.group.live(); err != nil {
		return err
	}
	ctx := m.group.res.ctx
	s := *m.schema
	s.Dimensions = append([]engine.DimensionSchema(nil), m.schema.Dimensions...)
	for i, d := range m.dims {
		// dimensions may have been renamed since
		s.Dimensions[i].Name = d.Name()
	}
	s.Attributes = append([]engine.AttributeSchema(nil), m.schema.Attributes...)
	s.Attributes[0].Fill = m.nodata
	if err := engine.CreateArray(ctx, m.path, &s); err != nil {
		return fail(err)
	}
	abort := func(err error) error {
		if m.ea != nil {
			m.ea.Close()
			m.ea = nil
		}
		m.group.remove(m.path)
		return fail(err)
	}
	ea, err := engine.OpenArray(ctx, m.path, engine.ModeWrite, m.group.res.timestamp)
	if err != nil {
		return abort(err)
	}
	m.ea = ea
	for _, name := range m.attrs.Names() {
		if err := ea.PutMetadata(toMetadata(m.attrs.Lookup(name))); err != nil {
			return abort(err)
		}
	}
	if err := m.writeLabels(); err != nil {
		return abort(err)
	}
	if err := ea.Reopen(engine.ModeRead); err != nil {
		return abort(err)
	}
	err = m.group.update(func(eg *engine.Group) error { return eg.AddMember(m.name, m.rel) })
	if err != nil {
		return abort(err)
	}
	m.schema = ea.Schema()
	logger.Info("created array ", m.FullName())
	return nil
}

// persist runs fn on a stored array opened for writing. Changes to a
// pending array are written when it is committed.
func (m *MDArray) persist(fn func(ea *engine.Array) error) error {
	if err := m.live(); err != nil {
		return err
	}
	switch m.state {
	case stateCreated:
		return nil
	case stateFailed:
		return m.finalErr
	}
	if err := m.mode(engine.ModeWrite); err != nil {
		return err
	}
	err := fn(m.ea)
	if rerr := m.mode(engine.ModeRead); err == nil {
		err = rerr
	}
	if err != nil {
		return fail(err)
	}
	return nil
}

func (m *MDArray) mode(mode engine.Mode) error {
	if m.ea.IsOpen() && m.ea.Mode() == mode {
		return nil
	}
	if err := m.ea.Reopen(mode); err != nil {
		return fail(err)
	}
	return nil
}

// ready commits a pending array and checks it can do value I/O.
func (m *MDArray) ready() error {
	if err := m.live(); err != nil {
		return err
	}
	if m.state == stateCreated {
		if err := m.Finalize(); err != nil {
			return err
		}
	}
	if m.state == stateFailed {
		return m.finalErr
	}
	return nil
}

// Close commits a pending array and releases the array. Failures are
// logged.
func (m *MDArray) Close() {
	if m.closed || m.deleted {
		return
	}
	if m.state == stateCreated {
		if err := m.Finalize(); err != nil {
			logger.Error("array ", m.FullName(), " dropped on close: ", err)
		}
	}
	m.release()
}

func (m *MDArray) release() {
	if m.closed {
		return
	}
	m.closed = true
	if m.ea != nil {
		m.ea.Close()
	}
	m.group.res.ctx.Release()
}

func (m *MDArray) markDeleted() {
	m.release()
	m.deleted = true
}

func (m *MDArray) Name() string {
	return m.name
}

func (m *MDArray) FullName() string {
	return internal.JoinFullName(m.group.FullName(), m.name)
}

// Rename renames the array in its group. The stored object stays where
// it is.
func (m *MDArray) Rename(newName string) error {
	if err := m.live(); err != nil {
		return err
	}
	if err := checkName("array", newName); err != nil {
		return err
	}
	g := m.group
	if err := g.checkFree(newName); err != nil {
		return err
	}
	if m.state == stateFinalized {
		err := g.update(func(eg *engine.Group) error {
			if err := eg.RemoveMember(m.name); err != nil {
				return err
			}
			return eg.AddMember(newName, m.rel)
		})
		if err != nil {
			return err
		}
	}
	if err := g.arrays.Rename(m.name, newName); err != nil {
		return failf(api.ErrAlreadyExists, "array %q", newName)
	}
	m.name = newName
	return nil
}

func (m *MDArray) GetAttribute(name string) (api.Attribute, error) {
	if err := m.live(); err != nil {
		return nil, err
	}
	return m.attrs.Get(name)
}

func (m *MDArray) ListAttributes(opts api.Options) []api.Attribute {
	if m.live() != nil {
		return nil
	}
	return m.attrs.List(showAll(opts))
}

func (m *MDArray) CreateAttribute(name string, dims []uint64, dt api.ExtendedDataType, opts api.Options) (api.Attribute, error) {
	if err := m.live(); err != nil {
		return nil, err
	}
	if IsReservedKey(name) {
		return nil, failf(api.ErrInvalidArgument, "attribute name %q is reserved", name)
	}
	if m.state == stateFailed {
		return nil, m.finalErr
	}
	a, err := m.attrs.Create(name, dims, dt)
	if err != nil {
		return nil, err
	}
	if err := m.persist(func(ea *engine.Array) error { return ea.PutMetadata(toMetadata(a)) }); err != nil {
		return nil, err
	}
	return a, nil
}

func (m *MDArray) DeleteAttribute(name string, opts api.Options) error {
	if err := m.live(); err != nil {
		return err
	}
	if IsReservedKey(name) {
		return failf(api.ErrInvalidArgument, "attribute %q is reserved", name)
	}
	return m.attrs.Delete(name)
}

// setReserved stores a hidden reserved key, or removes it when buf is nil.
func (m *MDArray) setReserved(key string, buf *api.Buffer) error {
	if buf == nil {
		if m.attrs.Lookup(key) == nil {
			return nil
		}
		return m.attrs.Delete(key)
	}
	a, err := m.attrs.Load(key, nil, *buf, true)
	if err != nil {
		return err
	}
	return m.persist(func(ea *engine.Array) error { return ea.PutMetadata(toMetadata(a)) })
}

func (m *MDArray) Dimensions() []api.Dimension {
	return append([]api.Dimension(nil), m.dims...)
}

func (m *MDArray) Shape() []uint64 {
	return m.schema.Shape()
}

func (m *MDArray) DataType() api.ExtendedDataType {
	return m.dt
}

// BlockSize is the tile extent.
func (m *MDArray) BlockSize() []uint64 {
	return m.schema.TileShape()
}

func (m *MDArray) IsWritable() bool {
	return !m.deleted && !m.closed && m.state != stateFailed
}

// selectionBox returns the smallest region holding a selection, the start
// of the selection inside it, and whether the selection covers it all.
func selectionBox(shape, start, count []uint64, step []int64) (lo, n, rel []uint64, dense bool, err error) {
	rank := len(shape)
	if len(start) != rank || len(count) != rank || (step != nil && len(step) != rank) {
		return nil, nil, nil, false, failf(api.ErrInvalidArgument,
			"selection of rank %d on an array of rank %d", len(start), rank)
	}
	lo = make([]uint64, rank)
	n = make([]uint64, rank)
	rel = make([]uint64, rank)
	dense = true
	for i := range shape {
		st := int64(1)
		if step != nil {
			st = step[i]
		}
		if count[i] == 0 || st == 0 || start[i] >= shape[i] || count[i] > shape[i] {
			return nil, nil, nil, false, failf(api.ErrInvalidArgument,
				"selection on dimension %d: start %d, count %d, step %d, size %d",
				i, start[i], count[i], st, shape[i])
		}
		first := int64(start[i])
		last := first
		if count[i] > 1 {
			if st > int64(shape[i]) || st < -int64(shape[i]) {
				return nil, nil, nil, false, failf(api.ErrInvalidArgument,
					"step %d on dimension %d of size %d", st, i, shape[i])
			}
			last = first + int64(count[i]-1)*st
			if st != 1 && st != -1 {
				dense = false
			}
		}
		if last < 0 || last >= int64(shape[i]) {
			return nil, nil, nil, false, failf(api.ErrInvalidArgument,
				"selection on dimension %d runs outside [0, %d)", i, shape[i])
		}
		lo[i] = uint64(min(first, last))
		n[i] = uint64(max(first, last)-min(first, last)) + 1
		rel[i] = start[i] - lo[i]
	}
	return lo, n, rel, dense, nil
}

func (m *MDArray) boxBuffer(n []uint64) (api.Buffer, error) {
	cells := api.ElementCount(n)
	if cells > uint64(math.MaxInt/m.dt.Size()) {
		return api.Buffer{}, failf(api.ErrInvalidArgument, "selection of %d cells is too large", cells)
	}
	return api.NewBuffer(m.dt, int(cells)), nil
}

// Read reads the region around the selection and extracts the selection
// from it.
func (m *MDArray) Read(start, count []uint64, step, stride []int64, dst api.Buffer) error {
	if err := m.ready(); err != nil {
		return err
	}
	lo, n, rel, _, err := selectionBox(m.Shape(), start, count, step)
	if err != nil {
		return err
	}
	box, err := m.boxBuffer(n)
	if err != nil {
		return err
	}
	if err := m.mode(engine.ModeRead); err != nil {
		return err
	}
	defer m.group.res.dumpStats("read", m.FullName())
	if err := m.ea.ReadRegion(valuesAttr, lo, n, box.Raw); err != nil {
		return fail(err)
	}
	if err := strided.Read(box, strided.Layout{Shape: n}, rel, count, step, stride, dst); err != nil {
		return fail(err)
	}
	return nil
}

// Write writes the region around the selection. Unless the selection
// covers the region, its current cells are read first.
func (m *MDArray) Write(start, count []uint64, step, stride []int64, src api.Buffer) error {
	if err := m.ready(); err != nil {
		return err
	}
	lo, n, rel, dense, err := selectionBox(m.Shape(), start, count, step)
	if err != nil {
		return err
	}
	box, err := m.boxBuffer(n)
	if err != nil {
		return err
	}
	defer m.group.res.dumpStats("write", m.FullName())
	if !dense {
		if err := m.mode(engine.ModeRead); err != nil {
			return err
		}
		if err := m.ea.ReadRegion(valuesAttr, lo, n, box.Raw); err != nil {
			return fail(err)
		}
	}
	if err := strided.Write(box, strided.Layout{Shape: n}, rel, count, step, stride, src); err != nil {
		return fail(err)
	}
	if err := m.mode(engine.ModeWrite); err != nil {
		return err
	}
	err = m.ea.WriteRegion(valuesAttr, lo, n, box.Raw)
	if rerr := m.mode(engine.ModeRead); err == nil {
		err = rerr
	}
	if err != nil {
		return fail(err)
	}
	return nil
}

func (m *MDArray) Resize(newSizes []uint64, opts api.Options) error {
	return failf(api.ErrNotSupported, "array %q: stored arrays cannot be resized", m.name)
}

func (m *MDArray) RawNoDataValue() []byte {
	if m.nodata == nil {
		return nil
	}
	return append([]byte(nil), m.nodata...)
}

// SetRawNoDataValue sets the fill value of the array. A pending array is
// committed by it; a stored one has its fill value replaced.
func (m *MDArray) SetRawNoDataValue(raw []byte) error {
	if err := m.live(); err != nil {
		return err
	}
	if raw != nil && len(raw) != m.dt.Size() {
		return failf(api.ErrInvalidArgument, "no-data value of %d bytes for %v", len(raw), m.dt)
	}
	switch m.state {
	case stateFailed:
		return m.finalErr
	case stateCreated:
		m.nodata = append([]byte(nil), raw...)
		return m.Finalize()
	}
	if err := engine.EvolveFill(m.group.res.ctx, m.path, valuesAttr, raw); err != nil {
		return fail(err)
	}
	m.nodata = append([]byte(nil), raw...)
	if err := m.ea.Reopen(m.ea.Mode()); err != nil {
		return fail(err)
	}
	return nil
}

func (m *MDArray) NoDataValue() (float64, bool) {
	return mem.NoDataAsFloat64(m.dt, m.nodata)
}

func (m *MDArray) SetNoDataValue(v float64) error {
	raw, err := mem.NoDataFromFloat64(m.dt, v)
	if err != nil {
		return err
	}
	return m.SetRawNoDataValue(raw)
}

func (m *MDArray) Unit() string {
	return m.unit
}

func (m *MDArray) SetUnit(unit string) error {
	if err := m.live(); err != nil {
		return err
	}
	m.unit = unit
	if unit == "" {
		return m.setReserved(KeyUnit, nil)
	}
	buf := api.StringBuffer([]string{unit})
	return m.setReserved(KeyUnit, &buf)
}

func (m *MDArray) Scale() (float64, bool) {
	return m.scale, m.hasScale
}

func (m *MDArray) SetScale(v float64) error {
	if err := m.live(); err != nil {
		return err
	}
	m.scale, m.hasScale = v, true
	buf := api.BufferOf([]float64{v})
	return m.setReserved(KeyScale, &buf)
}

func (m *MDArray) Offset() (float64, bool) {
	return m.offset, m.hasOffset
}

func (m *MDArray) SetOffset(v float64) error {
	if err := m.live(); err != nil {
		return err
	}
	m.offset, m.hasOffset = v, true
	buf := api.BufferOf([]float64{v})
	return m.setReserved(KeyOffset, &buf)
}

func (m *MDArray) SpatialRef() *api.SpatialRef {
	return m.srs.Clone()
}

// SetSpatialRef stores the definition under the CRS key and in the legacy
// raster blob. A missing axis mapping is inferred from the dimensions.
func (m *MDArray) SetSpatialRef(srs *api.SpatialRef) error {
	if err := m.live(); err != nil {
		return err
	}
	m.srs = srs.Clone()
	if m.srs != nil && len(m.srs.DataAxisToSRSAxis) == 0 {
		m.srs.DataAxisToSRSAxis = axisMapping(m.dims)
	}
	var err error
	if m.srs == nil {
		err = m.setReserved(KeyCRS, nil)
	} else {
		buf := api.StringBuffer([]string{m.srs.Definition})
		err = m.setReserved(KeyCRS, &buf)
	}
	if err != nil {
		return err
	}
	return m.refreshLegacy()
}

// GeoTransform returns the affine transform of the two horizontal axes,
// if there is one.
func (m *MDArray) GeoTransform() ([6]float64, bool) {
	var gt [6]float64
	if m.geoTransform == nil {
		return gt, false
	}
	copy(gt[:], m.geoTransform)
	return gt, true
}

// SetGeoTransform records the affine transform in the legacy raster blob.
func (m *MDArray) SetGeoTransform(gt [6]float64) error {
	if err := m.live(); err != nil {
		return err
	}
	m.geoTransform = append([]float64(nil), gt[:]...)
	return m.refreshLegacy()
}

// axisMapping returns the 1-based dimensions of the x and y axes: the
// ones tagged horizontal, else the last two.
func axisMapping(dims []api.Dimension) []int {
	x, y := -1, -1
	for i, d := range dims {
		switch d.Type() {
		case api.DimTypeHorizontalX:
			x = i
		case api.DimTypeHorizontalY:
			y = i
		}
	}
	if x < 0 || y < 0 {
		if len(dims) < 2 {
			return nil
		}
		x, y = len(dims)-1, len(dims)-2
	}
	return []int{x + 1, y + 1}
}
