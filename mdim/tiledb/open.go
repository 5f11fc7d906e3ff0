package tiledb

import (
	"gonum.org/v1/gonum/floats"

	"github.com/batchatco/go-native-mdim/internal/engine"
	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/mem"
)

// schemaDataType recovers the array type from its value attribute.
func schemaDataType(s *engine.Schema) (api.ExtendedDataType, error) {
	for _, as := range s.Attributes {
		if as.Name != valuesAttr {
			continue
		}
		t, err := api.ParseNumericType(as.Type)
		if err != nil {
			return api.ExtendedDataType{}, fail(err)
		}
		switch as.CellValNum {
		case 1:
			return api.NewNumeric(t), nil
		case 2:
			if ct, ok := api.ComplexOf(t); ok {
				return api.NewNumeric(ct), nil
			}
		}
		return api.ExtendedDataType{}, failf(api.ErrNotSupported, "%d %v values per cell",
			as.CellValNum, t)
	}
	return api.ExtendedDataType{}, failf(api.ErrNotSupported, "no value attribute")
}

func (g *Group) arrayNames() []string {
	names := []string{}
	for _, m := range g.members() {
		if m.Kind == engine.KindArray {
			names = append(names, m.Name)
		}
	}
	return names
}

// getArray returns the array called name, opening it if needed. guard
// holds the arrays being opened further up the call chain.
func (g *Group) getArray(name string, guard map[string]bool) (*MDArray, error) {
	if v, ok := g.arrays.Get(name); ok {
		m := v.(*MDArray)
		if !m.closed {
			return m, nil
		}
		g.arrays.Delete(name)
	}
	mb, has := g.member(name)
	if !has || mb.Kind != engine.KindArray {
		return nil, failf(api.ErrNotFound, "array %q", name)
	}
	return g.openArray(name, mb.Path, guard)
}

// openArray opens a stored array and rebuilds what the schema does not
// hold: attributes, spatial reference and indexing variables.
func (g *Group) openArray(name, rel string, guard map[string]bool) (*MDArray, error) {
	p := engine.Join(g.path, rel)
	ea, err := engine.OpenArray(g.res.ctx, p, engine.ModeRead, g.res.timestamp)
	if err != nil {
		return nil, fail(err)
	}
	s := ea.Schema()
	for _, ds := range s.Dimensions {
		if ds.Type != engine.DimensionUInt64 {
			ea.Close()
			return nil, failf(api.ErrNotSupported, "array %q: dimension %q of type %s",
				name, ds.Name, ds.Type)
		}
	}
	dt, err := schemaDataType(s)
	if err != nil {
		ea.Close()
		return nil, err
	}
	meta, err := ea.Metadata()
	if err != nil {
		ea.Close()
		return nil, fail(err)
	}
	dims := make([]api.Dimension, len(s.Dimensions))
	for i, ds := range s.Dimensions {
		dims[i] = g.dimensionFor(ds.Name, ds.Size())
	}

	m := newArray(g, name, rel, dims, dt, s, stateFinalized)
	m.ea = ea
	for _, as := range s.Attributes {
		if as.Name == valuesAttr && as.Fill != nil {
			m.nodata = append([]byte(nil), as.Fill...)
		}
	}
	loadAttributes(m.attrs, meta)
	m.unit, _ = metadataString(meta, KeyUnit)
	m.scale, m.hasScale = metadataFloat64(meta, KeyScale)
	m.offset, m.hasOffset = metadataFloat64(meta, KeyOffset)
	g.arrays.Add(name, m)

	guard[name] = true
	defer delete(guard, name)
	m.discoverSpatialRef(meta)
	m.discoverIndexing(guard)
	// labels may have restored the dimension types
	if m.srs != nil {
		m.srs.DataAxisToSRSAxis = axisMapping(m.dims)
	}
	return m, nil
}

// discoverSpatialRef takes the spatial reference from the legacy blob,
// then the CRS key, then a grid mapping sibling.
func (m *MDArray) discoverSpatialRef(meta []engine.Metadata) {
	def := ""
	if blob, ok := metadataString(meta, KeyLegacyRaster); ok {
		lr, err := decodeLegacy(blob)
		if err != nil {
			logger.Warn("ignoring legacy raster blob of ", m.FullName(), ": ", err)
		} else {
			def = lr.SRS
			if gt, ok := lr.transform(); ok {
				m.geoTransform = gt[:]
			}
		}
	}
	if def == "" {
		def, _ = metadataString(meta, KeyCRS)
	}
	if def == "" {
		def = m.gridMappingSRS()
	}
	if def != "" {
		m.srs = &api.SpatialRef{Definition: def}
	}
}

// gridMappingSRS follows the grid_mapping attribute to a sibling or,
// without one, looks for a sibling tagged with grid_mapping_name. The
// definition is that sibling's crs_wkt or spatial_ref attribute.
func (m *MDArray) gridMappingSRS() string {
	var candidates []string
	tagged := false
	if a := m.attrs.Lookup(AttrGridMapping); a != nil {
		if s, err := a.ReadAsString(); err == nil && s != "" {
			candidates = []string{s}
		}
	}
	if candidates == nil {
		candidates = m.group.arrayNames()
		tagged = true
	}
	for _, c := range candidates {
		if c == m.name {
			continue
		}
		meta := m.group.siblingMetadata(c)
		if _, ok := metadataString(meta, AttrGridMappingName); tagged && !ok {
			continue
		}
		for _, key := range []string{AttrCRSWKT, AttrSpatialRef} {
			if s, ok := metadataString(meta, key); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// siblingMetadata reads the metadata of the stored array called name
// without opening it as an MDArray.
func (g *Group) siblingMetadata(name string) []engine.Metadata {
	mb, has := g.member(name)
	if !has || mb.Kind != engine.KindArray {
		return nil
	}
	ea, err := engine.OpenArray(g.res.ctx, engine.Join(g.path, mb.Path), engine.ModeRead, g.res.timestamp)
	if err != nil {
		logger.Warn("reading metadata of ", name, ": ", err)
		return nil
	}
	defer ea.Close()
	meta, err := ea.Metadata()
	if err != nil {
		logger.Warn("reading metadata of ", name, ": ", err)
		return nil
	}
	return meta
}

// discoverIndexing gives every dimension that has none an indexing
// variable: its label, else coordinates from the affine transform, else a
// sibling coordinate array.
func (m *MDArray) discoverIndexing(guard map[string]bool) {
	for i, d := range m.dims {
		td, ok := d.(*Dimension)
		if !ok || td.indexing != nil {
			continue
		}
		v := m.labelIndexing(td)
		if v == nil {
			v = m.transformIndexing(i, td)
		}
		if v == nil {
			v = m.coordinateIndexing(td, guard)
		}
		if v == nil {
			continue
		}
		if err := td.SetIndexingVariable(v); err != nil {
			logger.Warn(err)
		}
	}
}

// transformIndexing derives cell-centre coordinates along one of the two
// trailing axes from a north-up affine transform.
func (m *MDArray) transformIndexing(i int, d *Dimension) api.MDArray {
	rank := len(m.dims)
	gt := m.geoTransform
	if rank < 2 || gt == nil || gt[2] != 0 || gt[4] != 0 {
		return nil
	}
	var origin, res float64
	switch i {
	case rank - 1:
		origin, res = gt[0], gt[1]
	case rank - 2:
		origin, res = gt[3], gt[5]
	default:
		return nil
	}
	vals := make([]float64, d.size)
	if len(vals) == 1 {
		vals[0] = origin + 0.5*res
	} else {
		floats.Span(vals, origin+0.5*res, origin+(float64(d.size)-0.5)*res)
	}
	v, err := mem.NewMDArray(m.group.FullName(), d.name, []api.Dimension{d}, api.NewNumeric(api.Float64))
	if err != nil {
		logger.Warn(err)
		return nil
	}
	if err := api.WriteAll(v, api.BufferOf(vals)); err != nil {
		logger.Warn(err)
		return nil
	}
	return v
}

// coordinateIndexing looks for a sibling 1-D array over a dimension of the
// same name that is marked as a coordinate. A sibling named like the
// dimension is tried first.
func (m *MDArray) coordinateIndexing(d *Dimension, guard map[string]bool) api.MDArray {
	names := []string{}
	for _, n := range m.group.arrayNames() {
		if n == d.name {
			names = append([]string{n}, names...)
		} else {
			names = append(names, n)
		}
	}
	for _, n := range names {
		if n == m.name || guard[n] || !hasMetadata(m.group.siblingMetadata(n), AttrCoordinate) {
			continue
		}
		sib, err := m.group.getArray(n, guard)
		if err != nil {
			continue
		}
		if len(sib.dims) == 1 && sib.dims[0].Name() == d.name && sib.dims[0].Size() == d.size {
			return sib
		}
	}
	return nil
}
