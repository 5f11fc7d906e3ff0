package tiledb

import (
	"github.com/batchatco/go-native-mdim/internal/engine"
	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/mem"
)

func labelPath(arrayPath, dim string) string {
	return engine.Join(arrayPath, labelsDir, dim)
}

// labelOrder tells whether vals strictly increase or decrease. It is
// empty for anything else.
func labelOrder(vals []float64) string {
	inc, dec := true, true
	for i := 1; i < len(vals); i++ {
		if !(vals[i] > vals[i-1]) {
			inc = false
		}
		if !(vals[i] < vals[i-1]) {
			dec = false
		}
	}
	switch {
	case inc:
		return LabelIncreasing
	case dec:
		return LabelDecreasing
	}
	return ""
}

// writeLabels stores, below the array, the indexing variable of every
// dimension whose coordinates are strictly monotonic.
func (m *MDArray) writeLabels() error {
	for _, d := range m.dims {
		v := d.IndexingVariable()
		if v == nil {
			continue
		}
		if tv, ok := v.(*MDArray); ok && tv.committing {
			logger.Infof("indexing variable %q of dimension %q has no values yet, no label written",
				v.FullName(), d.Name())
			continue
		}
		dt := v.DataType()
		if dt.Class() != api.ClassNumeric || dt.Numeric().IsComplex() {
			logger.Warnf("indexing variable %q of dimension %q is %v, no label written",
				v.FullName(), d.Name(), dt)
			continue
		}
		coords, err := api.ReadAll(v, api.NewNumeric(api.Float64))
		if err != nil {
			return err
		}
		vals, err := api.Values[float64](coords)
		if err != nil {
			return err
		}
		order := labelOrder(vals)
		if order == "" {
			logger.Warnf("indexing variable %q of dimension %q is not strictly monotonic, no label written",
				v.FullName(), d.Name())
			continue
		}
		raw, err := api.ReadAll(v, dt)
		if err != nil {
			return err
		}
		if err := m.writeLabel(d, v.Name(), order, raw); err != nil {
			return err
		}
	}
	return nil
}

func (m *MDArray) writeLabel(d api.Dimension, varName, order string, raw api.Buffer) error {
	ctx := m.group.res.ctx
	p := labelPath(m.path, d.Name())
	schema := &engine.Schema{
		Dimensions: []engine.DimensionSchema{{
			Name:   d.Name(),
			Type:   engine.DimensionUInt64,
			Hi:     d.Size() - 1,
			Extent: min(d.Size(), defaultBlock),
		}},
		Attributes: []engine.AttributeSchema{{
			Name:       valuesAttr,
			Type:       raw.Type.Numeric().String(),
			CellValNum: 1,
		}},
	}
	if err := engine.CreateArray(ctx, p, schema); err != nil {
		return err
	}
	la, err := engine.OpenArray(ctx, p, engine.ModeWrite, m.group.res.timestamp)
	if err != nil {
		return err
	}
	defer la.Close()
	if err := la.WriteRegion(valuesAttr, []uint64{0}, []uint64{d.Size()}, raw.Raw); err != nil {
		return err
	}
	meta := []engine.Metadata{
		stringMetadata(KeyLabelOrder, order),
		stringMetadata(KeyLabelName, varName),
	}
	if d.Type() != "" {
		meta = append(meta, stringMetadata(KeyDimType, d.Type()))
	}
	if d.Direction() != "" {
		meta = append(meta, stringMetadata(KeyDimDirection, d.Direction()))
	}
	for _, md := range meta {
		if err := la.PutMetadata(md); err != nil {
			return err
		}
	}
	logger.Infof("wrote %s label of dimension %q for %q", order, d.Name(), m.FullName())
	return nil
}

// label is a stored dimension label, read back.
type label struct {
	order     string
	varName   string
	typ       string
	direction string
	values    api.Buffer
}

// readLabel loads the label of dimension dim of the array at arrayPath.
// It returns nil if there is none.
func readLabel(res *resource, arrayPath string, dim string) (*label, error) {
	p := labelPath(arrayPath, dim)
	kind, err := engine.ObjectType(res.ctx, p)
	if err != nil || kind != engine.KindArray {
		return nil, err
	}
	la, err := engine.OpenArray(res.ctx, p, engine.ModeRead, res.timestamp)
	if err != nil {
		return nil, err
	}
	defer la.Close()
	s := la.Schema()
	dt, err := schemaDataType(s)
	if err != nil {
		return nil, err
	}
	if len(s.Dimensions) != 1 {
		return nil, failf(api.ErrNotSupported, "label %q has %d dimensions", p, len(s.Dimensions))
	}
	n := s.Dimensions[0].Size()
	buf := api.NewBuffer(dt, int(n))
	if err := la.ReadRegion(valuesAttr, []uint64{0}, []uint64{n}, buf.Raw); err != nil {
		return nil, err
	}
	meta, err := la.Metadata()
	if err != nil {
		return nil, err
	}
	l := &label{values: buf}
	l.order, _ = metadataString(meta, KeyLabelOrder)
	l.varName, _ = metadataString(meta, KeyLabelName)
	l.typ, _ = metadataString(meta, KeyDimType)
	l.direction, _ = metadataString(meta, KeyDimDirection)
	return l, nil
}

// labelIndexing rebuilds the indexing variable of d from its label, as an
// in-memory array.
func (m *MDArray) labelIndexing(d *Dimension) api.MDArray {
	l, err := readLabel(m.group.res, m.path, d.name)
	if err != nil {
		logger.Warn("label of dimension ", d.name, " of ", m.FullName(), ": ", err)
		return nil
	}
	if l == nil || l.values.Len() != int(d.size) {
		return nil
	}
	if d.typ == "" {
		d.typ = l.typ
	}
	if d.direction == "" {
		d.direction = l.direction
	}
	name := l.varName
	if name == "" {
		name = d.name
	}
	v, err := mem.NewMDArray(m.group.FullName(), name, []api.Dimension{d}, l.values.Type)
	if err != nil {
		logger.Warn(err)
		return nil
	}
	if err := api.WriteAll(v, l.values); err != nil {
		logger.Warn(err)
		return nil
	}
	return v
}
