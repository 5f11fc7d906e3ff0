package mem

import (
	"github.com/batchatco/go-native-mdim/mdim/api"
)

// Dimension is a handle on a dimension of an in-memory tree.
type Dimension struct {
	a *arena
	h handle
}

var _ api.Dimension = (*Dimension)(nil)

// NewDimension creates a dimension outside of any group. context is the
// full name of the group it should appear to belong to.
func NewDimension(context, name, typ, direction string, size uint64) (*Dimension, error) {
	if err := checkName("dimension", name); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, failf(api.ErrInvalidArgument, "dimension %q has size 0", name)
	}
	a := &arena{}
	return a.newDim(name, typ, direction, size, noHandle, context).pub, nil
}

func (d *Dimension) entry() *dimEntry {
	return d.a.dims[d.h]
}

func (d *Dimension) Name() string {
	return d.entry().name
}

func (d *Dimension) FullName() string {
	return d.a.dimFullName(d.h)
}

func (d *Dimension) Type() string {
	return d.entry().typ
}

func (d *Dimension) Direction() string {
	return d.entry().direction
}

func (d *Dimension) Size() uint64 {
	return d.entry().size
}

func (d *Dimension) Rename(newName string) error {
	if err := checkName("dimension", newName); err != nil {
		return err
	}
	e := d.entry()
	if d.a.live(e.group) {
		if err := renameChild(d.a.groups[e.group].dims, "dimension", e.name, newName); err != nil {
			return err
		}
	}
	e.name = newName
	return nil
}

// Resize changes the size of the dimension and of every array using it.
// Existing content is kept where it still fits; new cells are zero.
func (d *Dimension) Resize(newSize uint64) error {
	if newSize == 0 {
		return failf(api.ErrInvalidArgument, "dimension %q: size 0", d.Name())
	}
	e := d.entry()
	if newSize == e.size {
		return nil
	}
	for _, u := range e.users {
		if !d.a.arrays[u].st.owned {
			return failf(api.ErrNotSupported,
				"dimension %q is used by %q, which wraps a caller buffer",
				e.name, d.a.arrayFullName(u))
		}
	}
	for _, u := range e.users {
		ae := d.a.arrays[u]
		shape := append([]uint64(nil), ae.st.shape...)
		for i, dh := range ae.dims {
			if dh == d.h {
				shape[i] = newSize
			}
		}
		if err := ae.st.resize(shape); err != nil {
			return err
		}
	}
	e.size = newSize
	return nil
}

func (d *Dimension) IndexingVariable() api.MDArray {
	return d.entry().indexing
}

// SetIndexingVariable associates a 1-D array over this dimension with it.
// nil removes the association.
func (d *Dimension) SetIndexingVariable(v api.MDArray) error {
	if v == nil {
		d.entry().indexing = nil
		return nil
	}
	vdims := v.Dimensions()
	if len(vdims) != 1 || !SameDimension(vdims[0], d) {
		return failf(api.ErrInvalidArgument,
			"%q cannot index %q: it must be 1-D over that dimension", v.FullName(), d.FullName())
	}
	d.entry().indexing = v
	return nil
}
