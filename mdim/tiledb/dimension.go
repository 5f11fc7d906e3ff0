package tiledb

import (
	"github.com/batchatco/go-native-mdim/internal"
	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/mem"
)

// Dimension is an axis of a group. Stored arrays have a fixed shape, so
// dimensions cannot be resized.
type Dimension struct {
	group     *Group
	name      string
	typ       string
	direction string
	size      uint64
	indexing  api.MDArray
	// users are the arrays of this session defined over the dimension.
	users []*MDArray
}

var _ api.Dimension = (*Dimension)(nil)

func (d *Dimension) Name() string {
	return d.name
}

func (d *Dimension) FullName() string {
	return internal.JoinFullName(d.group.FullName(), d.name)
}

func (d *Dimension) Type() string {
	return d.typ
}

func (d *Dimension) Direction() string {
	return d.direction
}

func (d *Dimension) Size() uint64 {
	return d.size
}

// Rename is only possible while no stored array refers to the dimension.
func (d *Dimension) Rename(newName string) error {
	if err := checkName("dimension", newName); err != nil {
		return err
	}
	for _, u := range d.users {
		if u.state != stateCreated {
			return failf(api.ErrNotSupported, "dimension %q is used by stored array %q",
				d.name, u.name)
		}
	}
	if v, has := d.group.dims.Get(d.name); has && v.(*Dimension) == d {
		if err := d.group.dims.Rename(d.name, newName); err != nil {
			return failf(api.ErrAlreadyExists, "dimension %q", newName)
		}
	}
	d.name = newName
	return nil
}

func (d *Dimension) Resize(newSize uint64) error {
	return failf(api.ErrNotSupported, "dimension %q: stored arrays cannot be resized", d.name)
}

func (d *Dimension) IndexingVariable() api.MDArray {
	return d.indexing
}

func (d *Dimension) SetIndexingVariable(v api.MDArray) error {
	if v == nil {
		d.indexing = nil
		return nil
	}
	vdims := v.Dimensions()
	if len(vdims) != 1 || !mem.SameDimension(vdims[0], d) {
		return failf(api.ErrInvalidArgument,
			"%q cannot index %q: it must be 1-D over that dimension", v.FullName(), d.FullName())
	}
	d.indexing = v
	return nil
}
