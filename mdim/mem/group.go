package mem

import (
	"errors"

	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/util"
)

// Group is a handle on a group of an in-memory tree.
type Group struct {
	a *arena
	h handle
}

var _ api.Group = (*Group)(nil)

// NewRootGroup starts a new, empty tree.
func NewRootGroup() *Group {
	a := &arena{}
	return a.newGroup("/", noHandle).pub
}

func showAll(opts api.Options) bool {
	b, err := opts.Bool(api.OptShowAll, false)
	if err != nil {
		logger.Warn(err)
	}
	return b
}

func (g *Group) entry() *groupEntry {
	return g.a.groups[g.h]
}

func (g *Group) Name() string {
	return g.entry().name
}

func (g *Group) FullName() string {
	return g.a.groupFullName(g.h)
}

func (g *Group) Rename(newName string) error {
	e, err := g.a.group(g.h)
	if err != nil {
		return err
	}
	if e.parent == noHandle {
		return failf(api.ErrNotSupported, "cannot rename the root group")
	}
	if err := checkName("group", newName); err != nil {
		return err
	}
	parent := g.a.groups[e.parent]
	if err := renameChild(parent.groups, "group", e.name, newName); err != nil {
		return err
	}
	e.name = newName
	return nil
}

func renameChild(om *util.OrderedMap, what, oldName, newName string) error {
	if err := om.Rename(oldName, newName); err != nil {
		if errors.Is(err, util.ErrorKeyExists) {
			return failf(api.ErrAlreadyExists, "%s %q", what, newName)
		}
		return failf(api.ErrNotFound, "%s %q", what, oldName)
	}
	return nil
}

// Close is a no-op; memory is released with the last reference.
func (g *Group) Close() {}

func (g *Group) GetAttribute(name string) (api.Attribute, error) {
	e, err := g.a.group(g.h)
	if err != nil {
		return nil, err
	}
	return e.attrs.Get(name)
}

func (g *Group) ListAttributes(opts api.Options) []api.Attribute {
	e, err := g.a.group(g.h)
	if err != nil {
		return nil
	}
	return e.attrs.List(showAll(opts))
}

func (g *Group) CreateAttribute(name string, dims []uint64, dt api.ExtendedDataType, opts api.Options) (api.Attribute, error) {
	e, err := g.a.group(g.h)
	if err != nil {
		return nil, err
	}
	return e.attrs.Create(name, dims, dt)
}

func (g *Group) DeleteAttribute(name string, opts api.Options) error {
	e, err := g.a.group(g.h)
	if err != nil {
		return err
	}
	return e.attrs.Delete(name)
}

func (g *Group) ListGroups(opts api.Options) []string {
	e, err := g.a.group(g.h)
	if err != nil {
		return nil
	}
	return append([]string(nil), e.groups.Keys()...)
}

func (g *Group) GetGroup(name string, opts api.Options) (api.Group, error) {
	e, err := g.a.group(g.h)
	if err != nil {
		return nil, err
	}
	v, has := e.groups.Get(name)
	if !has {
		return nil, failf(api.ErrNotFound, "group %q", name)
	}
	return g.a.groups[v.(handle)].pub, nil
}

func (g *Group) CreateGroup(name string, opts api.Options) (api.Group, error) {
	e, err := g.a.group(g.h)
	if err != nil {
		return nil, err
	}
	if err := checkName("group", name); err != nil {
		return nil, err
	}
	if _, has := e.groups.Get(name); has {
		return nil, failf(api.ErrAlreadyExists, "group %q", name)
	}
	child := g.a.newGroup(name, g.h)
	e.groups.Add(name, child.pub.h)
	return child.pub, nil
}

func (g *Group) DeleteGroup(name string, opts api.Options) error {
	e, err := g.a.group(g.h)
	if err != nil {
		return err
	}
	v, has := e.groups.Get(name)
	if !has {
		return failf(api.ErrNotFound, "group %q", name)
	}
	g.a.deleteGroup(v.(handle))
	e.groups.Delete(name)
	logger.Info("deleted group ", name)
	return nil
}

func (g *Group) ListMDArrays(opts api.Options) []string {
	e, err := g.a.group(g.h)
	if err != nil {
		return nil
	}
	return append([]string(nil), e.arrays.Keys()...)
}

func (g *Group) GetMDArray(name string, opts api.Options) (api.MDArray, error) {
	e, err := g.a.group(g.h)
	if err != nil {
		return nil, err
	}
	v, has := e.arrays.Get(name)
	if !has {
		return nil, failf(api.ErrNotFound, "array %q", name)
	}
	return g.a.arrays[v.(handle)].pub, nil
}

func (g *Group) prepareArray(name string, dims []api.Dimension, dt api.ExtendedDataType) (*groupEntry, []handle, error) {
	e, err := g.a.group(g.h)
	if err != nil {
		return nil, nil, err
	}
	if err := checkName("array", name); err != nil {
		return nil, nil, err
	}
	if _, has := e.arrays.Get(name); has {
		return nil, nil, failf(api.ErrAlreadyExists, "array %q", name)
	}
	if err := checkDataType(dt); err != nil {
		return nil, nil, err
	}
	handles := make([]handle, len(dims))
	for i, d := range dims {
		if handles[i], err = g.a.importDim(d); err != nil {
			return nil, nil, err
		}
	}
	return e, handles, nil
}

func (g *Group) shapeOf(handles []handle) []uint64 {
	shape := make([]uint64, len(handles))
	for i, h := range handles {
		shape[i] = g.a.dims[h].size
	}
	return shape
}

// CreateMDArray creates a zero-filled array. Dimensions that do not belong
// to this tree are copied.
func (g *Group) CreateMDArray(name string, dims []api.Dimension, dt api.ExtendedDataType, opts api.Options) (api.MDArray, error) {
	e, handles, err := g.prepareArray(name, dims, dt)
	if err != nil {
		return nil, err
	}
	st, err := newStorage(dt, g.shapeOf(handles))
	if err != nil {
		return nil, err
	}
	ae := g.a.newArray(name, g.h, "", handles, st)
	e.arrays.Add(name, ae.pub.h)
	return ae.pub, nil
}

// CreateMDArrayFromBuffer creates an array over buf without copying it.
// The caller keeps buf alive; such arrays cannot be resized.
func (g *Group) CreateMDArrayFromBuffer(name string, dims []api.Dimension, buf api.Buffer) (*MDArray, error) {
	e, handles, err := g.prepareArray(name, dims, buf.Type)
	if err != nil {
		return nil, err
	}
	st, err := borrowStorage(buf, g.shapeOf(handles))
	if err != nil {
		return nil, err
	}
	ae := g.a.newArray(name, g.h, "", handles, st)
	e.arrays.Add(name, ae.pub.h)
	return ae.pub, nil
}

func (g *Group) DeleteMDArray(name string, opts api.Options) error {
	e, err := g.a.group(g.h)
	if err != nil {
		return err
	}
	v, has := e.arrays.Get(name)
	if !has {
		return failf(api.ErrNotFound, "array %q", name)
	}
	g.a.deleteArray(v.(handle))
	e.arrays.Delete(name)
	return nil
}

func (g *Group) ListDimensions(opts api.Options) []api.Dimension {
	e, err := g.a.group(g.h)
	if err != nil {
		return nil
	}
	keys := e.dims.Keys()
	ret := make([]api.Dimension, 0, len(keys))
	for _, k := range keys {
		v, _ := e.dims.Get(k)
		ret = append(ret, g.a.dims[v.(handle)].pub)
	}
	return ret
}

// GetDimension looks a dimension of this group up by name.
func (g *Group) GetDimension(name string) (*Dimension, error) {
	e, err := g.a.group(g.h)
	if err != nil {
		return nil, err
	}
	v, has := e.dims.Get(name)
	if !has {
		return nil, failf(api.ErrNotFound, "dimension %q", name)
	}
	return g.a.dims[v.(handle)].pub, nil
}

func (g *Group) CreateDimension(name, typ, direction string, size uint64, opts api.Options) (api.Dimension, error) {
	e, err := g.a.group(g.h)
	if err != nil {
		return nil, err
	}
	if err := checkName("dimension", name); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, failf(api.ErrInvalidArgument, "dimension %q has size 0", name)
	}
	if _, has := e.dims.Get(name); has {
		return nil, failf(api.ErrAlreadyExists, "dimension %q", name)
	}
	de := g.a.newDim(name, typ, direction, size, g.h, "")
	e.dims.Add(name, de.pub.h)
	return de.pub, nil
}
