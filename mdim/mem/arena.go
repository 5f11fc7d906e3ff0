package mem

import (
	"path"

	"github.com/batchatco/go-native-mdim/internal"
	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/util"
)

type handle int

const noHandle handle = -1

// arena owns every object of one tree. Entries are never removed from the
// slices; deleted ones stay behind as tombstones so stale handles fail
// cleanly instead of pointing at a reused slot.
type arena struct {
	groups []*groupEntry
	arrays []*arrayEntry
	dims   []*dimEntry
}

type groupEntry struct {
	name    string
	parent  handle
	deleted bool
	// name -> handle, in creation order
	groups *util.OrderedMap
	arrays *util.OrderedMap
	dims   *util.OrderedMap
	attrs  *AttributeStore
	pub    *Group
}

type arrayEntry struct {
	name  string
	group handle
	// context is the parent full name of an array outside any group.
	context string
	deleted bool
	dims    []handle
	st      *storage
	attrs   *AttributeStore

	nodata           []byte
	unit             string
	scale, offset    float64
	hasScale, hasOff bool
	srs              *api.SpatialRef
	pub              *MDArray
}

type dimEntry struct {
	name      string
	typ       string
	direction string
	size      uint64
	// group is weak: a deleted group leaves the dimension standing, named
	// under context.
	group    handle
	context  string
	users    []handle
	indexing api.MDArray
	pub      *Dimension
}

func newOrderedMap() *util.OrderedMap {
	om, _ := util.NewOrderedMap(nil, nil)
	return om
}

func (a *arena) newGroup(name string, parent handle) *groupEntry {
	h := handle(len(a.groups))
	e := &groupEntry{
		name:   name,
		parent: parent,
		groups: newOrderedMap(),
		arrays: newOrderedMap(),
		dims:   newOrderedMap(),
		pub:    &Group{a: a, h: h},
	}
	e.attrs = NewAttributeStore(func() string { return a.groupFullName(h) }, AttributeHooks{})
	a.groups = append(a.groups, e)
	return e
}

func (a *arena) newArray(name string, group handle, context string, dims []handle, st *storage) *arrayEntry {
	h := handle(len(a.arrays))
	e := &arrayEntry{
		name:    name,
		group:   group,
		context: context,
		dims:    dims,
		st:      st,
		pub:     &MDArray{a: a, h: h},
	}
	e.attrs = NewAttributeStore(func() string { return a.arrayFullName(h) }, AttributeHooks{})
	a.arrays = append(a.arrays, e)
	for _, d := range dims {
		de := a.dims[d]
		de.users = append(de.users, h)
	}
	return e
}

func (a *arena) newDim(name, typ, direction string, size uint64, group handle, context string) *dimEntry {
	h := handle(len(a.dims))
	e := &dimEntry{
		name:      name,
		typ:       typ,
		direction: direction,
		size:      size,
		group:     group,
		context:   context,
		pub:       &Dimension{a: a, h: h},
	}
	a.dims = append(a.dims, e)
	return e
}

// importDim returns a handle for d. Dimensions of this arena are used as
// they are; any other dimension is snapshotted.
func (a *arena) importDim(d api.Dimension) (handle, error) {
	if d == nil {
		return noHandle, failf(api.ErrInvalidArgument, "nil dimension")
	}
	if md, ok := d.(*Dimension); ok && md.a == a {
		return md.h, nil
	}
	if d.Size() == 0 {
		return noHandle, failf(api.ErrInvalidArgument, "dimension %q has size 0", d.Name())
	}
	context := path.Dir(d.FullName())
	if context == "." {
		context = ""
	}
	e := a.newDim(d.Name(), d.Type(), d.Direction(), d.Size(), noHandle, context)
	return e.pub.h, nil
}

func (a *arena) group(h handle) (*groupEntry, error) {
	e := a.groups[h]
	if e.deleted {
		return nil, failf(api.ErrNotFound, "group %q was deleted", e.name)
	}
	return e, nil
}

func (a *arena) array(h handle) (*arrayEntry, error) {
	e := a.arrays[h]
	if e.deleted {
		return nil, failf(api.ErrNotFound, "array %q was deleted", e.name)
	}
	return e, nil
}

func (a *arena) live(h handle) bool {
	return h != noHandle && !a.groups[h].deleted
}

func (a *arena) groupFullName(h handle) string {
	e := a.groups[h]
	if e.parent == noHandle {
		return "/"
	}
	return internal.JoinFullName(a.groupFullName(e.parent), e.name)
}

func (a *arena) arrayFullName(h handle) string {
	e := a.arrays[h]
	if a.live(e.group) {
		return internal.JoinFullName(a.groupFullName(e.group), e.name)
	}
	return internal.JoinFullName(e.context, e.name)
}

func (a *arena) dimFullName(h handle) string {
	e := a.dims[h]
	if a.live(e.group) {
		return internal.JoinFullName(a.groupFullName(e.group), e.name)
	}
	return internal.JoinFullName(e.context, e.name)
}

func (a *arena) deleteArray(h handle) {
	e := a.arrays[h]
	e.deleted = true
	for _, d := range e.dims {
		de := a.dims[d]
		users := de.users[:0]
		for _, u := range de.users {
			if u != h {
				users = append(users, u)
			}
		}
		de.users = users
	}
}

// deleteGroup tombstones h and everything under it. Its dimensions outlive
// it for the sake of arrays elsewhere that still use them.
func (a *arena) deleteGroup(h handle) {
	e := a.groups[h]
	full := a.groupFullName(h)
	for _, k := range e.groups.AllKeys() {
		v, _ := e.groups.Get(k)
		a.deleteGroup(v.(handle))
	}
	for _, k := range e.arrays.AllKeys() {
		v, _ := e.arrays.Get(k)
		a.deleteArray(v.(handle))
	}
	for _, k := range e.dims.AllKeys() {
		v, _ := e.dims.Get(k)
		de := a.dims[v.(handle)]
		de.group = noHandle
		de.context = full
	}
	e.deleted = true
}
