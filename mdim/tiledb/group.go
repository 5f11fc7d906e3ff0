package tiledb

import (
	"fmt"

	"github.com/batchatco/go-native-mdim/internal"
	"github.com/batchatco/go-native-mdim/internal/engine"
	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/mem"
	"github.com/batchatco/go-native-mdim/mdim/util"
)

// resource is what every object opened from one store shares.
type resource struct {
	ctx       *engine.Context
	timestamp uint64
	stats     bool
}

// dumpStats logs the engine counters after an I/O call when STATS is on.
func (r *resource) dumpStats(op, name string) {
	if !r.stats {
		return
	}
	lines, err := r.ctx.Stats().Dump()
	if err != nil {
		logger.Warn("stats: ", err)
		return
	}
	entry := logger.WithField("op", op).WithField("array", name)
	for _, l := range lines {
		entry.Info(l)
	}
}

func newResource(uri string, o *options) (*resource, error) {
	ctx, err := engine.NewContext(uri)
	if err != nil {
		return nil, fail(err)
	}
	if o.Stats {
		ctx.Stats().Enable(true)
	}
	return &resource{ctx: ctx, timestamp: o.Timestamp, stats: o.Stats}, nil
}

// Create creates a store at uri and returns its root group. A uri of the
// form mem://name creates a process-wide memory store. TIMESTAMP and STATS
// are honored.
func Create(uri string, opts api.Options) (*Group, error) {
	o, err := decodeOptions(opts)
	if err != nil {
		return nil, err
	}
	res, err := newResource(uri, o)
	if err != nil {
		return nil, err
	}
	if err := engine.CreateGroup(res.ctx, ""); err != nil {
		res.ctx.Release()
		return nil, fail(err)
	}
	g, err := openGroup(res, nil, "/", "", "")
	if err != nil {
		res.ctx.Release()
		return nil, err
	}
	return g, nil
}

// Open opens the store at uri and returns its root group.
func Open(uri string, opts api.Options) (*Group, error) {
	o, err := decodeOptions(opts)
	if err != nil {
		return nil, err
	}
	res, err := newResource(uri, o)
	if err != nil {
		return nil, err
	}
	g, err := openGroup(res, nil, "/", "", "")
	if err != nil {
		res.ctx.Release()
		return nil, err
	}
	return g, nil
}

// Group is a group of a store. Children are cached, so a name always
// yields the same object within a session.
type Group struct {
	res    *resource
	parent *Group
	name   string
	// rel is the path below the parent, path the full engine path.
	rel  string
	path string
	eg   *engine.Group

	attrs  *mem.AttributeStore
	groups map[string]*Group
	// arrays holds opened arrays and, in creation order, the ones still
	// pending creation.
	arrays *util.OrderedMap
	dims   *util.OrderedMap

	deleted bool
	closed  bool
}

var _ api.Group = (*Group)(nil)

func newOrderedMap() *util.OrderedMap {
	om, _ := util.NewOrderedMap(nil, nil)
	return om
}

// openGroup opens the group at path. The root group takes over the
// reference the context was created with; others add one.
func openGroup(res *resource, parent *Group, name, rel, p string) (*Group, error) {
	eg, err := engine.OpenGroup(res.ctx, p, engine.ModeRead)
	if err != nil {
		return nil, fail(err)
	}
	g := &Group{
		res:    res,
		parent: parent,
		name:   name,
		rel:    rel,
		path:   p,
		eg:     eg,
		groups: map[string]*Group{},
		arrays: newOrderedMap(),
		dims:   newOrderedMap(),
	}
	g.attrs = mem.NewAttributeStore(g.FullName, mem.AttributeHooks{
		Written: func(a *mem.Attribute) error {
			return g.update(func(eg *engine.Group) error { return eg.PutMetadata(toMetadata(a)) })
		},
		Deleted: func(name string) error {
			return g.update(func(eg *engine.Group) error { return eg.DeleteMetadata(name) })
		},
		Renamed: func(oldName, newName string) error {
			return g.update(func(eg *engine.Group) error { return renameMetadata(eg, oldName, newName) })
		},
	})
	meta, err := eg.Metadata()
	if err != nil {
		return nil, fail(err)
	}
	loadAttributes(g.attrs, meta)
	if parent != nil {
		res.ctx.Retain()
	}
	return g, nil
}

// metadataEditor is what groups and arrays offer to edit metadata.
type metadataEditor interface {
	GetMetadata(key string) (engine.Metadata, bool, error)
	PutMetadata(m engine.Metadata) error
	DeleteMetadata(key string) error
}

// renameMetadata moves the entry of oldName to newName.
func renameMetadata(ed metadataEditor, oldName, newName string) error {
	m, ok, err := ed.GetMetadata(oldName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: metadata %q", api.ErrNotFound, oldName)
	}
	if err := ed.DeleteMetadata(oldName); err != nil {
		return err
	}
	m.Key = newName
	return ed.PutMetadata(m)
}

// update runs fn with the group handle open for writing, then goes back
// to reading.
func (g *Group) update(fn func(eg *engine.Group) error) error {
	if err := g.live(); err != nil {
		return err
	}
	if err := g.eg.Reopen(engine.ModeWrite); err != nil {
		return fail(err)
	}
	err := fn(g.eg)
	if rerr := g.eg.Reopen(engine.ModeRead); err == nil {
		err = rerr
	}
	if err != nil {
		return fail(err)
	}
	return nil
}

func (g *Group) live() error {
	switch {
	case g.deleted:
		return failf(api.ErrNotFound, "group %q was deleted", g.name)
	case g.closed:
		return failf(api.ErrIOFailure, "group %q is closed", g.name)
	}
	return nil
}

func (g *Group) Name() string {
	return g.name
}

func (g *Group) FullName() string {
	if g.parent == nil {
		return "/"
	}
	return internal.JoinFullName(g.parent.FullName(), g.name)
}

// Rename renames the group inside its parent. The stored objects stay
// where they are.
func (g *Group) Rename(newName string) error {
	if err := g.live(); err != nil {
		return err
	}
	if g.parent == nil {
		return failf(api.ErrNotSupported, "cannot rename the root group")
	}
	if err := checkName("group", newName); err != nil {
		return err
	}
	p := g.parent
	if err := p.checkFree(newName); err != nil {
		return err
	}
	err := p.update(func(eg *engine.Group) error {
		if err := eg.RemoveMember(g.name); err != nil {
			return err
		}
		return eg.AddMember(newName, g.rel)
	})
	if err != nil {
		return err
	}
	delete(p.groups, g.name)
	p.groups[newName] = g
	g.name = newName
	return nil
}

// Close commits the arrays still pending creation, closes every object
// opened through the group and drops its hold on the store. Failures are
// logged.
func (g *Group) Close() {
	if g.closed {
		return
	}
	// commit everything first, labels read sibling arrays
	keys := append([]string(nil), g.arrays.AllKeys()...)
	for _, k := range keys {
		v, _ := g.arrays.Get(k)
		if m := v.(*MDArray); m.state == stateCreated && !m.deleted {
			if err := m.Finalize(); err != nil {
				logger.Error("array ", m.FullName(), " dropped on close: ", err)
			}
		}
	}
	for _, k := range keys {
		v, _ := g.arrays.Get(k)
		v.(*MDArray).Close()
	}
	for _, c := range g.groups {
		c.Close()
	}
	g.closed = true
	g.eg.Close()
	g.res.ctx.Release()
}

func checkName(what, name string) error {
	if !internal.IsValidName(name) {
		return failf(api.ErrInvalidArgument, "invalid %s name %q", what, name)
	}
	return nil
}

func (g *Group) members() []engine.Member {
	members, err := g.eg.Members()
	if err != nil {
		logger.Warn(err)
	}
	return members
}

func (g *Group) member(name string) (engine.Member, bool) {
	for _, m := range g.members() {
		if m.Name == name {
			return m, true
		}
	}
	return engine.Member{}, false
}

// checkFree fails if name is taken by a member or a pending array. Groups
// and arrays share one member namespace.
func (g *Group) checkFree(name string) error {
	if _, has := g.member(name); has {
		return failf(api.ErrAlreadyExists, "%q in group %q", name, g.FullName())
	}
	if _, has := g.arrays.Get(name); has {
		return failf(api.ErrAlreadyExists, "array %q", name)
	}
	return nil
}

// placement picks the path of a new child: the URI option, or the name,
// suffixed if an object already sits there.
func (g *Group) placement(name string, o *options) (string, error) {
	rel, err := o.location()
	if err != nil {
		return "", err
	}
	taken := func(rel string) (bool, error) {
		kind, err := engine.ObjectType(g.res.ctx, engine.Join(g.path, rel))
		if err != nil {
			return false, fail(err)
		}
		if kind != engine.KindNone {
			return true, nil
		}
		for _, k := range g.arrays.AllKeys() {
			v, _ := g.arrays.Get(k)
			if v.(*MDArray).rel == rel {
				return true, nil
			}
		}
		return false, nil
	}
	if rel != "" {
		used, err := taken(rel)
		if err != nil {
			return "", err
		}
		if used {
			return "", failf(api.ErrAlreadyExists, "URI=%s", rel)
		}
		return rel, nil
	}
	for i := 0; ; i++ {
		rel = name
		if i > 0 {
			rel = fmt.Sprintf("%s_%d", name, i)
		}
		used, err := taken(rel)
		if err != nil {
			return "", err
		}
		if !used {
			return rel, nil
		}
	}
}

func (g *Group) GetAttribute(name string) (api.Attribute, error) {
	if err := g.live(); err != nil {
		return nil, err
	}
	return g.attrs.Get(name)
}

func (g *Group) ListAttributes(opts api.Options) []api.Attribute {
	if g.live() != nil {
		return nil
	}
	return g.attrs.List(showAll(opts))
}

func (g *Group) CreateAttribute(name string, dims []uint64, dt api.ExtendedDataType, opts api.Options) (api.Attribute, error) {
	if err := g.live(); err != nil {
		return nil, err
	}
	if IsReservedKey(name) {
		return nil, failf(api.ErrInvalidArgument, "attribute name %q is reserved", name)
	}
	a, err := g.attrs.Create(name, dims, dt)
	if err != nil {
		return nil, err
	}
	if err := g.update(func(eg *engine.Group) error { return eg.PutMetadata(toMetadata(a)) }); err != nil {
		return nil, err
	}
	return a, nil
}

func (g *Group) DeleteAttribute(name string, opts api.Options) error {
	if err := g.live(); err != nil {
		return err
	}
	if IsReservedKey(name) {
		return failf(api.ErrInvalidArgument, "attribute %q is reserved", name)
	}
	return g.attrs.Delete(name)
}

func (g *Group) ListGroups(opts api.Options) []string {
	if g.live() != nil {
		return nil
	}
	names := []string{}
	for _, m := range g.members() {
		if m.Kind == engine.KindGroup {
			names = append(names, m.Name)
		}
	}
	return names
}

func (g *Group) GetGroup(name string, opts api.Options) (api.Group, error) {
	if err := g.live(); err != nil {
		return nil, err
	}
	if c, ok := g.groups[name]; ok {
		return c, nil
	}
	m, has := g.member(name)
	if !has || m.Kind != engine.KindGroup {
		return nil, failf(api.ErrNotFound, "group %q", name)
	}
	c, err := openGroup(g.res, g, name, m.Path, engine.Join(g.path, m.Path))
	if err != nil {
		return nil, err
	}
	g.groups[name] = c
	return c, nil
}

// CreateGroup creates and registers a child group. The URI option places
// it at a path relative to this group.
func (g *Group) CreateGroup(name string, opts api.Options) (api.Group, error) {
	if err := g.live(); err != nil {
		return nil, err
	}
	if err := checkName("group", name); err != nil {
		return nil, err
	}
	o, err := decodeOptions(opts)
	if err != nil {
		return nil, err
	}
	if err := g.checkFree(name); err != nil {
		return nil, err
	}
	rel, err := g.placement(name, o)
	if err != nil {
		return nil, err
	}
	p := engine.Join(g.path, rel)
	if err := engine.CreateGroup(g.res.ctx, p); err != nil {
		return nil, fail(err)
	}
	err = g.update(func(eg *engine.Group) error { return eg.AddMember(name, rel) })
	if err != nil {
		g.remove(p)
		return nil, err
	}
	c, err := openGroup(g.res, g, name, rel, p)
	if err != nil {
		return nil, err
	}
	g.groups[name] = c
	return c, nil
}

// remove deletes a stored object, logging failures.
func (g *Group) remove(p string) {
	if err := engine.Remove(g.res.ctx, p); err != nil {
		logger.Warn("removing ", p, ": ", err)
	}
}

// markDeleted invalidates g and everything opened below it.
func (g *Group) markDeleted() {
	g.deleted = true
	for _, k := range g.arrays.AllKeys() {
		v, _ := g.arrays.Get(k)
		v.(*MDArray).markDeleted()
	}
	for _, c := range g.groups {
		c.markDeleted()
	}
	if !g.closed {
		g.closed = true
		g.eg.Close()
		g.res.ctx.Release()
	}
}

func (g *Group) DeleteGroup(name string, opts api.Options) error {
	if err := g.live(); err != nil {
		return err
	}
	m, has := g.member(name)
	if !has || m.Kind != engine.KindGroup {
		return failf(api.ErrNotFound, "group %q", name)
	}
	if err := g.update(func(eg *engine.Group) error { return eg.RemoveMember(name) }); err != nil {
		return err
	}
	if c, ok := g.groups[name]; ok {
		c.markDeleted()
		delete(g.groups, name)
	}
	g.remove(engine.Join(g.path, m.Path))
	logger.Info("deleted group ", name)
	return nil
}

// ListMDArrays lists registered arrays, then those pending creation.
func (g *Group) ListMDArrays(opts api.Options) []string {
	if g.live() != nil {
		return nil
	}
	names := []string{}
	for _, m := range g.members() {
		if m.Kind == engine.KindArray {
			names = append(names, m.Name)
		}
	}
	for _, k := range g.arrays.Keys() {
		v, _ := g.arrays.Get(k)
		if v.(*MDArray).state == stateCreated {
			names = append(names, k)
		}
	}
	return names
}

func (g *Group) GetMDArray(name string, opts api.Options) (api.MDArray, error) {
	if err := g.live(); err != nil {
		return nil, err
	}
	return g.getArray(name, map[string]bool{})
}

// DeleteMDArray drops a pending array, or unregisters and removes a stored
// one.
func (g *Group) DeleteMDArray(name string, opts api.Options) error {
	if err := g.live(); err != nil {
		return err
	}
	if v, ok := g.arrays.Get(name); ok && v.(*MDArray).state != stateFinalized {
		v.(*MDArray).markDeleted()
		g.arrays.Delete(name)
		return nil
	}
	m, has := g.member(name)
	if !has || m.Kind != engine.KindArray {
		return failf(api.ErrNotFound, "array %q", name)
	}
	if err := g.update(func(eg *engine.Group) error { return eg.RemoveMember(name) }); err != nil {
		return err
	}
	if v, ok := g.arrays.Get(name); ok {
		v.(*MDArray).markDeleted()
		g.arrays.Delete(name)
	}
	g.remove(engine.Join(g.path, m.Path))
	return nil
}

// ListDimensions lists the dimensions created in this session and those
// of the stored arrays, which are opened for that.
func (g *Group) ListDimensions(opts api.Options) []api.Dimension {
	if g.live() != nil {
		return nil
	}
	for _, m := range g.members() {
		if m.Kind != engine.KindArray {
			continue
		}
		if _, err := g.getArray(m.Name, map[string]bool{}); err != nil {
			logger.Warn("listing dimensions of ", m.Name, ": ", err)
		}
	}
	keys := g.dims.Keys()
	ret := make([]api.Dimension, 0, len(keys))
	for _, k := range keys {
		v, _ := g.dims.Get(k)
		ret = append(ret, v.(*Dimension))
	}
	return ret
}

func (g *Group) CreateDimension(name, typ, direction string, size uint64, opts api.Options) (api.Dimension, error) {
	if err := g.live(); err != nil {
		return nil, err
	}
	if err := checkName("dimension", name); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, failf(api.ErrInvalidArgument, "dimension %q has size 0", name)
	}
	if _, has := g.dims.Get(name); has {
		return nil, failf(api.ErrAlreadyExists, "dimension %q", name)
	}
	d := &Dimension{group: g, name: name, typ: typ, direction: direction, size: size}
	g.dims.Add(name, d)
	return d, nil
}

// dimensionFor returns the group dimension called name if it has the given
// size, and otherwise a new one; only the first of a name is listed.
func (g *Group) dimensionFor(name string, size uint64) *Dimension {
	if v, has := g.dims.Get(name); has {
		if d := v.(*Dimension); d.size == size {
			return d
		}
		return &Dimension{group: g, name: name, size: size}
	}
	d := &Dimension{group: g, name: name, size: size}
	g.dims.Add(name, d)
	return d
}
