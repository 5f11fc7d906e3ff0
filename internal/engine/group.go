package engine

// Member is one entry of a group: a child group or array, addressed by a
// path relative to the group.
type Member struct {
	Name string     `json:"name"`
	Path string     `json:"path"`
	Kind ObjectKind `json:"kind"`
}

type groupDoc struct {
	Members []Member `json:"members"`
}

// Group is an open group handle.
type Group struct {
	object
	members []Member
}

// CreateGroup creates an empty group at p.
func CreateGroup(ctx *Context, p string) error {
	kind, err := ObjectType(ctx, p)
	if err != nil {
		return err
	}
	if kind != KindNone {
		return errorf(ErrExists, "%s already at %q", kind, p)
	}
	return putJSON(ctx.store, Join(p, groupKey), groupDoc{Members: []Member{}})
}

// OpenGroup opens the group at p.
func OpenGroup(ctx *Context, p string, mode Mode) (*Group, error) {
	g := &Group{object: object{ctx: ctx, path: p}}
	if err := g.Open(mode); err != nil {
		return nil, err
	}
	return g, nil
}

// Open (re)loads the group in the given mode.
func (g *Group) Open(mode Mode) error {
	if err := g.ctx.check(); err != nil {
		return err
	}
	var doc groupDoc
	if err := getJSON(g.ctx.store, Join(g.path, groupKey), &doc); err != nil {
		if isNotFound(err) {
			return errorf(ErrNotFound, "no group at %q", g.path)
		}
		return err
	}
	if err := g.loadMetadata(); err != nil {
		return err
	}
	g.members = doc.Members
	g.mode = mode
	g.open = true
	return nil
}

func (g *Group) Close() {
	g.open = false
}

// Reopen closes the handle and opens it again in mode.
func (g *Group) Reopen(mode Mode) error {
	g.Close()
	return g.Open(mode)
}

// Members lists the members in insertion order.
func (g *Group) Members() ([]Member, error) {
	if err := g.check(false); err != nil {
		return nil, err
	}
	return append([]Member(nil), g.members...), nil
}

// AddMember registers the object at relPath under name.
func (g *Group) AddMember(name, relPath string) error {
	if err := g.check(true); err != nil {
		return err
	}
	for _, m := range g.members {
		if m.Name == name {
			return errorf(ErrExists, "member %q of %q", name, g.path)
		}
	}
	kind, err := ObjectType(g.ctx, Join(g.path, relPath))
	if err != nil {
		return err
	}
	if kind == KindNone {
		return errorf(ErrNotFound, "no object at %q", Join(g.path, relPath))
	}
	g.members = append(g.members, Member{Name: name, Path: relPath, Kind: kind})
	return g.save()
}

// RemoveMember drops name from the group. The object itself stays.
func (g *Group) RemoveMember(name string) error {
	if err := g.check(true); err != nil {
		return err
	}
	for i, m := range g.members {
		if m.Name == name {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return g.save()
		}
	}
	return errorf(ErrNotFound, "member %q of %q", name, g.path)
}

func (g *Group) save() error {
	return putJSON(g.ctx.store, Join(g.path, groupKey), groupDoc{Members: g.members})
}
