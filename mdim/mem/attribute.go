package mem

import (
	"errors"

	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/util"
)

// AttributeHooks let a backend persist attribute changes. Any hook may be
// nil. A hook error is returned to the caller; the in-memory change stays.
type AttributeHooks struct {
	Written func(a *Attribute) error
	Deleted func(name string) error
	Renamed func(oldName, newName string) error
}

// AttributeStore holds the attributes of a group or an array, in creation
// order. It is embedded by both backends.
type AttributeStore struct {
	holder func() string
	attrs  *util.OrderedMap
	hooks  AttributeHooks
}

// NewAttributeStore creates an empty store. holder returns the full name of
// the owning object, so attribute full names follow renames.
func NewAttributeStore(holder func() string, hooks AttributeHooks) *AttributeStore {
	om, _ := util.NewOrderedMap(nil, nil)
	return &AttributeStore{holder: holder, attrs: om, hooks: hooks}
}

// Lookup returns the named attribute, hidden ones included, or nil.
func (s *AttributeStore) Lookup(name string) *Attribute {
	v, has := s.attrs.Get(name)
	if !has {
		return nil
	}
	return v.(*Attribute)
}

func (s *AttributeStore) Get(name string) (api.Attribute, error) {
	a := s.Lookup(name)
	if a == nil {
		return nil, failf(api.ErrNotFound, "attribute %q", name)
	}
	return a, nil
}

// List returns the attributes in creation order. Hidden attributes are
// only included when showAll is set.
func (s *AttributeStore) List(showAll bool) []api.Attribute {
	keys := s.attrs.Keys()
	if showAll {
		keys = s.attrs.AllKeys()
	}
	ret := make([]api.Attribute, 0, len(keys))
	for _, k := range keys {
		ret = append(ret, s.Lookup(k))
	}
	return ret
}

// Names lists the attribute names, hidden ones included.
func (s *AttributeStore) Names() []string {
	return append([]string(nil), s.attrs.AllKeys()...)
}

func (s *AttributeStore) Create(name string, dims []uint64, dt api.ExtendedDataType) (*Attribute, error) {
	if err := checkName("attribute", name); err != nil {
		return nil, err
	}
	return s.create(name, dims, dt)
}

func (s *AttributeStore) create(name string, dims []uint64, dt api.ExtendedDataType) (*Attribute, error) {
	if len(dims) > 1 {
		return nil, failf(api.ErrNotSupported, "attribute %q: only scalar and 1-D attributes", name)
	}
	if err := checkDataType(dt); err != nil {
		return nil, err
	}
	if s.Lookup(name) != nil {
		return nil, failf(api.ErrAlreadyExists, "attribute %q", name)
	}
	st, err := newStorage(dt, dims)
	if err != nil {
		return nil, err
	}
	a := &Attribute{name: name, store: s, st: st}
	s.attrs.Add(name, a)
	return a, nil
}

// Load installs, or replaces, an attribute with its content without
// running the hooks. Backends use it when reading persisted attributes
// back.
func (s *AttributeStore) Load(name string, dims []uint64, buf api.Buffer, hidden bool) (*Attribute, error) {
	if old := s.Lookup(name); old != nil {
		s.attrs.Delete(name)
		old.deleted = true
	}
	if hidden {
		s.attrs.Hide(name)
	}
	a, err := s.create(name, dims, buf.Type)
	if err != nil {
		return nil, err
	}
	if err := a.st.write(make([]uint64, len(dims)), a.st.shape, nil, nil, buf); err != nil {
		s.attrs.Delete(name)
		return nil, err
	}
	return a, nil
}

// Hide keeps name out of List unless showAll is requested.
func (s *AttributeStore) Hide(name string) {
	s.attrs.Hide(name)
}

func (s *AttributeStore) Delete(name string) error {
	a := s.Lookup(name)
	if a == nil {
		return failf(api.ErrNotFound, "attribute %q", name)
	}
	if s.hooks.Deleted != nil {
		if err := s.hooks.Deleted(name); err != nil {
			return fail(err)
		}
	}
	s.attrs.Delete(name)
	a.deleted = true
	return nil
}

// Attribute is a scalar or 1-D array of cells attached to a group or array.
type Attribute struct {
	name    string
	store   *AttributeStore
	st      *storage
	deleted bool
}

var _ api.Attribute = (*Attribute)(nil)

func (a *Attribute) live() error {
	if a.deleted {
		return failf(api.ErrNotFound, "attribute %q was deleted", a.name)
	}
	return nil
}

func (a *Attribute) Name() string {
	return a.name
}

func (a *Attribute) FullName() string {
	prefix := ""
	if a.store.holder != nil {
		prefix = a.store.holder()
	}
	if prefix == "/" {
		prefix = ""
	}
	return prefix + "/" + a.name
}

func (a *Attribute) Rename(newName string) error {
	if err := a.live(); err != nil {
		return err
	}
	if err := checkName("attribute", newName); err != nil {
		return err
	}
	if err := a.store.attrs.Rename(a.name, newName); err != nil {
		if errors.Is(err, util.ErrorKeyExists) {
			return failf(api.ErrAlreadyExists, "attribute %q", newName)
		}
		return failf(api.ErrNotFound, "attribute %q", a.name)
	}
	old := a.name
	a.name = newName
	if a.store.hooks.Renamed != nil {
		if err := a.store.hooks.Renamed(old, newName); err != nil {
			return fail(err)
		}
	}
	return nil
}

func (a *Attribute) DataType() api.ExtendedDataType {
	return a.st.buf.Type
}

func (a *Attribute) DimensionsSize() []uint64 {
	return append([]uint64(nil), a.st.shape...)
}

// Buffer returns the attribute cells. The caller must not modify it.
func (a *Attribute) Buffer() api.Buffer {
	return a.st.buf
}

func (a *Attribute) Read(start, count []uint64, step, stride []int64, dst api.Buffer) error {
	if err := a.live(); err != nil {
		return err
	}
	return a.st.read(start, count, step, stride, dst)
}

func (a *Attribute) Write(start, count []uint64, step, stride []int64, src api.Buffer) error {
	if err := a.live(); err != nil {
		return err
	}
	if err := a.st.write(start, count, step, stride, src); err != nil {
		return err
	}
	if a.store.hooks.Written != nil {
		if err := a.store.hooks.Written(a); err != nil {
			return fail(err)
		}
	}
	return nil
}

func (a *Attribute) count() int {
	return int(api.ElementCount(a.st.shape))
}

func (a *Attribute) readAll(dt api.ExtendedDataType) (api.Buffer, error) {
	buf := api.NewBuffer(dt, a.count())
	err := a.Read(make([]uint64, len(a.st.shape)), a.st.shape, nil, nil, buf)
	return buf, err
}

func (a *Attribute) writeAll(buf api.Buffer) error {
	if buf.Len() != a.count() {
		return failf(api.ErrInvalidArgument, "attribute %q holds %d values, got %d",
			a.name, a.count(), buf.Len())
	}
	return a.Write(make([]uint64, len(a.st.shape)), a.st.shape, nil, nil, buf)
}

func (a *Attribute) ReadAsString() (string, error) {
	vals, err := a.ReadAsStrings()
	if err != nil {
		return "", err
	}
	return vals[0], nil
}

func (a *Attribute) ReadAsStrings() ([]string, error) {
	buf, err := a.readAll(api.NewString(0))
	if err != nil {
		return nil, err
	}
	return buf.Strings, nil
}

func (a *Attribute) ReadAsInt() (int, error) {
	buf, err := a.readAll(api.NewNumeric(api.Int64))
	if err != nil {
		return 0, err
	}
	vals, err := api.Values[int64](buf)
	if err != nil {
		return 0, fail(err)
	}
	return int(vals[0]), nil
}

func (a *Attribute) ReadAsFloat64() (float64, error) {
	vals, err := a.ReadAsFloat64s()
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

func (a *Attribute) ReadAsFloat64s() ([]float64, error) {
	buf, err := a.readAll(api.NewNumeric(api.Float64))
	if err != nil {
		return nil, err
	}
	vals, err := api.Values[float64](buf)
	if err != nil {
		return nil, fail(err)
	}
	return vals, nil
}

func (a *Attribute) WriteString(s string) error {
	return a.writeAll(api.StringBuffer([]string{s}))
}

func (a *Attribute) WriteStrings(s []string) error {
	return a.writeAll(api.StringBuffer(s))
}

func (a *Attribute) WriteInt(v int) error {
	return a.writeAll(api.BufferOf([]int64{int64(v)}))
}

func (a *Attribute) WriteFloat64(v float64) error {
	return a.writeAll(api.BufferOf([]float64{v}))
}

func (a *Attribute) WriteFloat64s(v []float64) error {
	return a.writeAll(api.BufferOf(v))
}
