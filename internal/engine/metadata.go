package engine

import (
	"bytes"
	"encoding/json"
	"errors"
)

// StringType is the Metadata.Type of string values.
const StringType = "String"

// Metadata is one typed key/value pair attached to a group or an array.
// Numeric values are packed in Data in the host byte order; Count is the
// number of values. Vector tells a one-value vector from a scalar.
type Metadata struct {
	Key     string   `json:"key"`
	Type    string   `json:"type"`
	Count   int      `json:"count"`
	Vector  bool     `json:"vector,omitempty"`
	Data    []byte   `json:"data,omitempty"`
	Strings []string `json:"strings,omitempty"`
}

// object is what groups and arrays share: a path, a mode and metadata.
type object struct {
	ctx  *Context
	path string
	mode Mode
	open bool
	meta []Metadata
}

func (o *object) check(write bool) error {
	if err := o.ctx.check(); err != nil {
		return err
	}
	if !o.open {
		return errorf(ErrClosed, "%q is not open", o.path)
	}
	if write && o.mode != ModeWrite {
		return errorf(ErrMode, "%q is open for %v", o.path, o.mode)
	}
	return nil
}

func getJSON(store Store, key string, v any) error {
	r, err := store.Get(key)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return errorf(ErrCorrupt, "%s: %v", key, err)
	}
	return nil
}

func putJSON(store Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return store.Put(key, bytes.NewReader(b))
}

func (o *object) loadMetadata() error {
	o.meta = nil
	var meta []Metadata
	err := getJSON(o.ctx.store, Join(o.path, metaKey), &meta)
	switch {
	case err == nil:
		o.meta = meta
	case isNotFound(err):
	default:
		return err
	}
	return nil
}

func (o *object) saveMetadata() error {
	return putJSON(o.ctx.store, Join(o.path, metaKey), o.meta)
}

// Metadata lists the metadata entries in insertion order.
func (o *object) Metadata() ([]Metadata, error) {
	if err := o.check(false); err != nil {
		return nil, err
	}
	return append([]Metadata(nil), o.meta...), nil
}

// GetMetadata returns the entry for key, and whether there is one.
func (o *object) GetMetadata(key string) (Metadata, bool, error) {
	if err := o.check(false); err != nil {
		return Metadata{}, false, err
	}
	for _, m := range o.meta {
		if m.Key == key {
			return m, true, nil
		}
	}
	return Metadata{}, false, nil
}

// PutMetadata adds or replaces an entry. The object must be open for
// writing.
func (o *object) PutMetadata(m Metadata) error {
	if err := o.check(true); err != nil {
		return err
	}
	if m.Key == "" {
		return errorf(ErrInvalid, "empty metadata key")
	}
	replaced := false
	for i := range o.meta {
		if o.meta[i].Key == m.Key {
			o.meta[i] = m
			replaced = true
		}
	}
	if !replaced {
		o.meta = append(o.meta, m)
	}
	return o.saveMetadata()
}

// DeleteMetadata removes key. A missing key is not an error.
func (o *object) DeleteMetadata(key string) error {
	if err := o.check(true); err != nil {
		return err
	}
	kept := o.meta[:0]
	for _, m := range o.meta {
		if m.Key != key {
			kept = append(kept, m)
		}
	}
	o.meta = kept
	return o.saveMetadata()
}

func (o *object) Path() string {
	return o.path
}

func (o *object) Mode() Mode {
	return o.mode
}

func (o *object) IsOpen() bool {
	return o.open
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
