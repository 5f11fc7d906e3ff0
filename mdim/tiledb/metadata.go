package tiledb

import (
	"github.com/batchatco/go-native-mdim/internal/engine"
	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/mem"
)

// toMetadata packs an attribute into an engine metadata entry.
func toMetadata(a *mem.Attribute) engine.Metadata {
	buf := a.Buffer()
	n := int(api.ElementCount(a.DimensionsSize()))
	vector := len(a.DimensionsSize()) > 0
	if buf.Type.Class() == api.ClassString {
		return engine.Metadata{
			Key:     a.Name(),
			Type:    engine.StringType,
			Count:   n,
			Vector:  vector,
			Strings: append([]string(nil), buf.Strings...),
		}
	}
	return engine.Metadata{
		Key:    a.Name(),
		Type:   buf.Type.Numeric().String(),
		Count:  n,
		Vector: vector,
		Data:   append([]byte(nil), buf.Raw...),
	}
}

// fromMetadata unpacks a metadata entry. A single value comes back as a
// scalar unless the entry is marked as a vector.
func fromMetadata(m engine.Metadata) ([]uint64, api.Buffer, error) {
	if m.Count < 1 {
		return nil, api.Buffer{}, failf(api.ErrNotSupported, "metadata %q holds no value", m.Key)
	}
	var buf api.Buffer
	if m.Type == engine.StringType {
		if len(m.Strings) != m.Count {
			return nil, api.Buffer{}, failf(api.ErrIOFailure, "metadata %q: %d strings, expected %d",
				m.Key, len(m.Strings), m.Count)
		}
		buf = api.StringBuffer(append([]string(nil), m.Strings...))
	} else {
		t, err := api.ParseNumericType(m.Type)
		if err != nil {
			return nil, api.Buffer{}, fail(err)
		}
		if len(m.Data) != m.Count*t.Size() {
			return nil, api.Buffer{}, failf(api.ErrIOFailure, "metadata %q: %d bytes for %d %v values",
				m.Key, len(m.Data), m.Count, t)
		}
		buf = api.Buffer{Type: api.NewNumeric(t), Raw: append([]byte(nil), m.Data...)}
	}
	if m.Count == 1 && !m.Vector {
		return nil, buf, nil
	}
	return []uint64{uint64(m.Count)}, buf, nil
}

// loadAttributes fills store from the metadata of an open object.
// Reserved keys are hidden.
func loadAttributes(store *mem.AttributeStore, meta []engine.Metadata) {
	for _, m := range meta {
		dims, buf, err := fromMetadata(m)
		if err != nil {
			logger.Warn("skipping metadata ", m.Key, ": ", err)
			continue
		}
		if _, err := store.Load(m.Key, dims, buf, IsReservedKey(m.Key)); err != nil {
			logger.Warn("skipping metadata ", m.Key, ": ", err)
		}
	}
}

func stringMetadata(key, v string) engine.Metadata {
	return engine.Metadata{Key: key, Type: engine.StringType, Count: 1, Strings: []string{v}}
}

func hasMetadata(meta []engine.Metadata, key string) bool {
	for _, m := range meta {
		if m.Key == key {
			return true
		}
	}
	return false
}

// metadataString returns the first string of key, or "".
func metadataString(meta []engine.Metadata, key string) (string, bool) {
	for _, m := range meta {
		if m.Key == key && m.Type == engine.StringType && len(m.Strings) > 0 {
			return m.Strings[0], true
		}
	}
	return "", false
}

func metadataFloat64(meta []engine.Metadata, key string) (float64, bool) {
	for _, m := range meta {
		if m.Key != key {
			continue
		}
		_, buf, err := fromMetadata(m)
		if err != nil || buf.Type.Class() != api.ClassNumeric {
			return 0, false
		}
		return mem.NoDataAsFloat64(buf.Type, buf.Raw[:buf.Type.Size()])
	}
	return 0, false
}
