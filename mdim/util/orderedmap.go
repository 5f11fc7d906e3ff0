package util

import (
	"errors"
	"sort"
)

// OrderedMap keeps values in insertion order. Hidden keys are stored but
// left out of Keys; the attribute stores use this for reserved metadata.
type OrderedMap struct {
	keys        []string
	values      map[string]interface{}
	visibleKeys []string
	hiddenKeys  map[string]bool
}

var (
	ErrorKeysDontMatchValues = errors.New("keys don't match values")
	ErrorKeyExists           = errors.New("key already exists")
	ErrorKeyMissing          = errors.New("key does not exist")
)

func NewOrderedMap(keys []string, values map[string]interface{}) (*OrderedMap, error) {
	if len(keys) != len(values) {
		return nil, ErrorKeysDontMatchValues
	}
	mapKeys := []string{}
	for k := range values {
		mapKeys = append(mapKeys, k)
	}
	sort.Strings(mapKeys)

	sortedKeys := make([]string, len(keys))
	copy(sortedKeys, keys)
	sort.Strings(sortedKeys)

	for i := range sortedKeys {
		if mapKeys[i] != sortedKeys[i] {
			return nil, ErrorKeysDontMatchValues
		}
	}
	if values == nil {
		values = map[string]interface{}{}
	}

	return &OrderedMap{
		keys:        append([]string{}, keys...),
		values:      values,
		visibleKeys: append([]string{}, keys...),
		hiddenKeys:  map[string]bool{}}, nil
}

// Add appends name, or replaces its value in place if it is already present.
func (om *OrderedMap) Add(name string, val interface{}) {
	if _, has := om.values[name]; !has {
		om.keys = append(om.keys, name)
		if !om.hiddenKeys[name] {
			om.visibleKeys = append(om.visibleKeys, name)
		}
	}
	om.values[name] = val
}

func (om *OrderedMap) Get(key string) (val interface{}, has bool) {
	val, has = om.values[key]
	return
}

// Delete removes key. It reports whether the key was present.
func (om *OrderedMap) Delete(key string) bool {
	if _, has := om.values[key]; !has {
		return false
	}
	delete(om.values, key)
	om.keys = removeKey(om.keys, key)
	om.visibleKeys = removeKey(om.visibleKeys, key)
	return true
}

// Rename moves the value of oldKey to newKey, keeping its position.
func (om *OrderedMap) Rename(oldKey, newKey string) error {
	val, has := om.values[oldKey]
	if !has {
		return ErrorKeyMissing
	}
	if _, has := om.values[newKey]; has {
		return ErrorKeyExists
	}
	delete(om.values, oldKey)
	om.values[newKey] = val
	for i := range om.keys {
		if om.keys[i] == oldKey {
			om.keys[i] = newKey
		}
	}
	om.recompute()
	return nil
}

func (om *OrderedMap) Hide(hiddenKey string) {
	om.hiddenKeys[hiddenKey] = true
	om.recompute()
}

func (om *OrderedMap) recompute() {
	visibleKeys := []string{}
	for _, key := range om.keys {
		if om.hiddenKeys[key] {
			continue
		}
		visibleKeys = append(visibleKeys, key)
	}
	om.visibleKeys = visibleKeys
}

// Keys lists visible keys in insertion order.
func (om *OrderedMap) Keys() []string {
	return om.visibleKeys
}

// AllKeys lists every key, hidden ones included, in insertion order.
func (om *OrderedMap) AllKeys() []string {
	return om.keys
}

func removeKey(keys []string, key string) []string {
	out := keys[:0]
	for _, k := range keys {
		if k != key {
			out = append(out, k)
		}
	}
	return out
}
