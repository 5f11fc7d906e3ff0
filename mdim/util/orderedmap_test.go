package util

import (
	"reflect"
	"testing"
)

func TestNil(t *testing.T) {
	_, err := NewOrderedMap(nil, nil)
	if err != nil {
		t.Error(err)
		return
	}
	_, err = NewOrderedMap(nil, map[string]interface{}{})
	if err != nil {
		t.Error(err)
		return
	}
	_, err = NewOrderedMap([]string{}, nil)
	if err != nil {
		t.Error(err)
		return
	}
}

func TestMismatchedLength(t *testing.T) {
	_, err := NewOrderedMap([]string{"a", "b"},
		map[string]interface{}{"a": nil})
	if err != ErrorKeysDontMatchValues {
		t.Error("Should have returned an error")
		return
	}
}

func TestMismatchedKeys(t *testing.T) {
	_, err := NewOrderedMap([]string{"a", "b"},
		map[string]interface{}{"a": nil, "c": nil})
	if err != ErrorKeysDontMatchValues {
		t.Error("Should have returned an error")
		return
	}
}

func TestOrder(t *testing.T) {
	myMap := map[string]interface{}{"a": nil, "b": nil, "c": nil}
	om, err := NewOrderedMap([]string{"c", "b", "a"}, myMap)
	if err != nil {
		t.Error(err)
		return
	}
	keys := om.Keys()
	if keys[0] != "c" || keys[1] != "b" || keys[2] != "a" {
		t.Error("Incorrect key order:", keys)
	}
}

func TestAddReplace(t *testing.T) {
	om, _ := NewOrderedMap(nil, nil)
	om.Add("a", 1)
	om.Add("b", 2)
	om.Add("a", 3)
	if !reflect.DeepEqual(om.Keys(), []string{"a", "b"}) {
		t.Error("replacing a value should keep its position", om.Keys())
	}
	val, has := om.Get("a")
	if !has || val.(int) != 3 {
		t.Error("Did not get expected value back", val)
	}
}

func TestHidden(t *testing.T) {
	om, err := NewOrderedMap([]string{"a", "b"},
		map[string]interface{}{"a": nil, "b": nil})
	if err != nil {
		t.Error(err)
		return
	}
	om.Hide("a")
	keys := om.Keys()
	if len(keys) != 1 || keys[0] != "b" {
		t.Error("Hide() failed")
		return
	}
	om.Hide("c")
	om.Add("c", 1)
	if !reflect.DeepEqual(om.Keys(), []string{"b"}) {
		t.Error("hidden key leaked", om.Keys())
	}
	if !reflect.DeepEqual(om.AllKeys(), []string{"a", "b", "c"}) {
		t.Error("AllKeys() failed", om.AllKeys())
	}
}

func TestDeleteRename(t *testing.T) {
	om, _ := NewOrderedMap(nil, nil)
	om.Add("a", 1)
	om.Add("b", 2)
	om.Add("c", 3)
	if !om.Delete("b") {
		t.Fatal("Delete should report the key")
	}
	if om.Delete("b") {
		t.Fatal("second Delete should fail")
	}
	if err := om.Rename("a", "c"); err != ErrorKeyExists {
		t.Error("expected ErrorKeyExists, got", err)
	}
	if err := om.Rename("x", "y"); err != ErrorKeyMissing {
		t.Error("expected ErrorKeyMissing, got", err)
	}
	if err := om.Rename("a", "z"); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(om.Keys(), []string{"z", "c"}) {
		t.Error("unexpected keys", om.Keys())
	}
	val, _ := om.Get("z")
	if val.(int) != 1 {
		t.Error("value lost in rename")
	}
}
