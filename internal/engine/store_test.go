package engine

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func testStore(t *testing.T, s Store) {
	t.Helper()
	for _, k := range []string{"a/x", "a/b/y", "ab/z", "c"} {
		if err := s.Put(k, strings.NewReader(k)); err != nil {
			t.Fatal(err)
		}
	}
	r, err := s.Get("a/b/y")
	if err != nil {
		t.Fatal(err)
	}
	got, _ := io.ReadAll(r)
	r.Close()
	if string(got) != "a/b/y" {
		t.Error("got", string(got))
	}
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Error("missing key:", err)
	}
	if has, _ := s.Has("c"); !has {
		t.Error("Has(c) = false")
	}
	keys, err := s.List("a")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(keys, []string{"a/b/y", "a/x"}) {
		t.Error("list", keys)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatal(err)
	}
	keys, _ = s.List("")
	if !reflect.DeepEqual(keys, []string{"ab/z", "c"}) {
		t.Error("after delete", keys)
	}
	if err := s.Put("c", bytes.NewReader([]byte("new"))); err != nil {
		t.Fatal(err)
	}
	r, _ = s.Get("c")
	got, _ = io.ReadAll(r)
	r.Close()
	if string(got) != "new" {
		t.Error("overwrite", string(got))
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, s)
}

func TestSharedMemoryStore(t *testing.T) {
	defer DropMemoryStore("shared-test")
	s, err := OpenStore(MemoryScheme + "shared-test")
	if err != nil {
		t.Fatal(err)
	}
	s.Put("k", strings.NewReader("v"))
	again, _ := OpenStore(MemoryScheme + "shared-test")
	if has, _ := again.Has("k"); !has {
		t.Error("memory store not shared")
	}
	if _, err := OpenStore(MemoryScheme); !errors.Is(err, ErrInvalid) {
		t.Error("empty name:", err)
	}
}

func TestContextRefs(t *testing.T) {
	ctx := NewContextWithStore("test", NewMemoryStore())
	ctx.Retain()
	if ctx.Refs() != 2 {
		t.Fatal("refs", ctx.Refs())
	}
	ctx.Release()
	if err := CreateGroup(ctx, ""); err != nil {
		t.Fatal(err)
	}
	ctx.Release()
	if _, err := ObjectType(ctx, ""); !errors.Is(err, ErrClosed) {
		t.Error("closed context:", err)
	}
	// one release too many only warns
	ctx.Release()
}
