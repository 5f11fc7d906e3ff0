package mdim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-mdim/internal/engine"
	"github.com/batchatco/go-native-mdim/mdim/api"
)

func TestOpenMissing(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "nothing")
	if _, err := Open(missing, nil); !errors.Is(err, api.ErrNotFound) {
		t.Error("got", err)
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Error("Open created", missing)
	}
}

func TestOpenUnknown(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir, nil); !errors.Is(err, ErrUnknown) {
		t.Error("empty directory:", err)
	}
	fname := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(fname, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(fname, nil); !errors.Is(err, ErrUnknown) {
		t.Error("plain file:", err)
	}
}

func TestCreateOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	g, err := Create(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	dim, err := g.CreateDimension("x", "", "", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	a, err := g.CreateMDArray("v", []api.Dimension{dim}, api.NewNumeric(api.Int16), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := api.WriteAll(a, api.BufferOf([]int16{1, 2, 3, 4, 5})); err != nil {
		t.Fatal(err)
	}
	g.Close()

	g, err = Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	a, err = g.GetMDArray("v", nil)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := api.ReadAll(a, api.NewNumeric(api.Int16))
	if err != nil {
		t.Fatal(err)
	}
	vals, err := api.Values[int16](buf)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vals {
		if v != int16(i+1) {
			t.Errorf("v[%d] = %d", i, v)
		}
	}
}

func TestMemoryURI(t *testing.T) {
	uri := engine.MemoryScheme + "TestMemoryURI"
	defer engine.DropMemoryStore("TestMemoryURI")
	if _, err := Open(uri, nil); !errors.Is(err, ErrUnknown) {
		t.Error("before create:", err)
	}
	g, err := Create(uri, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.CreateGroup("sub", nil); err != nil {
		t.Fatal(err)
	}
	g.Close()
	g, err = Open(uri, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	if got := g.ListGroups(nil); len(got) != 1 || got[0] != "sub" {
		t.Error("got", got)
	}
}

func TestNewMemory(t *testing.T) {
	g := NewMemory()
	defer g.Close()
	if g.Name() != "/" {
		t.Error("name", g.Name())
	}
	if _, err := g.CreateGroup("a", nil); err != nil {
		t.Error(err)
	}
}

func TestSetLogLevel(t *testing.T) {
	old := SetLogLevel(0)
	if got := SetLogLevel(old); got != 0 {
		t.Error("got", got)
	}
}
