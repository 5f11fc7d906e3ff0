// Package mdim opens multidimensional stores. Persistent stores go through
// the tiledb backend, scratch data through the mem backend.
package mdim

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/batchatco/go-native-mdim/internal/engine"
	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/mem"
	"github.com/batchatco/go-native-mdim/mdim/tiledb"
)

var ErrUnknown = errors.New("not a multidimensional store")

// Open opens the store at uri. A uri of the form mem://name names a
// process-wide memory store created earlier with Create.
func Open(uri string, opts api.Options) (api.Group, error) {
	if err := getKind(uri); err != nil {
		return nil, err
	}
	g, err := tiledb.Open(uri, opts)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Create creates a new store at uri and returns its root group.
func Create(uri string, opts api.Options) (api.Group, error) {
	g, err := tiledb.Create(uri, opts)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// NewMemory returns the root group of a new scratch store. Nothing in it
// outlives the process.
func NewMemory() api.Group {
	return mem.NewRootGroup()
}

// SetLogLevel sets the level of every backend and returns the old level
// of the tiledb backend.
func SetLogLevel(level int) int {
	engine.SetLogLevel(level)
	mem.SetLogLevel(level)
	return tiledb.SetLogLevel(level)
}

// getKind checks that uri holds a root group without creating anything
// on disk.
func getKind(uri string) error {
	if !strings.HasPrefix(uri, engine.MemoryScheme) {
		fi, err := os.Stat(uri)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", api.ErrNotFound, uri)
			}
			return fmt.Errorf("%w: %v", api.ErrIOFailure, err)
		}
		if !fi.IsDir() {
			return fmt.Errorf("%w: %s", ErrUnknown, uri)
		}
	}
	ctx, err := engine.NewContext(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrIOFailure, err)
	}
	defer ctx.Release()
	kind, err := engine.ObjectType(ctx, "")
	if err != nil {
		return fmt.Errorf("%w: %v", api.ErrIOFailure, err)
	}
	if kind != engine.KindGroup {
		return fmt.Errorf("%w: %s", ErrUnknown, uri)
	}
	return nil
}
