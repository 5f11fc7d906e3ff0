// Package engine is a small dense-array storage engine: groups and arrays
// addressed by path inside a key/value store, fixed schemas, tiled cell
// data kept in timestamped fragments, and typed metadata per object.
//
// Objects are laid out as
//
//	<path>/__group.json         group members
//	<path>/__schema.json        array schema
//	<path>/__meta.json          metadata of either kind
//	<path>/__fragments/<ts>.json  fragment manifest
//	<path>/__tiles/<ts>/<key>     tile data
package engine

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/batchatco/go-native-mdim/internal"
)

var logger = internal.NewLogger("engine")

// SetLogLevel sets the engine's logging level on the public 0..3 scale and
// returns the old one.
func SetLogLevel(level int) int {
	return logger.SetLogLevelInt(level)
}

var (
	ErrNotFound    = errors.New("engine: not found")
	ErrExists      = errors.New("engine: already exists")
	ErrUnsupported = errors.New("engine: not supported")
	ErrInvalid     = errors.New("engine: invalid argument")
	ErrCorrupt     = errors.New("engine: corrupt data")
	ErrMode        = errors.New("engine: wrong open mode")
	ErrClosed      = errors.New("engine: closed")
)

const (
	groupKey     = "__group.json"
	schemaKey    = "__schema.json"
	metaKey      = "__meta.json"
	fragmentsDir = "__fragments"
	tilesDir     = "__tiles"
)

func errorf(kind error, format string, v ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, v...))
}

// Mode is the mode an object handle is open in.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// ObjectKind tells what, if anything, lives at a path.
type ObjectKind string

const (
	KindNone  ObjectKind = ""
	KindGroup ObjectKind = "group"
	KindArray ObjectKind = "array"
)

// Join builds a store key from path elements; empty elements are skipped.
func Join(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		if e = strings.Trim(e, "/"); e != "" {
			parts = append(parts, e)
		}
	}
	return path.Join(parts...)
}

// ObjectType reports whether p holds a group, an array or nothing.
func ObjectType(ctx *Context, p string) (ObjectKind, error) {
	if err := ctx.check(); err != nil {
		return KindNone, err
	}
	has, err := ctx.store.Has(Join(p, schemaKey))
	if err != nil {
		return KindNone, err
	}
	if has {
		return KindArray, nil
	}
	has, err = ctx.store.Has(Join(p, groupKey))
	if err != nil {
		return KindNone, err
	}
	if has {
		return KindGroup, nil
	}
	return KindNone, nil
}

// Remove deletes the object at p and everything below it.
func Remove(ctx *Context, p string) error {
	if err := ctx.check(); err != nil {
		return err
	}
	kind, err := ObjectType(ctx, p)
	if err != nil {
		return err
	}
	if kind == KindNone {
		return errorf(ErrNotFound, "no object at %q", p)
	}
	return ctx.store.Delete(p)
}
