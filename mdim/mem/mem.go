// Package mem implements the multidimensional model entirely in memory.
//
// Groups, arrays and dimensions live in an arena and are addressed by
// stable handles. A group owns the handles of the children it created;
// back references (dimension to group, dimension to the arrays using it)
// are plain handles that are checked each time they are used, so nothing
// is kept alive by them and deleted objects report ErrNotFound.
package mem

import (
	"fmt"

	"github.com/batchatco/go-native-mdim/internal"
	"github.com/batchatco/go-native-mdim/mdim/api"
)

var logger = internal.NewLogger("mem")

// SetLogLevel sets the logging level to the given level, and returns
// the old level. The lowest level is 0 (fatal errors only) and the highest
// level is 3 (errors, warnings and informational messages).
func SetLogLevel(level int) int {
	return logger.SetLogLevelInt(level)
}

// fail logs err and hands it back, so every failure leaves a diagnostic.
func fail(err error) error {
	logger.Error(err)
	return err
}

func failf(kind error, format string, v ...any) error {
	return fail(fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, v...)))
}

func checkName(what, name string) error {
	if !internal.IsValidName(name) {
		return failf(api.ErrInvalidArgument, "invalid %s name %q", what, name)
	}
	return nil
}

func checkDataType(dt api.ExtendedDataType) error {
	if !dt.IsValid() {
		return failf(api.ErrNotSupported, "data type %v", dt)
	}
	return nil
}

// SameDimension reports whether a and b denote the same axis: the same
// object, or the same full name and size.
func SameDimension(a, b api.Dimension) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	return a.FullName() == b.FullName() && a.Size() == b.Size()
}
