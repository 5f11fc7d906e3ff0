// Package tiledb maps the multidimensional model onto the dense-array
// storage engine.
//
// A group is an engine group. An array is one engine dense array holding a
// single value attribute, with its CRS, unit, scale and offset in reserved
// metadata keys. Arrays are created lazily: the schema is only
// committed on Finalize, on the first value I/O, when a no-data value is
// set, or when the array or its group is closed. Indexing variables that
// are strictly monotonic are written as label sub-arrays next to the array.
package tiledb

import (
	"errors"
	"fmt"

	"github.com/batchatco/go-native-mdim/internal"
	"github.com/batchatco/go-native-mdim/internal/engine"
	"github.com/batchatco/go-native-mdim/mdim/api"
)

var logger = internal.NewLogger("tiledb")

// SetLogLevel sets the logging level to the given level, and returns
// the old level. The lowest level is 0 (fatal errors only) and the highest
// level is 3 (errors, warnings and informational messages).
func SetLogLevel(level int) int {
	return logger.SetLogLevelInt(level)
}

// Reserved metadata keys.
const (
	KeyCRS          = "_CRS"
	KeyUnit         = "_UNIT"
	KeyScale        = "_SCALE"
	KeyOffset       = "_OFFSET"
	KeyDimType      = "_DIM_TYPE"
	KeyDimDirection = "_DIM_DIRECTION"
	KeyLegacyRaster = "_LEGACY_RASTER"
	KeyLabelOrder   = "_LABEL_ORDER"
	KeyLabelName    = "_LABEL_NAME"
)

// Attribute names with a meaning during open.
const (
	AttrCoordinate      = "_COORDINATE"
	AttrGridMapping     = "grid_mapping"
	AttrGridMappingName = "grid_mapping_name"
	AttrCRSWKT          = "crs_wkt"
	AttrSpatialRef      = "spatial_ref"
)

const (
	valuesAttr = "__values"
	labelsDir  = "__labels"

	// LabelIncreasing and LabelDecreasing tag label sub-arrays.
	LabelIncreasing = "increasing"
	LabelDecreasing = "decreasing"

	defaultBlock = 256
)

var reservedKeys = map[string]bool{
	KeyCRS:          true,
	KeyUnit:         true,
	KeyScale:        true,
	KeyOffset:       true,
	KeyDimType:      true,
	KeyDimDirection: true,
	KeyLegacyRaster: true,
	KeyLabelOrder:   true,
	KeyLabelName:    true,
}

// IsReservedKey reports whether key is kept for the adapter itself.
func IsReservedKey(key string) bool {
	return reservedKeys[key]
}

// convert maps engine and store errors onto the api taxonomy.
func convert(err error) error {
	if err == nil {
		return nil
	}
	var kind error
	switch {
	case errors.Is(err, api.ErrNotFound), errors.Is(err, api.ErrAlreadyExists),
		errors.Is(err, api.ErrNotSupported), errors.Is(err, api.ErrInvalidArgument),
		errors.Is(err, api.ErrIOFailure):
		return err
	case errors.Is(err, engine.ErrNotFound):
		kind = api.ErrNotFound
	case errors.Is(err, engine.ErrExists):
		kind = api.ErrAlreadyExists
	case errors.Is(err, engine.ErrUnsupported):
		kind = api.ErrNotSupported
	case errors.Is(err, engine.ErrInvalid):
		kind = api.ErrInvalidArgument
	default:
		kind = api.ErrIOFailure
	}
	return fmt.Errorf("%w: %v", kind, err)
}

// fail converts err, logs it and hands it back.
func fail(err error) error {
	err = convert(err)
	logger.Error(err)
	return err
}

func failf(kind error, format string, v ...any) error {
	return fail(fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, v...)))
}
