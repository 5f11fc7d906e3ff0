package tiledb

import (
	"fmt"
	"path"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	"github.com/batchatco/go-native-mdim/internal/engine"
	"github.com/batchatco/go-native-mdim/mdim/api"
)

// options holds every recognized key. Each call only looks at the ones
// that apply to it.
type options struct {
	BlockSize        []uint64 `mapstructure:"BLOCKSIZE"`
	Compression      string   `mapstructure:"COMPRESSION"`
	CompressionLevel int      `mapstructure:"COMPRESSION_LEVEL"`
	URI              string   `mapstructure:"URI"`
	Timestamp        uint64   `mapstructure:"TIMESTAMP"`
	Stats            bool     `mapstructure:"STATS"`
	InMemory         bool     `mapstructure:"IN_MEMORY"`
	ShowAll          bool     `mapstructure:"SHOW_ALL"`
}

var uint64SliceType = reflect.TypeOf([]uint64(nil))

// optionHook turns option strings into the field types. Booleans take
// YES/NO and ON/OFF, BLOCKSIZE is a comma-separated list.
func optionHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	switch {
	case to == uint64SliceType:
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		ints, err := cast.ToIntSliceE(parts)
		if err != nil {
			return nil, fmt.Errorf("%q is not a list of integers", s)
		}
		ret := make([]uint64, len(ints))
		for i, v := range ints {
			if v <= 0 {
				return nil, fmt.Errorf("%q: block sizes must be positive", s)
			}
			ret[i] = uint64(v)
		}
		return ret, nil
	case to.Kind() == reflect.Bool:
		return api.ParseBool(s)
	case to.Kind() == reflect.Uint64:
		v, err := cast.ToInt64E(s)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%q is not a non-negative integer", s)
		}
		return uint64(v), nil
	case to.Kind() == reflect.Int:
		v, err := cast.ToIntE(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", s)
		}
		return v, nil
	}
	return data, nil
}

// decodeOptions decodes opts. Unknown keys are logged and ignored.
func decodeOptions(opts api.Options) (*options, error) {
	var o options
	if len(opts) == 0 {
		return &o, nil
	}
	input := make(map[string]interface{}, len(opts))
	for k, v := range opts {
		input[strings.ToUpper(k)] = v
	}
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(optionHook),
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           &o,
	})
	if err != nil {
		return nil, fail(err)
	}
	if err := dec.Decode(input); err != nil {
		return nil, failf(api.ErrInvalidArgument, "options: %v", err)
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		logger.Warn("ignoring unknown options ", md.Unused)
	}
	return &o, nil
}

// showAll only reads SHOW_ALL; listing calls cannot fail.
func showAll(opts api.Options) bool {
	b, err := opts.Bool(api.OptShowAll, false)
	if err != nil {
		logger.Warn(err)
	}
	return b
}

func (o *options) compression() (string, error) {
	switch strings.ToUpper(o.Compression) {
	case "", "NONE":
		return engine.CompressionNone, nil
	case "GZIP":
		return engine.CompressionGzip, nil
	case "ZSTD":
		return engine.CompressionZstd, nil
	}
	return "", failf(api.ErrInvalidArgument, "COMPRESSION=%s", o.Compression)
}

// compressionLevel checks COMPRESSION_LEVEL against the filter comp. 0
// leaves the filter at its default.
func (o *options) compressionLevel(comp string) (int, error) {
	max := 0
	switch comp {
	case engine.CompressionGzip:
		max = engine.MaxGzipLevel
	case engine.CompressionZstd:
		max = engine.MaxZstdLevel
	}
	if o.CompressionLevel < 0 || o.CompressionLevel > max {
		return 0, failf(api.ErrInvalidArgument, "COMPRESSION_LEVEL=%d with COMPRESSION=%s",
			o.CompressionLevel, o.Compression)
	}
	return o.CompressionLevel, nil
}

// location checks a URI option: a relative path that stays below the
// group.
func (o *options) location() (string, error) {
	if o.URI == "" {
		return "", nil
	}
	p := path.Clean(o.URI)
	if path.IsAbs(p) || p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", failf(api.ErrInvalidArgument, "URI=%s must stay below its group", o.URI)
	}
	return p, nil
}

// defaultBlockSize is min(size, 256) along the last two dimensions and 1
// along the others.
func defaultBlockSize(shape []uint64) []uint64 {
	bs := make([]uint64, len(shape))
	for i, s := range shape {
		bs[i] = 1
		if i >= len(shape)-2 {
			bs[i] = min(s, defaultBlock)
		}
	}
	return bs
}

func (o *options) blockSize(shape []uint64) ([]uint64, error) {
	if o.BlockSize == nil {
		return defaultBlockSize(shape), nil
	}
	if len(o.BlockSize) != len(shape) {
		return nil, failf(api.ErrInvalidArgument, "BLOCKSIZE has %d values for %d dimensions",
			len(o.BlockSize), len(shape))
	}
	for i, b := range o.BlockSize {
		if b > shape[i] {
			return nil, failf(api.ErrInvalidArgument, "BLOCKSIZE %d exceeds dimension size %d",
				b, shape[i])
		}
	}
	return o.BlockSize, nil
}
