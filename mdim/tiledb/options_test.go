package tiledb

import (
	"errors"
	"reflect"
	"testing"

	"github.com/batchatco/go-native-mdim/internal/engine"
	"github.com/batchatco/go-native-mdim/mdim/api"
)

func TestDecodeOptions(t *testing.T) {
	o, err := decodeOptions(api.Options{
		"stats":             "on",
		"In_Memory":         "no",
		"COMPRESSION_LEVEL": "9",
		"TIMESTAMP":         "1234",
		"BLOCKSIZE":         "4,8",
		"FROBNICATE":        "yes",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := &options{
		BlockSize:        []uint64{4, 8},
		CompressionLevel: 9,
		Timestamp:        1234,
		Stats:            true,
	}
	if !reflect.DeepEqual(o, want) {
		t.Errorf("got %+v", o)
	}

	bad := []api.Options{
		{"STATS": "maybe"},
		{"TIMESTAMP": "soon"},
		{"TIMESTAMP": "-5"},
		{"COMPRESSION_LEVEL": "high"},
		{"BLOCKSIZE": "1,,2"},
	}
	for _, opts := range bad {
		if _, err := decodeOptions(opts); !errors.Is(err, api.ErrInvalidArgument) {
			t.Error(opts, err)
		}
	}
}

func TestCompressionNames(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  error
	}{
		{"", engine.CompressionNone, nil},
		{"none", engine.CompressionNone, nil},
		{"GZIP", engine.CompressionGzip, nil},
		{"Zstd", engine.CompressionZstd, nil},
		{"LZ4", "", api.ErrInvalidArgument},
	}
	for _, test := range tests {
		got, err := (&options{Compression: test.in}).compression()
		if !errors.Is(err, test.err) || got != test.want {
			t.Errorf("%q: got %q, %v", test.in, got, err)
		}
	}
}

func TestCompressionLevel(t *testing.T) {
	tests := []struct {
		comp  string
		level int
		ok    bool
	}{
		{"NONE", 0, true},
		{"NONE", 3, false},
		{"GZIP", 0, true},
		{"GZIP", 9, true},
		{"GZIP", 10, false},
		{"GZIP", -1, false},
		{"ZSTD", 1, true},
		{"ZSTD", 22, true},
		{"ZSTD", 23, false},
	}
	for _, test := range tests {
		o := &options{Compression: test.comp, CompressionLevel: test.level}
		comp, err := o.compression()
		if err != nil {
			t.Fatal(err)
		}
		got, err := o.compressionLevel(comp)
		if test.ok {
			if err != nil || got != test.level {
				t.Errorf("%s/%d: got %d, %v", test.comp, test.level, got, err)
			}
		} else if !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("%s/%d: got %v", test.comp, test.level, err)
		}
	}
}

func TestLocation(t *testing.T) {
	tests := []struct {
		uri  string
		want string
		ok   bool
	}{
		{"", "", true},
		{"data", "data", true},
		{"data/./a/", "data/a", true},
		{"a/../b", "b", true},
		{"/abs", "", false},
		{"..", "", false},
		{"../up", "", false},
		{"a/../..", "", false},
		{".", "", false},
	}
	for _, test := range tests {
		got, err := (&options{URI: test.uri}).location()
		if (err == nil) != test.ok || got != test.want {
			t.Errorf("%q: got %q, %v", test.uri, got, err)
		}
	}
}

func TestDefaultBlockSize(t *testing.T) {
	tests := []struct {
		shape, want []uint64
	}{
		{[]uint64{1}, []uint64{1}},
		{[]uint64{300}, []uint64{256}},
		{[]uint64{1000, 10}, []uint64{256, 10}},
		{[]uint64{12, 300, 300}, []uint64{1, 256, 256}},
		{[]uint64{2, 3, 4, 5}, []uint64{1, 1, 4, 5}},
	}
	for _, test := range tests {
		if got := defaultBlockSize(test.shape); !reflect.DeepEqual(got, test.want) {
			t.Errorf("%v: got %v, want %v", test.shape, got, test.want)
		}
	}
}
