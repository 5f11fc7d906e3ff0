package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/batchatco/go-native-mdim/mdim/api"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	return NewContextWithStore("test", NewMemoryStore())
}

func testSchema(filter string) *Schema {
	return &Schema{
		Dimensions: []DimensionSchema{
			{Name: "y", Type: DimensionUInt64, Lo: 0, Hi: 4, Extent: 2},
			{Name: "x", Type: DimensionUInt64, Lo: 0, Hi: 6, Extent: 3},
		},
		Attributes: []AttributeSchema{
			{Name: "values", Type: "Int16", CellValNum: 1},
		},
		Compression: filter,
	}
}

func int16s(t *testing.T, raw []byte) []int16 {
	t.Helper()
	v, err := api.Values[int16](api.Buffer{Type: api.NewNumeric(api.Int16), Raw: raw})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func writeRegion(t *testing.T, ctx *Context, ts uint64, lo, count []uint64, vals []int16) {
	t.Helper()
	a, err := OpenArray(ctx, "arr", ModeWrite, ts)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if err := a.WriteRegion("values", lo, count, api.BufferOf(vals).Raw); err != nil {
		t.Fatal(err)
	}
}

func readRegion(t *testing.T, ctx *Context, ts uint64, lo, count []uint64) []int16 {
	t.Helper()
	a, err := OpenArray(ctx, "arr", ModeRead, ts)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	dst := make([]byte, api.ElementCount(count)*2)
	if err := a.ReadRegion("values", lo, count, dst); err != nil {
		t.Fatal(err)
	}
	return int16s(t, dst)
}

func TestRegionRoundTrip(t *testing.T) {
	for _, filter := range []string{CompressionNone, CompressionGzip, CompressionZstd} {
		t.Run("filter="+filter, func(t *testing.T) {
			ctx := newTestContext(t)
			if err := CreateArray(ctx, "arr", testSchema(filter)); err != nil {
				t.Fatal(err)
			}
			// a box straddling four tiles
			writeRegion(t, ctx, 0, []uint64{1, 2}, []uint64{2, 3}, []int16{1, 2, 3, 4, 5, 6})
			got := readRegion(t, ctx, 0, []uint64{0, 1}, []uint64{4, 5})
			want := []int16{
				0, 0, 0, 0, 0,
				0, 1, 2, 3, 0,
				0, 4, 5, 6, 0,
				0, 0, 0, 0, 0,
			}
			if !reflect.DeepEqual(got, want) {
				t.Error("got", got, "want", want)
			}
		})
	}
}

func TestDuplicateCreate(t *testing.T) {
	ctx := newTestContext(t)
	if err := CreateArray(ctx, "arr", testSchema("")); err != nil {
		t.Fatal(err)
	}
	if err := CreateArray(ctx, "arr", testSchema("")); !errors.Is(err, ErrExists) {
		t.Error("array over array:", err)
	}
	if err := CreateGroup(ctx, "arr"); !errors.Is(err, ErrExists) {
		t.Error("group over array:", err)
	}
}

func TestSchemaValidation(t *testing.T) {
	ctx := newTestContext(t)
	bad := testSchema("lz4")
	if err := CreateArray(ctx, "a", bad); !errors.Is(err, ErrUnsupported) {
		t.Error("compression:", err)
	}
	bad = testSchema("")
	bad.Dimensions[0].Extent = 9
	if err := CreateArray(ctx, "a", bad); !errors.Is(err, ErrInvalid) {
		t.Error("extent:", err)
	}
	bad = testSchema("")
	bad.Dimensions[0].Type = "INT32"
	if err := CreateArray(ctx, "a", bad); !errors.Is(err, ErrUnsupported) {
		t.Error("dimension type:", err)
	}
	bad = testSchema("")
	bad.Dimensions = nil
	if err := CreateArray(ctx, "a", bad); !errors.Is(err, ErrUnsupported) {
		t.Error("scalar:", err)
	}
	bad = testSchema("")
	bad.Attributes[0].Fill = []byte{1}
	if err := CreateArray(ctx, "a", bad); !errors.Is(err, ErrInvalid) {
		t.Error("fill:", err)
	}
	for _, level := range []struct {
		filter string
		level  int
	}{
		{CompressionNone, 1},
		{CompressionGzip, MaxGzipLevel + 1},
		{CompressionZstd, MaxZstdLevel + 1},
		{CompressionZstd, -1},
	} {
		bad = testSchema(level.filter)
		bad.CompressionLevel = level.level
		if err := CreateArray(ctx, "a", bad); !errors.Is(err, ErrInvalid) {
			t.Error("level", level, err)
		}
	}
}

// TestCompressionLevel stores the same tile at two levels of each filter.
func TestCompressionLevel(t *testing.T) {
	schema := func(filter string, level int) *Schema {
		return &Schema{
			Dimensions: []DimensionSchema{
				{Name: "x", Type: DimensionUInt64, Lo: 0, Hi: 32767, Extent: 32768},
			},
			Attributes:       []AttributeSchema{{Name: "values", Type: "Int16", CellValNum: 1}},
			Compression:      filter,
			CompressionLevel: level,
		}
	}
	vals := make([]int16, 32768)
	for i := range vals {
		vals[i] = int16((i*7919)%251 ^ (i >> 6))
	}
	for _, test := range []struct {
		filter    string
		low, high int
	}{
		{CompressionGzip, 1, MaxGzipLevel},
		{CompressionZstd, 1, 19},
	} {
		store := NewMemoryStore()
		ctx := NewContextWithStore("test", store)
		sizes := map[int]int{}
		for _, level := range []int{test.low, test.high} {
			name := fmt.Sprintf("arr%d", level)
			if err := CreateArray(ctx, name, schema(test.filter, level)); err != nil {
				t.Fatal(err)
			}
			a, err := OpenArray(ctx, name, ModeWrite, 0)
			if err != nil {
				t.Fatal(err)
			}
			if err := a.WriteRegion("values", []uint64{0}, []uint64{32768}, api.BufferOf(vals).Raw); err != nil {
				t.Fatal(err)
			}
			a.Close()

			keys, err := store.List(Join(name, tilesDir))
			if err != nil || len(keys) != 1 {
				t.Fatal("tiles", keys, err)
			}
			r, err := store.Get(keys[0])
			if err != nil {
				t.Fatal(err)
			}
			data, err := io.ReadAll(r)
			r.Close()
			if err != nil {
				t.Fatal(err)
			}
			sizes[level] = len(data)

			a, err = OpenArray(ctx, name, ModeRead, 0)
			if err != nil {
				t.Fatal(err)
			}
			got := make([]byte, len(vals)*2)
			if err := a.ReadRegion("values", []uint64{0}, []uint64{32768}, got); err != nil {
				t.Fatal(err)
			}
			a.Close()
			if !bytes.Equal(got, api.BufferOf(vals).Raw) {
				t.Errorf("%s level %d: data changed", test.filter, level)
			}
		}
		if sizes[test.low] == sizes[test.high] {
			t.Errorf("%s: levels %d and %d both stored %d bytes",
				test.filter, test.low, test.high, sizes[test.low])
		}
	}
}

func TestFillAndEvolve(t *testing.T) {
	ctx := newTestContext(t)
	s := testSchema("")
	s.Attributes[0].Fill = api.BufferOf([]int16{-1}).Raw
	if err := CreateArray(ctx, "arr", s); err != nil {
		t.Fatal(err)
	}
	got := readRegion(t, ctx, 0, []uint64{4, 5}, []uint64{1, 2})
	if !reflect.DeepEqual(got, []int16{-1, -1}) {
		t.Error("fill", got)
	}
	if err := EvolveFill(ctx, "arr", "values", api.BufferOf([]int16{7}).Raw); err != nil {
		t.Fatal(err)
	}
	got = readRegion(t, ctx, 0, []uint64{0, 0}, []uint64{1, 1})
	if !reflect.DeepEqual(got, []int16{7}) {
		t.Error("evolved fill", got)
	}
	if err := EvolveFill(ctx, "arr", "nope", nil); !errors.Is(err, ErrNotFound) {
		t.Error("unknown attribute:", err)
	}
}

func TestTimestamps(t *testing.T) {
	ctx := newTestContext(t)
	if err := CreateArray(ctx, "arr", testSchema("")); err != nil {
		t.Fatal(err)
	}
	writeRegion(t, ctx, 10, []uint64{0, 0}, []uint64{1, 2}, []int16{1, 1})
	writeRegion(t, ctx, 20, []uint64{0, 1}, []uint64{1, 1}, []int16{2})
	cases := []struct {
		ts   uint64
		want []int16
	}{
		{5, []int16{0, 0}},
		{10, []int16{1, 1}},
		{15, []int16{1, 1}},
		{20, []int16{1, 2}},
		{0, []int16{1, 2}},
	}
	for _, c := range cases {
		got := readRegion(t, ctx, c.ts, []uint64{0, 0}, []uint64{1, 2})
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("at %d: got %v want %v", c.ts, got, c.want)
		}
	}
	// a second write at a pinned timestamp merges into its fragment
	writeRegion(t, ctx, 20, []uint64{4, 6}, []uint64{1, 1}, []int16{3})
	a, _ := OpenArray(ctx, "arr", ModeRead, 0)
	ts, err := a.FragmentTimestamps()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ts, []uint64{10, 20}) {
		t.Error("fragments", ts)
	}
	got := readRegion(t, ctx, 0, []uint64{0, 0}, []uint64{1, 2})
	if !reflect.DeepEqual(got, []int16{1, 2}) {
		t.Error("merge lost data", got)
	}
}

func TestModes(t *testing.T) {
	ctx := newTestContext(t)
	if err := CreateArray(ctx, "arr", testSchema("")); err != nil {
		t.Fatal(err)
	}
	a, err := OpenArray(ctx, "arr", ModeRead, 0)
	if err != nil {
		t.Fatal(err)
	}
	raw := api.BufferOf([]int16{1}).Raw
	if err := a.WriteRegion("values", []uint64{0, 0}, []uint64{1, 1}, raw); !errors.Is(err, ErrMode) {
		t.Error("write in read mode:", err)
	}
	if err := a.PutMetadata(Metadata{Key: "k", Type: StringType, Count: 1, Strings: []string{"v"}}); !errors.Is(err, ErrMode) {
		t.Error("metadata in read mode:", err)
	}
	if err := a.Reopen(ModeWrite); err != nil {
		t.Fatal(err)
	}
	if err := a.WriteRegion("values", []uint64{0, 0}, []uint64{1, 1}, raw); err != nil {
		t.Fatal(err)
	}
	if err := a.ReadRegion("values", []uint64{0, 0}, []uint64{1, 1}, raw); !errors.Is(err, ErrMode) {
		t.Error("read in write mode:", err)
	}
	a.Close()
	if _, err := a.Metadata(); !errors.Is(err, ErrClosed) {
		t.Error("closed handle:", err)
	}
	if _, err := OpenArray(ctx, "missing", ModeRead, 0); !errors.Is(err, ErrNotFound) {
		t.Error("missing array:", err)
	}
}

func TestRegionErrors(t *testing.T) {
	ctx := newTestContext(t)
	CreateArray(ctx, "arr", testSchema(""))
	a, _ := OpenArray(ctx, "arr", ModeRead, 0)
	cases := []struct {
		lo, count []uint64
		n         int
	}{
		{[]uint64{0}, []uint64{1}, 2},
		{[]uint64{4, 0}, []uint64{2, 1}, 4},
		{[]uint64{0, 0}, []uint64{0, 1}, 0},
		{[]uint64{0, 0}, []uint64{1, 1}, 3},
	}
	for _, c := range cases {
		if err := a.ReadRegion("values", c.lo, c.count, make([]byte, c.n)); !errors.Is(err, ErrInvalid) {
			t.Error(c.lo, c.count, err)
		}
	}
	if err := a.ReadRegion("nope", []uint64{0, 0}, []uint64{1, 1}, make([]byte, 2)); !errors.Is(err, ErrNotFound) {
		t.Error("unknown attribute:", err)
	}
}

func TestCorruptTile(t *testing.T) {
	store := NewMemoryStore()
	ctx := NewContextWithStore("test", store)
	if err := CreateArray(ctx, "arr", testSchema(CompressionGzip)); err != nil {
		t.Fatal(err)
	}
	writeRegion(t, ctx, 0, []uint64{0, 0}, []uint64{1, 1}, []int16{5})
	keys, _ := store.List(Join("arr", tilesDir))
	if len(keys) != 1 {
		t.Fatal("tiles", keys)
	}
	store.Put(keys[0], bytes.NewReader([]byte("garbage")))
	a, _ := OpenArray(ctx, "arr", ModeRead, 0)
	err := a.ReadRegion("values", []uint64{0, 0}, []uint64{1, 1}, make([]byte, 2))
	if !errors.Is(err, ErrCorrupt) || !strings.Contains(err.Error(), "digest") {
		t.Error("corruption not detected:", err)
	}
}

func TestComplexCells(t *testing.T) {
	ctx := newTestContext(t)
	s := &Schema{
		Dimensions: []DimensionSchema{{Name: "i", Type: DimensionUInt64, Hi: 2, Extent: 2}},
		Attributes: []AttributeSchema{{Name: "values", Type: "Float64", CellValNum: 2}},
	}
	if err := CreateArray(ctx, "c", s); err != nil {
		t.Fatal(err)
	}
	want := []complex128{1 + 2i, 3 - 4i, 5}
	w, _ := OpenArray(ctx, "c", ModeWrite, 0)
	if err := w.WriteRegion("values", []uint64{0}, []uint64{3}, api.BufferOf(want).Raw); err != nil {
		t.Fatal(err)
	}
	r, _ := OpenArray(ctx, "c", ModeRead, 0)
	buf := api.NewBuffer(api.NewNumeric(api.CFloat64), 3)
	if err := r.ReadRegion("values", []uint64{0}, []uint64{3}, buf.Raw); err != nil {
		t.Fatal(err)
	}
	got, _ := api.Values[complex128](buf)
	if !reflect.DeepEqual(got, want) {
		t.Error("got", got)
	}
}

func TestStats(t *testing.T) {
	ctx := newTestContext(t)
	CreateArray(ctx, "arr", testSchema(""))
	ctx.Stats().Enable(true)
	writeRegion(t, ctx, 0, []uint64{0, 0}, []uint64{2, 3}, []int16{1, 2, 3, 4, 5, 6})
	readRegion(t, ctx, 0, []uint64{0, 0}, []uint64{2, 6})
	lines, err := ctx.Stats().Dump()
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(lines, "\n")
	for _, want := range []string{
		`mdim_engine_tiles_total{op="write"} 1`,
		`mdim_engine_tiles_total{op="read"} 1`,
		`mdim_engine_tiles_total{op="fill"} 2`,
		`mdim_engine_duration_seconds{op="read"} count=1`,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in\n%s", want, joined)
		}
	}
}
