package strided

import (
	"errors"
	"reflect"
	"testing"

	"github.com/batchatco/go-native-mdim/mdim/api"
)

// iota64 returns a float64 storage buffer holding 0, 1, ... n-1.
func iota64(n int) api.Buffer {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i)
	}
	return api.BufferOf(vals)
}

func readFloat64s(t *testing.T, src api.Buffer, layout Layout, start, count []uint64,
	step, stride []int64, n int) []float64 {
	t.Helper()
	dst := api.NewBuffer(api.NewNumeric(api.Float64), n)
	if err := Read(src, layout, start, count, step, stride, dst); err != nil {
		t.Fatal(err)
	}
	got, err := api.Values[float64](dst)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestRowMajorStrides(t *testing.T) {
	got := RowMajorStrides([]uint64{5, 3, 4})
	if !reflect.DeepEqual(got, []int64{12, 4, 1}) {
		t.Error("wrong strides", got)
	}
	if len(RowMajorStrides(nil)) != 0 {
		t.Error("scalar should have no strides")
	}
}

func TestFullRead(t *testing.T) {
	src := iota64(12)
	layout := Layout{Shape: []uint64{3, 4}}
	got := readFloat64s(t, src, layout, []uint64{0, 0}, []uint64{3, 4}, nil, nil, 12)
	for i, v := range got {
		if v != float64(i) {
			t.Fatalf("cell %d: got %v", i, v)
		}
	}
}

func TestWindowRead(t *testing.T) {
	src := iota64(12)
	layout := Layout{Shape: []uint64{3, 4}}
	got := readFloat64s(t, src, layout, []uint64{1, 1}, []uint64{2, 2}, nil, nil, 4)
	want := []float64{5, 6, 9, 10}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestReversedStep(t *testing.T) {
	src := iota64(5)
	layout := Layout{Shape: []uint64{5}}
	got := readFloat64s(t, src, layout, []uint64{4}, []uint64{5}, []int64{-1}, nil, 5)
	want := []float64{4, 3, 2, 1, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSubsampled(t *testing.T) {
	src := iota64(20)
	layout := Layout{Shape: []uint64{4, 5}}
	got := readFloat64s(t, src, layout, []uint64{0, 0}, []uint64{2, 3}, []int64{2, 2}, nil, 6)
	want := []float64{0, 2, 4, 10, 12, 14}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBufferStrideIntoLargerTensor(t *testing.T) {
	src := iota64(4)
	layout := Layout{Shape: []uint64{2, 2}}
	// write the 2x2 array into the lower right corner of a 3x3 buffer
	dst := api.NewBuffer(api.NewNumeric(api.Float64), 9)
	sub := api.Buffer{Type: dst.Type, Raw: dst.Raw[4*8:]}
	if err := Read(src, layout, []uint64{0, 0}, []uint64{2, 2}, nil, []int64{3, 1}, sub); err != nil {
		t.Fatal(err)
	}
	got, _ := api.Values[float64](dst)
	want := []float64{0, 0, 0, 0, 0, 1, 0, 2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTransposedBuffer(t *testing.T) {
	src := iota64(6)
	layout := Layout{Shape: []uint64{2, 3}}
	got := readFloat64s(t, src, layout, []uint64{0, 0}, []uint64{2, 3}, nil, []int64{1, 2}, 6)
	want := []float64{0, 3, 1, 4, 2, 5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNegativeBufferStride(t *testing.T) {
	src := iota64(3)
	layout := Layout{Shape: []uint64{3}}
	got := readFloat64s(t, src, layout, []uint64{0}, []uint64{3}, nil, []int64{-1}, 3)
	want := []float64{2, 1, 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRank4(t *testing.T) {
	shape := []uint64{2, 3, 4, 5}
	n := int(api.ElementCount(shape))
	src := iota64(n)
	layout := Layout{Shape: shape}
	start := []uint64{1, 2, 3, 4}
	count := []uint64{1, 2, 2, 3}
	step := []int64{1, -1, -2, -2}
	got := readFloat64s(t, src, layout, start, count, step, nil, 12)
	strides := RowMajorStrides(shape)
	k := 0
	for i1 := 0; i1 < 2; i1++ {
		for i2 := 0; i2 < 2; i2++ {
			for i3 := 0; i3 < 3; i3++ {
				off := int64(1)*strides[0] + int64(2-i1)*strides[1] +
					int64(3-2*i2)*strides[2] + int64(4-2*i3)*strides[3]
				if got[k] != float64(off) {
					t.Fatalf("cell %d: got %v, want %v", k, got[k], off)
				}
				k++
			}
		}
	}
}

func TestWrite(t *testing.T) {
	dst := api.NewBuffer(api.NewNumeric(api.Int32), 6)
	layout := Layout{Shape: []uint64{2, 3}}
	src := api.BufferOf([]float64{1.4, 1.6, -2.5})
	if err := Write(dst, layout, []uint64{1, 2}, []uint64{1, 3}, []int64{1, -1}, nil, src); err != nil {
		t.Fatal(err)
	}
	got, _ := api.Values[int32](dst)
	want := []int32{0, 0, 0, -3, 2, 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScalar(t *testing.T) {
	src := api.BufferOf([]int16{-7})
	dst := api.NewBuffer(api.NewNumeric(api.Float32), 1)
	if err := Read(src, Layout{}, nil, nil, nil, nil, dst); err != nil {
		t.Fatal(err)
	}
	got, _ := api.Values[float32](dst)
	if got[0] != -7 {
		t.Error("got", got)
	}
}

func TestClamping(t *testing.T) {
	src := api.BufferOf([]float64{-5, 300, 127.5, 2.5})
	layout := Layout{Shape: []uint64{4}}
	dst := api.NewBuffer(api.NewNumeric(api.UInt8), 4)
	if err := Read(src, layout, []uint64{0}, []uint64{4}, nil, nil, dst); err != nil {
		t.Fatal(err)
	}
	got, _ := api.Values[uint8](dst)
	want := []uint8{0, 255, 128, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	big := api.BufferOf([]uint64{1 << 63})
	i64 := api.NewBuffer(api.NewNumeric(api.Int64), 1)
	if err := Read(big, Layout{Shape: []uint64{1}}, []uint64{0}, []uint64{1}, nil, nil, i64); err != nil {
		t.Fatal(err)
	}
	gotI, _ := api.Values[int64](i64)
	if gotI[0] != 1<<63-1 {
		t.Error("uint64 overflow should clamp", gotI[0])
	}
}

func TestComplex(t *testing.T) {
	src := api.BufferOf([]complex128{complex(1, 2), complex(-3, 4)})
	layout := Layout{Shape: []uint64{2}}
	dst := api.NewBuffer(api.NewNumeric(api.CInt16), 2)
	if err := Read(src, layout, []uint64{0}, []uint64{2}, nil, nil, dst); err != nil {
		t.Fatal(err)
	}
	back := api.NewBuffer(api.NewNumeric(api.CFloat32), 2)
	if err := Read(dst, layout, []uint64{0}, []uint64{2}, nil, nil, back); err != nil {
		t.Fatal(err)
	}
	got, _ := api.Values[complex64](back)
	want := []complex64{complex(1, 2), complex(-3, 4)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	re := api.NewBuffer(api.NewNumeric(api.Float64), 2)
	if err := Read(src, layout, []uint64{0}, []uint64{2}, nil, nil, re); err != nil {
		t.Fatal(err)
	}
	gotRe, _ := api.Values[float64](re)
	if !reflect.DeepEqual(gotRe, []float64{1, -3}) {
		t.Error("complex to real should keep the real part", gotRe)
	}
}

func TestStrings(t *testing.T) {
	src := api.BufferOf([]int32{-1, 42})
	layout := Layout{Shape: []uint64{2}}
	dst := api.NewBuffer(api.NewString(0), 2)
	if err := Read(src, layout, []uint64{0}, []uint64{2}, nil, nil, dst); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(dst.Strings, []string{"-1", "42"}) {
		t.Error("got", dst.Strings)
	}

	strs := api.StringBuffer([]string{"1.5", "bogus", " 7 "})
	f := api.NewBuffer(api.NewNumeric(api.Float64), 3)
	if err := Read(strs, Layout{Shape: []uint64{3}}, []uint64{0}, []uint64{3}, nil, nil, f); err != nil {
		t.Fatal(err)
	}
	got, _ := api.Values[float64](f)
	if !reflect.DeepEqual(got, []float64{1.5, 0, 7}) {
		t.Error("got", got)
	}

	short := api.NewBuffer(api.NewString(2), 1)
	if err := Read(api.StringBuffer([]string{"abcdef"}), Layout{Shape: []uint64{1}},
		[]uint64{0}, []uint64{1}, nil, nil, short); err != nil {
		t.Fatal(err)
	}
	if short.Strings[0] != "ab" {
		t.Error("bounded string not truncated", short.Strings[0])
	}
}

func TestErrors(t *testing.T) {
	src := iota64(12)
	layout := Layout{Shape: []uint64{3, 4}}
	dst := api.NewBuffer(api.NewNumeric(api.Float64), 12)
	tests := []struct {
		name         string
		start, count []uint64
		step, stride []int64
		want         error
	}{
		{"rank", []uint64{0}, []uint64{3}, nil, nil, api.ErrInvalidArgument},
		{"past end", []uint64{0, 2}, []uint64{3, 3}, nil, nil, api.ErrInvalidArgument},
		{"start", []uint64{3, 0}, []uint64{1, 1}, nil, nil, api.ErrInvalidArgument},
		{"zero count", []uint64{0, 0}, []uint64{0, 1}, nil, nil, api.ErrInvalidArgument},
		{"zero step", []uint64{0, 0}, []uint64{1, 1}, []int64{0, 1}, nil, api.ErrInvalidArgument},
		{"backwards", []uint64{1, 0}, []uint64{3, 1}, []int64{-1, 1}, nil, api.ErrInvalidArgument},
		{"small buffer", []uint64{0, 0}, []uint64{3, 4}, nil, []int64{8, 1}, api.ErrInvalidArgument},
	}
	for _, tt := range tests {
		err := Read(src, layout, tt.start, tt.count, tt.step, tt.stride, dst)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}

	cplx := api.BufferOf([]complex64{1})
	err := Read(cplx, Layout{Shape: []uint64{1}}, []uint64{0}, []uint64{1}, nil, nil,
		api.NewBuffer(api.NewString(0), 1))
	if !errors.Is(err, api.ErrNotSupported) {
		t.Error("complex to string should not be supported", err)
	}
}

func TestConvertCell(t *testing.T) {
	dst := api.NewBuffer(api.NewNumeric(api.Int16), 1)
	if err := ConvertCell(api.BufferOf([]float64{-9999}), dst); err != nil {
		t.Fatal(err)
	}
	got, _ := api.Values[int16](dst)
	if got[0] != -9999 {
		t.Error("got", got)
	}
}
