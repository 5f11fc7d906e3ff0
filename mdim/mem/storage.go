package mem

import (
	"math"

	"github.com/batchatco/go-native-mdim/mdim/api"
	"github.com/batchatco/go-native-mdim/mdim/strided"
)

// storage is a row-major block of cells. A borrowed block wraps a caller
// buffer and cannot be reallocated.
type storage struct {
	buf   api.Buffer
	shape []uint64
	owned bool
}

func cellCount(shape []uint64) (int, error) {
	n := uint64(1)
	for _, s := range shape {
		if s == 0 {
			return 0, failf(api.ErrInvalidArgument, "zero-sized dimension")
		}
		if n > math.MaxInt/s {
			return 0, failf(api.ErrInvalidArgument, "array of shape %v is too large", shape)
		}
		n *= s
	}
	return int(n), nil
}

func newStorage(dt api.ExtendedDataType, shape []uint64) (*storage, error) {
	n, err := cellCount(shape)
	if err != nil {
		return nil, err
	}
	if sz := dt.Size(); sz > 0 && n > math.MaxInt/sz {
		return nil, failf(api.ErrInvalidArgument, "array of shape %v is too large", shape)
	}
	return &storage{
		buf:   api.NewBuffer(dt, n),
		shape: append([]uint64(nil), shape...),
		owned: true,
	}, nil
}

func borrowStorage(buf api.Buffer, shape []uint64) (*storage, error) {
	n, err := cellCount(shape)
	if err != nil {
		return nil, err
	}
	if buf.Len() < n {
		return nil, failf(api.ErrInvalidArgument, "buffer holds %d cells, shape %v needs %d",
			buf.Len(), shape, n)
	}
	return &storage{buf: buf, shape: append([]uint64(nil), shape...)}, nil
}

func (s *storage) layout() strided.Layout {
	return strided.Layout{Shape: s.shape}
}

func (s *storage) read(start, count []uint64, step, stride []int64, dst api.Buffer) error {
	if err := strided.Read(s.buf, s.layout(), start, count, step, stride, dst); err != nil {
		return fail(err)
	}
	return nil
}

func (s *storage) write(start, count []uint64, step, stride []int64, src api.Buffer) error {
	if err := strided.Write(s.buf, s.layout(), start, count, step, stride, src); err != nil {
		return fail(err)
	}
	return nil
}

// resize reallocates to newShape, keeping the overlapping region and
// zero-filling the rest.
func (s *storage) resize(newShape []uint64) error {
	if !s.owned {
		return failf(api.ErrNotSupported, "cannot resize an array over a caller buffer")
	}
	grown, err := newStorage(s.buf.Type, newShape)
	if err != nil {
		return err
	}
	overlap := make([]uint64, len(newShape))
	for i := range newShape {
		overlap[i] = min(newShape[i], s.shape[i])
	}
	if len(newShape) > 0 {
		start := make([]uint64, len(newShape))
		err = strided.Read(s.buf, s.layout(), start, overlap, nil,
			strided.RowMajorStrides(newShape), grown.buf)
		if err != nil {
			return fail(err)
		}
	}
	s.buf = grown.buf
	s.shape = grown.shape
	return nil
}
