// Package strided moves cells between an N-dimensional storage buffer and a
// caller buffer of arbitrary layout and type.
//
// A selection is given per dimension as a start index, a count, a step
// (any non-zero value; negative steps walk backwards) and a buffer stride,
// all counted in cells. Iteration uses an explicit stack sized to the rank,
// so there is no recursion whatever the number of dimensions.
package strided

import (
	"fmt"

	"github.com/batchatco/go-native-mdim/mdim/api"
)

// Layout describes a flat storage buffer holding a full array.
type Layout struct {
	Shape []uint64
	// Strides are per dimension, in cells. Nil means row-major.
	Strides []int64
}

// RowMajorStrides returns the cell strides of a C-ordered array of shape.
func RowMajorStrides(shape []uint64) []int64 {
	strides := make([]int64, len(shape))
	stride := int64(1)
	// proceed from the fastest varying dimension (the last one)
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= int64(shape[i])
	}
	return strides
}

// Read copies the selection out of src, laid out according to layout, into
// dst. dst.Type selects the conversion.
func Read(src api.Buffer, layout Layout, start, count []uint64, step, bufferStride []int64, dst api.Buffer) error {
	p, err := plan(layout, src.Len(), start, count, step, bufferStride, dst.Len())
	if err != nil {
		return err
	}
	copier, err := copierFor(src.Type, dst.Type)
	if err != nil {
		return err
	}
	if p.bulk && src.Type.Equal(dst.Type) {
		bulkCopy(dst, 0, src, p.storageOff, p.total)
		return nil
	}
	transfer(p, dst, p.bufferOff, p.bufferIncs, src, p.storageOff, p.storageIncs, copier, src.Type.Equal(dst.Type))
	return nil
}

// Write copies src, laid out according to bufferStride, into the selection
// of dst.
func Write(dst api.Buffer, layout Layout, start, count []uint64, step, bufferStride []int64, src api.Buffer) error {
	p, err := plan(layout, dst.Len(), start, count, step, bufferStride, src.Len())
	if err != nil {
		return err
	}
	copier, err := copierFor(src.Type, dst.Type)
	if err != nil {
		return err
	}
	if p.bulk && src.Type.Equal(dst.Type) {
		bulkCopy(dst, p.storageOff, src, 0, p.total)
		return nil
	}
	transfer(p, dst, p.storageOff, p.storageIncs, src, p.bufferOff, p.bufferIncs, copier, src.Type.Equal(dst.Type))
	return nil
}

type transferPlan struct {
	count       []uint64
	storageOff  int64
	storageIncs []int64
	bufferOff   int64
	bufferIncs  []int64
	total       int64
	// bulk is set when both sides are one contiguous run.
	bulk bool
}

func plan(layout Layout, storageLen int, start, count []uint64, step, bufferStride []int64, bufferLen int) (*transferPlan, error) {
	rank := len(layout.Shape)
	if len(start) != rank || len(count) != rank {
		return nil, fmt.Errorf("%w: expected %d start and count entries, got %d and %d",
			api.ErrInvalidArgument, rank, len(start), len(count))
	}
	if step != nil && len(step) != rank {
		return nil, fmt.Errorf("%w: expected %d step entries, got %d",
			api.ErrInvalidArgument, rank, len(step))
	}
	if bufferStride != nil && len(bufferStride) != rank {
		return nil, fmt.Errorf("%w: expected %d buffer stride entries, got %d",
			api.ErrInvalidArgument, rank, len(bufferStride))
	}
	strides := layout.Strides
	if strides == nil {
		strides = RowMajorStrides(layout.Shape)
	}

	p := &transferPlan{
		count:       count,
		storageIncs: make([]int64, rank),
		bufferIncs:  make([]int64, rank),
		total:       1,
	}
	if rank == 0 {
		if storageLen < 1 || bufferLen < 1 {
			return nil, fmt.Errorf("%w: buffer too small", api.ErrInvalidArgument)
		}
		p.bulk = true
		return p, nil
	}

	allOnes := true
	for i := 0; i < rank; i++ {
		size := layout.Shape[i]
		st := int64(1)
		if step != nil {
			st = step[i]
		}
		if count[i] == 0 {
			return nil, fmt.Errorf("%w: count[%d] = 0", api.ErrInvalidArgument, i)
		}
		if st == 0 {
			return nil, fmt.Errorf("%w: step[%d] = 0", api.ErrInvalidArgument, i)
		}
		if start[i] >= size {
			return nil, fmt.Errorf("%w: start[%d] = %d >= %d",
				api.ErrInvalidArgument, i, start[i], size)
		}
		last := int64(start[i]) + int64(count[i]-1)*st
		if count[i] > size || last < 0 || last >= int64(size) {
			return nil, fmt.Errorf("%w: selection on dimension %d runs outside [0, %d)",
				api.ErrInvalidArgument, i, size)
		}
		if st != 1 {
			allOnes = false
		}
		p.storageOff += int64(start[i]) * strides[i]
		p.storageIncs[i] = st * strides[i]
		p.total *= int64(count[i])
	}

	bufStrides := bufferStride
	rowMajor := RowMajorStrides(count)
	if bufStrides == nil {
		bufStrides = rowMajor
	}
	// A negative stride walks down from the end of the buffer; find the
	// lowest and highest cell touched.
	var minOff, maxOff int64
	for i := 0; i < rank; i++ {
		span := int64(count[i]-1) * bufStrides[i]
		if span < 0 {
			minOff += span
		} else {
			maxOff += span
		}
		p.bufferIncs[i] = bufStrides[i]
	}
	p.bufferOff = -minOff
	if maxOff-minOff >= int64(bufferLen) {
		return nil, fmt.Errorf("%w: buffer holds %d cells, selection needs %d",
			api.ErrInvalidArgument, bufferLen, maxOff-minOff+1)
	}

	contiguousBuffer := equalStrides(bufStrides, rowMajor)
	contiguousStorage := equalStrides(strides, RowMajorStrides(layout.Shape))
	for i := 1; i < rank && contiguousStorage; i++ {
		contiguousStorage = count[i] == layout.Shape[i]
	}
	p.bulk = allOnes && contiguousBuffer && contiguousStorage
	return p, nil
}

func equalStrides(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func bulkCopy(dst api.Buffer, di int64, src api.Buffer, si int64, n int64) {
	if src.Type.Class() == api.ClassString {
		copy(dst.Strings[di:di+n], src.Strings[si:si+n])
		return
	}
	sz := int64(src.Type.Size())
	copy(dst.Raw[di*sz:(di+n)*sz], src.Raw[si*sz:(si+n)*sz])
}

// frame is the iteration state of one dimension.
type frame struct {
	dstOff, srcOff int64
	remaining      uint64
}

func transfer(p *transferPlan, dst api.Buffer, dstOff int64, dstIncs []int64,
	src api.Buffer, srcOff int64, srcIncs []int64, copier cellCopier, sameType bool) {
	rank := len(p.count)
	if rank == 0 {
		copier(dst, dstOff, src, srcOff)
		return
	}
	last := rank - 1
	// whole innermost rows can be moved at once when both sides are dense
	rowCopy := sameType && dstIncs[last] == 1 && srcIncs[last] == 1

	stack := make([]frame, rank)
	stack[0] = frame{dstOff: dstOff, srcOff: srcOff, remaining: p.count[0]}
	d := 0
	for {
		if d == last {
			f := stack[d]
			n := p.count[d]
			if rowCopy {
				bulkCopy(dst, f.dstOff, src, f.srcOff, int64(n))
			} else {
				di, si := f.dstOff, f.srcOff
				for k := uint64(0); k < n; k++ {
					copier(dst, di, src, si)
					di += dstIncs[d]
					si += srcIncs[d]
				}
			}
			// pop until a dimension has iterations left
			for {
				d--
				if d < 0 {
					return
				}
				stack[d].remaining--
				if stack[d].remaining > 0 {
					stack[d].dstOff += dstIncs[d]
					stack[d].srcOff += srcIncs[d]
					break
				}
			}
		}
		stack[d+1] = frame{
			dstOff:    stack[d].dstOff,
			srcOff:    stack[d].srcOff,
			remaining: p.count[d+1],
		}
		d++
	}
}
