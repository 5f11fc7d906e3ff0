// Internal API, not to be exported
package internal

import (
	"io"
)

// FillValueReader repeats one cell's bytes forever. It is used to
// materialize tiles that were never written.
type FillValueReader struct {
	repeat      []byte
	repeatIndex int
}

func NewFillValueReader(repeat []byte) io.Reader {
	return &FillValueReader{repeat, 0}
}

func (fvr *FillValueReader) Read(p []byte) (int, error) {
	rl := len(fvr.repeat)
	if rl == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	ri := fvr.repeatIndex
	z := p
	if ri == 0 {
		for len(z) >= rl {
			copy(z, fvr.repeat)
			z = z[rl:]
		}
	}
	for i := 0; i < len(z); i++ {
		z[i] = fvr.repeat[ri%rl]
		ri++
	}
	fvr.repeatIndex = ri % rl
	return len(p), nil
}

// Fill overwrites dst with copies of cell. An empty cell zeroes dst.
func Fill(dst []byte, cell []byte) {
	// FillValueReader never fails.
	_, _ = NewFillValueReader(cell).Read(dst)
}
