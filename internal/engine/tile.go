package engine

import (
	"bytes"
	_ "crypto/sha256"
	"encoding/binary"
	"io"

	"github.com/batchatco/go-thrower"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
	"github.com/qri-io/dataset/compression"

	"github.com/batchatco/go-native-mdim/mdim/util"
)

// tileMagic starts every stored tile.
const tileMagic = uint32(0x4d44544c) // "MDTL"

type tileHeader struct {
	Magic  uint32
	Length uint64
}

// Compression level ranges; 0 always selects the filter's default.
const (
	MaxGzipLevel = gzip.BestCompression
	MaxZstdLevel = 22
)

// checkLevel rejects levels the filter cannot honor.
func checkLevel(filter string, level int) error {
	max := 0
	switch filter {
	case CompressionGzip:
		max = MaxGzipLevel
	case CompressionZstd:
		max = MaxZstdLevel
	}
	if level < 0 || level > max {
		return errorf(ErrInvalid, "compression level %d for filter %q", level, filter)
	}
	return nil
}

// compressor wraps w in the filter at the given level.
func compressor(filter string, level int, w io.Writer) (io.WriteCloser, error) {
	if level == 0 {
		return compression.Compressor(filter, w)
	}
	switch filter {
	case CompressionGzip:
		return gzip.NewWriterLevel(w, level)
	case CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	}
	return nil, errorf(ErrUnsupported, "compression %q", filter)
}

// encodeTile frames raw cell bytes and passes them through the filter.
func encodeTile(raw []byte, filter string, level int) (data []byte, err error) {
	defer thrower.RecoverError(&err)
	var b bytes.Buffer
	var w io.Writer = &b
	var c io.Closer
	if filter != CompressionNone {
		cw, err := compressor(filter, level, &b)
		thrower.ThrowIfError(err)
		w, c = cw, cw
	}
	util.MustWrite(w, binary.LittleEndian, tileHeader{Magic: tileMagic, Length: uint64(len(raw))})
	util.MustWriteRaw(w, raw)
	if c != nil {
		util.MustClose(c)
	}
	return b.Bytes(), nil
}

// decodeTile reverses encodeTile. The tile must hold exactly size bytes.
func decodeTile(data []byte, filter string, size int) (raw []byte, err error) {
	defer thrower.RecoverError(&err)
	var r io.Reader = bytes.NewReader(data)
	if filter != CompressionNone {
		rc, err := compression.Decompressor(filter, r)
		thrower.ThrowIfError(err)
		defer rc.Close()
		r = rc
	}
	var h tileHeader
	util.MustRead(r, binary.LittleEndian, &h)
	if h.Magic != tileMagic || h.Length != uint64(size) {
		thrower.Throw(errorf(ErrCorrupt, "bad tile header"))
	}
	raw = make([]byte, size)
	util.MustReadFull(r, raw)
	return raw, nil
}

// storeTile writes an encoded tile and returns its digest.
func storeTile(store Store, key string, data []byte) (digest.Digest, error) {
	if err := store.Put(key, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return digest.FromBytes(data), nil
}

// loadTile reads a stored tile and checks it against want.
func loadTile(store Store, key string, want digest.Digest) ([]byte, error) {
	if err := want.Validate(); err != nil {
		return nil, errorf(ErrCorrupt, "%s: %v", key, err)
	}
	r, err := store.Get(key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	verifier := want.Verifier()
	verifier.Write(data)
	if !verifier.Verified() {
		return nil, errorf(ErrCorrupt, "%s: digest mismatch", key)
	}
	return data, nil
}
