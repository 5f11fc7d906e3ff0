package util

import (
	"encoding/binary"
	"io"

	"github.com/batchatco/go-thrower"
)

// NativeByteOrder is the byte order of the host machine. Numeric cells in
// buffers and tiles are always kept in this order.
var NativeByteOrder binary.ByteOrder = binary.NativeEndian

// MustWrite wraps binary.Write and throws an error if it fails.
func MustWrite(w io.Writer, order binary.ByteOrder, data any) {
	err := binary.Write(w, order, data)
	thrower.ThrowIfError(err)
}

// MustWriteRaw wraps Write and throws an error if it fails.
func MustWriteRaw(w io.Writer, p []byte) {
	_, err := w.Write(p)
	thrower.ThrowIfError(err)
}

// MustRead wraps binary.Read and throws an error if it fails.
func MustRead(r io.Reader, order binary.ByteOrder, data any) {
	err := binary.Read(r, order, data)
	thrower.ThrowIfError(err)
}

// MustReadFull reads exactly len(p) bytes and throws an error if it cannot.
func MustReadFull(r io.Reader, p []byte) {
	_, err := io.ReadFull(r, p)
	thrower.ThrowIfError(err)
}

// MustClose closes c and throws an error if it fails.
func MustClose(c io.Closer) {
	thrower.ThrowIfError(c.Close())
}
