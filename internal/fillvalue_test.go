package internal

import (
	"bytes"
	"io"
	"testing"
)

func TestFillValueReader(t *testing.T) {
	r := NewFillValueReader([]byte{1, 2, 3})
	got := make([]byte, 7)
	if _, err := io.ReadFull(r, got[:4]); err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadFull(r, got[4:]); err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 1, 2, 3, 1}
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFill(t *testing.T) {
	dst := []byte{9, 9, 9, 9}
	Fill(dst, nil)
	if !bytes.Equal(dst, []byte{0, 0, 0, 0}) {
		t.Error("empty cell should zero the buffer", dst)
	}
	Fill(dst, []byte{7, 8})
	if !bytes.Equal(dst, []byte{7, 8, 7, 8}) {
		t.Error("bad fill", dst)
	}
}
