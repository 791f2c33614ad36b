// Package rw has small io helpers for document output.
package rw

import (
	"io"
	"os"
	"path/filepath"
)

type CountWriter struct {
	w io.Writer
	n int64
}

func NewCountWriter(w io.Writer) *CountWriter {
	return &CountWriter{w: w}
}

// Write implements io.Writer
func (cw *CountWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n) // cuz Write() can be called multiple times internally
	return n, err
}

// BytesWritten returns the total number of bytes written
func (cw *CountWriter) BytesWritten() int64 {
	return cw.n
}

// WriteFileAtomic streams produce into a temp file next to path and renames it
// into place, so a failed export never leaves a truncated document behind.
func WriteFileAtomic(path string, produce func(w io.Writer) error) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, err
	}
	cw := NewCountWriter(tmp)
	if err = produce(cw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return cw.BytesWritten(), err
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return cw.BytesWritten(), err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return cw.BytesWritten(), err
	}
	return cw.BytesWritten(), nil
}
