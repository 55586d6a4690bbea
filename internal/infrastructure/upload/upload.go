// Package upload stages uploaded images on disk for the length of a request.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrTooLarge = errors.New("upload exceeds size limit")

type Stager struct {
	dir      string
	maxBytes int64
}

func NewStager(dir string, maxBytes int64) *Stager {
	return &Stager{dir: dir, maxBytes: maxBytes}
}

func (s *Stager) MaxBytes() int64 {
	return s.maxBytes
}

// File is a staged upload positioned at its first byte. Close removes it.
type File struct {
	*os.File
	size int64
}

func (f *File) Size() int64 {
	return f.size
}

// Close closes and deletes the staged file. It is safe to call more than once.
func (f *File) Close() error {
	closeErr := f.File.Close()
	if errors.Is(closeErr, os.ErrClosed) {
		closeErr = nil
	}
	if err := os.Remove(f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove staged upload: %w", err)
	}
	return closeErr
}

// Stage copies r into a fresh temporary file. Nothing is left on disk when
// an error is returned.
func (s *Stager) Stage(r io.Reader) (*File, error) {
	tmp, err := os.CreateTemp(s.dir, "facegate-upload-*")
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	f := &File{File: tmp}

	n, err := io.Copy(tmp, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	if n > s.maxBytes {
		_ = f.Close()
		return nil, ErrTooLarge
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	f.size = n
	return f, nil
}
