package binary

import (
	"errors"
	"io"
	"os"
)

// Reader reads from an io.ReaderAt at an explicit position. Readers never
// share a cursor: At returns an independent copy, so concurrent record reads
// are safe whenever the underlying ReaderAt is.
type Reader struct {
	r   io.ReaderAt
	pos int64
}

// NewReader creates a reader positioned at offset 0.
func NewReader(r io.ReaderAt) *Reader {
	return &Reader{r: r}
}

// At returns a new reader positioned at the given offset.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{r: r.r, pos: offset}
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// ReadBytes reads exactly n bytes from the current position.
// A short read is reported as ErrUnexpectedEOF.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrUnexpectedEOF
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := r.r.ReadAt(buf, r.pos)
	if read == n {
		// io.ReaderAt may return io.EOF together with a full read.
		r.pos += int64(n)
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, ErrUnexpectedEOF
	}
	return nil, err
}

// Buffer reads exactly n bytes and wraps them in a Buffer.
func (r *Reader) Buffer(n int) (*Buffer, error) {
	p, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return FromBytes(p), nil
}

// Size reports the length of the underlying source when it exposes one,
// either through a Size method or, for files, through Stat.
func (r *Reader) Size() (int64, bool) {
	switch src := r.r.(type) {
	case interface{ Size() int64 }:
		return src.Size(), true
	case interface{ Stat() (os.FileInfo, error) }:
		fi, err := src.Stat()
		if err != nil {
			return 0, false
		}
		return fi.Size(), true
	}
	return 0, false
}
