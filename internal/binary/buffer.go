// Package binary provides the byte-order aware buffers used by the shapefile
// codecs. Shapefiles mix big and little endian fields inside a single record,
// so the byte order is switchable at any position.
package binary

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrUnexpectedEOF is returned when a read needs more bytes than the buffer holds.
var ErrUnexpectedEOF = errors.New("unexpected end of data")

// Buffer is a growable, seekable byte buffer with a switchable byte order.
// Reads and writes happen at the cursor; writes past the end grow the buffer.
type Buffer struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

// NewBuffer returns an empty buffer with the given initial capacity.
// The byte order starts as big endian, like every shapefile header.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		data:  make([]byte, 0, capacity),
		order: binary.BigEndian,
	}
}

// FromBytes wraps data for reading. The slice is not copied.
func FromBytes(data []byte) *Buffer {
	return &Buffer{
		data:  data,
		order: binary.BigEndian,
	}
}

// SetOrder switches the byte order used by subsequent reads and writes.
func (b *Buffer) SetOrder(order binary.ByteOrder) {
	b.order = order
}

// Order returns the current byte order.
func (b *Buffer) Order() binary.ByteOrder {
	return b.order
}

// Pos returns the cursor position.
func (b *Buffer) Pos() int {
	return b.pos
}

// Seek moves the cursor to an absolute position. Seeking past the end is
// allowed; the gap is zero filled on the next write.
func (b *Buffer) Seek(pos int) {
	if pos < 0 {
		pos = 0
	}
	b.pos = pos
}

// Len returns the number of bytes held by the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Remaining returns the number of bytes between the cursor and the end.
func (b *Buffer) Remaining() int {
	if b.pos >= len(b.data) {
		return 0
	}
	return len(b.data) - b.pos
}

// Bytes returns the buffer contents.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Reset empties the buffer, keeping its capacity and byte order.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.pos = 0
}

// grow makes room for n bytes at the cursor and returns that window.
func (b *Buffer) grow(n int) []byte {
	end := b.pos + n
	if end > len(b.data) {
		if end > cap(b.data) {
			newCap := 2 * cap(b.data)
			if newCap < end {
				newCap = end
			}
			data := make([]byte, len(b.data), newCap)
			copy(data, b.data)
			b.data = data
		}
		old := len(b.data)
		b.data = b.data[:end]
		clear(b.data[old:end])
	}
	window := b.data[b.pos:end]
	b.pos = end
	return window
}

// PutBytes writes raw bytes at the cursor.
func (b *Buffer) PutBytes(p []byte) {
	copy(b.grow(len(p)), p)
}

// PutZeros writes n zero bytes at the cursor.
func (b *Buffer) PutZeros(n int) {
	clear(b.grow(n))
}

// PutUint8 writes a single byte.
func (b *Buffer) PutUint8(v uint8) {
	b.grow(1)[0] = v
}

// PutUint16 writes an unsigned 16-bit integer.
func (b *Buffer) PutUint16(v uint16) {
	b.order.PutUint16(b.grow(2), v)
}

// PutInt32 writes a signed 32-bit integer.
func (b *Buffer) PutInt32(v int32) {
	b.order.PutUint32(b.grow(4), uint32(v))
}

// PutUint32 writes an unsigned 32-bit integer.
func (b *Buffer) PutUint32(v uint32) {
	b.order.PutUint32(b.grow(4), v)
}

// PutFloat64 writes an IEEE 754 double.
func (b *Buffer) PutFloat64(v float64) {
	b.order.PutUint64(b.grow(8), math.Float64bits(v))
}

// next returns the next n bytes and advances the cursor.
func (b *Buffer) next(n int) ([]byte, error) {
	if n < 0 || b.Remaining() < n {
		return nil, ErrUnexpectedEOF
	}
	p := b.data[b.pos : b.pos+n]
	b.pos += n
	return p, nil
}

// Skip advances the cursor by n bytes.
func (b *Buffer) Skip(n int) error {
	_, err := b.next(n)
	return err
}

// ReadBytes returns the next n bytes. The result aliases the buffer.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	return b.next(n)
}

// Uint8 reads a single byte.
func (b *Buffer) Uint8() (uint8, error) {
	p, err := b.next(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// Uint16 reads an unsigned 16-bit integer.
func (b *Buffer) Uint16() (uint16, error) {
	p, err := b.next(2)
	if err != nil {
		return 0, err
	}
	return b.order.Uint16(p), nil
}

// Int32 reads a signed 32-bit integer.
func (b *Buffer) Int32() (int32, error) {
	p, err := b.next(4)
	if err != nil {
		return 0, err
	}
	return int32(b.order.Uint32(p)), nil
}

// Uint32 reads an unsigned 32-bit integer.
func (b *Buffer) Uint32() (uint32, error) {
	p, err := b.next(4)
	if err != nil {
		return 0, err
	}
	return b.order.Uint32(p), nil
}

// Float64 reads an IEEE 754 double.
func (b *Buffer) Float64() (float64, error) {
	p, err := b.next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(b.order.Uint64(p)), nil
}

// Float64s reads n consecutive doubles.
func (b *Buffer) Float64s(n int) ([]float64, error) {
	if n < 0 || n > b.Remaining()/8 {
		return nil, ErrUnexpectedEOF
	}
	p, _ := b.next(8 * n)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(b.order.Uint64(p[8*i : 8*i+8]))
	}
	return out, nil
}
