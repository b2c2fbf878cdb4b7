package shapefile

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

// Fixed values of the 100-byte file header.
const (
	FileCode   = 9994
	Version    = 1000
	HeaderSize = 100

	headerWords = HeaderSize / 2
)

// Header is the 100-byte header shared by .shp and .shx files.
// Z and M ranges are not kept.
type Header struct {
	ShapeType  ShapeType
	Bound      orb.Bound
	FileLength int32 // file length in 16-bit words, header included
}

// FileBytes returns the declared file length in bytes.
func (h Header) FileBytes() int64 {
	return 2 * int64(h.FileLength)
}

func (h Header) String() string {
	return fmt.Sprintf("Header[length=%d type=%v bounds=%v,%v,%v,%v]",
		h.FileLength, h.ShapeType, h.Bound.Min[0], h.Bound.Min[1], h.Bound.Max[0], h.Bound.Max[1])
}

// WriteHeader serializes h at the cursor of buf. Magic and length are big
// endian; version, type and bounding box are little endian.
func WriteHeader(buf *bin.Buffer, h Header) {
	buf.SetOrder(binary.BigEndian)
	buf.PutInt32(FileCode)
	buf.PutZeros(5 * 4)
	buf.PutInt32(h.FileLength)

	buf.SetOrder(binary.LittleEndian)
	buf.PutInt32(Version)
	buf.PutInt32(int32(h.ShapeType))
	buf.PutFloat64(h.Bound.Min[0])
	buf.PutFloat64(h.Bound.Min[1])
	buf.PutFloat64(h.Bound.Max[0])
	buf.PutFloat64(h.Bound.Max[1])

	// Z and M ranges, unused.
	buf.SetOrder(binary.BigEndian)
	buf.PutZeros(8 * 4)
}

// ReadHeader parses a header at the cursor of buf.
func ReadHeader(buf *bin.Buffer) (Header, error) {
	var h Header
	if buf.Remaining() < HeaderSize {
		return h, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncated, HeaderSize, buf.Remaining())
	}

	buf.SetOrder(binary.BigEndian)
	code, _ := buf.Int32()
	if code != FileCode {
		return h, fmt.Errorf("%w: wrong magic number, expected %d, got %d", ErrFormat, FileCode, code)
	}
	_ = buf.Skip(5 * 4)
	h.FileLength, _ = buf.Int32()

	buf.SetOrder(binary.LittleEndian)
	version, _ := buf.Int32()
	if version != Version {
		return h, fmt.Errorf("%w: wrong version, expected %d, got %d", ErrFormat, Version, version)
	}
	typeCode, _ := buf.Int32()
	t, err := ShapeTypeFromCode(typeCode)
	if err != nil {
		return h, err
	}
	h.ShapeType = t

	h.Bound.Min[0], _ = buf.Float64()
	h.Bound.Min[1], _ = buf.Float64()
	h.Bound.Max[0], _ = buf.Float64()
	h.Bound.Max[1], _ = buf.Float64()

	buf.SetOrder(binary.BigEndian)
	_ = buf.Skip(8 * 4)
	return h, nil
}

// readHeaderAt reads and parses the header at the start of r.
func readHeaderAt(r *bin.Reader) (Header, error) {
	buf, err := r.At(0).Buffer(HeaderSize)
	if err != nil {
		if errors.Is(err, bin.ErrUnexpectedEOF) {
			return Header{}, fmt.Errorf("%w: premature end of header", ErrTruncated)
		}
		return Header{}, err
	}
	return ReadHeader(buf)
}

// encodeHeader returns the 100 header bytes for h.
func encodeHeader(h Header) []byte {
	buf := bin.NewBuffer(HeaderSize)
	WriteHeader(buf, h)
	return buf.Bytes()
}
