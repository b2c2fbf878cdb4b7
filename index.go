package shapefile

import (
	"errors"
	"fmt"
	"io"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

// indexEntrySize is the byte size of one .shx entry.
const indexEntrySize = 8

// IndexEntry locates one record of the .shp file. Both fields are in 16-bit
// words, as stored in the .shx file.
type IndexEntry struct {
	Offset        int32 // offset of the record header
	ContentLength int32 // record content length, record header excluded
}

// ByteOffset returns the record header offset in bytes.
func (e IndexEntry) ByteOffset() int64 {
	return 2 * int64(e.Offset)
}

// ContentBytes returns the record content length in bytes.
func (e IndexEntry) ContentBytes() int64 {
	return 2 * int64(e.ContentLength)
}

// IndexReader reads entries of a .shx file on demand.
type IndexReader struct {
	r      *bin.Reader
	header Header
	count  int
}

// OpenIndex parses the header of a .shx file.
func OpenIndex(r io.ReaderAt) (*IndexReader, error) {
	br := bin.NewReader(r)
	h, err := readHeaderAt(br)
	if err != nil {
		return nil, fmt.Errorf("reading index header: %w", err)
	}
	n := (h.FileBytes() - HeaderSize) / indexEntrySize
	if n < 0 {
		return nil, fmt.Errorf("%w: index file length %d words", ErrFormat, h.FileLength)
	}
	return &IndexReader{r: br, header: h, count: int(n)}, nil
}

// Header returns the parsed .shx header.
func (ir *IndexReader) Header() Header {
	return ir.header
}

// Len returns the number of records listed in the index.
func (ir *IndexReader) Len() int {
	return ir.count
}

// Entry returns the i-th index entry.
func (ir *IndexReader) Entry(i int) (IndexEntry, error) {
	if i < 0 || i >= ir.count {
		return IndexEntry{}, fmt.Errorf("shapefile: index entry %d out of range [0,%d)", i, ir.count)
	}
	buf, err := ir.r.At(HeaderSize + int64(i)*indexEntrySize).Buffer(indexEntrySize)
	if err != nil {
		if errors.Is(err, bin.ErrUnexpectedEOF) {
			return IndexEntry{}, fmt.Errorf("%w: index entry %d", ErrTruncated, i)
		}
		return IndexEntry{}, err
	}
	offset, _ := buf.Int32()
	length, _ := buf.Int32()
	return IndexEntry{Offset: offset, ContentLength: length}, nil
}

// Entries reads the whole index.
func (ir *IndexReader) Entries() ([]IndexEntry, error) {
	if ir.count == 0 {
		return nil, nil
	}
	if n, ok := ir.r.Size(); ok && HeaderSize+int64(ir.count)*indexEntrySize > n {
		return nil, fmt.Errorf("%w: index lists %d records in a %d-byte file", ErrTruncated, ir.count, n)
	}

	// Sources without a known size are read in chunks so a forged file
	// length fails on the first short read.
	out := make([]IndexEntry, 0, min(ir.count, indexChunk))
	for len(out) < ir.count {
		n := min(ir.count-len(out), indexChunk)
		buf, err := ir.r.At(HeaderSize + int64(len(out))*indexEntrySize).Buffer(n * indexEntrySize)
		if err != nil {
			if errors.Is(err, bin.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: index lists %d records", ErrTruncated, ir.count)
			}
			return nil, err
		}
		for i := 0; i < n; i++ {
			var e IndexEntry
			e.Offset, _ = buf.Int32()
			e.ContentLength, _ = buf.Int32()
			out = append(out, e)
		}
	}
	return out, nil
}

// indexChunk is the number of entries Entries reads at a time.
const indexChunk = 4096

// indexFileLength returns the .shx file length in words for n records.
func indexFileLength(n int) int32 {
	return int32(headerWords + 4*n)
}
