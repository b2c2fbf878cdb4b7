package shapefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/go-kit/log/level"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

// recordHeaderSize is the byte size of the big-endian record header.
const recordHeaderSize = 8

// Reader decodes records of a .shp file. Records are read on demand at byte
// offsets, usually taken from the .shx index. RecordAt keeps no cursor, so
// a Reader may be shared between goroutines when the source allows
// concurrent ReadAt calls.
type Reader struct {
	src    *bin.Reader
	closer io.Closer
	header Header
	opts   *Options
	closed atomic.Bool
}

// NewReader parses the header of a .shp source. The source is not closed
// by Close.
func NewReader(r io.ReaderAt, opts *Options) (*Reader, error) {
	opts = opts.withDefaults()
	src := bin.NewReader(r)
	h, err := readHeaderAt(src)
	if err != nil {
		return nil, err
	}
	if h.ShapeType == NullShape {
		return nil, fmt.Errorf("%w: file declares %v", ErrUnsupportedShapeType, h.ShapeType)
	}
	if _, err := handlerFor(h.ShapeType, opts); err != nil {
		return nil, err
	}
	level.Debug(opts.Logger).Log("msg", "opened shapefile", "header", h)
	return &Reader{src: src, header: h, opts: opts}, nil
}

// OpenReader opens a .shp file by path. The file is closed by Close, and on
// any error before returning.
func OpenReader(path string, opts *Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, opts)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// Header returns the parsed file header.
func (r *Reader) Header() Header {
	return r.header
}

// ShapeType returns the shape type declared by the file.
func (r *Reader) ShapeType() ShapeType {
	return r.header.ShapeType
}

// RecordAt decodes the record whose header starts at byte offset.
func (r *Reader) RecordAt(offset int64) (*Shape, error) {
	_, s, _, err := r.recordAt(offset)
	return s, err
}

// recordAt decodes one record and also returns its record number and total
// byte size, record header included.
func (r *Reader) recordAt(offset int64) (int32, *Shape, int64, error) {
	if r.closed.Load() {
		return 0, nil, 0, ErrClosed
	}
	fail := func(err error) (int32, *Shape, int64, error) {
		return 0, nil, 0, &RecordError{Offset: offset, Err: err}
	}

	hdr, err := r.src.At(offset).Buffer(recordHeaderSize)
	if err != nil {
		return fail(truncated(err, "record header"))
	}
	num, _ := hdr.Int32()
	words, _ := hdr.Int32()
	if words < 2 {
		return fail(fmt.Errorf("%w: record content length %d words", ErrFormat, words))
	}
	limit := r.header.FileBytes()
	if n, ok := r.src.Size(); ok && n < limit {
		limit = n
	}
	if end := offset + recordHeaderSize + 2*int64(words); end > limit {
		return fail(fmt.Errorf("%w: record content of %d bytes ends at %d, past end of file at %d",
			ErrTruncated, 2*int64(words), end, limit))
	}

	content, err := r.src.At(offset + recordHeaderSize).Buffer(2 * int(words))
	if err != nil {
		return fail(truncated(err, "record content"))
	}
	s, err := decodeContent(content, r.header.ShapeType, r.opts)
	if err != nil {
		return fail(err)
	}
	t := r.header.ShapeType
	if s.IsNull() {
		t = NullShape
	}
	r.opts.Metrics.recordRead(t)
	return num, s, recordHeaderSize + 2*int64(words), nil
}

func truncated(err error, what string) error {
	if errors.Is(err, bin.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s", ErrTruncated, what)
	}
	return err
}

// Records returns a scanner walking the records in file order without the
// index.
func (r *Reader) Records() *RecordScanner {
	return &RecordScanner{r: r, next: HeaderSize}
}

// Close releases the file opened by OpenReader. It is safe to call more
// than once.
func (r *Reader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// RecordScanner iterates the records of a Reader sequentially:
//
//	sc := r.Records()
//	for sc.Next() {
//		s := sc.Shape()
//	}
//	if err := sc.Err(); err != nil { ... }
type RecordScanner struct {
	r      *Reader
	next   int64
	offset int64
	number int32
	shape  *Shape
	err    error
}

// Next decodes the next record. It returns false at the end of the file
// declared by the header or on the first error.
func (sc *RecordScanner) Next() bool {
	if sc.err != nil || sc.next >= sc.r.header.FileBytes() {
		return false
	}
	num, s, size, err := sc.r.recordAt(sc.next)
	if err != nil {
		sc.err = err
		return false
	}
	sc.offset, sc.number, sc.shape = sc.next, num, s
	sc.next += size
	return true
}

// Shape returns the record decoded by the last call to Next.
func (sc *RecordScanner) Shape() *Shape { return sc.shape }

// Offset returns the byte offset of the current record.
func (sc *RecordScanner) Offset() int64 { return sc.offset }

// Number returns the 1-based record number stored in the current record.
func (sc *RecordScanner) Number() int32 { return sc.number }

// Err returns the error that stopped the scan, if any.
func (sc *RecordScanner) Err() error { return sc.err }
