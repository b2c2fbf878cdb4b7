package shapefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/paulmach/orb"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

// maxFileBytes is the largest file the 32-bit word counts in the headers
// can describe.
const maxFileBytes = 2 * math.MaxInt32

// Writer writes a .shp file and its .shx index. Records are appended in
// order; Close seeks back and rewrites both headers with the final length
// and bounding box. A Writer is not safe for concurrent use.
type Writer struct {
	shp, shx *bin.Writer
	closers  []io.Closer
	opts     *Options

	shapeType ShapeType
	started   bool
	closed    bool

	count    int
	offset   int64 // byte offset of the next record in the .shp file
	bound    orb.Bound
	hasBound bool

	buf *bin.Buffer
}

// NewWriter returns a writer over the given .shp and .shx destinations.
// They are not closed by Close.
func NewWriter(shp, shx io.WriterAt, opts *Options) *Writer {
	return &Writer{
		shp:    bin.NewWriter(shp),
		shx:    bin.NewWriter(shx),
		opts:   opts.withDefaults(),
		offset: HeaderSize,
		buf:    bin.NewBuffer(256),
	}
}

// CreateWriter creates (or truncates) path.shp and path.shx. The .shp
// extension on path is optional.
func CreateWriter(path string, opts *Options) (*Writer, error) {
	base := trimExt(path)
	shp, err := os.Create(base + ".shp")
	if err != nil {
		return nil, err
	}
	shx, err := os.Create(base + ".shx")
	if err != nil {
		shp.Close()
		return nil, err
	}
	w := NewWriter(shp, shx, opts)
	w.closers = []io.Closer{shp, shx}
	return w, nil
}

func trimExt(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return path[:len(path)-len(".shp")]
	}
	return path
}

// WriteHeader writes the headers of both files with the current record
// count and bounding box: zero and empty before the first record. It must
// be called before the first record. Calling it again with the same shape
// type refreshes the headers.
func (w *Writer) WriteHeader(t ShapeType) error {
	if w.closed {
		return ErrClosed
	}
	if !t.IsValid() || t == NullShape {
		return fmt.Errorf("%w: %v", ErrUnsupportedShapeType, t)
	}
	if w.started && t != w.shapeType {
		return fmt.Errorf("%w: shape type already set to %v", ErrIllegalState, w.shapeType)
	}
	w.shapeType = t
	w.started = true
	return w.writeHeaders()
}

func (w *Writer) writeHeaders() error {
	h := Header{ShapeType: w.shapeType, Bound: w.Bound(), FileLength: int32(w.offset / 2)}
	if err := w.shp.At(0).WriteBytes(encodeHeader(h)); err != nil {
		return fmt.Errorf("writing shp header: %w", err)
	}
	h.FileLength = indexFileLength(w.count)
	if err := w.shx.At(0).WriteBytes(encodeHeader(h)); err != nil {
		return fmt.Errorf("writing shx header: %w", err)
	}
	return nil
}

// WriteGeometry appends a record for g. A nil geometry writes a null record.
func (w *Writer) WriteGeometry(g orb.Geometry) error {
	return w.WriteShape(&Shape{Geometry: g})
}

// WriteShape appends a record for s. A nil or null shape writes a null
// record. The index entry is written only once the record is.
func (w *Writer) WriteShape(s *Shape) error {
	switch {
	case w.closed:
		return ErrClosed
	case !w.started:
		return fmt.Errorf("%w: WriteHeader not called", ErrIllegalState)
	}

	w.buf.Reset()
	w.buf.SetOrder(binary.BigEndian)
	w.buf.PutInt32(int32(w.count + 1))
	w.buf.PutInt32(0)
	f, err := encodeFlat(w.buf, w.shapeType, s, w.opts)
	if err != nil {
		return &RecordError{Offset: w.offset, Err: err}
	}
	words := int32((w.buf.Len() - recordHeaderSize) / 2)
	w.buf.SetOrder(binary.BigEndian)
	w.buf.Seek(4)
	w.buf.PutInt32(words)

	if end := w.offset + int64(w.buf.Len()); end > maxFileBytes {
		return &RecordError{Offset: w.offset, Err: fmt.Errorf("%w: .shp would grow to %d bytes, limit is %d",
			ErrFileTooLarge, end, int64(maxFileBytes))}
	}
	if err := w.shp.At(w.offset).WriteBuffer(w.buf); err != nil {
		return &RecordError{Offset: w.offset, Err: err}
	}

	entry := bin.NewBuffer(indexEntrySize)
	entry.PutInt32(int32(w.offset / 2))
	entry.PutInt32(words)
	if err := w.shx.At(HeaderSize + int64(w.count)*indexEntrySize).WriteBuffer(entry); err != nil {
		return &RecordError{Offset: w.offset, Err: fmt.Errorf("writing index entry: %w", err)}
	}

	n := w.buf.Len()
	w.count++
	w.offset += int64(n)
	if f != nil && !f.empty {
		if w.hasBound {
			w.bound = w.bound.Union(f.bound)
		} else {
			w.bound, w.hasBound = f.bound, true
		}
	}
	t := w.shapeType
	if f == nil {
		t = NullShape
	}
	w.opts.Metrics.recordWritten(t, n)
	return nil
}

// ShapeType returns the shape type set by WriteHeader.
func (w *Writer) ShapeType() ShapeType {
	return w.shapeType
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.count
}

// Bound returns the bounding box of the geometries written so far, or a
// zero bound when there are none.
func (w *Writer) Bound() orb.Bound {
	if !w.hasBound {
		return orb.Bound{}
	}
	return w.bound
}

// Close finalizes both headers and closes files opened by CreateWriter.
// It is safe to call more than once.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if w.started {
		if err := w.writeHeaders(); err != nil {
			errs = append(errs, err)
		}
		w.opts.Metrics.bytesWritten(HeaderSize)
		level.Debug(w.opts.Logger).Log("msg", "closed shapefile writer",
			"type", w.shapeType, "records", w.count, "bytes", w.offset)
	}
	for _, c := range w.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
