package dbf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

// Table is a dBase table opened either for reading (Open) or for appending
// rows (Create). Rows are read on demand; nothing is cached.
type Table struct {
	r      *bin.Reader
	w      *bin.Writer
	closer io.Closer

	header  Header
	fields  []Field
	offsets []int // byte offset of each field inside a record
	enc     encoding.Encoding
	encoder *encoding.Encoder

	count  int
	closed bool
}

// Open reads the header of a table. enc overrides the code page named by
// the language driver byte; nil selects it from the header.
func Open(r io.ReaderAt, enc encoding.Encoding) (*Table, error) {
	src := bin.NewReader(r)
	buf, err := src.Buffer(headerSize)
	if err != nil {
		return nil, fmt.Errorf("%w: short header: %v", ErrFormat, err)
	}
	buf.SetOrder(binary.LittleEndian)

	v, _ := buf.Uint8()
	if !knownVersion(v) {
		return nil, fmt.Errorf("%w: unknown version byte 0x%02X", ErrFormat, v)
	}
	yy, _ := buf.Uint8()
	mm, _ := buf.Uint8()
	dd, _ := buf.Uint8()

	var h Header
	h.Updated = time.Date(updateYear(yy), time.Month(mm), int(dd), 0, 0, 0, 0, time.UTC)
	h.RecordCount, _ = buf.Uint32()
	h.HeaderLength, _ = buf.Uint16()
	h.RecordLength, _ = buf.Uint16()
	_ = buf.Skip(17)
	h.LanguageDriver, _ = buf.Uint8()

	if h.HeaderLength < headerSize+1 {
		return nil, fmt.Errorf("%w: header length %d", ErrFormat, h.HeaderLength)
	}
	desc, err := src.At(headerSize).Buffer(int(h.HeaderLength) - headerSize)
	if err != nil {
		return nil, fmt.Errorf("%w: short field descriptors: %v", ErrFormat, err)
	}
	fields, err := readFields(desc)
	if err != nil {
		return nil, err
	}

	t := &Table{r: src, header: h, fields: fields, count: int(h.RecordCount)}
	if _, recLen := layout(fields); recLen != int(h.RecordLength) {
		return nil, fmt.Errorf("%w: fields span %d bytes, header declares %d", ErrFormat, recLen, h.RecordLength)
	}
	if enc == nil {
		enc = encodingForLDID(h.LanguageDriver)
	}
	t.setEncoding(enc)
	t.computeOffsets()
	return t, nil
}

func knownVersion(v byte) bool {
	switch v & 0x07 {
	case 3, 4:
		return true
	}
	return v == 0x30 || v == 0x31
}

func readFields(buf *bin.Buffer) ([]Field, error) {
	var fields []Field
	for buf.Remaining() >= descriptorSize {
		raw, _ := buf.ReadBytes(descriptorSize)
		if raw[0] == fieldEnd {
			return fields, nil
		}
		name := raw[:11]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		fields = append(fields, Field{
			Name:     strings.TrimSpace(string(name)),
			Type:     FieldType(raw[11]),
			Length:   raw[16],
			Decimals: raw[17],
		})
	}
	if b, err := buf.Uint8(); err != nil || b != fieldEnd {
		return nil, fmt.Errorf("%w: missing field terminator", ErrFormat)
	}
	return fields, nil
}

// OpenFile opens a table by path. The file is closed by Close.
func OpenFile(path string, enc encoding.Encoding) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	t, err := Open(f, enc)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	t.closer = f
	return t, nil
}

// Create starts a new table with the given fields. enc nil selects
// DefaultEncoding.
func Create(w io.WriterAt, fields []Field, enc encoding.Encoding) (*Table, error) {
	norm := make([]Field, len(fields))
	for i, f := range fields {
		nf, err := f.normalize()
		if err != nil {
			return nil, err
		}
		norm[i] = nf
	}
	headerLen, recLen := layout(norm)
	if headerLen > 0xFFFF || recLen > 0xFFFF {
		return nil, fmt.Errorf("%w: %d fields do not fit a header", ErrFormat, len(norm))
	}

	t := &Table{w: bin.NewWriter(w), fields: norm}
	t.setEncoding(enc)
	t.header = Header{
		HeaderLength:   uint16(headerLen),
		RecordLength:   uint16(recLen),
		LanguageDriver: ldidFor(t.enc),
	}
	t.computeOffsets()
	if err := t.writeHeader(); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateFile creates (or truncates) a table file. The file is closed by
// Close.
func CreateFile(path string, fields []Field, enc encoding.Encoding) (*Table, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	t, err := Create(f, fields, enc)
	if err != nil {
		f.Close()
		return nil, err
	}
	t.closer = f
	return t, nil
}

func (t *Table) setEncoding(enc encoding.Encoding) {
	if enc == nil {
		enc = DefaultEncoding
	}
	t.enc = enc
	t.encoder = encoding.ReplaceUnsupported(enc.NewEncoder())
}

func (t *Table) computeOffsets() {
	t.offsets = make([]int, len(t.fields))
	off := 1
	for i, f := range t.fields {
		t.offsets[i] = off
		off += int(f.Length)
	}
}

func (t *Table) writeHeader() error {
	buf := bin.NewBuffer(int(t.header.HeaderLength))
	buf.SetOrder(binary.LittleEndian)

	now := time.Now()
	t.header.Updated = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	t.header.RecordCount = uint32(t.count)

	buf.PutUint8(version)
	buf.PutUint8(uint8(now.Year() - 1900))
	buf.PutUint8(uint8(now.Month()))
	buf.PutUint8(uint8(now.Day()))
	buf.PutUint32(t.header.RecordCount)
	buf.PutUint16(t.header.HeaderLength)
	buf.PutUint16(t.header.RecordLength)
	buf.PutZeros(17)
	buf.PutUint8(t.header.LanguageDriver)
	buf.PutZeros(2)

	for i, f := range t.fields {
		name := make([]byte, 11)
		copy(name, f.Name)
		buf.PutBytes(name)
		buf.PutUint8(byte(f.Type))
		buf.PutUint32(uint32(t.offsets[i]))
		buf.PutUint8(f.Length)
		buf.PutUint8(f.Decimals)
		buf.PutZeros(14)
	}
	buf.PutUint8(fieldEnd)
	return t.w.At(0).WriteBuffer(buf)
}

// Header returns the table header. For created tables it reflects the last
// header write.
func (t *Table) Header() Header {
	return t.header
}

// Fields returns the field definitions.
func (t *Table) Fields() []Field {
	return t.fields
}

// FieldIndex returns the position of the named field, ignoring case, or -1.
func (t *Table) FieldIndex(name string) int {
	for i, f := range t.fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// Encoding returns the text encoding in use.
func (t *Table) Encoding() encoding.Encoding {
	return t.enc
}

// RowCount returns the number of rows, deleted rows included.
func (t *Table) RowCount() int {
	return t.count
}

// FieldCount returns the number of fields.
func (t *Table) FieldCount() int {
	return len(t.fields)
}

// Row decodes row i. Deleted rows come back as nil.
func (t *Table) Row(i int) ([]interface{}, error) {
	switch {
	case t.closed:
		return nil, ErrClosed
	case t.r == nil:
		return nil, ErrWriteOnly
	case i < 0 || i >= t.count:
		return nil, fmt.Errorf("dbf: row %d out of range [0,%d)", i, t.count)
	}
	offset := int64(t.header.HeaderLength) + int64(i)*int64(t.header.RecordLength)
	raw, err := t.r.At(offset).ReadBytes(int(t.header.RecordLength))
	if err != nil {
		if errors.Is(err, bin.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: row %d is truncated", ErrFormat, i)
		}
		return nil, err
	}
	if raw[0] == deletedFlag {
		return nil, nil
	}
	dec := t.enc.NewDecoder()
	row := make([]interface{}, len(t.fields))
	for j, f := range t.fields {
		v, err := decodeValue(dec, f, raw[t.offsets[j]:t.offsets[j]+int(f.Length)])
		if err != nil {
			return nil, fmt.Errorf("row %d field %s: %w", i, f.Name, err)
		}
		row[j] = v
	}
	return row, nil
}

// InsertRow appends a row. values must hold one value per field.
func (t *Table) InsertRow(values []interface{}) error {
	switch {
	case t.closed:
		return ErrClosed
	case t.w == nil:
		return ErrReadOnly
	case len(values) != len(t.fields):
		return fmt.Errorf("%w: %d values for %d fields", ErrValue, len(values), len(t.fields))
	}
	rec := make([]byte, t.header.RecordLength)
	rec[0] = activeFlag
	for j, f := range t.fields {
		if err := t.encodeValue(rec[t.offsets[j]:t.offsets[j]+int(f.Length)], f, values[j]); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	offset := int64(t.header.HeaderLength) + int64(t.count)*int64(t.header.RecordLength)
	if err := t.w.At(offset).WriteBytes(rec); err != nil {
		return err
	}
	t.count++
	return nil
}

// Close finishes a created table by rewriting its header with the row
// count and appending the end-of-file marker, then closes the file opened
// by OpenFile or CreateFile. It is safe to call more than once.
func (t *Table) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	if t.w != nil {
		if err := t.writeHeader(); err != nil {
			errs = append(errs, err)
		}
		end := int64(t.header.HeaderLength) + int64(t.count)*int64(t.header.RecordLength)
		if err := t.w.At(end).WriteBytes([]byte{eofMarker}); err != nil {
			errs = append(errs, err)
		}
	}
	if t.closer != nil {
		if err := t.closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
