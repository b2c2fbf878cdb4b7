// Package dbf reads and writes dBase III tables, the attribute part of a
// shapefile. Text fields are decoded with the table's code page, taken from
// a .cpg file or the language driver byte of the header.
package dbf

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrFormat    = errors.New("dbf: invalid file format")
	ErrFieldType = errors.New("dbf: unsupported field type")
	ErrValue     = errors.New("dbf: value does not fit field")
	ErrReadOnly  = errors.New("dbf: table opened for reading")
	ErrWriteOnly = errors.New("dbf: table opened for writing")
	ErrClosed    = errors.New("dbf: table closed")
)

// File layout constants.
const (
	version        = 0x03
	headerSize     = 32
	descriptorSize = 32
	maxNameLength  = 10
	fieldEnd       = 0x0D
	eofMarker      = 0x1A
	deletedFlag    = '*'
	activeFlag     = ' '
)

// FieldType is the one-letter dBase field type.
type FieldType byte

// Supported field types.
const (
	Character FieldType = 'C'
	Numeric   FieldType = 'N'
	Float     FieldType = 'F'
	Logical   FieldType = 'L'
	Date      FieldType = 'D'
)

func (t FieldType) String() string {
	switch t {
	case Character:
		return "Character"
	case Numeric:
		return "Numeric"
	case Float:
		return "Float"
	case Logical:
		return "Logical"
	case Date:
		return "Date"
	}
	return fmt.Sprintf("FieldType(%q)", byte(t))
}

// Field describes one column of a table.
type Field struct {
	Name     string
	Type     FieldType
	Length   uint8
	Decimals uint8
}

// CharField returns a text field of the given byte length (at most 254).
func CharField(name string, length uint8) Field {
	return Field{Name: name, Type: Character, Length: length}
}

// NumericField returns a numeric field. Values with decimals == 0 read back
// as int64.
func NumericField(name string, length, decimals uint8) Field {
	return Field{Name: name, Type: Numeric, Length: length, Decimals: decimals}
}

// FloatField returns a floating point field.
func FloatField(name string, length, decimals uint8) Field {
	return Field{Name: name, Type: Float, Length: length, Decimals: decimals}
}

// LogicalField returns a one-byte boolean field.
func LogicalField(name string) Field {
	return Field{Name: name, Type: Logical, Length: 1}
}

// DateField returns an eight-byte YYYYMMDD date field.
func DateField(name string) Field {
	return Field{Name: name, Type: Date, Length: 8}
}

// normalize checks f and applies the format's fixed lengths. Names longer
// than ten bytes are truncated.
func (f Field) normalize() (Field, error) {
	if len(f.Name) > maxNameLength {
		f.Name = f.Name[:maxNameLength]
	}
	if f.Name == "" {
		return f, fmt.Errorf("%w: empty field name", ErrFormat)
	}
	switch f.Type {
	case Date:
		f.Length, f.Decimals = 8, 0
	case Logical:
		f.Length, f.Decimals = 1, 0
	case Character:
		f.Decimals = 0
		if f.Length == 0 || f.Length > 254 {
			return f, fmt.Errorf("%w: character field %s has length %d", ErrFormat, f.Name, f.Length)
		}
	case Numeric, Float:
		if f.Length == 0 {
			return f, fmt.Errorf("%w: numeric field %s has length 0", ErrFormat, f.Name)
		}
		if f.Decimals >= f.Length {
			f.Decimals = f.Length - 1
		}
	default:
		return f, fmt.Errorf("%w: %q for %s", ErrFieldType, byte(f.Type), f.Name)
	}
	return f, nil
}

// Header is the fixed part of a table header.
type Header struct {
	Updated        time.Time
	RecordCount    uint32
	HeaderLength   uint16
	RecordLength   uint16
	LanguageDriver byte
}

func (h Header) String() string {
	return fmt.Sprintf("Header[records=%d header=%d record=%d ldid=0x%02X updated=%s]",
		h.RecordCount, h.HeaderLength, h.RecordLength, h.LanguageDriver, h.Updated.Format("2006-01-02"))
}

// layout returns the header and record lengths for fields.
func layout(fields []Field) (headerLength, recordLength int) {
	recordLength = 1
	for _, f := range fields {
		recordLength += int(f.Length)
	}
	return headerSize + descriptorSize*len(fields) + 1, recordLength
}

// updateYear converts the one-byte header year.
func updateYear(b byte) int {
	y := int(b)
	if y > 90 {
		return 1900 + y
	}
	return 2000 + y
}
