package fgb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/orb-shapefile/dbf"
)

// column is one FlatGeobuf property column derived from a dBase field.
type column struct {
	name string
	typ  flattypes.ColumnType
}

// schema lists the columns in attribute table order. A property's column
// index is its position here.
type schema []column

func newSchema(fields []dbf.Field) (schema, error) {
	if len(fields) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d fields", ErrInvalidColumn, len(fields))
	}
	s := make(schema, 0, len(fields))
	for _, f := range fields {
		typ, err := columnTypeFor(f)
		if err != nil {
			return nil, err
		}
		s = append(s, column{name: f.Name, typ: typ})
	}
	return s, nil
}

// columnTypeFor maps a dBase field to a FlatGeobuf column type. Numeric
// fields without decimals read back as integers and become Long.
func columnTypeFor(f dbf.Field) (flattypes.ColumnType, error) {
	switch f.Type {
	case dbf.Character:
		return flattypes.ColumnTypeString, nil
	case dbf.Numeric:
		if f.Decimals == 0 {
			return flattypes.ColumnTypeLong, nil
		}
		return flattypes.ColumnTypeDouble, nil
	case dbf.Float:
		return flattypes.ColumnTypeDouble, nil
	case dbf.Logical:
		return flattypes.ColumnTypeBool, nil
	case dbf.Date:
		return flattypes.ColumnTypeDateTime, nil
	}
	return 0, fmt.Errorf("%w: field %s has type %v", ErrInvalidColumn, f.Name, f.Type)
}

func (s schema) build(builder *flatbuffers.Builder) []*writer.Column {
	columns := make([]*writer.Column, 0, len(s))
	for _, c := range s {
		col := writer.NewColumn(builder)
		col.SetName(c.name)
		col.SetTitle(c.name) // JS readers display the title
		col.SetType(c.typ)
		col.SetNullable(true)
		columns = append(columns, col)
	}
	return columns
}

// encode writes one attribute row as FlatGeobuf properties: a uint16 column
// index followed by the value, for each non-null value. Strings and
// date-times carry a uint32 byte length.
func (s schema) encode(values []interface{}) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}
	if len(values) != len(s) {
		return nil, fmt.Errorf("%w: %d values for %d columns", ErrPropertyMismatch, len(values), len(s))
	}

	var buf bytes.Buffer
	for i, v := range values {
		if v == nil {
			continue
		}
		if err := binary.Write(&buf, binary.LittleEndian, uint16(i)); err != nil {
			return nil, err
		}
		if err := writePropertyValue(&buf, v, s[i].typ); err != nil {
			return nil, fmt.Errorf("column %s: %w", s[i].name, err)
		}
	}
	return buf.Bytes(), nil
}

func writePropertyValue(buf *bytes.Buffer, value interface{}, typ flattypes.ColumnType) error {
	var b [8]byte
	switch typ {
	case flattypes.ColumnTypeBool:
		v, ok := value.(bool)
		if !ok {
			break
		}
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		return nil

	case flattypes.ColumnTypeLong:
		v, ok := toInt64(value)
		if !ok {
			break
		}
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		buf.Write(b[:])
		return nil

	case flattypes.ColumnTypeDouble:
		v, ok := toFloat64(value)
		if !ok {
			break
		}
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		buf.Write(b[:])
		return nil

	case flattypes.ColumnTypeString:
		v, ok := value.(string)
		if !ok {
			break
		}
		writeString(buf, v)
		return nil

	case flattypes.ColumnTypeDateTime:
		switch v := value.(type) {
		case time.Time:
			writeString(buf, v.Format(time.RFC3339))
			return nil
		case string:
			writeString(buf, v)
			return nil
		}

	default:
		return fmt.Errorf("%w: %v", ErrInvalidColumn, flattypes.EnumNamesColumnType[typ])
	}
	return fmt.Errorf("%w: %T in %v column", ErrPropertyMismatch, value, flattypes.EnumNamesColumnType[typ])
}

func writeString(buf *bytes.Buffer, s string) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

// decodeProperties decodes FlatGeobuf binary properties to geojson.Properties.
func decodeProperties(data []byte, header *flattypes.Header) (geojson.Properties, error) {
	props := make(geojson.Properties)
	for offset := 0; offset < len(data); {
		if offset+2 > len(data) {
			return nil, fmt.Errorf("%w: truncated column index at %d", ErrInvalidData, offset)
		}
		colIndex := int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2

		var col flattypes.Column
		if colIndex >= header.ColumnsLength() || !header.Columns(&col, colIndex) {
			return nil, fmt.Errorf("%w: column index %d out of range", ErrInvalidData, colIndex)
		}

		value, n, err := readPropertyValue(data[offset:], col.Type())
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name(), err)
		}
		offset += n
		props[string(col.Name())] = value
	}
	return props, nil
}

// readPropertyValue reads one value and returns it with the number of bytes
// consumed.
func readPropertyValue(data []byte, typ flattypes.ColumnType) (interface{}, int, error) {
	need := func(n int) error {
		if len(data) < n {
			return fmt.Errorf("%w: %d bytes left, %v needs %d", ErrInvalidData, len(data), flattypes.EnumNamesColumnType[typ], n)
		}
		return nil
	}

	switch typ {
	case flattypes.ColumnTypeBool:
		if err := need(1); err != nil {
			return nil, 0, err
		}
		return data[0] != 0, 1, nil

	case flattypes.ColumnTypeInt:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		return int64(int32(binary.LittleEndian.Uint32(data))), 4, nil

	case flattypes.ColumnTypeLong:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		return int64(binary.LittleEndian.Uint64(data)), 8, nil

	case flattypes.ColumnTypeDouble:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), 8, nil

	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime, flattypes.ColumnTypeJson:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		n := int(binary.LittleEndian.Uint32(data))
		if err := need(4 + n); err != nil {
			return nil, 0, err
		}
		return string(data[4 : 4+n]), 4 + n, nil
	}
	return nil, 0, fmt.Errorf("%w: %v", ErrInvalidColumn, flattypes.EnumNamesColumnType[typ])
}

func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<63 {
			return int64(val), true
		}
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	}
	return 0, false
}
