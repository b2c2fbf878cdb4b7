package dbf

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
)

const dateLayout = "20060102"

// decodeValue converts the raw bytes of one field. Blank values are nil.
func decodeValue(dec *encoding.Decoder, f Field, raw []byte) (interface{}, error) {
	switch f.Type {
	case Logical:
		switch raw[0] {
		case 'T', 't', 'Y', 'y':
			return true, nil
		case 'F', 'f', 'N', 'n':
			return false, nil
		}
		return nil, nil

	case Numeric, Float:
		s := strings.TrimSpace(string(raw))
		if s == "" || s[0] == '*' {
			return nil, nil
		}
		if f.Type == Numeric && f.Decimals == 0 {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				return v, nil
			}
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrFormat, s)
		}
		return v, nil

	case Date:
		s := strings.TrimSpace(string(raw))
		if s == "" || s == "00000000" {
			return nil, nil
		}
		v, err := time.Parse(dateLayout, s)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", ErrFormat, s)
		}
		return v, nil
	}

	// Character and any type this package does not interpret.
	text, err := dec.Bytes(raw)
	if err != nil {
		text = raw
	}
	s := strings.Trim(string(text), " \x00")
	if s == "" {
		return nil, nil
	}
	return s, nil
}

// encodeValue writes v into dst, the zeroed field slot of a record.
func (t *Table) encodeValue(dst []byte, f Field, v interface{}) error {
	fill(dst, ' ')
	switch f.Type {
	case Logical:
		switch b := v.(type) {
		case nil:
			dst[0] = '?'
		case bool:
			dst[0] = 'F'
			if b {
				dst[0] = 'T'
			}
		default:
			return fmt.Errorf("%w: %T is not a boolean", ErrValue, v)
		}
		return nil

	case Date:
		switch d := v.(type) {
		case nil:
		case time.Time:
			copy(dst, d.Format(dateLayout))
		default:
			return fmt.Errorf("%w: %T is not a date", ErrValue, v)
		}
		return nil

	case Numeric, Float:
		if v == nil {
			return nil
		}
		s, err := formatNumber(f, v)
		if err != nil {
			return err
		}
		if len(s) > len(dst) {
			return fmt.Errorf("%w: %s needs %d bytes, field holds %d", ErrValue, s, len(s), len(dst))
		}
		copy(dst[len(dst)-len(s):], s)
		return nil
	}

	if v == nil {
		return nil
	}
	text, err := t.encoder.String(toString(v))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValue, err)
	}
	copy(dst, text)
	return nil
}

func formatNumber(f Field, v interface{}) (string, error) {
	if f.Decimals == 0 {
		if i, ok := toInt64(v); ok {
			return strconv.FormatInt(i, 10), nil
		}
	}
	x, ok := toFloat64(v)
	if !ok {
		return "", fmt.Errorf("%w: %T is not a number", ErrValue, v)
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "", nil
	}
	return strconv.FormatFloat(x, 'f', int(f.Decimals), 64), nil
}

func fill(b []byte, c byte) {
	for i := range b {
		b[i] = c
	}
}

// Value conversion helpers

func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint:
		return int64(val), true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		if val <= math.MaxInt64 {
			return int64(val), true
		}
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(val)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
