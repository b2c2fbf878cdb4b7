package dbf

import (
	"encoding/json"
	"strconv"
	"time"
)

type valueKind int

const (
	kindNone valueKind = iota
	kindBool
	kindInt
	kindFloat
	kindDate
	kindString
)

// Widths used for inferred fields.
const (
	minCharLength  = 10
	maxCharLength  = 254
	intLength      = 18
	floatLength    = 24
	floatDecimals  = 15
	defaultNumeric = 10
)

// InferField picks a field definition able to hold every value. Nil values
// are ignored; a column of only nils becomes a short text field.
func InferField(name string, values []interface{}) Field {
	kind := kindNone
	width := 0
	for _, v := range values {
		k := inferKind(v)
		if k == kindNone {
			continue
		}
		if kind == kindNone {
			kind = k
		} else {
			kind = promoteKind(kind, k)
		}
		if n := len(toString(v)); n > width {
			width = n
		}
	}

	switch kind {
	case kindBool:
		return LogicalField(name)
	case kindInt:
		if width < defaultNumeric {
			width = defaultNumeric
		}
		if width > intLength+2 {
			width = intLength + 2
		}
		return NumericField(name, uint8(width), 0)
	case kindFloat:
		return NumericField(name, floatLength, floatDecimals)
	case kindDate:
		return DateField(name)
	}
	if width < minCharLength {
		width = minCharLength
	}
	if width > maxCharLength {
		width = maxCharLength
	}
	return CharField(name, uint8(width))
}

// inferKind determines the field kind for a Go value.
func inferKind(value interface{}) valueKind {
	switch v := value.(type) {
	case nil:
		return kindNone
	case bool:
		return kindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return kindInt
	case float32, float64:
		return kindFloat
	case json.Number:
		if _, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return kindInt
		}
		return kindFloat
	case time.Time:
		return kindDate
	default:
		return kindString
	}
}

// promoteKind returns the more general kind when values disagree.
func promoteKind(a, b valueKind) valueKind {
	if a == b {
		return a
	}
	if (a == kindInt && b == kindFloat) || (a == kindFloat && b == kindInt) {
		return kindFloat
	}
	return kindString
}
