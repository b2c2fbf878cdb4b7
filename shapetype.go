package shapefile

import (
	"fmt"
)

// ShapeType is the ESRI shape type code stored in headers and records.
type ShapeType int32

// Shape types handled by this package. MultiPatch (31) is not supported.
const (
	NullShape   ShapeType = 0
	Point       ShapeType = 1
	PolyLine    ShapeType = 3
	Polygon     ShapeType = 5
	MultiPoint  ShapeType = 8
	PointZ      ShapeType = 11
	PolyLineZ   ShapeType = 13
	PolygonZ    ShapeType = 15
	MultiPointZ ShapeType = 18
	PointM      ShapeType = 21
	PolyLineM   ShapeType = 23
	PolygonM    ShapeType = 25
	MultiPointM ShapeType = 28
)

// Family groups shape types sharing a record layout.
type Family int

// Shape families.
const (
	FamilyNull Family = iota
	FamilyPoint
	FamilyMultiPoint
	FamilyPolyLine
	FamilyPolygon
)

func (f Family) String() string {
	switch f {
	case FamilyNull:
		return "Null"
	case FamilyPoint:
		return "Point"
	case FamilyMultiPoint:
		return "MultiPoint"
	case FamilyPolyLine:
		return "PolyLine"
	case FamilyPolygon:
		return "Polygon"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// Dimension describes which optional ordinates a shape type carries.
type Dimension int

// Dimensions. Z types also carry an M block.
const (
	DimXY Dimension = iota
	DimXYM
	DimXYZ
)

type shapeTypeInfo struct {
	name   string
	family Family
	dim    Dimension
}

var shapeTypes = map[ShapeType]shapeTypeInfo{
	NullShape:   {"NullShape", FamilyNull, DimXY},
	Point:       {"Point", FamilyPoint, DimXY},
	PolyLine:    {"PolyLine", FamilyPolyLine, DimXY},
	Polygon:     {"Polygon", FamilyPolygon, DimXY},
	MultiPoint:  {"MultiPoint", FamilyMultiPoint, DimXY},
	PointZ:      {"PointZ", FamilyPoint, DimXYZ},
	PolyLineZ:   {"PolyLineZ", FamilyPolyLine, DimXYZ},
	PolygonZ:    {"PolygonZ", FamilyPolygon, DimXYZ},
	MultiPointZ: {"MultiPointZ", FamilyMultiPoint, DimXYZ},
	PointM:      {"PointM", FamilyPoint, DimXYM},
	PolyLineM:   {"PolyLineM", FamilyPolyLine, DimXYM},
	PolygonM:    {"PolygonM", FamilyPolygon, DimXYM},
	MultiPointM: {"MultiPointM", FamilyMultiPoint, DimXYM},
}

// ShapeTypeFromCode validates a numeric type code.
func ShapeTypeFromCode(code int32) (ShapeType, error) {
	t := ShapeType(code)
	if !t.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedShapeType, code)
	}
	return t, nil
}

// ShapeTypeOf returns the shape type for a family and dimension.
func ShapeTypeOf(f Family, dim Dimension) (ShapeType, error) {
	for t, info := range shapeTypes {
		if info.family == f && info.dim == dim && t != NullShape {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: family %v dimension %d", ErrUnsupportedShapeType, f, dim)
}

// IsValid reports whether t is a known shape type.
func (t ShapeType) IsValid() bool {
	_, ok := shapeTypes[t]
	return ok
}

// Family returns the record layout family of t.
func (t ShapeType) Family() Family {
	return shapeTypes[t].family
}

// Dimension returns the ordinates carried by t.
func (t ShapeType) Dimension() Dimension {
	return shapeTypes[t].dim
}

// HasZ reports whether records of type t carry a Z block.
func (t ShapeType) HasZ() bool {
	return t.Dimension() == DimXYZ
}

// HasM reports whether records of type t carry an M block.
func (t ShapeType) HasM() bool {
	d := t.Dimension()
	return d == DimXYM || d == DimXYZ
}

func (t ShapeType) String() string {
	if info, ok := shapeTypes[t]; ok {
		return info.name
	}
	return fmt.Sprintf("ShapeType(%d)", int32(t))
}
