package shapefile

import (
	"github.com/paulmach/orb"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

// pointHandler handles Point, PointZ and PointM records.
type pointHandler struct {
	typ ShapeType
}

func (h pointHandler) shapeType() ShapeType { return h.typ }

func (h pointHandler) flatten(s *Shape) (*flatShape, error) {
	p, ok := s.Geometry.(orb.Point)
	if !ok {
		return nil, geometryTypeError(h.typ, s.Geometry)
	}
	z, m, err := s.ordinates()
	if err != nil {
		return nil, err
	}
	f := &flatShape{points: []orb.Point{p}, z: z, m: m}
	f.computeBound()
	return f, nil
}

func (h pointHandler) contentLength(*flatShape) int {
	switch h.typ.Dimension() {
	case DimXYZ:
		return 36
	case DimXYM:
		return 28
	}
	return 20
}

func (h pointHandler) write(buf *bin.Buffer, f *flatShape) {
	buf.PutInt32(int32(h.typ))
	writePoints(buf, f.points)
	if h.typ.HasZ() {
		buf.PutFloat64(zValue(f.z, 0))
	}
	if h.typ.HasM() {
		buf.PutFloat64(mValue(f.m, 0))
	}
}

func (h pointHandler) read(buf *bin.Buffer, recordType ShapeType) (*Shape, error) {
	pts, err := readPoints(buf, 1)
	if err != nil {
		return nil, err
	}
	s := &Shape{Geometry: pts[0]}
	if recordType.HasZ() {
		z, err := buf.Float64()
		if err != nil {
			return nil, err
		}
		s.Z = []float64{z}
	}
	if recordType.HasM() && buf.Remaining() >= 8 {
		if m, _ := buf.Float64(); !IsNoData(m) {
			s.M = []float64{m}
		}
	}
	return s, nil
}
