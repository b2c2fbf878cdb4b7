package shapefile

import (
	"github.com/paulmach/orb"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

// multiPointHandler handles MultiPoint, MultiPointZ and MultiPointM records.
// A single orb.Point is written as a one-point multipoint.
type multiPointHandler struct {
	typ ShapeType
}

func (h multiPointHandler) shapeType() ShapeType { return h.typ }

func (h multiPointHandler) flatten(s *Shape) (*flatShape, error) {
	var pts []orb.Point
	switch g := s.Geometry.(type) {
	case orb.MultiPoint:
		pts = g
	case orb.Point:
		pts = []orb.Point{g}
	default:
		return nil, geometryTypeError(h.typ, s.Geometry)
	}
	z, m, err := s.ordinates()
	if err != nil {
		return nil, err
	}
	f := &flatShape{points: pts, z: z, m: m}
	f.computeBound()
	return f, nil
}

func (h multiPointHandler) contentLength(f *flatShape) int {
	n := len(f.points)
	return 40 + 16*n + ordinateLength(h.typ, n)
}

func (h multiPointHandler) write(buf *bin.Buffer, f *flatShape) {
	buf.PutInt32(int32(h.typ))
	writeBound(buf, f.bound)
	buf.PutInt32(int32(len(f.points)))
	writePoints(buf, f.points)
	writeOrdinates(buf, h.typ, len(f.points), f.z, f.m)
}

func (h multiPointHandler) read(buf *bin.Buffer, recordType ShapeType) (*Shape, error) {
	if err := buf.Skip(32); err != nil {
		return nil, err
	}
	n, err := buf.Int32()
	if err != nil {
		return nil, err
	}
	if n < 0 || int(n) > buf.Remaining()/16 {
		return nil, bin.ErrUnexpectedEOF
	}
	pts, err := readPoints(buf, int(n))
	if err != nil {
		return nil, err
	}
	z, m, err := readOrdinates(buf, recordType, int(n))
	if err != nil {
		return nil, err
	}
	return &Shape{Geometry: orb.MultiPoint(pts), Z: z, M: m}, nil
}
