package shapefile

import (
	"github.com/paulmach/orb"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

// polyLineHandler handles PolyLine, PolyLineZ and PolyLineM records. Records
// always decode to an orb.MultiLineString.
type polyLineHandler struct {
	typ ShapeType
}

func (h polyLineHandler) shapeType() ShapeType { return h.typ }

func (h polyLineHandler) flatten(s *Shape) (*flatShape, error) {
	var lines orb.MultiLineString
	switch g := s.Geometry.(type) {
	case orb.LineString:
		lines = orb.MultiLineString{g}
	case orb.MultiLineString:
		lines = g
	default:
		return nil, geometryTypeError(h.typ, s.Geometry)
	}
	z, m, err := s.ordinates()
	if err != nil {
		return nil, err
	}

	f := &flatShape{}
	if z != nil {
		f.z = make([]float64, 0, len(z))
	}
	if m != nil {
		f.m = make([]float64, 0, len(m))
	}
	offset := 0
	for _, ls := range lines {
		n := len(ls)
		if n > 0 {
			f.parts = append(f.parts, int32(len(f.points)))
			f.points = append(f.points, ls...)
			if z != nil {
				f.z = append(f.z, z[offset:offset+n]...)
			}
			if m != nil {
				f.m = append(f.m, m[offset:offset+n]...)
			}
		}
		offset += n
	}
	f.computeBound()
	return f, nil
}

func (h polyLineHandler) contentLength(f *flatShape) int {
	return multiPartLength(h.typ, f)
}

func (h polyLineHandler) write(buf *bin.Buffer, f *flatShape) {
	writeMultiPart(buf, h.typ, f)
}

func (h polyLineHandler) read(buf *bin.Buffer, recordType ShapeType) (*Shape, error) {
	parts, pts, z, m, err := readMultiPart(buf, recordType)
	if err != nil {
		return nil, err
	}

	s := &Shape{}
	var outZ, outM []float64
	lines := make(orb.MultiLineString, 0, len(parts)-1)
	for i := 0; i+1 < len(parts); i++ {
		start, end := parts[i], parts[i+1]
		switch end - start {
		case 0:
			continue
		case 1:
			// A one-point part becomes a zero-length two-point line.
			lines = append(lines, orb.LineString{pts[start], pts[start]})
			outZ = appendRepeat(outZ, z, start, 2)
			outM = appendRepeat(outM, m, start, 2)
		default:
			lines = append(lines, orb.LineString(pts[start:end]))
			if z != nil {
				outZ = append(outZ, z[start:end]...)
			}
			if m != nil {
				outM = append(outM, m[start:end]...)
			}
		}
	}
	s.Geometry = lines
	s.Z = outZ
	s.M = outM
	return s, nil
}

func appendRepeat(dst, src []float64, i, n int) []float64 {
	if src == nil {
		return dst
	}
	for ; n > 0; n-- {
		dst = append(dst, src[i])
	}
	return dst
}

// multiPartLength is the content length shared by polyline and polygon
// records.
func multiPartLength(t ShapeType, f *flatShape) int {
	n := len(f.points)
	return 44 + 4*len(f.parts) + 16*n + ordinateLength(t, n)
}

func writeMultiPart(buf *bin.Buffer, t ShapeType, f *flatShape) {
	buf.PutInt32(int32(t))
	writeBound(buf, f.bound)
	buf.PutInt32(int32(len(f.parts)))
	buf.PutInt32(int32(len(f.points)))
	writeParts(buf, f.parts)
	writePoints(buf, f.points)
	writeOrdinates(buf, t, len(f.points), f.z, f.m)
}

// readMultiPart reads the common polyline and polygon layout. parts ends
// with a numPoints sentinel.
func readMultiPart(buf *bin.Buffer, t ShapeType) (parts []int, pts []orb.Point, z, m []float64, err error) {
	if err = buf.Skip(32); err != nil {
		return
	}
	numParts, err := buf.Int32()
	if err != nil {
		return
	}
	numPoints, err := buf.Int32()
	if err != nil {
		return
	}
	if parts, err = readParts(buf, int(numParts), int(numPoints)); err != nil {
		return
	}
	if pts, err = readPoints(buf, int(numPoints)); err != nil {
		return
	}
	z, m, err = readOrdinates(buf, t, int(numPoints))
	return
}
