package shapefile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

// shapeHandler encodes and decodes the record content of one shape family
// at one dimension. Content starts with the little-endian type code, which
// write emits and read expects already consumed.
type shapeHandler interface {
	shapeType() ShapeType
	flatten(s *Shape) (*flatShape, error)
	contentLength(f *flatShape) int
	write(buf *bin.Buffer, f *flatShape)
	read(buf *bin.Buffer, recordType ShapeType) (*Shape, error)
}

// handlerFor returns the handler for records of shape type t.
func handlerFor(t ShapeType, opts *Options) (shapeHandler, error) {
	switch t.Family() {
	case FamilyPoint:
		return pointHandler{t}, nil
	case FamilyMultiPoint:
		return multiPointHandler{t}, nil
	case FamilyPolyLine:
		return polyLineHandler{t}, nil
	case FamilyPolygon:
		return &polygonHandler{typ: t, logger: opts.Logger, metrics: opts.Metrics}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedShapeType, t)
}

// ContentLength returns the record content length in 16-bit words that
// EncodeShape would produce for s under shape type t.
func ContentLength(t ShapeType, s *Shape) (int32, error) {
	if s.IsNull() {
		return 2, nil
	}
	h, err := handlerFor(t, DefaultOptions())
	if err != nil {
		return 0, err
	}
	f, err := h.flatten(s)
	if err != nil {
		return 0, err
	}
	return int32(h.contentLength(f) / 2), nil
}

// EncodeShape returns the record content (type code included) of s under
// shape type t. A null shape encodes as the 4-byte null record.
func EncodeShape(t ShapeType, s *Shape) ([]byte, error) {
	buf := bin.NewBuffer(64)
	if _, err := encodeFlat(buf, t, s, DefaultOptions()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeShape parses record content (type code included) of a file of shape
// type t. A null record decodes as a Shape with nil Geometry.
func DecodeShape(t ShapeType, content []byte) (*Shape, error) {
	return decodeContent(bin.FromBytes(content), t, DefaultOptions())
}

// encodeFlat writes the content of s at the cursor of buf and returns the
// flattened shape, or nil for a null record.
func encodeFlat(buf *bin.Buffer, t ShapeType, s *Shape, opts *Options) (*flatShape, error) {
	if s.IsNull() {
		buf.SetOrder(binary.LittleEndian)
		buf.PutInt32(int32(NullShape))
		return nil, nil
	}
	h, err := handlerFor(t, opts)
	if err != nil {
		return nil, err
	}
	f, err := h.flatten(s)
	if err != nil {
		return nil, err
	}
	start := buf.Pos()
	buf.SetOrder(binary.LittleEndian)
	h.write(buf, f)
	if n := buf.Pos() - start; n != h.contentLength(f) {
		return nil, fmt.Errorf("shapefile: %v wrote %d bytes, expected %d", t, n, h.contentLength(f))
	}
	return f, nil
}

func decodeContent(buf *bin.Buffer, t ShapeType, opts *Options) (*Shape, error) {
	buf.SetOrder(binary.LittleEndian)
	code, err := buf.Int32()
	if err != nil {
		return nil, fmt.Errorf("%w: record has no shape type", ErrTruncated)
	}
	recordType, err := ShapeTypeFromCode(code)
	if err != nil {
		return nil, err
	}
	if recordType == NullShape {
		return &Shape{}, nil
	}
	if recordType != t {
		return nil, fmt.Errorf("%w: expected %v, got %v", ErrTypeMismatch, t, recordType)
	}
	h, err := handlerFor(t, opts)
	if err != nil {
		return nil, err
	}
	s, err := h.read(buf, recordType)
	if errors.Is(err, bin.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %v record content", ErrTruncated, recordType)
	}
	return s, err
}

// ordinateLength is the byte size of the Z and M blocks of a multi-vertex
// record with n points.
func ordinateLength(t ShapeType, n int) int {
	l := 0
	if t.HasZ() {
		l += 16 + 8*n
	}
	if t.HasM() {
		l += 16 + 8*n
	}
	return l
}

func writeBound(buf *bin.Buffer, b orb.Bound) {
	buf.PutFloat64(b.Min[0])
	buf.PutFloat64(b.Min[1])
	buf.PutFloat64(b.Max[0])
	buf.PutFloat64(b.Max[1])
}

func writePoints(buf *bin.Buffer, pts []orb.Point) {
	for _, p := range pts {
		buf.PutFloat64(p[0])
		buf.PutFloat64(p[1])
	}
}

func writeParts(buf *bin.Buffer, parts []int32) {
	for _, p := range parts {
		buf.PutInt32(p)
	}
}

// zValue returns the i-th Z value, or 0 when absent or NaN.
func zValue(z []float64, i int) float64 {
	if z == nil || math.IsNaN(z[i]) {
		return 0
	}
	return z[i]
}

// mValue returns the i-th measure, or NoData when absent.
func mValue(m []float64, i int) float64 {
	if m == nil || IsNoData(m[i]) {
		return NoData
	}
	return m[i]
}

// writeOrdinates emits the Z block (when t has Z) and the M block (when t
// has M) for n points, each as a range followed by the values.
func writeOrdinates(buf *bin.Buffer, t ShapeType, n int, z, m []float64) {
	if t.HasZ() {
		writeRange(buf, n, func(i int) float64 { return zValue(z, i) }, false)
	}
	if t.HasM() {
		writeRange(buf, n, func(i int) float64 { return mValue(m, i) }, true)
	}
}

func writeRange(buf *bin.Buffer, n int, value func(int) float64, measure bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		v := value(i)
		if measure && IsNoData(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		if measure {
			lo, hi = NoData, NoData
		} else {
			lo, hi = 0, 0
		}
	}
	buf.PutFloat64(lo)
	buf.PutFloat64(hi)
	for i := 0; i < n; i++ {
		buf.PutFloat64(value(i))
	}
}

// readOrdinates reads the optional Z and M blocks for n points. A block
// missing from the end of the record is treated as absent. Measures that
// are all NoData come back as nil.
func readOrdinates(buf *bin.Buffer, t ShapeType, n int) (z, m []float64, err error) {
	if t.HasZ() {
		if err := buf.Skip(16); err != nil {
			return nil, nil, err
		}
		if z, err = buf.Float64s(n); err != nil {
			return nil, nil, err
		}
	}
	if t.HasM() && buf.Remaining() >= 16+8*n {
		_ = buf.Skip(16)
		m, _ = buf.Float64s(n)
		if allNoData(m) {
			m = nil
		}
	}
	return z, m, nil
}

func allNoData(m []float64) bool {
	for _, v := range m {
		if !IsNoData(v) {
			return false
		}
	}
	return true
}

// readParts reads numParts part offsets and validates them against
// numPoints. The returned slice carries a trailing numPoints sentinel.
func readParts(buf *bin.Buffer, numParts, numPoints int) ([]int, error) {
	if numParts < 0 || numPoints < 0 {
		return nil, fmt.Errorf("%w: negative part or point count", ErrFormat)
	}
	if numParts > buf.Remaining()/4 || numPoints > buf.Remaining()/16 {
		return nil, bin.ErrUnexpectedEOF
	}
	parts := make([]int, numParts+1)
	for i := 0; i < numParts; i++ {
		v, err := buf.Int32()
		if err != nil {
			return nil, err
		}
		parts[i] = int(v)
		if parts[i] < 0 || parts[i] > numPoints || (i > 0 && parts[i] < parts[i-1]) {
			return nil, fmt.Errorf("%w: invalid part offset %d", ErrFormat, v)
		}
	}
	parts[numParts] = numPoints
	return parts, nil
}

func readPoints(buf *bin.Buffer, n int) ([]orb.Point, error) {
	coords, err := buf.Float64s(2 * n)
	if err != nil {
		return nil, err
	}
	pts := make([]orb.Point, n)
	for i := range pts {
		pts[i] = orb.Point{coords[2*i], coords[2*i+1]}
	}
	return pts, nil
}

func geometryTypeError(t ShapeType, g orb.Geometry) error {
	return fmt.Errorf("%w: %T for %v", ErrGeometryType, g, t)
}
