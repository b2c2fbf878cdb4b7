package shapefile

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

// zOf and mOf derive ordinates from a vertex so tests can check that Z and
// M stay attached to their vertex through reordering.
func zOf(p orb.Point) float64 { return p[0] + 1000*p[1] }
func mOf(p orb.Point) float64 { return -p[0] - 0.5*p[1] }

func ordinatesFor(g orb.Geometry, f func(orb.Point) float64) []float64 {
	var out []float64
	visit := func(pts []orb.Point) {
		for _, p := range pts {
			out = append(out, f(p))
		}
	}
	switch v := g.(type) {
	case orb.Point:
		visit([]orb.Point{v})
	case orb.MultiPoint:
		visit(v)
	case orb.MultiLineString:
		for _, ls := range v {
			visit(ls)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			for _, r := range p {
				visit(r)
			}
		}
	}
	return out
}

// cwSquare and ccwSquare return closed square rings.
func cwSquare(x0, y0, x1, y1 float64) orb.Ring {
	return orb.Ring{{x0, y0}, {x0, y1}, {x1, y1}, {x1, y0}, {x0, y0}}
}

func ccwSquare(x0, y0, x1, y1 float64) orb.Ring {
	return orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
}

// rawMultiPart encodes polyline or polygon content without any ring
// repair, for building malformed input.
func rawMultiPart(t ShapeType, parts ...[]orb.Point) []byte {
	f := &flatShape{}
	for _, p := range parts {
		f.parts = append(f.parts, int32(len(f.points)))
		f.points = append(f.points, p...)
	}
	f.computeBound()
	buf := bin.NewBuffer(64)
	buf.SetOrder(binary.LittleEndian)
	writeMultiPart(buf, t, f)
	return buf.Bytes()
}

func TestShape_RoundTripAllTypes(t *testing.T) {
	geoms := map[Family]orb.Geometry{
		FamilyPoint:      orb.Point{1.5, -2.25},
		FamilyMultiPoint: orb.MultiPoint{{0, 0}, {1, 2}, {3, 4}},
		FamilyPolyLine: orb.MultiLineString{
			{{0, 0}, {1, 1}, {2, 0}},
			{{5, 5}, {6, 7}},
		},
		FamilyPolygon: orb.MultiPolygon{
			{cwSquare(0, 0, 10, 10), ccwSquare(2, 2, 4, 4)},
			{cwSquare(20, 0, 30, 10)},
		},
	}

	for st := range shapeTypes {
		if st == NullShape {
			continue
		}
		t.Run(st.String(), func(t *testing.T) {
			g := geoms[st.Family()]
			in := &Shape{Geometry: g}
			if st.HasZ() {
				in.Z = ordinatesFor(g, zOf)
			}
			if st.HasM() {
				in.M = ordinatesFor(g, mOf)
			}

			content, err := EncodeShape(st, in)
			require.NoError(t, err)

			words, err := ContentLength(st, in)
			require.NoError(t, err)
			require.Equal(t, len(content), 2*int(words))

			out, err := DecodeShape(st, content)
			require.NoError(t, err)
			require.Equal(t, in.Geometry, out.Geometry)
			require.Equal(t, in.Z, out.Z)
			require.Equal(t, in.M, out.M)
		})
	}
}

func TestContentLength_Formulas(t *testing.T) {
	mp := &Shape{Geometry: orb.MultiPoint{{0, 0}, {1, 1}, {2, 2}}}
	line := &Shape{Geometry: orb.LineString{{0, 0}, {1, 1}, {2, 2}}}
	poly := &Shape{Geometry: orb.Polygon{cwSquare(0, 0, 1, 1), ccwSquare(0.2, 0.2, 0.4, 0.4)}}

	tests := []struct {
		st    ShapeType
		shape *Shape
		bytes int
	}{
		{Point, NewShape(orb.Point{1, 2}), 20},
		{PointM, NewShape(orb.Point{1, 2}), 28},
		{PointZ, NewShape(orb.Point{1, 2}), 36},
		{MultiPoint, mp, 40 + 16*3},
		{MultiPointM, mp, 40 + 16*3 + 16 + 8*3},
		{MultiPointZ, mp, 40 + 16*3 + 2*(16+8*3)},
		{PolyLine, line, 44 + 4 + 16*3},
		{PolyLineZ, line, 44 + 4 + 16*3 + 2*(16+8*3)},
		{Polygon, poly, 44 + 4*2 + 16*10},
		{PolygonM, poly, 44 + 4*2 + 16*10 + 16 + 8*10},
		{Polygon, nil, 4},
	}

	for _, tt := range tests {
		t.Run(tt.st.String(), func(t *testing.T) {
			words, err := ContentLength(tt.st, tt.shape)
			require.NoError(t, err)
			require.Equal(t, tt.bytes, 2*int(words))

			content, err := EncodeShape(tt.st, tt.shape)
			require.NoError(t, err)
			require.Len(t, content, tt.bytes)
		})
	}
}

func TestShape_NullRecord(t *testing.T) {
	content, err := EncodeShape(PolyLineZ, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0}, content)

	s, err := DecodeShape(PolyLineZ, content)
	require.NoError(t, err)
	require.True(t, s.IsNull())
	require.Equal(t, 0, s.NumPoints())
}

func TestShape_MeasureSentinel(t *testing.T) {
	content, err := EncodeShape(MultiPointM, NewShape(orb.MultiPoint{{1, 1}, {2, 2}}))
	require.NoError(t, err)

	// type, bbox, count, 2 points, then M range and values
	mBlock := content[4+32+4+32:]
	for i := 0; i < 4; i++ {
		v := math.Float64frombits(binary.LittleEndian.Uint64(mBlock[8*i:]))
		require.Equal(t, NoData, v)
		require.True(t, IsNoData(v))
	}

	s, err := DecodeShape(MultiPointM, content)
	require.NoError(t, err)
	require.Nil(t, s.M)
}

func TestShape_PartialMeasures(t *testing.T) {
	in := &Shape{
		Geometry: orb.MultiPoint{{1, 1}, {2, 2}, {3, 3}},
		M:        []float64{5, math.NaN(), 7},
	}
	content, err := EncodeShape(MultiPointM, in)
	require.NoError(t, err)

	s, err := DecodeShape(MultiPointM, content)
	require.NoError(t, err)
	require.Len(t, s.M, 3)
	require.Equal(t, 5.0, s.M[0])
	require.True(t, IsNoData(s.M[1]))
	require.Equal(t, 7.0, s.M[2])
}

func TestShape_NaNZWrittenAsZero(t *testing.T) {
	in := &Shape{Geometry: orb.Point{1, 2}, Z: []float64{math.NaN()}}
	content, err := EncodeShape(PointZ, in)
	require.NoError(t, err)

	s, err := DecodeShape(PointZ, content)
	require.NoError(t, err)
	require.Equal(t, []float64{0}, s.Z)
}

func TestShape_ZAbsentOnXYTypes(t *testing.T) {
	in := &Shape{Geometry: orb.Point{1, 2}, Z: []float64{9}}
	content, err := EncodeShape(Point, in)
	require.NoError(t, err)
	require.Len(t, content, 20)

	s, err := DecodeShape(Point, content)
	require.NoError(t, err)
	require.Nil(t, s.Z)
	require.Nil(t, s.M)
}

func TestPolyLine_SinglePointPart(t *testing.T) {
	content := rawMultiPart(PolyLineZ,
		[]orb.Point{{1, 1}},
		[]orb.Point{{2, 2}, {3, 3}},
	)
	s, err := DecodeShape(PolyLineZ, content)
	require.NoError(t, err)

	mls, ok := s.Geometry.(orb.MultiLineString)
	require.True(t, ok)
	require.Equal(t, orb.MultiLineString{
		{{1, 1}, {1, 1}},
		{{2, 2}, {3, 3}},
	}, mls)
	require.Len(t, s.Z, 4)
}

func TestPolyLine_AcceptsLineString(t *testing.T) {
	content, err := EncodeShape(PolyLine, NewShape(orb.LineString{{0, 0}, {1, 1}}))
	require.NoError(t, err)

	s, err := DecodeShape(PolyLine, content)
	require.NoError(t, err)
	require.Equal(t, orb.MultiLineString{{{0, 0}, {1, 1}}}, s.Geometry)
}

func TestEncodeShape_GeometryTypeErrors(t *testing.T) {
	tests := []struct {
		st   ShapeType
		geom orb.Geometry
	}{
		{Point, orb.MultiPoint{{1, 1}}},
		{Point, orb.LineString{{0, 0}, {1, 1}}},
		{MultiPoint, orb.Polygon{cwSquare(0, 0, 1, 1)}},
		{PolyLine, orb.Point{1, 1}},
		{PolyLine, orb.Polygon{cwSquare(0, 0, 1, 1)}},
		{Polygon, orb.LineString{{0, 0}, {1, 1}}},
		{Polygon, orb.Collection{orb.Point{1, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.st.String(), func(t *testing.T) {
			_, err := EncodeShape(tt.st, NewShape(tt.geom))
			require.ErrorIs(t, err, ErrGeometryType)
		})
	}
}

func TestEncodeShape_OrdinateCountMismatch(t *testing.T) {
	_, err := EncodeShape(MultiPointZ, &Shape{
		Geometry: orb.MultiPoint{{1, 1}, {2, 2}},
		Z:        []float64{1},
	})
	require.ErrorIs(t, err, ErrOrdinates)
}

func TestDecodeShape_Errors(t *testing.T) {
	good, err := EncodeShape(PolyLine, NewShape(orb.LineString{{0, 0}, {1, 1}, {2, 2}}))
	require.NoError(t, err)

	badPart := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(badPart[44:], 7) // part offset beyond point count

	negCount := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(negCount[40:], 0xFFFFFFFF)

	hugeCount := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(hugeCount[40:], 1<<20)

	tests := []struct {
		name    string
		st      ShapeType
		content []byte
		want    error
	}{
		{"empty", PolyLine, nil, ErrTruncated},
		{"cut coordinates", PolyLine, good[:len(good)-8], ErrTruncated},
		{"part offset out of range", PolyLine, badPart, ErrFormat},
		{"negative point count", PolyLine, negCount, ErrFormat},
		{"point count past end", PolyLine, hugeCount, ErrTruncated},
		{"type mismatch", Polygon, good, ErrTypeMismatch},
		{"unknown record type", PolyLine, []byte{31, 0, 0, 0}, ErrUnsupportedShapeType},
		{"short point", Point, good[:12], ErrTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeShape(tt.st, tt.content)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeShape_ShortPoint(t *testing.T) {
	content, err := EncodeShape(Point, NewShape(orb.Point{1, 2}))
	require.NoError(t, err)

	_, err = DecodeShape(Point, content[:12])
	require.ErrorIs(t, err, ErrTruncated)
}
