package fgb

import (
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
)

// geometryToFGB converts a decoded shape geometry to a FlatGeobuf geometry.
// It returns nil for types a shapefile cannot hold.
func geometryToFGB(geom orb.Geometry, builder *flatbuffers.Builder) *writer.Geometry {
	g := writer.NewGeometry(builder)

	switch v := geom.(type) {
	case orb.Point:
		g.SetType(flattypes.GeometryTypePoint)
		g.SetXY([]float64{v[0], v[1]})

	case orb.MultiPoint:
		g.SetType(flattypes.GeometryTypeMultiPoint)
		g.SetXY(flatXY(v))

	case orb.LineString:
		g.SetType(flattypes.GeometryTypeMultiLineString)
		g.SetXY(flatXY(v))
		g.SetEnds([]uint32{uint32(len(v))})

	case orb.MultiLineString:
		g.SetType(flattypes.GeometryTypeMultiLineString)
		xy, ends := partsToXYEnds(v)
		g.SetXY(xy)
		g.SetEnds(ends)

	case orb.Polygon:
		return geometryToFGB(orb.MultiPolygon{v}, builder)

	case orb.MultiPolygon:
		g.SetType(flattypes.GeometryTypeMultiPolygon)
		parts := make([]writer.Geometry, 0, len(v))
		for _, poly := range v {
			pg := writer.NewGeometry(builder)
			pg.SetType(flattypes.GeometryTypePolygon)
			xy, ends := partsToXYEnds(poly)
			pg.SetXY(xy)
			pg.SetEnds(ends)
			parts = append(parts, *pg)
		}
		g.SetParts(parts)

	default:
		return nil
	}

	return g
}

func flatXY[P ~[]orb.Point](points P) []float64 {
	xy := make([]float64, 0, len(points)*2)
	for _, p := range points {
		xy = append(xy, p[0], p[1])
	}
	return xy
}

// partsToXYEnds flattens rings or lines into one coordinate array and the
// cumulative point count at the end of each part.
func partsToXYEnds[P ~[]orb.Point](parts []P) ([]float64, []uint32) {
	total := 0
	for _, p := range parts {
		total += len(p)
	}

	xy := make([]float64, 0, total*2)
	ends := make([]uint32, 0, len(parts))
	var end uint32
	for _, p := range parts {
		for _, pt := range p {
			xy = append(xy, pt[0], pt[1])
		}
		end += uint32(len(p))
		ends = append(ends, end)
	}
	return xy, ends
}

// geometryFromFGB converts a FlatGeobuf geometry back to orb.
func geometryFromFGB(g *flattypes.Geometry) orb.Geometry {
	switch g.Type() {
	case flattypes.GeometryTypePoint:
		if g.XyLength() < 2 {
			return nil
		}
		return orb.Point{g.Xy(0), g.Xy(1)}

	case flattypes.GeometryTypeMultiPoint:
		return orb.MultiPoint(pointsFromXY(g, 0, g.XyLength()/2))

	case flattypes.GeometryTypeLineString:
		return orb.LineString(pointsFromXY(g, 0, g.XyLength()/2))

	case flattypes.GeometryTypeMultiLineString:
		var mls orb.MultiLineString
		for _, pts := range partsFromXYEnds(g) {
			mls = append(mls, orb.LineString(pts))
		}
		return mls

	case flattypes.GeometryTypePolygon:
		return polygonFromXYEnds(g)

	case flattypes.GeometryTypeMultiPolygon:
		mp := make(orb.MultiPolygon, 0, g.PartsLength())
		var part flattypes.Geometry
		for i := 0; i < g.PartsLength(); i++ {
			if g.Parts(&part, i) {
				mp = append(mp, polygonFromXYEnds(&part))
			}
		}
		return mp
	}
	return nil
}

func pointsFromXY(g *flattypes.Geometry, from, to int) []orb.Point {
	pts := make([]orb.Point, 0, to-from)
	for i := from; i < to; i++ {
		pts = append(pts, orb.Point{g.Xy(2 * i), g.Xy(2*i + 1)})
	}
	return pts
}

// partsFromXYEnds splits the coordinates at the part ends. A geometry
// without ends is one part.
func partsFromXYEnds(g *flattypes.Geometry) [][]orb.Point {
	n := g.XyLength() / 2
	if g.EndsLength() == 0 {
		return [][]orb.Point{pointsFromXY(g, 0, n)}
	}
	parts := make([][]orb.Point, 0, g.EndsLength())
	start := 0
	for i := 0; i < g.EndsLength(); i++ {
		end := int(g.Ends(i))
		if end > n {
			end = n
		}
		if end < start {
			end = start
		}
		parts = append(parts, pointsFromXY(g, start, end))
		start = end
	}
	return parts
}

func polygonFromXYEnds(g *flattypes.Geometry) orb.Polygon {
	var poly orb.Polygon
	for _, pts := range partsFromXYEnds(g) {
		poly = append(poly, orb.Ring(pts))
	}
	return poly
}
