package shapefile

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// NoData is written in place of a missing M measure. Readers treat any
// measure below -1e38 as missing.
const NoData = -1e40

// ErrOrdinates is returned when a Shape carries a Z or M slice whose length
// does not match the number of points in its geometry.
var ErrOrdinates = errors.New("shapefile: Z or M value count does not match point count")

// IsNoData reports whether m is a missing measure.
func IsNoData(m float64) bool {
	return m < -1e38 || math.IsNaN(m)
}

// Shape is the geometry of one record. Z and M hold optional per-vertex
// ordinates in the order the geometry's points are enumerated: lines in
// order, polygons ring by ring. A nil Geometry is a null record.
type Shape struct {
	Geometry orb.Geometry
	Z        []float64
	M        []float64
}

// NewShape wraps a planar geometry.
func NewShape(g orb.Geometry) *Shape {
	return &Shape{Geometry: g}
}

// IsNull reports whether s encodes a null record.
func (s *Shape) IsNull() bool {
	return s == nil || s.Geometry == nil
}

// NumPoints returns the number of vertices of the geometry.
func (s *Shape) NumPoints() int {
	if s.IsNull() {
		return 0
	}
	return countPoints(s.Geometry)
}

func countPoints(g orb.Geometry) int {
	switch v := g.(type) {
	case orb.Point:
		return 1
	case orb.MultiPoint:
		return len(v)
	case orb.LineString:
		return len(v)
	case orb.MultiLineString:
		n := 0
		for _, ls := range v {
			n += len(ls)
		}
		return n
	case orb.Ring:
		return len(v)
	case orb.Polygon:
		n := 0
		for _, r := range v {
			n += len(r)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range v {
			for _, r := range p {
				n += len(r)
			}
		}
		return n
	case orb.Bound:
		return 5
	default:
		return 0
	}
}

// ordinates checks the Z and M slices of s against its point count. A nil
// slice is allowed and means the ordinate is absent.
func (s *Shape) ordinates() (z, m []float64, err error) {
	n := s.NumPoints()
	if s.Z != nil && len(s.Z) != n {
		return nil, nil, fmt.Errorf("%w: %d Z values for %d points", ErrOrdinates, len(s.Z), n)
	}
	if s.M != nil && len(s.M) != n {
		return nil, nil, fmt.Errorf("%w: %d M values for %d points", ErrOrdinates, len(s.M), n)
	}
	return s.Z, s.M, nil
}

// flatShape is the wire view of a record: one flat coordinate stream split
// into parts. z and m are nil when absent.
type flatShape struct {
	bound  orb.Bound
	empty  bool
	parts  []int32
	points []orb.Point
	z, m   []float64
}

func (f *flatShape) computeBound() {
	if len(f.points) == 0 {
		f.empty = true
		f.bound = orb.Bound{}
		return
	}
	b := orb.Bound{Min: f.points[0], Max: f.points[0]}
	for _, p := range f.points[1:] {
		b = b.Extend(p)
	}
	f.bound = b
}

// sub returns s[from:from+n] or nil when s is nil.
func sub(s []float64, from, n int) []float64 {
	if s == nil {
		return nil
	}
	return s[from : from+n]
}
