package shapefile

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/paulmach/orb"

	bin "github.com/tingold/orb-shapefile/internal/binary"
)

// polygonHandler handles Polygon, PolygonZ and PolygonM records. Exterior
// rings are written clockwise and holes counter-clockwise. Records always
// decode to an orb.MultiPolygon, rebuilt from ring orientation.
type polygonHandler struct {
	typ     ShapeType
	logger  log.Logger
	metrics *Metrics
}

func (h *polygonHandler) shapeType() ShapeType { return h.typ }

func (h *polygonHandler) flatten(s *Shape) (*flatShape, error) {
	var polys []orb.Polygon
	switch g := s.Geometry.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{g}
	case orb.MultiPolygon:
		polys = g
	case orb.Ring:
		polys = []orb.Polygon{{g}}
	case orb.Bound:
		polys = []orb.Polygon{g.ToPolygon()}
	default:
		return nil, geometryTypeError(h.typ, s.Geometry)
	}
	z, m, err := s.ordinates()
	if err != nil {
		return nil, err
	}

	f := &flatShape{}
	if z != nil {
		f.z = []float64{}
	}
	if m != nil {
		f.m = []float64{}
	}
	offset := 0
	for _, poly := range polys {
		for i, pts := range poly {
			n := len(pts)
			r := newRing(pts, sub(z, offset, n), sub(m, offset, n))
			offset += n
			if n == 0 {
				continue
			}
			if r.close() {
				h.metrics.ringRepaired(RepairClosed)
			}
			if ccw := isCCW(r.pts); (i == 0) == ccw {
				r.reverse()
				h.metrics.ringRepaired(RepairReoriented)
			}
			f.parts = append(f.parts, int32(len(f.points)))
			f.points = append(f.points, r.pts...)
			if f.z != nil {
				f.z = append(f.z, r.z...)
			}
			if f.m != nil {
				f.m = append(f.m, r.m...)
			}
		}
	}
	f.computeBound()
	return f, nil
}

func (h *polygonHandler) contentLength(f *flatShape) int {
	return multiPartLength(h.typ, f)
}

func (h *polygonHandler) write(buf *bin.Buffer, f *flatShape) {
	writeMultiPart(buf, h.typ, f)
}

func (h *polygonHandler) read(buf *bin.Buffer, recordType ShapeType) (*Shape, error) {
	parts, pts, z, m, err := readMultiPart(buf, recordType)
	if err != nil {
		return nil, err
	}

	var shells, holes []*ring
	for i := 0; i+1 < len(parts); i++ {
		start, end := parts[i], parts[i+1]
		if start == end {
			continue
		}
		r := newRing(pts[start:end], sub(z, start, end-start), sub(m, start, end-start))
		if r.close() {
			h.metrics.ringRepaired(RepairClosed)
		}
		if !hasDistinct(r.pts, 3) {
			level.Debug(h.logger).Log("msg", "dropping degenerate ring", "part", i, "points", end-start)
			h.metrics.ringRepaired(RepairDegenerate)
			continue
		}
		r.bound()
		if isCCW(r.pts) {
			holes = append(holes, r)
		} else {
			shells = append(shells, r)
		}
	}

	return polygonShape(h.assemble(shells, holes), z != nil, m != nil), nil
}

// assemble groups shells (clockwise rings) and holes (counter-clockwise
// rings) into polygons, each listed as its shell followed by its holes.
func (h *polygonHandler) assemble(shells, holes []*ring) [][]*ring {
	switch {
	case len(shells) == 1:
		return [][]*ring{append([]*ring{shells[0]}, holes...)}
	case len(shells) == 0 && len(holes) == 1:
		h.promote(holes[0])
		return [][]*ring{{holes[0]}}
	}
	return h.assignHoles(shells, holes)
}

// assignHoles attaches every hole to a shell whose envelope covers the
// hole's envelope and whose ring covers the hole's first vertex. Among
// several such shells a later one wins when its envelope lies inside the
// current pick's envelope. A hole without a shell becomes a shell itself
// and is a candidate for the holes that follow.
func (h *polygonHandler) assignHoles(shells, holes []*ring) [][]*ring {
	polys := make([][]*ring, len(shells))
	for i, s := range shells {
		polys[i] = []*ring{s}
	}
	idx := newShellIndex(shells)

	for _, hole := range holes {
		test := hole.pts[0]
		best := -1
		for _, j := range idx.candidates(hole.env) {
			shell := polys[j][0]
			if !boundContains(shell.env, hole.env) || !ringCovers(shell.pts, test) {
				continue
			}
			if best < 0 || boundContains(polys[best][0].env, shell.env) {
				best = j
			}
		}
		if best >= 0 {
			polys[best] = append(polys[best], hole)
			continue
		}
		h.promote(hole)
		polys = append(polys, []*ring{hole})
		idx.insert(len(polys)-1, hole.env)
	}
	return polys
}

// promote reverses an orphan hole so it can stand as a shell.
func (h *polygonHandler) promote(r *ring) {
	level.Debug(h.logger).Log("msg", "promoting orphan hole to shell", "points", len(r.pts))
	h.metrics.ringRepaired(RepairOrphanHole)
	r.reverse()
}

// polygonShape flattens assembled rings into a MultiPolygon shape, keeping
// Z and M aligned with the emitted vertex order.
func polygonShape(polys [][]*ring, hasZ, hasM bool) *Shape {
	s := &Shape{}
	mp := make(orb.MultiPolygon, 0, len(polys))
	if hasZ {
		s.Z = []float64{}
	}
	if hasM {
		s.M = []float64{}
	}
	for _, rings := range polys {
		poly := make(orb.Polygon, 0, len(rings))
		for _, r := range rings {
			poly = append(poly, r.pts)
			if hasZ {
				s.Z = append(s.Z, r.z...)
			}
			if hasM {
				s.M = append(s.M, r.m...)
			}
		}
		mp = append(mp, poly)
	}
	s.Geometry = mp
	return s
}
