package shapefile

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ring is a polygon ring together with its optional per-vertex ordinates.
type ring struct {
	pts  orb.Ring
	z, m []float64
	env  orb.Bound
}

func newRing(pts []orb.Point, z, m []float64) *ring {
	r := &ring{pts: append(orb.Ring(nil), pts...)}
	if z != nil {
		r.z = append([]float64(nil), z...)
	}
	if m != nil {
		r.m = append([]float64(nil), m...)
	}
	return r
}

// close appends the first vertex when the ring is open and reports whether
// it did.
func (r *ring) close() bool {
	if len(r.pts) == 0 || r.pts[0] == r.pts[len(r.pts)-1] {
		return false
	}
	r.pts = append(r.pts, r.pts[0])
	if r.z != nil {
		r.z = append(r.z, r.z[0])
	}
	if r.m != nil {
		r.m = append(r.m, r.m[0])
	}
	return true
}

func (r *ring) reverse() {
	r.pts.Reverse()
	reverseFloats(r.z)
	reverseFloats(r.m)
}

func (r *ring) bound() orb.Bound {
	r.env = r.pts.Bound()
	return r.env
}

func reverseFloats(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// hasDistinct reports whether pts holds at least n distinct points.
func hasDistinct(pts []orb.Point, n int) bool {
	seen := make([]orb.Point, 0, n)
next:
	for _, p := range pts {
		for _, q := range seen {
			if p == q {
				continue next
			}
		}
		seen = append(seen, p)
		if len(seen) >= n {
			return true
		}
	}
	return false
}

// isCCW reports whether a closed ring is oriented counter-clockwise, judged
// by the turn at its highest vertex. Rings with fewer than three vertices
// before closing, and flat A-B-A spikes at the top, are not CCW.
func isCCW(r orb.Ring) bool {
	n := len(r) - 1
	if n < 3 {
		return false
	}

	hi := 0
	for i := 1; i <= n; i++ {
		if r[i][1] > r[hi][1] {
			hi = i
		}
	}
	hiPt := r[hi]

	prev := hi
	for {
		prev--
		if prev < 0 {
			prev = n
		}
		if r[prev] != hiPt || prev == hi {
			break
		}
	}

	next := hi
	for {
		next = (next + 1) % n
		if r[next] != hiPt || next == hi {
			break
		}
	}

	p, q := r[prev], r[next]
	if p == hiPt || q == hiPt || p == q {
		return false
	}

	switch orientation(p, hiPt, q) {
	case 0:
		// Collinear: the ring is CCW when the previous vertex lies to the
		// right of the next one.
		return p[0] > q[0]
	case 1:
		return true
	}
	return false
}

// orientation returns 1 when travelling p1 to p2 turns left to reach q, -1
// when it turns right and 0 when the three points are collinear.
func orientation(p1, p2, q orb.Point) int {
	dx1, dy1 := p2[0]-p1[0], p2[1]-p1[1]
	dx2, dy2 := q[0]-p2[0], q[1]-p2[1]
	det := dx1*dy2 - dy1*dx2
	switch {
	case det > 0:
		return 1
	case det < 0:
		return -1
	}
	return 0
}

// boundContains reports whether b covers c.
func boundContains(b, c orb.Bound) bool {
	return b.Min[0] <= c.Min[0] && b.Min[1] <= c.Min[1] &&
		b.Max[0] >= c.Max[0] && b.Max[1] >= c.Max[1]
}

// ringCovers reports whether p lies inside or on the boundary of r.
func ringCovers(r orb.Ring, p orb.Point) bool {
	if planar.RingContains(r, p) {
		return true
	}
	for _, q := range r {
		if q == p {
			return true
		}
	}
	return false
}

// shellIndex is an R-tree over shell envelopes used to find the shells that
// may contain a hole.
type shellIndex struct {
	tree *rtreego.Rtree
}

type shellEntry struct {
	index int
	rect  rtreego.Rect
}

func (e *shellEntry) Bounds() rtreego.Rect {
	return e.rect
}

func newShellIndex(shells []*ring) *shellIndex {
	objs := make([]rtreego.Spatial, 0, len(shells))
	for i, s := range shells {
		objs = append(objs, &shellEntry{index: i, rect: toRect(s.env)})
	}
	return &shellIndex{tree: rtreego.NewTree(2, 25, 50, objs...)}
}

func (idx *shellIndex) insert(i int, env orb.Bound) {
	idx.tree.Insert(&shellEntry{index: i, rect: toRect(env)})
}

// candidates returns the indexes of shells whose envelope touches env, in
// ascending order.
func (idx *shellIndex) candidates(env orb.Bound) []int {
	found := idx.tree.SearchIntersect(toRect(env))
	out := make([]int, 0, len(found))
	for _, s := range found {
		out = append(out, s.(*shellEntry).index)
	}
	sort.Ints(out)
	return out
}

// toRect converts a bound to an R-tree rectangle, padded so that envelopes
// sharing an edge still intersect.
func toRect(b orb.Bound) rtreego.Rect {
	pad := 1e-9
	for _, v := range []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]} {
		if v < 0 {
			v = -v
		}
		if v*1e-9 > pad {
			pad = v * 1e-9
		}
	}
	b = b.Pad(pad)
	r, _ := rtreego.NewRectFromPoints(
		rtreego.Point{b.Min[0], b.Min[1]},
		rtreego.Point{b.Max[0], b.Max[1]},
	)
	return r
}
