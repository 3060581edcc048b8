package geomutil

import (
	"math"

	"github.com/twpayne/go-geom"
)

// SegmentIntersection returns the crossing point of segments a1-a2 and b1-b2,
// if they properly intersect.
func SegmentIntersection(a1, a2, b1, b2 geom.Coord) (geom.Coord, bool) {
	d1x, d1y := a2[0]-a1[0], a2[1]-a1[1]
	d2x, d2y := b2[0]-b1[0], b2[1]-b1[1]
	denom := d1x*d2y - d1y*d2x
	if denom == 0 {
		return geom.Coord{}, false
	}
	t := ((b1[0]-a1[0])*d2y - (b1[1]-a1[1])*d2x) / denom
	u := ((b1[0]-a1[0])*d1y - (b1[1]-a1[1])*d1x) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return geom.Coord{}, false
	}
	return geom.Coord{a1[0] + t*d1x, a1[1] + t*d1y}, true
}

// LineIntersections returns every crossing point between two polylines.
func LineIntersections(a, b *geom.LineString) []geom.Coord {
	var out []geom.Coord
	ac, bc := a.Coords(), b.Coords()
	for i := 0; i+1 < len(ac); i++ {
		for j := 0; j+1 < len(bc); j++ {
			if p, ok := SegmentIntersection(ac[i], ac[i+1], bc[j], bc[j+1]); ok {
				out = append(out, p)
			}
		}
	}
	return out
}

// CloseApproaches returns the midpoints of segment pairs from a and b whose
// mutual distance is within maxMeters. This stands in for buffering both
// lines and intersecting the buffers: where the buffers would overlap, the
// segment pairs approach within twice the buffer radius.
func CloseApproaches(a, b *geom.LineString, maxMeters float64) []geom.Coord {
	maxDeg := DegreesFromMeters(maxMeters)
	var out []geom.Coord
	ac, bc := a.Coords(), b.Coords()
	for i := 0; i+1 < len(ac); i++ {
		for j := 0; j+1 < len(bc); j++ {
			pa, pb, d := segmentNearest(ac[i], ac[i+1], bc[j], bc[j+1])
			if d <= maxDeg {
				out = append(out, geom.Coord{(pa[0] + pb[0]) / 2, (pa[1] + pb[1]) / 2})
			}
		}
	}
	return out
}

// segmentNearest returns the closest pair of points between two segments.
func segmentNearest(a1, a2, b1, b2 geom.Coord) (geom.Coord, geom.Coord, float64) {
	if p, ok := SegmentIntersection(a1, a2, b1, b2); ok {
		return p, p, 0
	}
	best := math.Inf(1)
	var pa, pb geom.Coord
	check := func(p, s1, s2 geom.Coord, pOnA bool) {
		c, d := PointSegment(p, s1, s2)
		if d < best {
			best = d
			if pOnA {
				pa, pb = p, c
			} else {
				pa, pb = c, p
			}
		}
	}
	check(a1, b1, b2, true)
	check(a2, b1, b2, true)
	check(b1, a1, a2, false)
	check(b2, a1, a2, false)
	return pa, pb, best
}

// NearestPoints returns the closest pair of points between two polylines and
// their distance in degrees.
func NearestPoints(a, b *geom.LineString) (geom.Coord, geom.Coord, float64) {
	best := math.Inf(1)
	var pa, pb geom.Coord
	ac, bc := a.Coords(), b.Coords()
	for i := 0; i+1 < len(ac); i++ {
		for j := 0; j+1 < len(bc); j++ {
			qa, qb, d := segmentNearest(ac[i], ac[i+1], bc[j], bc[j+1])
			if d < best {
				best = d
				pa, pb = qa, qb
			}
		}
	}
	if len(ac) == 1 || len(bc) == 1 {
		// Degenerate single-point inputs.
		for _, ca := range ac {
			for _, cb := range bc {
				if d := Distance(ca, cb); d < best {
					best = d
					pa, pb = ca, cb
				}
			}
		}
	}
	return pa, pb, best
}

// MeanCoord averages a set of coordinates.
func MeanCoord(pts []geom.Coord) geom.Coord {
	var sx, sy float64
	for _, p := range pts {
		sx += p[0]
		sy += p[1]
	}
	n := float64(len(pts))
	return geom.Coord{sx / n, sy / n}
}

// TerminalRay returns a segment extending a polyline beyond one of its ends,
// along the trajectory of its final segment, by up to maxMeters. fromStart
// selects which end to extend.
func TerminalRay(ls *geom.LineString, fromStart bool, maxMeters float64) (geom.Coord, geom.Coord) {
	coords := ls.Coords()
	var tip, prev geom.Coord
	if fromStart {
		tip = coords[0]
		prev = coords[1]
		for i := 1; i < len(coords); i++ {
			if Distance(coords[i], tip) > 0 {
				prev = coords[i]
				break
			}
		}
	} else {
		tip = coords[len(coords)-1]
		prev = coords[len(coords)-2]
		for i := len(coords) - 2; i >= 0; i-- {
			if Distance(coords[i], tip) > 0 {
				prev = coords[i]
				break
			}
		}
	}
	dx, dy := tip[0]-prev[0], tip[1]-prev[1]
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return tip, tip
	}
	ext := DegreesFromMeters(maxMeters)
	return tip, geom.Coord{tip[0] + dx/norm*ext, tip[1] + dy/norm*ext}
}
