// Package geomutil provides planar geometry helpers over go-geom types:
// meter conversions, linear referencing, polyline merging, intersections,
// and ring validation. All coordinates are WGS84 lon/lat; distances use the
// same flat-earth meter approximation as the upstream GIS layers, which is
// adequate at neighborhood scale.
package geomutil

import (
	"math"

	"github.com/twpayne/go-geom"
)

// MetersPerDegree approximates meters per degree of latitude (and of
// longitude near Toronto, uncorrected, matching the source data convention).
const MetersPerDegree = 111320.0

// DegreesFromMeters converts a meter threshold to degrees.
func DegreesFromMeters(m float64) float64 { return m / MetersPerDegree }

// MetersFromDegrees converts a degree distance to approximate meters.
func MetersFromDegrees(d float64) float64 { return d * MetersPerDegree }

// Distance returns the planar distance between two coordinates, in degrees.
func Distance(a, b geom.Coord) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Hypot(dx, dy)
}

// DistanceMeters returns the approximate distance between two coordinates in meters.
func DistanceMeters(a, b geom.Coord) float64 { return MetersFromDegrees(Distance(a, b)) }

// LengthMeters returns the approximate length of a polyline in meters.
func LengthMeters(ls *geom.LineString) float64 {
	if ls == nil {
		return 0
	}
	return MetersFromDegrees(ls.Length())
}

// TotalLengthMeters sums LengthMeters over a set of polylines.
func TotalLengthMeters(lines []*geom.LineString) float64 {
	var total float64
	for _, ls := range lines {
		total += LengthMeters(ls)
	}
	return total
}

// NewLine builds an XY LineString from a coordinate slice.
func NewLine(coords []geom.Coord) *geom.LineString {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	return geom.NewLineStringFlat(geom.XY, flat)
}

// Reverse returns a new polyline with the coordinate order flipped.
func Reverse(ls *geom.LineString) *geom.LineString {
	coords := ls.Coords()
	out := make([]geom.Coord, len(coords))
	for i, c := range coords {
		out[len(coords)-1-i] = c
	}
	return NewLine(out)
}

// PointSegment returns the closest point to p on segment ab and the distance
// to it, in degrees.
func PointSegment(p, a, b geom.Coord) (geom.Coord, float64) {
	ax, ay := a[0], a[1]
	bx, by := b[0], b[1]
	px, py := p[0], p[1]
	dx, dy := bx-ax, by-ay
	segLen2 := dx*dx + dy*dy
	if segLen2 == 0 {
		return geom.Coord{ax, ay}, Distance(p, a)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / segLen2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := geom.Coord{ax + t*dx, ay + t*dy}
	return closest, Distance(p, closest)
}

// NearestPointOnLine returns the point on ls closest to p, the distance along
// the line to that point, and the offset distance, all in degrees.
func NearestPointOnLine(ls *geom.LineString, p geom.Coord) (closest geom.Coord, along, offset float64) {
	coords := ls.Coords()
	offset = math.Inf(1)
	var walked float64
	for i := 0; i+1 < len(coords); i++ {
		c, d := PointSegment(p, coords[i], coords[i+1])
		if d < offset {
			offset = d
			closest = c
			along = walked + Distance(coords[i], c)
		}
		walked += Distance(coords[i], coords[i+1])
	}
	if len(coords) == 1 {
		return coords[0], 0, Distance(p, coords[0])
	}
	return closest, along, offset
}

// SnapDistanceMeters returns the approximate distance in meters from p to the
// nearest point of any polyline in lines.
func SnapDistanceMeters(lines []*geom.LineString, p geom.Coord) (geom.Coord, float64) {
	best := math.Inf(1)
	var bestPt geom.Coord
	for _, ls := range lines {
		pt, _, off := NearestPointOnLine(ls, p)
		if off < best {
			best = off
			bestPt = pt
		}
	}
	return bestPt, MetersFromDegrees(best)
}

// Project returns the distance along ls (in degrees) of the point on the
// line nearest to p. Linear referencing: positions are distances from the
// line start, not coordinates.
func Project(ls *geom.LineString, p geom.Coord) float64 {
	_, along, _ := NearestPointOnLine(ls, p)
	return along
}

// Interpolate returns the coordinate at the given distance along ls.
// Distances beyond the line clamp to its endpoints.
func Interpolate(ls *geom.LineString, dist float64) geom.Coord {
	coords := ls.Coords()
	if dist <= 0 || len(coords) < 2 {
		return coords[0]
	}
	var walked float64
	for i := 0; i+1 < len(coords); i++ {
		seg := Distance(coords[i], coords[i+1])
		if walked+seg >= dist {
			if seg == 0 {
				return coords[i]
			}
			t := (dist - walked) / seg
			return geom.Coord{
				coords[i][0] + t*(coords[i+1][0]-coords[i][0]),
				coords[i][1] + t*(coords[i+1][1]-coords[i][1]),
			}
		}
		walked += seg
	}
	return coords[len(coords)-1]
}

// Substring extracts the sub-line between two distances along ls as a dense
// interpolated point sequence. Start and end are swapped if out of order.
func Substring(ls *geom.LineString, start, end float64, numPoints int) *geom.LineString {
	if start > end {
		start, end = end, start
	}
	if numPoints < 2 {
		numPoints = 2
	}
	coords := make([]geom.Coord, numPoints)
	step := (end - start) / float64(numPoints-1)
	for i := 0; i < numPoints; i++ {
		coords[i] = Interpolate(ls, start+float64(i)*step)
	}
	return NewLine(coords)
}

// Centroid returns the arithmetic mean of a polyline's vertices, weighted by
// the length of the segments they bound. Empty or single-point lines return
// their first coordinate.
func Centroid(ls *geom.LineString) geom.Coord {
	coords := ls.Coords()
	if len(coords) < 2 {
		if len(coords) == 1 {
			return coords[0]
		}
		return geom.Coord{0, 0}
	}
	var sx, sy, total float64
	for i := 0; i+1 < len(coords); i++ {
		w := Distance(coords[i], coords[i+1])
		mx := (coords[i][0] + coords[i+1][0]) / 2
		my := (coords[i][1] + coords[i+1][1]) / 2
		sx += mx * w
		sy += my * w
		total += w
	}
	if total == 0 {
		return coords[0]
	}
	return geom.Coord{sx / total, sy / total}
}

// ClipToCorridor keeps the runs of ls whose vertices lie within width meters
// of segment ab. Runs shorter than two points are dropped.
func ClipToCorridor(ls *geom.LineString, a, b geom.Coord, widthMeters float64) []*geom.LineString {
	widthDeg := DegreesFromMeters(widthMeters)
	coords := ls.Coords()
	var out []*geom.LineString
	var run []geom.Coord
	flush := func() {
		if len(run) >= 2 {
			out = append(out, NewLine(run))
		}
		run = nil
	}
	for _, c := range coords {
		if _, d := PointSegment(c, a, b); d <= widthDeg {
			run = append(run, c)
		} else {
			flush()
		}
	}
	flush()
	return out
}

// SpanAlong returns the extent in meters of a polyline's vertex projections
// onto the direction of segment ab. A boundary road running the corridor's
// full length has a span near Distance(a, b); a cross street clips through
// with a small span.
func SpanAlong(ls *geom.LineString, a, b geom.Coord) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return 0
	}
	dx /= norm
	dy /= norm
	minT, maxT := math.Inf(1), math.Inf(-1)
	for _, c := range ls.Coords() {
		t := (c[0]-a[0])*dx + (c[1]-a[1])*dy
		minT = math.Min(minT, t)
		maxT = math.Max(maxT, t)
	}
	if maxT < minT {
		return 0
	}
	return MetersFromDegrees(maxT - minT)
}
