package geomutil

import (
	"math"

	"github.com/twpayne/go-geom"
)

// RingArea returns the absolute shoelace area of a closed ring, in square
// degrees.
func RingArea(ring []geom.Coord) float64 {
	var sum float64
	n := len(ring)
	for i := 0; i+1 < n; i++ {
		sum += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}

// AreaKm2 converts a square-degree area to approximate square kilometers.
func AreaKm2(areaDeg2 float64) float64 {
	const kmPerDeg = MetersPerDegree / 1000
	return areaDeg2 * kmPerDeg * kmPerDeg
}

// IsRingSimple reports whether a closed ring has no self-intersections.
// Adjacent segments sharing a vertex are not counted as intersections, nor
// is the closing segment's contact with the first. Collinear segment pairs
// fall outside SegmentIntersection's crossing test, so overlap along a
// shared line is checked separately.
func IsRingSimple(ring []geom.Coord) bool {
	n := len(ring) - 1 // segment count for a closed ring
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue // closing segment meets the first at the shared vertex
			}
			if _, ok := SegmentIntersection(ring[i], ring[i+1], ring[j], ring[j+1]); ok {
				return false
			}
			if collinearOverlap(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return false
			}
		}
	}
	return true
}

// collinearOverlap reports whether two collinear segments share a piece of
// positive length.
func collinearOverlap(a1, a2, b1, b2 geom.Coord) bool {
	dx, dy := a2[0]-a1[0], a2[1]-a1[1]
	if dx*(b1[1]-a1[1])-dy*(b1[0]-a1[0]) != 0 ||
		dx*(b2[1]-a1[1])-dy*(b2[0]-a1[0]) != 0 {
		return false
	}
	axis := 0
	if math.Abs(dy) > math.Abs(dx) {
		axis = 1
	}
	aMin, aMax := math.Min(a1[axis], a2[axis]), math.Max(a1[axis], a2[axis])
	bMin, bMax := math.Min(b1[axis], b2[axis]), math.Max(b1[axis], b2[axis])
	return math.Max(aMin, bMin) < math.Min(aMax, bMax)
}

// PointInRing reports whether p lies strictly inside a closed ring, by ray
// casting.
func PointInRing(p geom.Coord, ring []geom.Coord) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > p[1]) != (yj > p[1]) &&
			p[0] < (xj-xi)*(p[1]-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// RingPolygon builds an XY polygon from a closed ring.
func RingPolygon(ring []geom.Coord) *geom.Polygon {
	flat := make([]float64, 0, len(ring)*2)
	for _, c := range ring {
		flat = append(flat, c[0], c[1])
	}
	poly := geom.NewPolygon(geom.XY)
	_ = poly.Push(geom.NewLinearRingFlat(geom.XY, flat))
	return poly
}
