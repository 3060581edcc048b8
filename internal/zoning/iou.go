package zoning

import (
	"github.com/engelsjk/polygol"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// FromPolygon converts a boundary-derived polygon into clipping-library
// form so the two approaches can be compared.
func FromPolygon(p *geom.Polygon) polygol.Geom {
	poly := make([][][]float64, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i)
		r := make([][]float64, 0, ring.NumCoords())
		for j := 0; j < ring.NumCoords(); j++ {
			c := ring.Coord(j)
			r = append(r, []float64{c[0], c[1]})
		}
		poly = append(poly, r)
	}
	return polygol.Geom{poly}
}

// IoU computes intersection-over-union between two geometries, flattening
// multi-part inputs to their total area. No threshold is applied here;
// callers decide what score counts as agreement.
func IoU(a, b polygol.Geom) (float64, error) {
	inter, err := polygol.Intersection(a, b)
	if err != nil {
		return 0, eris.Wrap(err, "zoning: iou intersection")
	}
	union, err := polygol.Union(a, b)
	if err != nil {
		return 0, eris.Wrap(err, "zoning: iou union")
	}
	unionArea := Area(union)
	if unionArea <= 0 {
		return 0, nil
	}
	return Area(inter) / unionArea, nil
}
