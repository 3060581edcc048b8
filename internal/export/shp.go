package export

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Shapefile writes the polygon as a single-record polygon shapefile with a
// NAME attribute.
func Shapefile(path, community string, poly *geom.Polygon) error {
	w, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer w.Close() //nolint:errcheck

	if err := w.SetFields([]shp.Field{shp.StringField("NAME", 64)}); err != nil {
		return eris.Wrap(err, "export: shapefile fields")
	}

	rings := make([][]shp.Point, 0, poly.NumLinearRings())
	for i := 0; i < poly.NumLinearRings(); i++ {
		ring := poly.LinearRing(i)
		pts := make([]shp.Point, 0, ring.NumCoords())
		for j := 0; j < ring.NumCoords(); j++ {
			c := ring.Coord(j)
			pts = append(pts, shp.Point{X: c[0], Y: c[1]})
		}
		rings = append(rings, pts)
	}

	pl := shp.NewPolyLine(rings)
	shape := shp.Polygon(*pl)
	row := w.Write(&shape)
	if err := w.WriteAttribute(int(row), 0, community); err != nil {
		return eris.Wrap(err, "export: shapefile attribute")
	}
	return nil
}
