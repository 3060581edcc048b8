// Package export writes constructed geometry to GeoJSON, KML, and shapefile.
package export

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// BoundaryLine is one perimeter arc with its export metadata.
type BoundaryLine struct {
	Name         string
	Source       string
	Corrected    bool
	Straightened bool
	Coords       []geom.Coord
}

// GeoJSON writes the community polygon and its boundary arcs as a
// FeatureCollection.
func GeoJSON(path, community string, poly *geom.Polygon, lines []BoundaryLine) error {
	fc := geojson.FeatureCollection{}
	if poly != nil {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: poly,
			Properties: map[string]interface{}{
				"name": community,
				"kind": "community_polygon",
			},
		})
	}
	for _, l := range lines {
		flat := make([]float64, 0, len(l.Coords)*2)
		for _, c := range l.Coords {
			flat = append(flat, c[0], c[1])
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: geom.NewLineStringFlat(geom.XY, flat),
			Properties: map[string]interface{}{
				"name":         l.Name,
				"kind":         "boundary_line",
				"source":       l.Source,
				"corrected":    l.Corrected,
				"straightened": l.Straightened,
			},
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// GeoJSONMulti writes a multi-part geometry, used for zoning unions.
func GeoJSONMulti(path, community string, mp *geom.MultiPolygon) error {
	fc := geojson.FeatureCollection{
		Features: []*geojson.Feature{{
			Geometry: mp,
			Properties: map[string]interface{}{
				"name": community,
				"kind": "zoning_union",
			},
		}},
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrap(err, "export: marshal geojson")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

// MultiPolygonFromRaw converts clipping-library output (parts, rings,
// points) into a MultiPolygon.
func MultiPolygonFromRaw(raw [][][][]float64) *geom.MultiPolygon {
	mp := geom.NewMultiPolygon(geom.XY)
	for _, part := range raw {
		poly := geom.NewPolygon(geom.XY)
		for _, ring := range part {
			flat := make([]float64, 0, len(ring)*2)
			for _, pt := range ring {
				flat = append(flat, pt[0], pt[1])
			}
			_ = poly.Push(geom.NewLinearRingFlat(geom.XY, flat))
		}
		_ = mp.Push(poly)
	}
	return mp
}
