// Package zoning builds the zoning-parcel union for a community's exception
// key and scores its agreement with the boundary-derived polygon. The two
// construction paths are independent: a zoning failure never blocks the
// boundary-lines polygon and vice versa.
package zoning

import (
	"context"
	"errors"

	"github.com/engelsjk/polygol"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/perimeter-cli/internal/geomutil"
	"github.com/sells-group/perimeter-cli/internal/model"
	"github.com/sells-group/perimeter-cli/pkg/arcgis"
)

// ErrNoParcels reports that no parcel carries the requested zoning key
// within the search radius.
var ErrNoParcels = errors.New("zoning: no parcels found for key")

// Builder queries and dissolves zoning parcels.
type Builder struct {
	gis       arcgis.Client
	radiusDeg float64
}

// New creates a zoning Builder searching within radiusDeg of the reference
// point.
func New(gis arcgis.Client, radiusDeg float64) *Builder {
	return &Builder{gis: gis, radiusDeg: radiusDeg}
}

// Result is a dissolved zoning geometry. Parts > 1 means the parcels do not
// form one connected region; consumers must branch on that rather than
// assume a single ring.
type Result struct {
	Geom    polygol.Geom
	Parts   int
	AreaKm2 float64
}

// Union fetches every parcel tagged with the zoning key near the reference
// point and dissolves them into one geometry. Invalid parcel rings go
// through a self-union repair before dissolving.
func (b *Builder) Union(ctx context.Context, key model.ZoningKey, ref model.ReferencePoint) (*Result, error) {
	env := arcgis.Around(ref.Lat, ref.Lon, b.radiusDeg)
	parcels, err := b.gis.ZoningParcels(ctx, key.ExceptionNumber, key.ZoneType, env)
	if err != nil {
		return nil, eris.Wrap(err, "zoning: parcel query")
	}
	if len(parcels) == 0 {
		return nil, eris.Wrapf(ErrNoParcels, "zoning: exception %d zone %q",
			key.ExceptionNumber, key.ZoneType)
	}

	geoms := make([]polygol.Geom, 0, len(parcels))
	for _, p := range parcels {
		g := parcelGeom(p)
		if len(g) == 0 {
			continue
		}
		geoms = append(geoms, repair(g))
	}
	if len(geoms) == 0 {
		return nil, eris.Wrapf(ErrNoParcels, "zoning: exception %d returned only degenerate rings",
			key.ExceptionNumber)
	}

	dissolved, err := polygol.Union(geoms[0], geoms[1:]...)
	if err != nil {
		return nil, eris.Wrap(err, "zoning: dissolve")
	}

	if len(dissolved) > 1 {
		zap.L().Info("zoning: union is multi-part",
			zap.Int("exception", key.ExceptionNumber),
			zap.Int("parts", len(dissolved)),
		)
	}
	return &Result{
		Geom:    dissolved,
		Parts:   len(dissolved),
		AreaKm2: geomutil.AreaKm2(Area(dissolved)),
	}, nil
}

// parcelGeom converts one parcel's exterior ring and holes.
func parcelGeom(p arcgis.PolygonFeature) polygol.Geom {
	if len(p.Rings) == 0 {
		return nil
	}
	poly := make([][][]float64, 0, len(p.Rings))
	for _, ring := range p.Rings {
		if len(ring) < 4 {
			continue
		}
		r := make([][]float64, 0, len(ring))
		for _, c := range ring {
			r = append(r, []float64{c[0], c[1]})
		}
		poly = append(poly, r)
	}
	if len(poly) == 0 {
		return nil
	}
	return polygol.Geom{poly}
}

// repair fixes self-intersecting rings by unioning the geometry with itself,
// the clipping-library equivalent of a zero-width buffer. Failure keeps the
// original ring; the dissolve may still succeed.
func repair(g polygol.Geom) polygol.Geom {
	fixed, err := polygol.Union(g)
	if err != nil || len(fixed) == 0 {
		zap.L().Debug("zoning: parcel repair failed, keeping original ring", zap.Error(err))
		return g
	}
	return fixed
}

// Area is the total flattened area of a multi-part geometry in square
// degrees: exteriors minus holes, across all parts.
func Area(g polygol.Geom) float64 {
	var total float64
	for _, poly := range g {
		for i, ring := range poly {
			coords := make([]geom.Coord, 0, len(ring))
			for _, pt := range ring {
				coords = append(coords, geom.Coord{pt[0], pt[1]})
			}
			a := geomutil.RingArea(coords)
			if i == 0 {
				total += a
			} else {
				total -= a
			}
		}
	}
	return total
}
