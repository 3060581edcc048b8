// Package builder turns filtered boundary geometries into a closed community
// polygon: corners between adjacent boundaries, clipped arcs with detour
// correction, ring assembly and validation.
package builder

import (
	"context"
	"errors"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/perimeter-cli/internal/config"
	"github.com/sells-group/perimeter-cli/internal/geomutil"
	"github.com/sells-group/perimeter-cli/internal/model"
	"github.com/sells-group/perimeter-cli/pkg/geocode"
	"github.com/sells-group/perimeter-cli/pkg/overpass"
)

// ErrCornerNotFound reports that every corner strategy failed for a pair of
// adjacent boundaries.
var ErrCornerNotFound = errors.New("builder: corner not found")

// Edge bundles everything downstream stages need to know about one boundary:
// its descriptor, resolution, and compass-filtered working geometry.
type Edge struct {
	Descriptor model.BoundaryDescriptor
	Resolved   *model.ResolvedName
	Geometry   model.LineGeometry
}

func (e Edge) line() *geom.LineString { return e.Geometry.Lines[0] }

// Builder runs corner-finding and arc clipping.
type Builder struct {
	geo *geocode.Cascade
	osm overpass.Client
	cfg config.BuilderConfig
}

// New creates a Builder.
func New(geo *geocode.Cascade, osm overpass.Client, cfg config.BuilderConfig) *Builder {
	return &Builder{geo: geo, osm: osm, cfg: cfg}
}

// FindCorner locates the point where two perimeter-adjacent boundaries meet.
// The cascade runs geocode+snap, geometric intersection, extrapolation, and
// nearest approach; the first validated result wins. A higher-confidence
// strategy is always preferred when its preconditions hold.
func (b *Builder) FindCorner(ctx context.Context, a, c Edge) (*model.Corner, error) {
	if corner := b.cornerFromGeocode(ctx, a, c); corner != nil {
		return corner, nil
	}
	if corner := b.cornerFromIntersection(a, c); corner != nil {
		return corner, nil
	}
	if corner := b.cornerFromExtrapolation(a, c); corner != nil {
		return corner, nil
	}
	if corner := b.cornerFromNearestApproach(a, c); corner != nil {
		return corner, nil
	}
	return nil, eris.Wrapf(ErrCornerNotFound,
		"builder: %q / %q (tried geocode+snap, intersection, extrapolation, nearest-approach)",
		a.Descriptor.DisplayName, c.Descriptor.DisplayName)
}

// cornerFromGeocode geocodes the textual intersection and validates each
// candidate by its snap distance to both geometries. Colloquial names go
// first: a locally renamed road geocodes under the name residents use, not
// its official identifier.
func (b *Builder) cornerFromGeocode(ctx context.Context, a, c Edge) *model.Corner {
	pairs := [][2]string{
		{a.Resolved.Colloquial, c.Resolved.Colloquial},
	}
	if a.Resolved.Primary() != a.Resolved.Colloquial || c.Resolved.Primary() != c.Resolved.Colloquial {
		pairs = append(pairs, [2]string{a.Resolved.Primary(), c.Resolved.Primary()})
	}

	for _, pair := range pairs {
		for _, cand := range b.geo.Intersection(ctx, pair[0], pair[1]) {
			pt := geom.Coord{cand.Lon, cand.Lat}
			snapA, distA := geomutil.SnapDistanceMeters(a.Geometry.Lines, pt)
			snapC, distC := geomutil.SnapDistanceMeters(c.Geometry.Lines, pt)

			if distA < b.cfg.SnapBothM && distC < b.cfg.SnapBothM {
				return &model.Corner{
					Point:    geomutil.MeanCoord([]geom.Coord{snapA, snapC}),
					Strategy: model.CornerGeocodeBoth,
					SnapDist: [2]float64{distA, distC},
				}
			}

			// One geometry often has a 100-1500 m gap at a bridge or
			// underpass; a tight snap to the other still confirms the corner.
			if min(distA, distC) < b.cfg.SnapOneM {
				nearer := snapA
				if distC < distA {
					nearer = snapC
				}
				zap.L().Info("builder: corner confirmed by one geometry only",
					zap.String("a", a.Descriptor.DisplayName),
					zap.String("b", c.Descriptor.DisplayName),
					zap.Float64("dist_a_m", distA),
					zap.Float64("dist_b_m", distC),
				)
				return &model.Corner{
					Point:    nearer,
					Strategy: model.CornerGeocodeOne,
					SnapDist: [2]float64{distA, distC},
				}
			}
		}
	}

	zap.L().Info("builder: geocoded candidates all snapped too far, trying geometric intersection",
		zap.String("a", a.Descriptor.DisplayName),
		zap.String("b", c.Descriptor.DisplayName),
	)
	return nil
}

// cornerFromIntersection crosses the two geometries directly, falling back
// to close-approach midpoints when the lines pass near without touching.
func (b *Builder) cornerFromIntersection(a, c Edge) *model.Corner {
	pts := geomutil.LineIntersections(a.line(), c.line())
	if len(pts) == 0 {
		pts = geomutil.CloseApproaches(a.line(), c.line(), b.cfg.BufferIntersectM)
	}
	if len(pts) == 0 {
		zap.L().Info("builder: geometries do not intersect, trying extrapolation",
			zap.String("a", a.Descriptor.DisplayName),
			zap.String("b", c.Descriptor.DisplayName),
		)
		return nil
	}
	return &model.Corner{
		Point:    geomutil.MeanCoord(pts),
		Strategy: model.CornerIntersection,
	}
}

// cornerFromExtrapolation extends each geometry's terminal segments and
// crosses the extensions, recovering corners hidden by large data gaps. Of
// the four end combinations, the crossing closest to both tips wins.
func (b *Builder) cornerFromExtrapolation(a, c Edge) *model.Corner {
	type ray struct{ tip, ext geom.Coord }
	rays := func(ls *geom.LineString) []ray {
		t1, e1 := geomutil.TerminalRay(ls, true, b.cfg.ExtrapolateMaxM)
		t2, e2 := geomutil.TerminalRay(ls, false, b.cfg.ExtrapolateMaxM)
		return []ray{{t1, e1}, {t2, e2}}
	}

	var best geom.Coord
	bestCost := math.Inf(1)
	for _, ra := range rays(a.line()) {
		for _, rc := range rays(c.line()) {
			pt, ok := geomutil.SegmentIntersection(ra.tip, ra.ext, rc.tip, rc.ext)
			if !ok {
				continue
			}
			cost := geomutil.DistanceMeters(pt, ra.tip) + geomutil.DistanceMeters(pt, rc.tip)
			if cost < bestCost {
				best, bestCost = pt, cost
			}
		}
	}
	if math.IsInf(bestCost, 1) {
		zap.L().Info("builder: extrapolated ends do not cross, trying nearest approach",
			zap.String("a", a.Descriptor.DisplayName),
			zap.String("b", c.Descriptor.DisplayName),
		)
		return nil
	}
	zap.L().Info("builder: corner recovered by extrapolation",
		zap.String("a", a.Descriptor.DisplayName),
		zap.String("b", c.Descriptor.DisplayName),
		zap.Float64("gap_m", bestCost),
	)
	return &model.Corner{Point: best, Strategy: model.CornerExtrapolated}
}

// cornerFromNearestApproach takes the midpoint of the closest pair of points
// between the two geometries, capped so wildly separated lines still fail.
func (b *Builder) cornerFromNearestApproach(a, c Edge) *model.Corner {
	ptA, ptC, distDeg := geomutil.NearestPoints(a.line(), c.line())
	distM := geomutil.MetersFromDegrees(distDeg)
	if distM > b.cfg.NearestApproachM {
		zap.L().Warn("builder: nearest approach too far apart",
			zap.String("a", a.Descriptor.DisplayName),
			zap.String("b", c.Descriptor.DisplayName),
			zap.Float64("dist_m", distM),
		)
		return nil
	}
	zap.L().Info("builder: corner from nearest approach",
		zap.String("a", a.Descriptor.DisplayName),
		zap.String("b", c.Descriptor.DisplayName),
		zap.Float64("dist_m", distM),
	)
	return &model.Corner{
		Point:    geomutil.MeanCoord([]geom.Coord{ptA, ptC}),
		Strategy: model.CornerNearestApproach,
		SnapDist: [2]float64{distM / 2, distM / 2},
	}
}
