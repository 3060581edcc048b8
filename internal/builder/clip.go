package builder

import (
	"context"
	"math"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/perimeter-cli/internal/geomutil"
	"github.com/sells-group/perimeter-cli/internal/model"
	"github.com/sells-group/perimeter-cli/pkg/overpass"
)

// clipPoints is the interpolation density of an extracted arc.
const clipPoints = 100

// Clip extracts the portion of a boundary between its two corners as a dense
// coordinate run whose endpoints are force-replaced by the exact corner
// coordinates so rings close without residue. Streets whose arc wanders far
// from the corner-to-corner line go through detour correction.
func (b *Builder) Clip(ctx context.Context, e Edge, from, to *model.Corner, ref model.ReferencePoint) (*model.ClippedArc, error) {
	coords := extractArc(e.line(), from.Point, to.Point)
	arc := &model.ClippedArc{Coords: coords}

	if e.Descriptor.FeatureType != model.FeatureStreet {
		return arc, nil
	}

	straightM := geomutil.DistanceMeters(from.Point, to.Point)
	arcM := runLengthMeters(coords)
	if straightM <= 0 || arcM <= b.cfg.DetourRatio*straightM {
		return arc, nil
	}

	zap.L().Info("builder: detour detected, correcting",
		zap.String("boundary", e.Descriptor.DisplayName),
		zap.Float64("arc_m", arcM),
		zap.Float64("straight_m", straightM),
		zap.Float64("ratio", arcM/straightM),
	)
	return b.correctDetour(ctx, e, from, to, ref, straightM), nil
}

// extractArc projects both corners onto the line, takes the interpolated
// sub-line between them oriented from-to, and snaps the ends exactly.
func extractArc(ls *geom.LineString, from, to geom.Coord) []geom.Coord {
	dFrom := geomutil.Project(ls, from)
	dTo := geomutil.Project(ls, to)
	sub := geomutil.Substring(ls, dFrom, dTo, clipPoints)

	coords := sub.Coords()
	if dFrom > dTo {
		for i, j := 0, len(coords)-1; i < j; i, j = i+1, j-1 {
			coords[i], coords[j] = coords[j], coords[i]
		}
	}
	coords[0] = geom.Coord{from[0], from[1]}
	coords[len(coords)-1] = geom.Coord{to[0], to[1]}
	return coords
}

func runLengthMeters(coords []geom.Coord) float64 {
	var sum float64
	for i := 1; i < len(coords); i++ {
		sum += geomutil.DistanceMeters(coords[i-1], coords[i])
	}
	return sum
}

// correctDetour replaces a wandering arc. Cascade: corridor re-clip of the
// source geometry, open-map corridor search across all named roads, straight
// line. Each corrected arc is re-checked against the detour ratio so a
// correction can never hand back the same wandering geometry.
func (b *Builder) correctDetour(ctx context.Context, e Edge, from, to *model.Corner, ref model.ReferencePoint, straightM float64) *model.ClippedArc {
	if coords := b.corridorReclip(e, from, to, straightM); coords != nil {
		zap.L().Info("builder: detour corrected from corridor re-clip",
			zap.String("boundary", e.Descriptor.DisplayName),
		)
		return &model.ClippedArc{Coords: coords, Corrected: true}
	}

	if coords := b.corridorFromOpenMap(ctx, e, from, to, ref, straightM); coords != nil {
		zap.L().Info("builder: detour corrected from open-map corridor",
			zap.String("boundary", e.Descriptor.DisplayName),
		)
		return &model.ClippedArc{Coords: coords, Corrected: true}
	}

	zap.L().Warn("builder: detour uncorrected, using straight line",
		zap.String("boundary", e.Descriptor.DisplayName),
	)
	return &model.ClippedArc{
		Coords:       []geom.Coord{{from.Point[0], from.Point[1]}, {to.Point[0], to.Point[1]}},
		Straightened: true,
		Corrected:    true,
	}
}

// corridorReclip restricts the boundary's own geometry to a narrow corridor
// around the corner-to-corner line and re-extracts the arc from the longest
// surviving run.
func (b *Builder) corridorReclip(e Edge, from, to *model.Corner, straightM float64) []geom.Coord {
	var best *geom.LineString
	var bestLen float64
	for _, ls := range e.Geometry.Lines {
		for _, run := range geomutil.ClipToCorridor(ls, from.Point, to.Point, b.cfg.CorridorWidthM) {
			if l := geomutil.LengthMeters(run); l > bestLen {
				best, bestLen = run, l
			}
		}
	}
	if best == nil {
		return nil
	}
	coords := extractArc(best, from.Point, to.Point)
	if runLengthMeters(coords) > b.cfg.DetourRatio*straightM {
		// The corridor kept the wander; this source cannot fix it.
		return nil
	}
	return coords
}

// corridorFromOpenMap queries every named road inside the corridor without a
// name filter, merges pieces per name, and picks the road spanning the
// corridor furthest. Cross streets clip through briefly; the boundary road
// runs the corridor's length. Comparably long candidates break ties by
// proximity to the reference point, which selects the community-facing
// carriageway of a divided road.
func (b *Builder) corridorFromOpenMap(ctx context.Context, e Edge, from, to *model.Corner, ref model.ReferencePoint, straightM float64) []geom.Coord {
	bbox := corridorBBox(from.Point, to.Point, geomutil.DegreesFromMeters(b.cfg.CorridorWidthM))
	ways, err := b.osm.NamedWays(ctx, "highway", bbox)
	if err != nil {
		zap.L().Warn("builder: open-map corridor query failed",
			zap.String("boundary", e.Descriptor.DisplayName),
			zap.Error(err),
		)
		return nil
	}

	tagged := make(map[string][]*geom.LineString)
	for _, w := range ways {
		tagged[w.Name] = append(tagged[w.Name], w.Line)
	}

	type candidate struct {
		name string
		line *geom.LineString
		span float64
	}
	var candidates []candidate
	for name, lines := range geomutil.MergeByName(tagged) {
		for _, ls := range lines {
			for _, run := range geomutil.ClipToCorridor(ls, from.Point, to.Point, b.cfg.CorridorWidthM) {
				span := geomutil.SpanAlong(run, from.Point, to.Point)
				candidates = append(candidates, candidate{name: name, line: run, span: span})
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	longest := candidates[0]
	for _, c := range candidates[1:] {
		if c.span > longest.span {
			longest = c
		}
	}

	chosen := longest
	if ref.HasCoords() {
		refPt := geom.Coord{ref.Lon, ref.Lat}
		bestDist := math.Inf(1)
		for _, c := range candidates {
			if c.span < b.cfg.CorridorTieFrac*longest.span {
				continue
			}
			_, d := geomutil.SnapDistanceMeters([]*geom.LineString{c.line}, refPt)
			if d < bestDist {
				chosen, bestDist = c, d
			}
		}
	}

	zap.L().Info("builder: corridor candidate selected",
		zap.String("boundary", e.Descriptor.DisplayName),
		zap.String("road", chosen.name),
		zap.Float64("span_m", chosen.span),
	)

	coords := extractArc(chosen.line, from.Point, to.Point)
	if runLengthMeters(coords) > b.cfg.DetourRatio*straightM {
		return nil
	}
	return coords
}

// corridorBBox bounds the corner-to-corner line expanded by the corridor
// half-width on every side.
func corridorBBox(a, c geom.Coord, padDeg float64) overpass.BBox {
	return overpass.BBox{
		South: math.Min(a[1], c[1]) - padDeg,
		West:  math.Min(a[0], c[0]) - padDeg,
		North: math.Max(a[1], c[1]) + padDeg,
		East:  math.Max(a[0], c[0]) + padDeg,
	}
}
