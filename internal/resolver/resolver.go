// Package resolver maps colloquial boundary names to the identifiers used by
// the authoritative line source. Resolution cascades from exact match through
// fuzzy match to intersection-derived lookup; the last strategy handles roads
// whose official name changes near the community being processed.
package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/perimeter-cli/internal/config"
	"github.com/sells-group/perimeter-cli/internal/geomutil"
	"github.com/sells-group/perimeter-cli/internal/model"
	"github.com/sells-group/perimeter-cli/pkg/arcgis"
	"github.com/sells-group/perimeter-cli/pkg/geocode"
)

// ErrNameNotFound reports that no strategy produced an authoritative
// identifier for a boundary.
var ErrNameNotFound = errors.New("resolver: no authoritative name found")

// Resolver runs the name-resolution cascade.
type Resolver struct {
	gis     arcgis.Client
	geo     *geocode.Cascade
	aliases map[string]string
	radiusM float64
}

// New creates a Resolver. The alias table is read-only for the life of the
// Resolver and only short-circuits the exact strategy; an empty table changes
// speed, not results.
func New(gis arcgis.Client, geo *geocode.Cascade, cfg config.ResolverConfig) *Resolver {
	aliases := make(map[string]string, len(cfg.Aliases))
	for k, v := range cfg.Aliases {
		aliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	radius := cfg.IntersectionRadius
	if radius <= 0 {
		radius = 120
	}
	return &Resolver{gis: gis, geo: geo, aliases: aliases, radiusM: radius}
}

// Resolve runs strategies 1 and 2 (exact, fuzzy) for one boundary. A
// NameNotFound error means the caller should retry with
// ResolveViaIntersection once an adjacent boundary has resolved.
func (r *Resolver) Resolve(ctx context.Context, b model.BoundaryDescriptor, env arcgis.Envelope) (*model.ResolvedName, error) {
	if b.GISHint != "" {
		return &model.ResolvedName{
			Colloquial: b.DisplayName,
			Official:   []string{b.GISHint},
			Strategy:   model.ResolveExact,
		}, nil
	}

	normalized := Normalize(b.DisplayName)

	if official, ok := r.aliases[strings.ToLower(b.DisplayName)]; ok {
		zap.L().Debug("resolver: alias hit",
			zap.String("colloquial", b.DisplayName),
			zap.String("official", official),
		)
		return &model.ResolvedName{
			Colloquial: b.DisplayName,
			Official:   []string{official},
			Strategy:   model.ResolveExact,
		}, nil
	}

	// Waterways and railways have no name-listing query; the acquirer probes
	// the layer directly and falls back to the open-map source when sparse.
	if b.FeatureType != model.FeatureStreet {
		return &model.ResolvedName{
			Colloquial: b.DisplayName,
			Official:   []string{normalized},
			Strategy:   model.ResolveExact,
		}, nil
	}

	names, err := r.gis.RoadNamesLike(ctx, BaseName(b.DisplayName), env)
	if err != nil {
		return nil, eris.Wrap(err, "resolver: candidate lookup")
	}

	for _, n := range names {
		if sameName(n, normalized) || sameName(n, b.DisplayName) {
			return &model.ResolvedName{
				Colloquial: b.DisplayName,
				Official:   []string{n},
				Strategy:   model.ResolveExact,
			}, nil
		}
	}

	if len(names) == 1 {
		zap.L().Info("resolver: fuzzy match accepted",
			zap.String("colloquial", b.DisplayName),
			zap.String("official", names[0]),
		)
		return &model.ResolvedName{
			Colloquial: b.DisplayName,
			Official:   []string{names[0]},
			Strategy:   model.ResolveFuzzy,
		}, nil
	}

	zap.L().Info("resolver: exact and fuzzy failed, deferring to intersection strategy",
		zap.String("colloquial", b.DisplayName),
		zap.Int("fuzzy_candidates", len(names)),
	)
	return nil, eris.Wrapf(ErrNameNotFound,
		"resolver: %q (tried exact, fuzzy with %d candidates)", b.DisplayName, len(names))
}

// Neighbor carries what the intersection strategy needs to know about an
// already-resolved adjacent boundary.
type Neighbor struct {
	Colloquial string
	Official   []string
}

// ResolveViaIntersection runs strategy 3: geocode the crossing of the
// unresolved boundary with a resolved neighbor, then score the road names
// found near that point. The neighbor's own identifiers are excluded so the
// boundary cannot resolve to the road it meets.
func (r *Resolver) ResolveViaIntersection(ctx context.Context, b model.BoundaryDescriptor, neighbor Neighbor, ref model.ReferencePoint) (*model.ResolvedName, error) {
	candidates := r.geo.Intersection(ctx, b.DisplayName, neighbor.Colloquial)
	if len(candidates) == 0 {
		return nil, eris.Wrapf(ErrNameNotFound,
			"resolver: %q (intersection with %q geocoded no candidates)",
			b.DisplayName, neighbor.Colloquial)
	}

	excluded := make(map[string]bool, len(neighbor.Official))
	for _, n := range neighbor.Official {
		excluded[strings.ToUpper(n)] = true
	}

	best := ""
	bestScore := -1.0
	for _, cand := range candidates {
		env := arcgis.Around(cand.Lat, cand.Lon, geomutil.DegreesFromMeters(r.radiusM))
		feats, err := r.gis.RoadsInEnvelope(ctx, env)
		if err != nil {
			zap.L().Warn("resolver: nearby road query failed",
				zap.Float64("lat", cand.Lat),
				zap.Float64("lon", cand.Lon),
				zap.Error(err),
			)
			continue
		}

		byName := make(map[string][]*geom.LineString)
		for _, f := range feats {
			if f.Name == "" || excluded[strings.ToUpper(f.Name)] {
				continue
			}
			byName[f.Name] = append(byName[f.Name], f.Paths...)
		}

		point := geom.Coord{cand.Lon, cand.Lat}
		for name, lines := range byName {
			score := scoreCandidate(lines, b.CompassSide, ref, point)
			if score > bestScore {
				bestScore = score
				best = name
			}
		}
	}

	if best == "" {
		return nil, eris.Wrapf(ErrNameNotFound,
			"resolver: %q (tried exact, fuzzy, intersection with %q)",
			b.DisplayName, neighbor.Colloquial)
	}

	zap.L().Info("resolver: intersection-derived resolution",
		zap.String("colloquial", b.DisplayName),
		zap.String("official", best),
		zap.String("via", neighbor.Colloquial),
	)
	return &model.ResolvedName{
		Colloquial: b.DisplayName,
		Official:   []string{best},
		Strategy:   model.ResolveIntersection,
	}, nil
}

// scoreCandidate ranks a named road near a geocoded intersection point.
// Directional consistency with the declared compass side and an orientation
// matching that side each add a point; the snap distance from the geocoded
// point breaks ties in favor of the closest road.
func scoreCandidate(lines []*geom.LineString, side model.CompassSide, ref model.ReferencePoint, point geom.Coord) float64 {
	score := 0.0
	if sideConsistent(lines, side, ref) {
		score += 1
	}
	if orientationConsistent(lines, side) {
		score += 1
	}
	_, snap := geomutil.SnapDistanceMeters(lines, point)
	// Scale so the proximity term never outweighs a consistency point.
	return score + 1/(1+snap/100)
}

func linesCentroid(lines []*geom.LineString) geom.Coord {
	var pts []geom.Coord
	for _, ls := range lines {
		pts = append(pts, geomutil.Centroid(ls))
	}
	return geomutil.MeanCoord(pts)
}

// sideConsistent checks that the candidate lies on the declared side of the
// reference point. Compound sides accept either axis.
func sideConsistent(lines []*geom.LineString, side model.CompassSide, ref model.ReferencePoint) bool {
	if !ref.HasCoords() {
		return true
	}
	c := linesCentroid(lines)
	for _, axis := range side.Axes() {
		switch axis {
		case model.SideNorth:
			if c[1] > ref.Lat {
				return true
			}
		case model.SideSouth:
			if c[1] < ref.Lat {
				return true
			}
		case model.SideEast:
			if c[0] > ref.Lon {
				return true
			}
		case model.SideWest:
			if c[0] < ref.Lon {
				return true
			}
		}
	}
	return false
}

// orientationConsistent checks the candidate's extent against the declared
// side: a north or south boundary should run roughly east-west, a west or
// east boundary roughly north-south.
func orientationConsistent(lines []*geom.LineString, side model.CompassSide) bool {
	minX, minY := 1e18, 1e18
	maxX, maxY := -1e18, -1e18
	for _, ls := range lines {
		for _, c := range ls.Coords() {
			minX, maxX = min(minX, c[0]), max(maxX, c[0])
			minY, maxY = min(minY, c[1]), max(maxY, c[1])
		}
	}
	horizontal := maxX-minX >= maxY-minY
	for _, axis := range side.Axes() {
		switch axis {
		case model.SideNorth, model.SideSouth:
			if horizontal {
				return true
			}
		case model.SideEast, model.SideWest:
			if !horizontal {
				return true
			}
		}
	}
	return false
}
