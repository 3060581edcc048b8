// Package pipeline runs the full construction for one community: reference
// point geocoding, the parallel per-boundary resolve/fetch/filter phase, the
// sequential perimeter walk, and the independent zoning-union path with the
// agreement score between the two.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/perimeter-cli/internal/boundary"
	"github.com/sells-group/perimeter-cli/internal/builder"
	"github.com/sells-group/perimeter-cli/internal/config"
	"github.com/sells-group/perimeter-cli/internal/model"
	"github.com/sells-group/perimeter-cli/internal/report"
	"github.com/sells-group/perimeter-cli/internal/resolver"
	"github.com/sells-group/perimeter-cli/internal/zoning"
	"github.com/sells-group/perimeter-cli/pkg/arcgis"
	"github.com/sells-group/perimeter-cli/pkg/geocode"
	"github.com/sells-group/perimeter-cli/pkg/overpass"
)

// Approach selects which constructions to attempt.
type Approach string

// Approaches.
const (
	ApproachLines  Approach = "lines"
	ApproachZoning Approach = "zoning"
	ApproachBoth   Approach = "both"
)

// Pipeline wires the construction stages together.
type Pipeline struct {
	gis arcgis.Client
	res *resolver.Resolver
	acq *boundary.Acquirer
	bld *builder.Builder
	zon *zoning.Builder
	geo *geocode.Cascade
	cfg *config.Config
}

// New assembles a Pipeline from its clients and configuration.
func New(cfg *config.Config, gis arcgis.Client, osm overpass.Client, geo *geocode.Cascade) *Pipeline {
	return &Pipeline{
		gis: gis,
		res: resolver.New(gis, geo, cfg.Resolver),
		acq: boundary.NewAcquirer(gis, osm, cfg.Builder),
		bld: builder.New(geo, osm, cfg.Builder),
		zon: zoning.New(gis, cfg.Builder.ZoningRadiusDeg),
		geo: geo,
		cfg: cfg,
	}
}

// Outcome is everything one run produced. Either polygon may be absent when
// its path failed; the report records why.
type Outcome struct {
	Ref     model.ReferencePoint
	Edges   []builder.Edge
	Corners []*model.Corner
	Arcs    []*model.ClippedArc
	Lines   *model.PolygonResult
	Zoning  *zoning.Result
	Report  *report.Report
}

// Run executes the requested approaches for one community. The two paths
// fail independently: an error is returned only when every requested
// artifact failed to build.
func (p *Pipeline) Run(ctx context.Context, in *model.CommunityInput, approach Approach) (*Outcome, error) {
	rep := report.New(in.Name)
	out := &Outcome{Report: rep}

	ref, err := p.resolveReference(ctx, in)
	if err != nil {
		rep.Failf("reference point: %v", err)
		return out, err
	}
	out.Ref = ref

	var linesErr, zoningErr error

	if approach != ApproachZoning {
		linesErr = p.buildLines(ctx, in, ref, out)
		if linesErr != nil {
			zap.L().Error("pipeline: boundary-lines construction failed",
				zap.String("community", in.Name),
				zap.Error(linesErr),
			)
			rep.Failf("lines polygon: %v", linesErr)
		}
	}

	if approach != ApproachLines {
		zoningErr = p.buildZoning(ctx, in, ref, out)
		if zoningErr != nil {
			zap.L().Error("pipeline: zoning-union construction failed",
				zap.String("community", in.Name),
				zap.Error(zoningErr),
			)
			rep.Failf("zoning union: %v", zoningErr)
		}
	}

	if out.Lines != nil && out.Zoning != nil {
		iou, err := zoning.IoU(zoning.FromPolygon(out.Lines.Polygon), out.Zoning.Geom)
		if err != nil {
			rep.Warnf("agreement score failed: %v", err)
		} else {
			rep.SetIoU(iou)
			zap.L().Info("pipeline: approaches compared",
				zap.String("community", in.Name),
				zap.Float64("iou", iou),
			)
		}
	}

	switch approach {
	case ApproachLines:
		return out, linesErr
	case ApproachZoning:
		return out, zoningErr
	default:
		if linesErr != nil && zoningErr != nil {
			return out, eris.Errorf("pipeline: both approaches failed: lines: %v; zoning: %v",
				linesErr, zoningErr)
		}
		return out, nil
	}
}

func (p *Pipeline) resolveReference(ctx context.Context, in *model.CommunityInput) (model.ReferencePoint, error) {
	ref := in.Reference
	if ref.HasCoords() {
		return ref, nil
	}
	r, err := p.geo.Address(ctx, ref.Address)
	if err != nil {
		return ref, eris.Wrapf(err, "pipeline: geocode %q", ref.Address)
	}
	if !r.Matched {
		return ref, eris.Errorf("pipeline: address %q did not geocode", ref.Address)
	}
	zap.L().Info("pipeline: reference point geocoded",
		zap.String("address", ref.Address),
		zap.Float64("lat", r.Lat),
		zap.Float64("lon", r.Lon),
	)
	ref.Lat, ref.Lon = r.Lat, r.Lon
	return ref, nil
}

// buildLines runs the boundary-lines approach. Resolution, fetching, and
// compass filtering carry no cross-boundary state and fan out across
// boundaries; corner-finding walks the perimeter sequentially because each
// corner needs both neighbors' geometry.
func (p *Pipeline) buildLines(ctx context.Context, in *model.CommunityInput, ref model.ReferencePoint, out *Outcome) error {
	n := len(in.Boundaries)
	rep := out.Report
	env := arcgis.Around(ref.Lat, ref.Lon, p.cfg.Builder.SearchRadiusDeg)

	resolved := make([]*model.ResolvedName, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())
	for i := range in.Boundaries {
		i := i
		g.Go(func() error {
			r, err := p.res.Resolve(gctx, in.Boundaries[i], env)
			if err != nil {
				if eris.Is(err, resolver.ErrNameNotFound) {
					// Retried below once a neighbor has resolved.
					return nil
				}
				return err
			}
			resolved[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "pipeline: resolve phase")
	}

	for i := range in.Boundaries {
		if resolved[i] != nil {
			continue
		}
		r, err := p.resolveFromNeighbors(ctx, in, i, resolved, ref)
		if err != nil {
			rep.Boundaries = append(rep.Boundaries, report.BoundaryOutcome{
				Name:  in.Boundaries[i].DisplayName,
				Type:  string(in.Boundaries[i].FeatureType),
				Error: err.Error(),
			})
			return eris.Wrapf(err, "pipeline: boundary %q unresolvable", in.Boundaries[i].DisplayName)
		}
		resolved[i] = r
	}

	edges := make([]builder.Edge, n)
	g2, g2ctx := errgroup.WithContext(ctx)
	g2.SetLimit(p.concurrency())
	for i := range in.Boundaries {
		i := i
		g2.Go(func() error {
			raw, err := p.acq.Fetch(g2ctx, in.Boundaries[i], resolved[i], ref)
			if err != nil {
				return err
			}
			filtered, err := boundary.FilterCompass(raw, in.Boundaries[i], ref, p.cfg.Builder.SelectRadiusM)
			if err != nil {
				return err
			}
			edges[i] = builder.Edge{
				Descriptor: in.Boundaries[i],
				Resolved:   resolved[i],
				Geometry:   filtered,
			}
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return eris.Wrap(err, "pipeline: fetch phase")
	}
	out.Edges = edges

	for i := range edges {
		rep.Boundaries = append(rep.Boundaries, report.BoundaryOutcome{
			Name:     edges[i].Descriptor.DisplayName,
			Type:     string(edges[i].Descriptor.FeatureType),
			Resolved: edges[i].Resolved.Primary(),
			Strategy: string(edges[i].Resolved.Strategy),
			Source:   string(edges[i].Geometry.Source),
		})
	}

	// Perimeter walk: corner i joins boundary i and i+1.
	corners := make([]*model.Corner, n)
	for i := range edges {
		next := (i + 1) % n
		corner, err := p.bld.FindCorner(ctx, edges[i], edges[next])
		if err != nil {
			return eris.Wrap(err, "pipeline: corner phase")
		}
		corners[i] = corner
		rep.Corners = append(rep.Corners, report.CornerOutcome{
			Between:  [2]string{edges[i].Descriptor.DisplayName, edges[next].Descriptor.DisplayName},
			Strategy: string(corner.Strategy),
			Lat:      corner.Point[1],
			Lon:      corner.Point[0],
			SnapM:    corner.SnapDist,
		})
	}
	out.Corners = corners

	arcs := make([]*model.ClippedArc, n)
	for i := range edges {
		from := corners[(i-1+n)%n]
		arc, err := p.bld.Clip(ctx, edges[i], from, corners[i], ref)
		if err != nil {
			return eris.Wrap(err, "pipeline: clip phase")
		}
		if arc.Straightened {
			rep.Warnf("detour on %q could not be corrected, straight line used",
				edges[i].Descriptor.DisplayName)
		}
		arcs[i] = arc
	}
	out.Arcs = arcs

	result, err := builder.AssembleRing(edges, arcs, ref)
	if err != nil {
		return eris.Wrap(err, "pipeline: ring assembly")
	}
	if !result.RefInside {
		rep.Warnf("reference point lies outside the constructed polygon; the input is likely wrong")
	}
	out.Lines = result
	rep.Lines = &report.PolygonOutcome{
		AreaKm2:   result.AreaKm2,
		RefInside: result.RefInside,
		Vertices:  result.Polygon.LinearRing(0).NumCoords(),
	}
	return nil
}

// resolveFromNeighbors retries a failed resolution against each resolved
// perimeter neighbor in turn.
func (p *Pipeline) resolveFromNeighbors(ctx context.Context, in *model.CommunityInput, i int, resolved []*model.ResolvedName, ref model.ReferencePoint) (*model.ResolvedName, error) {
	n := len(in.Boundaries)
	var lastErr error
	for _, j := range []int{(i + 1) % n, (i - 1 + n) % n} {
		if resolved[j] == nil || j == i {
			continue
		}
		r, err := p.res.ResolveViaIntersection(ctx, in.Boundaries[i], resolver.Neighbor{
			Colloquial: resolved[j].Colloquial,
			Official:   resolved[j].Official,
		}, ref)
		if err != nil {
			lastErr = err
			continue
		}
		return r, nil
	}
	if lastErr == nil {
		lastErr = eris.Wrapf(resolver.ErrNameNotFound,
			"pipeline: %q has no resolved neighbor", in.Boundaries[i].DisplayName)
	}
	return nil, lastErr
}

func (p *Pipeline) buildZoning(ctx context.Context, in *model.CommunityInput, ref model.ReferencePoint, out *Outcome) error {
	if in.Zoning == nil {
		return eris.New("pipeline: input has no zoning_exception")
	}
	result, err := p.zon.Union(ctx, *in.Zoning, ref)
	if err != nil {
		return err
	}
	out.Zoning = result
	out.Report.Zoning = &report.PolygonOutcome{
		AreaKm2: result.AreaKm2,
		Parts:   result.Parts,
	}
	return nil
}

func (p *Pipeline) concurrency() int {
	if p.cfg.Builder.BoundaryConcurrent > 0 {
		return p.cfg.Builder.BoundaryConcurrent
	}
	return 4
}
