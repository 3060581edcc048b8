// Package boundary fetches and filters the line geometry for one declared
// perimeter boundary: authoritative centreline/waterline paths first, the
// open-map fallback when those are too sparse, then a compass filter that
// discards components on the wrong side of the community.
package boundary

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/perimeter-cli/internal/config"
	"github.com/sells-group/perimeter-cli/internal/geomutil"
	"github.com/sells-group/perimeter-cli/internal/model"
	"github.com/sells-group/perimeter-cli/pkg/arcgis"
	"github.com/sells-group/perimeter-cli/pkg/overpass"
)

// ErrSparseGeometry reports that the authoritative source returned nothing
// usable and the fallback source failed too.
var ErrSparseGeometry = errors.New("boundary: no usable geometry from any source")

// Acquirer fetches line geometry for resolved boundary names.
type Acquirer struct {
	gis arcgis.Client
	osm overpass.Client
	cfg config.BuilderConfig
}

// NewAcquirer creates an Acquirer.
func NewAcquirer(gis arcgis.Client, osm overpass.Client, cfg config.BuilderConfig) *Acquirer {
	return &Acquirer{gis: gis, osm: osm, cfg: cfg}
}

// osmClass maps a feature type to the OSM tag key used in Overpass queries.
func osmClass(ft model.FeatureType) string {
	switch ft {
	case model.FeatureWaterway:
		return "waterway"
	case model.FeatureRailway:
		return "railway"
	default:
		return "highway"
	}
}

// Fetch returns merged line geometry for one boundary. Each path returned by
// a source stays an independent line until the merge joins true end-to-end
// neighbors; distinct paths are never concatenated into one coordinate run.
// Below the sparse threshold the open-map source is queried by name, trying
// the colloquial name before the resolved identifiers.
func (a *Acquirer) Fetch(ctx context.Context, b model.BoundaryDescriptor, resolved *model.ResolvedName, ref model.ReferencePoint) (model.LineGeometry, error) {
	env := arcgis.Around(ref.Lat, ref.Lon, a.cfg.SearchRadiusDeg)

	var lines []*geom.LineString
	for _, official := range resolved.Official {
		feats, err := a.fetchAuthoritative(ctx, b.FeatureType, official, env)
		if err != nil {
			return model.LineGeometry{}, eris.Wrapf(err, "boundary: fetch %q", official)
		}
		for _, f := range feats {
			lines = append(lines, f.Paths...)
		}
	}

	total := geomutil.TotalLengthMeters(lines)
	if total >= a.cfg.SparseThresholdM {
		return model.LineGeometry{Lines: geomutil.Merge(lines), Source: model.SourceAuthoritative}, nil
	}

	zap.L().Info("boundary: authoritative geometry sparse, querying fallback source",
		zap.String("boundary", b.DisplayName),
		zap.Float64("total_m", total),
	)

	fallback, err := a.fetchFallback(ctx, b, resolved, ref)
	if err != nil || len(fallback) == 0 {
		if len(lines) > 0 {
			zap.L().Warn("boundary: fallback failed, keeping sparse authoritative geometry",
				zap.String("boundary", b.DisplayName),
				zap.Error(err),
			)
			return model.LineGeometry{Lines: geomutil.Merge(lines), Source: model.SourceAuthoritative}, nil
		}
		if err != nil {
			return model.LineGeometry{}, eris.Wrapf(err, "boundary: %q fallback fetch", b.DisplayName)
		}
		return model.LineGeometry{}, eris.Wrapf(ErrSparseGeometry, "boundary: %q", b.DisplayName)
	}

	return model.LineGeometry{Lines: geomutil.Merge(fallback), Source: model.SourceFallback}, nil
}

func (a *Acquirer) fetchAuthoritative(ctx context.Context, ft model.FeatureType, name string, env arcgis.Envelope) ([]arcgis.LineFeature, error) {
	switch ft {
	case model.FeatureStreet:
		return a.gis.RoadCentrelines(ctx, name, env)
	case model.FeatureWaterway:
		return a.gis.Waterlines(ctx, name, env)
	default:
		// No authoritative railway layer; the fallback source covers these.
		return nil, nil
	}
}

func (a *Acquirer) fetchFallback(ctx context.Context, b model.BoundaryDescriptor, resolved *model.ResolvedName, ref model.ReferencePoint) ([]*geom.LineString, error) {
	bbox := overpass.Around(ref.Lat, ref.Lon, a.cfg.SearchRadiusDeg)
	class := osmClass(b.FeatureType)

	names := append([]string{resolved.Colloquial}, resolved.Official...)
	var lastErr error
	for _, name := range names {
		ways, err := a.osm.WaysByName(ctx, class, name, bbox)
		if err != nil {
			lastErr = err
			continue
		}
		if len(ways) == 0 {
			continue
		}
		var lines []*geom.LineString
		for _, w := range ways {
			lines = append(lines, w.Line)
		}
		return lines, nil
	}
	return nil, lastErr
}
