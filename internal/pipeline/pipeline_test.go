package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/perimeter-cli/internal/config"
	"github.com/sells-group/perimeter-cli/internal/model"
	"github.com/sells-group/perimeter-cli/pkg/arcgis"
	"github.com/sells-group/perimeter-cli/pkg/geocode"
	"github.com/sells-group/perimeter-cli/pkg/overpass"
)

func line(coords ...geom.Coord) *geom.LineString {
	flat := make([]float64, 0, len(coords)*2)
	for _, c := range coords {
		flat = append(flat, c[0], c[1])
	}
	return geom.NewLineStringFlat(geom.XY, flat)
}

type fakeGIS struct {
	arcgis.Client
	namesLike  map[string][]string
	roads      map[string][]arcgis.LineFeature
	parcels    []arcgis.PolygonFeature
	properties map[string][]arcgis.PolygonFeature
}

func (f *fakeGIS) RoadNamesLike(_ context.Context, fragment string, _ arcgis.Envelope) ([]string, error) {
	return f.namesLike[fragment], nil
}

func (f *fakeGIS) RoadCentrelines(_ context.Context, name string, _ arcgis.Envelope) ([]arcgis.LineFeature, error) {
	return f.roads[name], nil
}

func (f *fakeGIS) Waterlines(_ context.Context, _ string, _ arcgis.Envelope) ([]arcgis.LineFeature, error) {
	return nil, nil
}

func (f *fakeGIS) ZoningParcels(_ context.Context, _ int, _ string, _ arcgis.Envelope) ([]arcgis.PolygonFeature, error) {
	return f.parcels, nil
}

type fakeOSM struct {
	overpass.Client
}

func (f *fakeOSM) WaysByName(_ context.Context, _, _ string, _ overpass.BBox) ([]overpass.Way, error) {
	return nil, nil
}

func (f *fakeOSM) NamedWays(_ context.Context, _ string, _ overpass.BBox) ([]overpass.Way, error) {
	return nil, nil
}

func road(name string, coords ...geom.Coord) arcgis.LineFeature {
	return arcgis.LineFeature{Name: name, Paths: []*geom.LineString{line(coords...)}}
}

// squareCommunity gives four streets crossing to bound a 0.01-degree square
// around the reference point.
func squareCommunity() (*fakeGIS, *model.CommunityInput) {
	gis := &fakeGIS{
		namesLike: map[string][]string{
			"Alpha":   {"Alpha St"},
			"Bravo":   {"Bravo Ave"},
			"Charlie": {"Charlie St"},
			"Delta":   {"Delta Ave"},
		},
		roads: map[string][]arcgis.LineFeature{
			"Alpha St":   {road("Alpha St", geom.Coord{-0.002, 0}, geom.Coord{0.012, 0})},
			"Bravo Ave":  {road("Bravo Ave", geom.Coord{0.01, -0.002}, geom.Coord{0.01, 0.012})},
			"Charlie St": {road("Charlie St", geom.Coord{-0.002, 0.01}, geom.Coord{0.012, 0.01})},
			"Delta Ave":  {road("Delta Ave", geom.Coord{0, -0.002}, geom.Coord{0, 0.012})},
		},
		parcels: []arcgis.PolygonFeature{
			{Rings: [][]geom.Coord{{
				{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}, {0, 0},
			}}},
		},
	}
	in := &model.CommunityInput{
		Name:      "Testville",
		Reference: model.ReferencePoint{Lat: 0.005, Lon: 0.005},
		Boundaries: []model.BoundaryDescriptor{
			{DisplayName: "Alpha Street", FeatureType: model.FeatureStreet, CompassSide: model.SideSouth},
			{DisplayName: "Bravo Avenue", FeatureType: model.FeatureStreet, CompassSide: model.SideEast},
			{DisplayName: "Charlie Street", FeatureType: model.FeatureStreet, CompassSide: model.SideNorth},
			{DisplayName: "Delta Avenue", FeatureType: model.FeatureStreet, CompassSide: model.SideWest},
		},
		Zoning: &model.ZoningKey{ExceptionNumber: 42, ZoneType: "RD"},
	}
	return gis, in
}

func testConfig() *config.Config {
	return &config.Config{
		Resolver: config.ResolverConfig{IntersectionRadius: 120},
		Builder: config.BuilderConfig{
			SearchRadiusDeg:    0.02,
			SparseThresholdM:   200,
			SelectRadiusM:      2000,
			SnapBothM:          500,
			SnapOneM:           200,
			BufferIntersectM:   30,
			ExtrapolateMaxM:    2000,
			NearestApproachM:   1500,
			DetourRatio:        2.5,
			CorridorWidthM:     220,
			CorridorTieFrac:    0.85,
			ZoningRadiusDeg:    0.015,
			BoundaryConcurrent: 2,
		},
	}
}

func TestRun_BothApproachesAgree(t *testing.T) {
	gis, in := squareCommunity()
	p := New(testConfig(), gis, &fakeOSM{}, geocode.NewCascade("Toronto, ON"))

	out, err := p.Run(context.Background(), in, ApproachBoth)
	require.NoError(t, err)

	require.NotNil(t, out.Lines)
	assert.True(t, out.Lines.RefInside)
	assert.InDelta(t, 1.239, out.Lines.AreaKm2, 0.02)

	require.NotNil(t, out.Zoning)
	assert.Equal(t, 1, out.Zoning.Parts)

	require.NotNil(t, out.Report.IoU)
	assert.Greater(t, *out.Report.IoU, 0.95)

	require.Len(t, out.Report.Boundaries, 4)
	assert.Equal(t, "Alpha St", out.Report.Boundaries[0].Resolved)
	assert.Equal(t, "exact", out.Report.Boundaries[0].Strategy)
	require.Len(t, out.Report.Corners, 4)
	for _, c := range out.Report.Corners {
		assert.Equal(t, string(model.CornerIntersection), c.Strategy)
	}
}

func TestRun_LinesOnly(t *testing.T) {
	gis, in := squareCommunity()
	p := New(testConfig(), gis, &fakeOSM{}, geocode.NewCascade("Toronto, ON"))

	out, err := p.Run(context.Background(), in, ApproachLines)
	require.NoError(t, err)
	assert.NotNil(t, out.Lines)
	assert.Nil(t, out.Zoning)
	assert.Nil(t, out.Report.IoU)
}

func TestRun_ZoningOnly(t *testing.T) {
	gis, in := squareCommunity()
	p := New(testConfig(), gis, &fakeOSM{}, geocode.NewCascade("Toronto, ON"))

	out, err := p.Run(context.Background(), in, ApproachZoning)
	require.NoError(t, err)
	assert.Nil(t, out.Lines)
	assert.NotNil(t, out.Zoning)
}

func TestRun_ZoningSurvivesLinesFailure(t *testing.T) {
	gis, in := squareCommunity()
	// Remove one road entirely: resolution and intersection-derived rescue
	// both fail, so the lines path aborts. The zoning path must still run.
	delete(gis.namesLike, "Delta")
	delete(gis.roads, "Delta Ave")

	p := New(testConfig(), gis, &fakeOSM{}, geocode.NewCascade("Toronto, ON"))
	out, err := p.Run(context.Background(), in, ApproachBoth)
	require.NoError(t, err)
	assert.Nil(t, out.Lines)
	require.NotNil(t, out.Zoning)
	assert.NotEmpty(t, out.Report.Errors)
}

func TestRun_MissingZoningKey(t *testing.T) {
	gis, in := squareCommunity()
	in.Zoning = nil

	p := New(testConfig(), gis, &fakeOSM{}, geocode.NewCascade("Toronto, ON"))
	out, err := p.Run(context.Background(), in, ApproachZoning)
	require.Error(t, err)
	assert.Nil(t, out.Zoning)
}

type fixedGeocoder struct{ lat, lon float64 }

func (f *fixedGeocoder) Name() string    { return "fixed" }
func (f *fixedGeocoder) Available() bool { return true }

func (f *fixedGeocoder) Geocode(_ context.Context, _ string) (*geocode.Result, error) {
	return &geocode.Result{Lat: f.lat, Lon: f.lon, Matched: true}, nil
}

func TestRun_GeocodesReferenceAddress(t *testing.T) {
	gis, in := squareCommunity()
	in.Reference = model.ReferencePoint{Address: "1 Test Sq"}

	geo := geocode.NewCascade("Toronto, ON", &fixedGeocoder{lat: 0.005, lon: 0.005})
	p := New(testConfig(), gis, &fakeOSM{}, geo)

	out, err := p.Run(context.Background(), in, ApproachZoning)
	require.NoError(t, err)
	assert.InDelta(t, 0.005, out.Ref.Lat, 1e-9)
	assert.InDelta(t, 0.005, out.Ref.Lon, 1e-9)
}
