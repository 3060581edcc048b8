package boundary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/perimeter-cli/internal/config"
	"github.com/sells-group/perimeter-cli/internal/model"
	"github.com/sells-group/perimeter-cli/pkg/arcgis"
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
	roads  map[string][]arcgis.LineFeature
	waters map[string][]arcgis.LineFeature
}

func (f *fakeGIS) RoadCentrelines(_ context.Context, name string, _ arcgis.Envelope) ([]arcgis.LineFeature, error) {
	return f.roads[name], nil
}

func (f *fakeGIS) Waterlines(_ context.Context, name string, _ arcgis.Envelope) ([]arcgis.LineFeature, error) {
	return f.waters[name], nil
}

type fakeOSM struct {
	overpass.Client
	ways map[string][]overpass.Way
	err  error
}

func (f *fakeOSM) WaysByName(_ context.Context, _, name string, _ overpass.BBox) ([]overpass.Way, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ways[name], nil
}

var testCfg = config.BuilderConfig{
	SearchRadiusDeg:  0.02,
	SparseThresholdM: 200,
	SelectRadiusM:    2000,
}

func TestFetch_AuthoritativePreferred(t *testing.T) {
	// Two disjoint centreline paths well over the sparse threshold.
	gis := &fakeGIS{roads: map[string][]arcgis.LineFeature{
		"Lawrence Ave E": {
			{Name: "Lawrence Ave E", Paths: []*geom.LineString{
				line(geom.Coord{-79.30, 43.75}, geom.Coord{-79.28, 43.75}),
			}},
			{Name: "Lawrence Ave E", Paths: []*geom.LineString{
				line(geom.Coord{-79.27, 43.75}, geom.Coord{-79.25, 43.75}),
			}},
		},
	}}
	a := NewAcquirer(gis, &fakeOSM{}, testCfg)

	got, err := a.Fetch(context.Background(),
		model.BoundaryDescriptor{DisplayName: "Lawrence Avenue East", FeatureType: model.FeatureStreet},
		&model.ResolvedName{Colloquial: "Lawrence Avenue East", Official: []string{"Lawrence Ave E"}},
		model.ReferencePoint{Lat: 43.74, Lon: -79.28},
	)
	require.NoError(t, err)
	assert.Equal(t, model.SourceAuthoritative, got.Source)
	// The 0.01-degree gap between the paths must not be bridged.
	assert.Len(t, got.Lines, 2)
}

func TestFetch_SparseWaterwayFallsBack(t *testing.T) {
	// Authoritative waterline has a stub far below 200 m; Overpass has the
	// full creek under the colloquial name.
	gis := &fakeGIS{waters: map[string][]arcgis.LineFeature{
		"Highland Crk": {
			{Name: "Highland Crk", Paths: []*geom.LineString{
				line(geom.Coord{-79.28, 43.75}, geom.Coord{-79.2799, 43.75}),
			}},
		},
	}}
	osm := &fakeOSM{ways: map[string][]overpass.Way{
		"Highland Creek": {
			{Name: "Highland Creek", Line: line(
				geom.Coord{-79.29, 43.74}, geom.Coord{-79.28, 43.76},
			)},
		},
	}}
	a := NewAcquirer(gis, osm, testCfg)

	got, err := a.Fetch(context.Background(),
		model.BoundaryDescriptor{DisplayName: "Highland Creek", FeatureType: model.FeatureWaterway},
		&model.ResolvedName{Colloquial: "Highland Creek", Official: []string{"Highland Crk"}},
		model.ReferencePoint{Lat: 43.75, Lon: -79.28},
	)
	require.NoError(t, err)
	assert.Equal(t, model.SourceFallback, got.Source)
	require.Len(t, got.Lines, 1)
}

func TestFetch_SparseKeptWhenFallbackFails(t *testing.T) {
	gis := &fakeGIS{waters: map[string][]arcgis.LineFeature{
		"Highland Crk": {
			{Name: "Highland Crk", Paths: []*geom.LineString{
				line(geom.Coord{-79.28, 43.75}, geom.Coord{-79.2799, 43.75}),
			}},
		},
	}}
	osm := &fakeOSM{err: assert.AnError}
	a := NewAcquirer(gis, osm, testCfg)

	got, err := a.Fetch(context.Background(),
		model.BoundaryDescriptor{DisplayName: "Highland Creek", FeatureType: model.FeatureWaterway},
		&model.ResolvedName{Colloquial: "Highland Creek", Official: []string{"Highland Crk"}},
		model.ReferencePoint{Lat: 43.75, Lon: -79.28},
	)
	require.NoError(t, err)
	assert.Equal(t, model.SourceAuthoritative, got.Source)
}

func TestFetch_NothingAnywhere(t *testing.T) {
	a := NewAcquirer(&fakeGIS{}, &fakeOSM{}, testCfg)

	_, err := a.Fetch(context.Background(),
		model.BoundaryDescriptor{DisplayName: "Ghost Creek", FeatureType: model.FeatureWaterway},
		&model.ResolvedName{Colloquial: "Ghost Creek", Official: []string{"Ghost Crk"}},
		model.ReferencePoint{Lat: 43.75, Lon: -79.28},
	)
	require.ErrorIs(t, err, ErrSparseGeometry)
}

func TestFilterCompass_SimpleSide(t *testing.T) {
	ref := model.ReferencePoint{Lat: 43.75, Lon: -79.28}
	north := line(geom.Coord{-79.29, 43.76}, geom.Coord{-79.27, 43.76})
	south := line(geom.Coord{-79.29, 43.74}, geom.Coord{-79.27, 43.74})

	got, err := FilterCompass(
		model.LineGeometry{Lines: []*geom.LineString{north, south}, Source: model.SourceAuthoritative},
		model.BoundaryDescriptor{DisplayName: "Lawrence Ave E", CompassSide: model.SideNorth},
		ref, 2000,
	)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 43.76, got.Lines[0].Coord(0)[1])
}

func TestFilterCompass_CompoundSideIsOr(t *testing.T) {
	// A creek declared west_and_south: a component east of the reference
	// point but to its south must survive the filter.
	ref := model.ReferencePoint{Lat: 43.75, Lon: -79.28}
	southEast := line(geom.Coord{-79.275, 43.74}, geom.Coord{-79.27, 43.74})

	got, err := FilterCompass(
		model.LineGeometry{Lines: []*geom.LineString{southEast}, Source: model.SourceFallback},
		model.BoundaryDescriptor{DisplayName: "Highland Creek", CompassSide: model.SideWestAndSouth},
		ref, 2000,
	)
	require.NoError(t, err)
	assert.Len(t, got.Lines, 1)
}

func TestFilterCompass_SelectsLongestWithinRadius(t *testing.T) {
	ref := model.ReferencePoint{Lat: 43.75, Lon: -79.28}
	long := line(geom.Coord{-79.30, 43.76}, geom.Coord{-79.26, 43.76})
	short := line(geom.Coord{-79.29, 43.755}, geom.Coord{-79.285, 43.755})
	farAway := line(geom.Coord{-79.30, 43.90}, geom.Coord{-79.20, 43.90})

	got, err := FilterCompass(
		model.LineGeometry{Lines: []*geom.LineString{short, farAway, long}, Source: model.SourceAuthoritative},
		model.BoundaryDescriptor{DisplayName: "Lawrence Ave E", CompassSide: model.SideNorth},
		ref, 2000,
	)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, -79.30, got.Lines[0].Coord(0)[0])
	assert.Equal(t, 43.76, got.Lines[0].Coord(0)[1])
}

func TestFilterCompass_AllDiscardedFails(t *testing.T) {
	ref := model.ReferencePoint{Lat: 43.75, Lon: -79.28}
	south := line(geom.Coord{-79.29, 43.74}, geom.Coord{-79.27, 43.74})

	_, err := FilterCompass(
		model.LineGeometry{Lines: []*geom.LineString{south}, Source: model.SourceAuthoritative},
		model.BoundaryDescriptor{DisplayName: "Lawrence Ave E", CompassSide: model.SideNorth},
		ref, 2000,
	)
	require.ErrorIs(t, err, ErrNothingOnSide)
}
